package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"envirotrack/pkg/domain"
)

// LDARSummary reports leak detection KPIs.
type LDARSummary struct {
	Monitored        int             `json:"monitored"`
	ActiveLeaks      int             `json:"active_leaks"`
	HighestReading   decimal.Decimal `json:"highest_reading"`
	AboveActionLevel bool            `json:"above_action_level"`
	// ComplianceRate is a whole percentage; nil with no components monitored.
	ComplianceRate *int64 `json:"compliance_rate"`
}

// GHGSummary reports greenhouse gas KPIs.
type GHGSummary struct {
	Records            int             `json:"records"`
	TotalCO2e          decimal.Decimal `json:"total_co2e"`
	ReportingThreshold decimal.Decimal `json:"reporting_threshold"`
	AboveThreshold     bool            `json:"above_threshold"`
}

// BWONSummary reports benzene waste KPIs.
type BWONSummary struct {
	Streams      int `json:"streams"`
	NonCompliant int `json:"non_compliant"`
	Compliant    int `json:"compliant"`
}

// PermitSummary reports permit KPIs.
type PermitSummary struct {
	Total      int `json:"total"`
	Expiring   int `json:"expiring"`
	Active     int `json:"active"`
	NeedAction int `json:"need_action"`
}

// IncidentSummary reports incident KPIs.
type IncidentSummary struct {
	Total          int `json:"total"`
	Open           int `json:"open"`
	Reported       int `json:"reported"`
	Closed         int `json:"closed"`
	HighOrCritical int `json:"high_or_critical"`
}

// RCRASummary reports hazardous waste KPIs.
type RCRASummary struct {
	Streams   int `json:"streams"`
	NearLimit int `json:"near_limit"`
}

// SPCCSummary reports oil storage KPIs.
type SPCCSummary struct {
	Tanks        int             `json:"tanks"`
	TotalBarrels decimal.Decimal `json:"total_barrels"`
	NonCompliant int             `json:"non_compliant"`
}

// FlareSummary reports flare event and stack test KPIs.
type FlareSummary struct {
	Events            int `json:"events"`
	Unreported        int `json:"unreported"`
	StackTests        int `json:"stack_tests"`
	StackTestsFailing int `json:"stack_tests_failing"`
}

// CorrectiveActionSummary reports corrective action KPIs.
type CorrectiveActionSummary struct {
	Total      int `json:"total"`
	Open       int `json:"open"`
	InProgress int `json:"in_progress"`
	Closed     int `json:"closed"`
}

// Modules groups the per-module KPIs.
type Modules struct {
	LDAR              LDARSummary             `json:"ldar"`
	GHG               GHGSummary              `json:"ghg"`
	BWON              BWONSummary             `json:"bwon"`
	Permits           PermitSummary           `json:"permits"`
	Incidents         IncidentSummary         `json:"incidents"`
	RCRA              RCRASummary             `json:"rcra"`
	SPCC              SPCCSummary             `json:"spcc"`
	Flare             FlareSummary            `json:"flare"`
	CorrectiveActions CorrectiveActionSummary `json:"cas"`
}

// Dashboard is the cross-module view: headline KPIs plus the alert list.
type Dashboard struct {
	ActiveLeaks           int             `json:"active_leaks"`
	TotalCO2e             decimal.Decimal `json:"total_co2e"`
	OpenIncidents         int             `json:"open_incidents"`
	PermitsExpiring       int             `json:"permits_expiring"`
	OpenCorrectiveActions int             `json:"open_corrective_actions"`
	RCRANearLimit         int             `json:"rcra_near_limit"`
	StackTestsFailing     int             `json:"stack_tests_failing"`
	TotalOilStorage       decimal.Decimal `json:"total_oil_storage"`
	Alerts                []domain.Alert  `json:"alerts"`
	Modules               Modules         `json:"modules"`
}

// Summarize recomputes every KPI of ws as of now. Nothing is cached.
func Summarize(ws domain.Workspace, now time.Time) Modules {
	return Modules{
		LDAR:              summarizeLDAR(ws.Records(domain.CollectionLDAR)),
		GHG:               summarizeGHG(ws.Records(domain.CollectionGHG)),
		BWON:              summarizeBWON(ws.Records(domain.CollectionBWON)),
		Permits:           summarizePermits(ws.Records(domain.CollectionPermits), now),
		Incidents:         summarizeIncidents(ws.Records(domain.CollectionIncidents)),
		RCRA:              summarizeRCRA(ws.Records(domain.CollectionRCRA)),
		SPCC:              summarizeSPCC(ws.Records(domain.CollectionSPCC)),
		Flare:             summarizeFlare(ws.Records(domain.CollectionFlare), ws.Records(domain.CollectionStacks)),
		CorrectiveActions: summarizeCorrectiveActions(ws.Records(domain.CollectionCorrectiveActions)),
	}
}

// BuildDashboard evaluates engine against ws and assembles the dashboard.
func BuildDashboard(ctx context.Context, engine *RulesEngine, ws domain.Workspace, now time.Time) (Dashboard, error) {
	res, err := engine.Evaluate(ctx, NewWorkspaceView(ws, now))
	if err != nil {
		return Dashboard{}, err
	}
	m := Summarize(ws, now)
	alerts := res.Alerts
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	return Dashboard{
		ActiveLeaks:           m.LDAR.ActiveLeaks,
		TotalCO2e:             m.GHG.TotalCO2e,
		OpenIncidents:         m.Incidents.Open,
		PermitsExpiring:       m.Permits.Expiring,
		OpenCorrectiveActions: m.CorrectiveActions.Open,
		RCRANearLimit:         m.RCRA.NearLimit,
		StackTestsFailing:     m.Flare.StackTestsFailing,
		TotalOilStorage:       m.SPCC.TotalBarrels,
		Alerts:                alerts,
		Modules:               m,
	}, nil
}

func countWhere(recs []domain.Record, fn func(domain.Record) bool) int {
	n := 0
	for _, r := range recs {
		if fn(r) {
			n++
		}
	}
	return n
}

func statusIs(s string) func(domain.Record) bool {
	return func(r domain.Record) bool { return r.Text("status") == s }
}

func summarizeLDAR(recs []domain.Record) LDARSummary {
	s := LDARSummary{
		Monitored:      len(recs),
		ActiveLeaks:    countWhere(recs, IsActiveLeak),
		HighestReading: MaxField(recs, "ppm"),
	}
	s.AboveActionLevel = s.HighestReading.GreaterThan(decimal.NewFromInt(LDARActionLevelPPM))
	if s.Monitored > 0 {
		rate := decimal.NewFromInt(int64(s.Monitored - s.ActiveLeaks)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(s.Monitored))).
			Round(0).
			IntPart()
		s.ComplianceRate = &rate
	}
	return s
}

func summarizeGHG(recs []domain.Record) GHGSummary {
	total := SumField(recs, "CO2e")
	return GHGSummary{
		Records:            len(recs),
		TotalCO2e:          total,
		ReportingThreshold: GHGReportingThresholdMT,
		AboveThreshold:     total.GreaterThanOrEqual(GHGReportingThresholdMT),
	}
}

func summarizeBWON(recs []domain.Record) BWONSummary {
	nc := countWhere(recs, ExceedsBenzeneThreshold)
	return BWONSummary{Streams: len(recs), NonCompliant: nc, Compliant: len(recs) - nc}
}

func summarizePermits(recs []domain.Record, now time.Time) PermitSummary {
	active := countWhere(recs, statusIs(ActiveStatus))
	return PermitSummary{
		Total:      len(recs),
		Expiring:   CountMatching(recs, now, PermitExpiringSoon),
		Active:     active,
		NeedAction: len(recs) - active,
	}
}

func summarizeIncidents(recs []domain.Record) IncidentSummary {
	return IncidentSummary{
		Total:    len(recs),
		Open:     countWhere(recs, IsOpenIncident),
		Reported: countWhere(recs, statusIs(ReportedStatus)),
		Closed:   countWhere(recs, statusIs(ClosedStatus)),
		HighOrCritical: countWhere(recs, func(r domain.Record) bool {
			sev := r.Text("severity")
			return sev == "High" || sev == "Critical"
		}),
	}
}

func summarizeRCRA(recs []domain.Record) RCRASummary {
	return RCRASummary{Streams: len(recs), NearLimit: countWhere(recs, RCRANearLimit)}
}

func summarizeSPCC(recs []domain.Record) SPCCSummary {
	return SPCCSummary{
		Tanks:        len(recs),
		TotalBarrels: SumField(recs, "bbl"),
		NonCompliant: countWhere(recs, func(r domain.Record) bool { return r.Text("status") != "Compliant" }),
	}
}

func summarizeFlare(events, stacks []domain.Record) FlareSummary {
	return FlareSummary{
		Events:            len(events),
		Unreported:        countWhere(events, func(r domain.Record) bool { return r.Text("reported") == "No" }),
		StackTests:        len(stacks),
		StackTestsFailing: countWhere(stacks, StackTestFailed),
	}
}

func summarizeCorrectiveActions(recs []domain.Record) CorrectiveActionSummary {
	closed := countWhere(recs, statusIs(ClosedStatus))
	return CorrectiveActionSummary{
		Total:      len(recs),
		Open:       len(recs) - closed,
		InProgress: countWhere(recs, statusIs("In Progress")),
		Closed:     closed,
	}
}
