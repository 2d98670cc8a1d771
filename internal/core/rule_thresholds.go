package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"envirotrack/pkg/domain"
)

// Regulatory constants behind the built-in rules.
const (
	LeakStatus     = "Leaking"
	OpenStatus     = "Open"
	FailStatus     = "Fail"
	ClosedStatus   = "Closed"
	ActiveStatus   = "Active"
	ReportedStatus = "Reported"

	// LDARActionLevelPPM is the Method 21 leak definition for valves.
	LDARActionLevelPPM = 500
	// PermitUrgentDays is the renewal window; expiry strictly inside it is urgent.
	PermitUrgentDays = 90
	// PermitWatchDays marks permits worth watching.
	PermitWatchDays = 365
	// RCRAAccumulationLimitDays is the large quantity generator ceiling.
	RCRAAccumulationLimitDays = 90
	// RCRANearLimitDays flags streams approaching the ceiling.
	RCRANearLimitDays = 80
)

var (
	// BenzeneThresholdLbPerYear is the 40 CFR 61.342 control threshold.
	BenzeneThresholdLbPerYear = decimal.NewFromInt(10)
	// GHGReportingThresholdMT is the 40 CFR 98.2 reporting threshold.
	GHGReportingThresholdMT = decimal.NewFromInt(25000)
)

// NewLDARLeakRule flags components currently leaking.
func NewLDARLeakRule() domain.Rule {
	return countRule{
		name:     "ldar_active_leaks",
		module:   domain.CollectionLDAR,
		severity: domain.SeverityActionRequired,
		match:    ignoreTime(IsActiveLeak),
		message:  "%d active LDAR leak(s): 15-day repair deadline approaching",
	}
}

// NewOpenIncidentRule flags incidents still awaiting a response.
func NewOpenIncidentRule() domain.Rule {
	return countRule{
		name:     "open_incidents",
		module:   domain.CollectionIncidents,
		severity: domain.SeverityActionRequired,
		match:    ignoreTime(IsOpenIncident),
		message:  "%d open regulatory incident(s) require active response",
	}
}

// NewBenzeneThresholdRule flags waste streams above the BWON threshold.
func NewBenzeneThresholdRule() domain.Rule {
	return countRule{
		name:     "bwon_benzene_threshold",
		module:   domain.CollectionBWON,
		severity: domain.SeverityWarning,
		match:    ignoreTime(ExceedsBenzeneThreshold),
		message:  "%d BWON stream(s) exceed 10 lb/yr (40 CFR 61 Subpart FF)",
	}
}

// NewPermitExpiryRule flags permits expiring inside the renewal window.
func NewPermitExpiryRule() domain.Rule {
	return countRule{
		name:     "permit_expiry",
		module:   domain.CollectionPermits,
		severity: domain.SeverityActionRequired,
		match:    PermitExpiringSoon,
		message:  "%d permit(s) expiring within 90 days: renewal action required",
	}
}

// NewRCRAAccumulationRule flags waste streams nearing the accumulation limit.
func NewRCRAAccumulationRule() domain.Rule {
	return countRule{
		name:     "rcra_accumulation",
		module:   domain.CollectionRCRA,
		severity: domain.SeverityActionRequired,
		match:    ignoreTime(RCRANearLimit),
		message:  "%d RCRA stream(s) approaching 90-day LQG accumulation limit",
	}
}

// NewStackTestFailureRule flags failed stack performance tests. Alerts point
// at the flare module, which hosts the stack test table.
func NewStackTestFailureRule() domain.Rule {
	return stackRule{countRule{
		name:     "stack_test_failures",
		module:   domain.CollectionStacks,
		severity: domain.SeverityWarning,
		match:    ignoreTime(StackTestFailed),
		message:  "%d stack performance test(s) failed: corrective action needed",
	}}
}

type stackRule struct{ countRule }

func (r stackRule) Evaluate(ctx context.Context, view domain.WorkspaceView) (domain.Result, error) {
	res, err := r.countRule.Evaluate(ctx, view)
	for i := range res.Alerts {
		res.Alerts[i].Module = domain.CollectionFlare
	}
	return res, err
}

func ignoreTime(fn func(domain.Record) bool) func(domain.Record, time.Time) bool {
	return func(rec domain.Record, _ time.Time) bool { return fn(rec) }
}

// IsActiveLeak reports whether an LDAR component is in the leak state.
func IsActiveLeak(rec domain.Record) bool { return rec.Text("status") == LeakStatus }

// IsOpenIncident reports whether an incident is open.
func IsOpenIncident(rec domain.Record) bool { return rec.Text("status") == OpenStatus }

// ExceedsBenzeneThreshold reports annual benzene strictly above 10 lb/yr.
func ExceedsBenzeneThreshold(rec domain.Record) bool {
	lb, ok := FieldNumber(rec, "annual_lb")
	return ok && lb.GreaterThan(BenzeneThresholdLbPerYear)
}

// PermitExpiringSoon reports a known expiry fewer than 90 days away.
func PermitExpiringSoon(rec domain.Record, now time.Time) bool {
	d, ok := DaysUntil(rec.Text("expiry"), now)
	return ok && d < PermitUrgentDays
}

// RCRANearLimit reports whole elapsed days above 80. Fractions are truncated.
func RCRANearLimit(rec domain.Record) bool {
	days, ok := FieldNumber(rec, "elapsed")
	return ok && days.IntPart() > RCRANearLimitDays
}

// StackTestFailed reports a failed stack test.
func StackTestFailed(rec domain.Record) bool { return rec.Text("status") == FailStatus }
