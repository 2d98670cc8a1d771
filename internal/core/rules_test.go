package core_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"envirotrack/internal/core"
	"envirotrack/pkg/domain"
)

func workspaceWith(recs map[domain.CollectionKey][]domain.Record) domain.Workspace {
	ws := domain.NewWorkspace("2026-01-01T00:00:00.000Z")
	for k, v := range recs {
		ws = ws.WithCollection(k, v)
	}
	return ws
}

func TestBenzeneThresholdIsStrict(t *testing.T) {
	cases := map[string]bool{"10.0": false, "10": false, "10.01": true, "": false, "n/a": false}
	for value, want := range cases {
		if got := core.ExceedsBenzeneThreshold(domain.Record{"annual_lb": value}); got != want {
			t.Fatalf("annual_lb %q: got %v want %v", value, got, want)
		}
	}
}

func TestPermitExpiryBoundary(t *testing.T) {
	if d, _ := core.DaysUntil("2027-01-16", testNow); d != 89 {
		t.Fatalf("days until 2027-01-16 = %d", d)
	}
	if !core.PermitExpiringSoon(domain.Record{"expiry": "2027-01-16"}, testNow) {
		t.Fatalf("89 days out should be expiring")
	}
	if core.PermitExpiringSoon(domain.Record{"expiry": "2027-01-17"}, testNow) {
		t.Fatalf("90 days out should not be expiring")
	}
	if core.PermitExpiringSoon(domain.Record{"expiry": ""}, testNow) {
		t.Fatalf("unknown expiry should not be expiring")
	}
	if !core.PermitExpiringSoon(domain.Record{"expiry": "2025-01-01"}, testNow) {
		t.Fatalf("expired permit should count as expiring")
	}
}

func TestDaysUntilRoundsUp(t *testing.T) {
	noon := testNow.Add(12 * time.Hour)
	cases := []struct {
		date string
		want int
	}{
		{"2026-10-20", 1},
		{"2026-10-19", 0},
		{"2026-10-18", -1},
		{"2026-10-20T12:00:00Z", 1},
		{"2026-10-20T12:00:00.001Z", 2},
		{"2026-10-20 12:00:00", 1},
		{"2026-10-20 12:00", 1},
		{"2026-10-20T12:00", 1},
		{"2026-1-5", -287},
	}
	for _, tc := range cases {
		got, ok := core.DaysUntil(tc.date, noon)
		if !ok || got != tc.want {
			t.Fatalf("%s: got %d (%v) want %d", tc.date, got, ok, tc.want)
		}
	}
	if _, ok := core.DaysUntil("next week", noon); ok {
		t.Fatalf("unparseable date should be unknown")
	}
}

func TestRCRANearLimitTruncatesDays(t *testing.T) {
	cases := map[string]bool{"80": false, "80.9": false, "81": true, "120": true, "": false}
	for value, want := range cases {
		if got := core.RCRANearLimit(domain.Record{"elapsed": value}); got != want {
			t.Fatalf("elapsed %q: got %v want %v", value, got, want)
		}
	}
}

func TestParseNumberIsStrict(t *testing.T) {
	if _, ok := core.ParseNumber("85 days"); ok {
		t.Fatalf("trailing text must not parse")
	}
	if d, ok := core.ParseNumber(" 12.5 "); !ok || !d.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("padded number should parse, got %v %v", d, ok)
	}
	if _, ok := core.ParseNumber(nil); ok {
		t.Fatalf("nil must not parse")
	}
	for _, v := range []any{"1e400", "1e200000000", "-1e200000000", json.Number("1e999"), "NaN", "Inf", "0x1p3"} {
		if d, ok := core.ParseNumber(v); ok {
			t.Fatalf("%v should not parse, got %v", v, d)
		}
	}
	if d, ok := core.ParseNumber("1e-200000000"); !ok || !d.IsZero() {
		t.Fatalf("underflow should round to zero, got %v %v", d, ok)
	}
	if d, ok := core.ParseNumber("1.5e3"); !ok || !d.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("exponent form should parse, got %v %v", d, ok)
	}
}

func TestHugeExponentsDoNotStallRules(t *testing.T) {
	recs := []domain.Record{{"annual_lb": "1e200000000"}, {"annual_lb": "1e-200000000"}, {"annual_lb": "4"}}
	for _, rec := range recs[:2] {
		if core.ExceedsBenzeneThreshold(rec) {
			t.Fatalf("%v should not exceed the threshold", rec)
		}
	}
	if got := core.SumField(recs, "annual_lb"); !got.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("sum = %v", got)
	}
	ws := workspaceWith(map[domain.CollectionKey][]domain.Record{domain.CollectionBWON: recs})
	if _, err := core.BuildDashboard(context.Background(), core.NewDefaultRulesEngine(), ws, testNow); err != nil {
		t.Fatalf("dashboard: %v", err)
	}
}

func TestEmptyWorkspaceSummary(t *testing.T) {
	m := core.Summarize(domain.NewWorkspace("x"), testNow)
	if !m.LDAR.HighestReading.IsZero() {
		t.Fatalf("highest reading of no components = %s", m.LDAR.HighestReading)
	}
	if m.LDAR.ComplianceRate != nil {
		t.Fatalf("compliance rate should be unknown with nothing monitored")
	}
	if m.GHG.AboveThreshold || !m.GHG.TotalCO2e.IsZero() {
		t.Fatalf("unexpected ghg summary %+v", m.GHG)
	}
}

func TestSingleLeakScenario(t *testing.T) {
	ws := workspaceWith(map[domain.CollectionKey][]domain.Record{
		domain.CollectionLDAR: {ldarRecord("V-101", "Leaking", "620")},
	})
	dash, err := core.BuildDashboard(context.Background(), core.NewDefaultRulesEngine(), ws, testNow)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(dash.Alerts) != 1 {
		t.Fatalf("expected exactly one alert, got %+v", dash.Alerts)
	}
	alert := dash.Alerts[0]
	if alert.Module != domain.CollectionLDAR || alert.Severity != domain.SeverityActionRequired || alert.Count != 1 {
		t.Fatalf("unexpected alert %+v", alert)
	}
	if dash.ActiveLeaks != 1 {
		t.Fatalf("active leaks = %d", dash.ActiveLeaks)
	}
	ldar := dash.Modules.LDAR
	if !ldar.HighestReading.Equal(decimal.NewFromInt(620)) || !ldar.AboveActionLevel {
		t.Fatalf("unexpected ldar summary %+v", ldar)
	}
	if ldar.ComplianceRate == nil || *ldar.ComplianceRate != 0 {
		t.Fatalf("compliance rate = %v", ldar.ComplianceRate)
	}
}

func TestAlertsFollowRegistrationOrder(t *testing.T) {
	ws := workspaceWith(map[domain.CollectionKey][]domain.Record{
		domain.CollectionStacks:    {{"unit": "FCC", "result": "120 ppm", "status": "Fail"}},
		domain.CollectionRCRA:      {{"code": "D018", "name": "Benzene sludge", "elapsed": "85"}},
		domain.CollectionPermits:   {{"type": "NPDES", "number": "TX0001", "expiry": "2026-11-01"}},
		domain.CollectionBWON:      {{"stream": "API separator", "annual_lb": "12.4"}},
		domain.CollectionIncidents: {{"date": "2026-10-01", "desc": "Opacity exceedance", "status": "Open"}, {"date": "2026-10-02", "desc": "Spill", "status": "Open"}},
		domain.CollectionLDAR:      {ldarRecord("V-1", "Leaking", "900"), ldarRecord("V-2", "No Leak", "40")},
	})
	res, err := core.NewDefaultRulesEngine().Evaluate(context.Background(), core.NewWorkspaceView(ws, testNow))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	want := []struct {
		module   domain.CollectionKey
		severity domain.Severity
		count    int
	}{
		{domain.CollectionLDAR, domain.SeverityActionRequired, 1},
		{domain.CollectionIncidents, domain.SeverityActionRequired, 2},
		{domain.CollectionBWON, domain.SeverityWarning, 1},
		{domain.CollectionPermits, domain.SeverityActionRequired, 1},
		{domain.CollectionRCRA, domain.SeverityActionRequired, 1},
		{domain.CollectionFlare, domain.SeverityWarning, 1},
	}
	if len(res.Alerts) != len(want) {
		t.Fatalf("got %d alerts: %+v", len(res.Alerts), res.Alerts)
	}
	for i, w := range want {
		a := res.Alerts[i]
		if a.Module != w.module || a.Severity != w.severity || a.Count != w.count {
			t.Fatalf("alert %d = %+v, want %+v", i, a, w)
		}
	}
	if !res.HasActionRequired() {
		t.Fatalf("expected action required")
	}
}

func TestGHGThresholdIsInclusive(t *testing.T) {
	ws := workspaceWith(map[domain.CollectionKey][]domain.Record{
		domain.CollectionGHG: {
			{"month": "Q1", "CO2e": "20000"},
			{"month": "Q2", "CO2e": "5000"},
			{"month": "Q3", "CO2e": "not reported"},
		},
	})
	m := core.Summarize(ws, testNow)
	if !m.GHG.TotalCO2e.Equal(decimal.NewFromInt(25000)) || !m.GHG.AboveThreshold {
		t.Fatalf("unexpected ghg summary %+v", m.GHG)
	}
}

func TestModuleSummaries(t *testing.T) {
	ws := workspaceWith(map[domain.CollectionKey][]domain.Record{
		domain.CollectionSPCC: {
			{"name": "T-1", "bbl": "1000", "status": "Compliant"},
			{"name": "T-2", "bbl": "250.5", "status": "Deficiency Noted"},
		},
		domain.CollectionCorrectiveActions: {
			{"finding": "a", "action": "b", "status": "Closed"},
			{"finding": "c", "action": "d", "status": "In Progress"},
			{"finding": "e", "action": "f", "status": "Open"},
		},
		domain.CollectionFlare: {
			{"date": "2026-10-01", "unit": "Flare 1", "reported": "No"},
			{"date": "2026-10-02", "unit": "Flare 1", "reported": "Yes"},
		},
		domain.CollectionIncidents: {
			{"date": "2026-10-01", "desc": "x", "status": "Reported", "severity": "Critical"},
		},
	})
	m := core.Summarize(ws, testNow)
	if !m.SPCC.TotalBarrels.Equal(decimal.RequireFromString("1250.5")) || m.SPCC.NonCompliant != 1 {
		t.Fatalf("spcc = %+v", m.SPCC)
	}
	if m.CorrectiveActions.Open != 2 || m.CorrectiveActions.InProgress != 1 || m.CorrectiveActions.Closed != 1 {
		t.Fatalf("cas = %+v", m.CorrectiveActions)
	}
	if m.Flare.Events != 2 || m.Flare.Unreported != 1 {
		t.Fatalf("flare = %+v", m.Flare)
	}
	if m.Incidents.Reported != 1 || m.Incidents.HighOrCritical != 1 || m.Incidents.Open != 0 {
		t.Fatalf("incidents = %+v", m.Incidents)
	}
}

func TestEvaluateStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := core.NewDefaultRulesEngine().Evaluate(ctx, core.NewWorkspaceView(domain.NewWorkspace("x"), testNow))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestDashboardAlertsNeverNil(t *testing.T) {
	dash, err := core.BuildDashboard(context.Background(), core.NewDefaultRulesEngine(), domain.NewWorkspace("x"), testNow)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dash.Alerts == nil || len(dash.Alerts) != 0 {
		t.Fatalf("alerts = %#v", dash.Alerts)
	}
}
