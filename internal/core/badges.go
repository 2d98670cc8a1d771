package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"envirotrack/pkg/domain"
)

// Level grades a single record.
type Level string

const (
	LevelPass    Level = "pass"
	LevelWarn    Level = "warn"
	LevelFail    Level = "fail"
	LevelUnknown Level = "unknown"
)

// Status is the per-record compliance badge.
type Status struct {
	Level Level  `json:"level"`
	Label string `json:"label"`
}

// CorrectiveActionUrgentDays marks a corrective action due inside two weeks.
const CorrectiveActionUrgentDays = 14

var (
	ldarWatchPPM   = decimal.NewFromInt(200)
	rcraWarnPct    = decimal.NewFromInt(70)
	rcraFailPct    = decimal.NewFromInt(89)
	rcraLimitDays  = decimal.NewFromInt(RCRAAccumulationLimitDays)
	hundredPercent = decimal.NewFromInt(100)
)

// Badge grades rec of collection key as of now. Collections without a grading
// rule, and records whose deciding field is missing, grade as unknown.
func Badge(key domain.CollectionKey, rec domain.Record, now time.Time) Status {
	switch key {
	case domain.CollectionLDAR:
		return ldarBadge(rec)
	case domain.CollectionBWON:
		return bwonBadge(rec)
	case domain.CollectionPermits:
		return permitBadge(rec, now)
	case domain.CollectionRCRA:
		return rcraBadge(rec)
	case domain.CollectionStacks:
		return stackBadge(rec)
	case domain.CollectionSPCC:
		return spccBadge(rec)
	case domain.CollectionIncidents:
		return incidentBadge(rec)
	case domain.CollectionCorrectiveActions:
		return correctiveActionBadge(rec, now)
	default:
		return Status{Level: LevelUnknown}
	}
}

func ldarBadge(rec domain.Record) Status {
	if IsActiveLeak(rec) {
		return Status{Level: LevelFail, Label: LeakStatus}
	}
	ppm, ok := FieldNumber(rec, "ppm")
	switch {
	case !ok:
		return Status{Level: LevelUnknown, Label: rec.Text("status")}
	case ppm.GreaterThan(decimal.NewFromInt(LDARActionLevelPPM)):
		return Status{Level: LevelFail, Label: fmt.Sprintf("%s ppm", ppm)}
	case ppm.GreaterThan(ldarWatchPPM):
		return Status{Level: LevelWarn, Label: fmt.Sprintf("%s ppm", ppm)}
	default:
		return Status{Level: LevelPass, Label: fmt.Sprintf("%s ppm", ppm)}
	}
}

func bwonBadge(rec domain.Record) Status {
	if _, ok := FieldNumber(rec, "annual_lb"); !ok {
		return Status{Level: LevelUnknown}
	}
	if ExceedsBenzeneThreshold(rec) {
		return Status{Level: LevelFail, Label: "Non-Compliant"}
	}
	return Status{Level: LevelPass, Label: "Compliant"}
}

func permitBadge(rec domain.Record, now time.Time) Status {
	d, ok := DaysUntil(rec.Text("expiry"), now)
	switch {
	case !ok:
		return Status{Level: LevelUnknown}
	case d < PermitUrgentDays:
		return Status{Level: LevelFail, Label: fmt.Sprintf("%dd", d)}
	case d < PermitWatchDays:
		return Status{Level: LevelWarn, Label: fmt.Sprintf("%dd", d)}
	default:
		return Status{Level: LevelPass, Label: fmt.Sprintf("%dd", d)}
	}
}

func rcraBadge(rec domain.Record) Status {
	days, ok := FieldNumber(rec, "elapsed")
	if !ok {
		return Status{Level: LevelUnknown}
	}
	whole := decimal.NewFromInt(days.IntPart())
	pct := whole.Mul(hundredPercent).Div(rcraLimitDays)
	label := fmt.Sprintf("%s/%d days", whole, RCRAAccumulationLimitDays)
	switch {
	case pct.GreaterThan(rcraFailPct):
		return Status{Level: LevelFail, Label: label}
	case pct.GreaterThan(rcraWarnPct):
		return Status{Level: LevelWarn, Label: label}
	default:
		return Status{Level: LevelPass, Label: label}
	}
}

func stackBadge(rec domain.Record) Status {
	switch rec.Text("status") {
	case FailStatus:
		return Status{Level: LevelFail, Label: FailStatus}
	case "Pass":
		return Status{Level: LevelPass, Label: "Pass"}
	default:
		return Status{Level: LevelUnknown, Label: rec.Text("status")}
	}
}

func spccBadge(rec domain.Record) Status {
	switch s := rec.Text("status"); s {
	case "Compliant":
		return Status{Level: LevelPass, Label: s}
	case "Deficiency Noted":
		return Status{Level: LevelWarn, Label: s}
	case "":
		return Status{Level: LevelUnknown}
	default:
		return Status{Level: LevelFail, Label: s}
	}
}

func incidentBadge(rec domain.Record) Status {
	switch s := rec.Text("status"); s {
	case OpenStatus:
		return Status{Level: LevelFail, Label: s}
	case ClosedStatus:
		return Status{Level: LevelPass, Label: s}
	case "":
		return Status{Level: LevelUnknown}
	default:
		return Status{Level: LevelWarn, Label: s}
	}
}

func correctiveActionBadge(rec domain.Record, now time.Time) Status {
	s := rec.Text("status")
	if s == ClosedStatus {
		return Status{Level: LevelPass, Label: s}
	}
	if d, ok := DaysUntil(rec.Text("due"), now); ok && d < CorrectiveActionUrgentDays {
		return Status{Level: LevelFail, Label: fmt.Sprintf("due in %dd", d)}
	}
	if s == "" {
		return Status{Level: LevelUnknown}
	}
	return Status{Level: LevelWarn, Label: s}
}
