package core

import (
	"context"
	"fmt"
	"time"

	"envirotrack/pkg/domain"
)

type (
	// RulesEngine aliases domain.RulesEngine.
	RulesEngine = domain.RulesEngine
	// Rule aliases domain.Rule.
	Rule = domain.Rule
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in regulatory
// checks. Registration order is the dashboard order: analysts see the LDAR
// alert first, then incidents, BWON, permits, RCRA, and stack tests. The
// list is intentionally not sorted by severity.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewLDARLeakRule())
	engine.Register(NewOpenIncidentRule())
	engine.Register(NewBenzeneThresholdRule())
	engine.Register(NewPermitExpiryRule())
	engine.Register(NewRCRAAccumulationRule())
	engine.Register(NewStackTestFailureRule())
	return engine
}

// countRule raises a single alert when at least one record of a module
// matches its predicate.
type countRule struct {
	name     string
	module   domain.CollectionKey
	severity domain.Severity
	match    func(rec domain.Record, now time.Time) bool
	message  string
}

func (r countRule) Name() string { return r.name }

func (r countRule) Evaluate(_ context.Context, view domain.WorkspaceView) (domain.Result, error) {
	n := CountMatching(view.Records(r.module), view.Now(), r.match)
	if n == 0 {
		return domain.Result{}, nil
	}
	return domain.Result{Alerts: []domain.Alert{{
		Rule:     r.name,
		Severity: r.severity,
		Message:  fmt.Sprintf(r.message, n),
		Module:   r.module,
		Count:    n,
	}}}, nil
}

// CountMatching counts the records for which match reports true.
func CountMatching(recs []domain.Record, now time.Time, match func(domain.Record, time.Time) bool) int {
	n := 0
	for _, rec := range recs {
		if match(rec, now) {
			n++
		}
	}
	return n
}

// workspaceView adapts a workspace snapshot to domain.WorkspaceView.
type workspaceView struct {
	ws  domain.Workspace
	now time.Time
}

// NewWorkspaceView exposes ws to rules, evaluated as of now.
func NewWorkspaceView(ws domain.Workspace, now time.Time) domain.WorkspaceView {
	return workspaceView{ws: ws, now: now}
}

func (v workspaceView) Records(key domain.CollectionKey) []domain.Record { return v.ws.Records(key) }
func (v workspaceView) Now() time.Time                                 { return v.now }
