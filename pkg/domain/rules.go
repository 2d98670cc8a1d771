package domain

import (
	"context"
	"time"
)

// Severity classifies an alert.
type Severity string

const (
	// SeverityActionRequired marks a breach the analyst must act on.
	SeverityActionRequired Severity = "action_required"
	// SeverityWarning marks a condition worth reviewing.
	SeverityWarning Severity = "warning"
)

// Label returns the badge text shown next to an alert.
func (s Severity) Label() string {
	if s == SeverityActionRequired {
		return "ACTION REQUIRED"
	}
	return "WARNING"
}

// Alert is one dashboard entry produced by a rule that currently evaluates true.
type Alert struct {
	Rule     string        `json:"rule"`
	Severity Severity      `json:"severity"`
	Message  string        `json:"message"`
	Module   CollectionKey `json:"module"`
	Count    int           `json:"count"`
}

// Result aggregates alerts produced by rule evaluation.
type Result struct {
	Alerts []Alert `json:"alerts"`
}

// Merge appends the alerts of other, keeping order.
func (r *Result) Merge(other Result) {
	if len(other.Alerts) == 0 {
		return
	}
	r.Alerts = append(r.Alerts, other.Alerts...)
}

// HasActionRequired reports whether any alert requires action.
func (r Result) HasActionRequired() bool {
	for _, a := range r.Alerts {
		if a.Severity == SeverityActionRequired {
			return true
		}
	}
	return false
}

// WorkspaceView provides read-only access to a workspace snapshot for rules.
type WorkspaceView interface {
	Records(key CollectionKey) []Record
	Now() time.Time
}

// Rule defines a read-time compliance evaluation.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view WorkspaceView) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine. Alerts are reported in registration order.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rules in evaluation order.
func (e *RulesEngine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view WorkspaceView) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		res, err := rule.Evaluate(ctx, view)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
