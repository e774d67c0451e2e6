// Package policy decides whether a decoded action may run against the
// current view, using OPA.
package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"

	"github.com/xiaot623/gogo/a2ui/internal/action"
	"github.com/xiaot623/gogo/a2ui/internal/domain"
)

const query = "data.a2ui.action.decision"

// Input is what a decision is made on. Counts are of the controls the
// current view actually rendered.
type Input struct {
	Action         action.Action
	View           domain.ViewName
	CandidateCount int
	PointCount     int
}

func (in Input) document() map[string]any {
	return map[string]any{
		"action": map[string]any{
			"shape":   string(in.Action.Shape),
			"name":    in.Action.Name,
			"index":   in.Action.Index,
			"payload": in.Action.Payload,
		},
		"view":            string(in.View),
		"candidate_count": in.CandidateCount,
		"point_count":     in.PointCount,
	}
}

// Decision is the outcome of an evaluation.
type Decision struct {
	Allow  bool
	Reason string
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates an engine from policy source.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query(query),
		rego.Module("a2ui_action.rego", policyContent),
	)

	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}
	return &Engine{query: prepared}, nil
}

// NewEngineFromFile loads the policy at path, or DefaultPolicy when path is empty.
func NewEngineFromFile(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy %s: %w", path, err)
	}
	return NewEngine(ctx, string(content))
}

// Evaluate decides on in. A policy that yields nothing allows the action.
func (e *Engine) Evaluate(ctx context.Context, in Input) (Decision, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(in.document()))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Allow: true, Reason: "default"}, nil
	}

	switch val := results[0].Expressions[0].Value.(type) {
	case bool:
		return Decision{Allow: val}, nil
	case map[string]interface{}:
		allow, ok := val["allow"].(bool)
		if !ok {
			return Decision{}, fmt.Errorf("policy decision has no boolean allow: %v", val)
		}
		reason, _ := val["reason"].(string)
		return Decision{Allow: allow, Reason: reason}, nil
	default:
		return Decision{}, fmt.Errorf("unexpected policy decision type %T", val)
	}
}

// DefaultPolicy only lets index actions through when the current view shows
// the control they name.
const DefaultPolicy = `
package a2ui.action

import rego.v1

default decision := {"allow": true, "reason": "default"}

decision := {"allow": false, "reason": concat("; ", blocked)} if count(blocked) > 0

blocked contains "candidate selection is only valid on the candidates view" if {
	input.action.shape == "indexed"
	input.action.name == "select_candidate"
	input.view != "candidates"
}

blocked contains "candidate index out of range" if {
	input.action.shape == "indexed"
	input.action.name == "select_candidate"
	not candidate_in_range
}

blocked contains "point removal is only valid on the route view" if {
	input.action.shape == "indexed"
	input.action.name == "remove_point"
	input.view != "route"
}

blocked contains "point index out of range" if {
	input.action.shape == "indexed"
	input.action.name == "remove_point"
	not point_in_range
}

candidate_in_range if {
	input.action.index >= 1
	input.action.index <= input.candidate_count
}

point_in_range if {
	input.action.index >= 0
	input.action.index < input.point_count
}
`
