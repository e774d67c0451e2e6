package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/a2ui/internal/action"
	"github.com/xiaot623/gogo/a2ui/internal/domain"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(context.Background(), DefaultPolicy)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return engine
}

func TestDefaultPolicy(t *testing.T) {
	engine := newTestEngine(t)

	cases := []struct {
		name   string
		input  Input
		allow  bool
		reason string
	}{
		{
			name:  "select in range",
			input: Input{Action: action.Decode("select_candidate_3"), View: domain.ViewCandidates, CandidateCount: 3},
			allow: true,
		},
		{
			name:   "select past the rendered cards",
			input:  Input{Action: action.Decode("select_candidate_4"), View: domain.ViewCandidates, CandidateCount: 3},
			reason: "candidate index out of range",
		},
		{
			name:   "select zero",
			input:  Input{Action: action.Decode("select_candidate_0"), View: domain.ViewCandidates, CandidateCount: 3},
			reason: "candidate index out of range",
		},
		{
			name:   "select from route view",
			input:  Input{Action: action.Decode("select_candidate_1"), View: domain.ViewRoute, CandidateCount: 3},
			reason: "candidate selection is only valid on the candidates view",
		},
		{
			name:  "remove first point",
			input: Input{Action: action.Decode("remove_point_0"), View: domain.ViewRoute, PointCount: 2},
			allow: true,
		},
		{
			name:   "remove past the end",
			input:  Input{Action: action.Decode("remove_point_2"), View: domain.ViewRoute, PointCount: 2},
			reason: "point index out of range",
		},
		{
			name:  "reset anywhere",
			input: Input{Action: action.Decode("reset"), View: domain.ViewWelcome},
			allow: true,
		},
		{
			name:  "unknown actions pass",
			input: Input{Action: action.Decode("brand_new_thing"), View: domain.ViewRoute},
			allow: true,
		},
		{
			name:  "payload actions pass",
			input: Input{Action: action.Decode("send_text:hello"), View: domain.ViewError},
			allow: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision, err := engine.Evaluate(context.Background(), tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.allow, decision.Allow)
			if tc.reason != "" {
				assert.Equal(t, tc.reason, decision.Reason)
			}
		})
	}
}

func TestPolicyCombinesReasons(t *testing.T) {
	engine := newTestEngine(t)
	decision, err := engine.Evaluate(context.Background(), Input{
		Action: action.Decode("remove_point_5"),
		View:   domain.ViewCandidates,
	})
	require.NoError(t, err)
	assert.False(t, decision.Allow)
	assert.Contains(t, decision.Reason, "point index out of range")
	assert.Contains(t, decision.Reason, "point removal is only valid on the route view")
}

func TestNewEngineFromFile(t *testing.T) {
	ctx := context.Background()

	engine, err := NewEngineFromFile(ctx, "")
	require.NoError(t, err)
	decision, err := engine.Evaluate(ctx, Input{Action: action.Decode("back")})
	require.NoError(t, err)
	assert.True(t, decision.Allow)

	path := filepath.Join(t.TempDir(), "deny.rego")
	content := "package a2ui.action\n\nimport rego.v1\n\ndecision := {\"allow\": false, \"reason\": \"maintenance\"}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	engine, err = NewEngineFromFile(ctx, path)
	require.NoError(t, err)
	decision, err = engine.Evaluate(ctx, Input{Action: action.Decode("back")})
	require.NoError(t, err)
	assert.False(t, decision.Allow)
	assert.Equal(t, "maintenance", decision.Reason)

	_, err = NewEngineFromFile(ctx, filepath.Join(t.TempDir(), "missing.rego"))
	assert.Error(t, err)

	_, err = NewEngine(ctx, "package broken\n\ndecision := {")
	assert.Error(t, err)
}

func TestPolicyWithoutDecisionAllows(t *testing.T) {
	engine, err := NewEngine(context.Background(), "package a2ui.action\n\nimport rego.v1\n\nother := 1\n")
	require.NoError(t, err)
	decision, err := engine.Evaluate(context.Background(), Input{Action: action.Decode("reset")})
	require.NoError(t, err)
	assert.True(t, decision.Allow)
}
