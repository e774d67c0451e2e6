package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xiaot623/gogo/a2ui/internal/action"
	"github.com/xiaot623/gogo/a2ui/internal/domain"
	"github.com/xiaot623/gogo/a2ui/internal/session"
)

const manualAdjustNote = "(User manually adjusted the selection in the UI.)"

// Local applies the structural actions of the UI itself and passes
// everything else to a delegate. Without a delegate, forwarded turns leave
// the state unchanged.
type Local struct {
	delegate Backend
	logger   *slog.Logger
}

var _ Backend = (*Local)(nil)

// NewLocal wraps delegate, which may be nil.
func NewLocal(delegate Backend, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{delegate: delegate, logger: logger.With("component", "backend")}
}

// Send implements Backend.
func (l *Local) Send(ctx context.Context, sess session.Info, in Input, state *domain.State) (*Output, error) {
	if in.Action == nil {
		return l.forward(ctx, sess, in, state)
	}

	a := *in.Action
	switch {
	case a.Is(action.Reset):
		return &Output{State: &domain.State{}}, nil

	case a.Is(action.Back):
		next := cloneOrEmpty(state)
		next.ClearRouteStage()
		next.Error = nil
		return &Output{State: next}, nil

	case a.Is(action.OpenURLPrefix):
		return &Output{State: state.Clone()}, nil

	case a.Is(action.SendTextPrefix):
		return l.forward(ctx, sess, Input{Text: a.Payload}, state)

	case a.Is(action.SelectCandidate):
		next, err := selectCandidate(state, a.Index)
		if err != nil {
			return nil, err
		}
		if l.delegate == nil {
			return &Output{State: next}, nil
		}
		return l.delegate.Send(ctx, sess, in, next)

	case a.Is(action.RemovePoint):
		next, removed, err := removePoint(state, a.Index)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("point removed", "context_id", sess.ContextID, "index", a.Index, "point", removed.DisplayName())
		return &Output{State: next}, nil

	default:
		return l.forward(ctx, sess, in, state)
	}
}

func (l *Local) forward(ctx context.Context, sess session.Info, in Input, state *domain.State) (*Output, error) {
	if l.delegate == nil {
		return &Output{State: state.Clone()}, nil
	}
	return l.delegate.Send(ctx, sess, in, state)
}

func cloneOrEmpty(state *domain.State) *domain.State {
	if state == nil {
		return &domain.State{}
	}
	return state.Clone()
}

// selectCandidate records the candidate at the 1-based index n and clears
// the sections derived from any earlier selection.
func selectCandidate(state *domain.State, n int) (*domain.State, error) {
	if state == nil || state.Candidates == nil || len(state.Candidates.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates to select from", ErrInvalidAction)
	}
	list := state.Candidates.Candidates
	if n < 1 || n > len(list) {
		return nil, fmt.Errorf("%w: candidate %d out of range 1..%d", ErrInvalidAction, n, len(list))
	}
	chosen := list[n-1]

	next := state.Clone()
	next.ClearRouteStage()
	next.Error = nil
	next.Selected = &domain.SelectedBangumi{
		BangumiID:      chosen.ID,
		BangumiTitle:   chosen.Title,
		BangumiTitleCN: chosen.TitleCN,
	}
	return next, nil
}

// removePoint drops the selected point at the 0-based index i and rebuilds
// the recommended order from the remaining points.
func removePoint(state *domain.State, i int) (*domain.State, domain.Point, error) {
	if state == nil || state.Points == nil {
		return nil, domain.Point{}, fmt.Errorf("%w: no points selected", ErrInvalidAction)
	}
	points := state.Points.SelectedPoints
	if i < 0 || i >= len(points) {
		return nil, domain.Point{}, fmt.Errorf("%w: point %d out of range 0..%d", ErrInvalidAction, i, len(points)-1)
	}

	next := state.Clone()
	sel := next.Points
	removed := sel.SelectedPoints[i]
	sel.SelectedPoints = append(sel.SelectedPoints[:i], sel.SelectedPoints[i+1:]...)

	sel.RejectedCount = sel.TotalAvailable - len(sel.SelectedPoints)
	if sel.RejectedCount < 0 {
		sel.RejectedCount = 0
	}
	if !strings.Contains(sel.SelectionRationale, manualAdjustNote) {
		if sel.SelectionRationale == "" {
			sel.SelectionRationale = manualAdjustNote
		} else {
			sel.SelectionRationale += "\n\n" + manualAdjustNote
		}
	}

	if next.Route != nil {
		order := make([]string, 0, len(sel.SelectedPoints))
		for _, p := range domain.PlannerOrder(sel.SelectedPoints) {
			order = append(order, p.Name)
		}
		next.Route.RecommendedOrder = order
	}
	return next, removed, nil
}
