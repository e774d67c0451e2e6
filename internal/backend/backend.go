// Package backend talks to the conversational backend that owns the
// application state.
package backend

import (
	"context"
	"errors"

	"github.com/xiaot623/gogo/a2ui/internal/action"
	"github.com/xiaot623/gogo/a2ui/internal/domain"
	"github.com/xiaot623/gogo/a2ui/internal/session"
)

var (
	// ErrInvalidState is returned when the backend replies with state that
	// fails schema validation. It matches domain.ErrInvalidState.
	ErrInvalidState = domain.ErrInvalidState
	// ErrUnavailable is returned when the backend cannot be reached or fails.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrInvalidAction is returned for an action that does not fit the state,
	// such as an index out of range.
	ErrInvalidAction = errors.New("invalid action")
)

// Input is one user turn: free text or a decoded action.
type Input struct {
	Text   string
	Action *action.Action
}

// IsAction reports whether the turn carries an action.
func (in Input) IsAction() bool {
	return in.Action != nil
}

// Output is the backend's answer to a turn.
type Output struct {
	Reply string
	State *domain.State
}

// Backend runs one turn against the current state and returns the new state.
// Implementations must not modify state.
type Backend interface {
	Send(ctx context.Context, sess session.Info, in Input, state *domain.State) (*Output, error)
}
