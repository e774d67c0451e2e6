package session

import (
	"time"

	"github.com/xiaot623/gogo/a2ui/internal/domain"
)

// Handle identifies the backend session bound to a context.
type Handle string

// Status is the lifecycle status of a session.
type Status string

const (
	StatusActive     Status = "active"
	StatusProcessing Status = "processing"
	StatusError      Status = "error"
)

// Info describes the mapping of a context to its backend session.
type Info struct {
	ContextID string    `json:"context_id"`
	Handle    Handle    `json:"handle"`
	UserID    string    `json:"user_id"`
	AppName   string    `json:"app_name"`
	Status    Status    `json:"status"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Record is what a Store persists per context.
type Record struct {
	Info
	State *domain.State `json:"state,omitempty"`
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.State = r.State.Clone()
	return &out
}
