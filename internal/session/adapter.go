package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/a2ui/internal/domain"
)

// contextNamespace scopes context IDs derived from client session IDs.
var contextNamespace = uuid.MustParse("6f1c4e0a-3b7d-5a21-9c4e-a2b1c0d3e4f5")

// ContextID derives the conversation context for a client session ID. The
// same client session always maps to the same context.
func ContextID(clientSessionID string) string {
	return uuid.NewSHA1(contextNamespace, []byte(clientSessionID)).String()
}

// Adapter resolves contexts to backend sessions and syncs their state.
type Adapter struct {
	store       Store
	defaultUser string
	defaultApp  string
	logger      *slog.Logger
	now         func() time.Time
	locks       keyedMutex
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithDefaults sets the user and app used when a call leaves them empty.
func WithDefaults(userID, appName string) AdapterOption {
	return func(a *Adapter) {
		if userID != "" {
			a.defaultUser = userID
		}
		if appName != "" {
			a.defaultApp = appName
		}
	}
}

// WithAdapterClock overrides time.Now for record timestamps.
func WithAdapterClock(now func() time.Time) AdapterOption {
	return func(a *Adapter) {
		a.now = now
	}
}

// NewAdapter creates an Adapter over store.
func NewAdapter(store Store, logger *slog.Logger, opts ...AdapterOption) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		store:       store,
		defaultUser: "a2ui-web",
		defaultApp:  "seichijunrei_bot",
		logger:      logger.With("component", "session"),
		now:         time.Now,
		locks:       keyedMutex{entries: make(map[string]*lockEntry)},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Store returns the underlying store.
func (a *Adapter) Store() Store {
	return a.store
}

// Lock serialises work on one context. Different contexts do not block each other.
func (a *Adapter) Lock(contextID string) (unlock func()) {
	return a.locks.lock(contextID)
}

// GetOrCreateSession returns the session for contextID, creating it on first
// use. Repeated calls return the same handle. A context created for another
// user or app yields ErrIdentityMismatch.
func (a *Adapter) GetOrCreateSession(ctx context.Context, contextID, userID, appName string) (Info, Handle, error) {
	if contextID == "" {
		return Info{}, "", fmt.Errorf("%w: empty context id", ErrNotFound)
	}
	if userID == "" {
		userID = a.defaultUser
	}
	if appName == "" {
		appName = a.defaultApp
	}

	rec, err := a.store.Get(ctx, contextID)
	if err != nil {
		return Info{}, "", err
	}
	if rec == nil {
		now := a.now()
		rec = &Record{Info: Info{
			ContextID: contextID,
			Handle:    Handle(uuid.NewString()),
			UserID:    userID,
			AppName:   appName,
			Status:    StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}}
		err := a.store.Create(ctx, rec)
		switch {
		case err == nil:
			a.logger.Debug("session created", "context_id", contextID, "user_id", userID, "handle", rec.Handle)
			return rec.Info, rec.Handle, nil
		case errors.Is(err, ErrExists):
			// Lost the race to another caller; use its record.
			rec, err = a.store.Get(ctx, contextID)
			if err != nil {
				return Info{}, "", err
			}
			if rec == nil {
				return Info{}, "", fmt.Errorf("%w: %s vanished after create", ErrNotFound, contextID)
			}
		default:
			return Info{}, "", err
		}
	}

	if rec.UserID != userID || rec.AppName != appName {
		return Info{}, "", fmt.Errorf("%w: context %s", ErrIdentityMismatch, contextID)
	}
	return rec.Info, rec.Handle, nil
}

// SyncState replaces the state stored for contextID and marks the session active.
func (a *Adapter) SyncState(ctx context.Context, contextID string, state *domain.State) error {
	return a.update(ctx, contextID, func(rec *Record) {
		rec.State = state.Clone()
		rec.Status = StatusActive
		rec.LastError = ""
	})
}

// GetState returns a copy of the state for contextID, or nil if the context
// is unknown or has no state yet.
func (a *Adapter) GetState(ctx context.Context, contextID string) (*domain.State, error) {
	rec, err := a.store.Get(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return rec.State.Clone(), nil
}

// GetSession returns the session info for contextID, or ErrNotFound.
func (a *Adapter) GetSession(ctx context.Context, contextID string) (Info, error) {
	rec, err := a.store.Get(ctx, contextID)
	if err != nil {
		return Info{}, err
	}
	if rec == nil {
		return Info{}, ErrNotFound
	}
	return rec.Info, nil
}

// SetProcessing marks a turn as in flight.
func (a *Adapter) SetProcessing(ctx context.Context, contextID string) error {
	return a.update(ctx, contextID, func(rec *Record) {
		rec.Status = StatusProcessing
	})
}

// RecordError marks the session failed, keeping its state.
func (a *Adapter) RecordError(ctx context.Context, contextID, message string) error {
	return a.update(ctx, contextID, func(rec *Record) {
		rec.Status = StatusError
		rec.LastError = message
	})
}

// DeleteSession drops the session and its state. The next contact starts fresh.
func (a *Adapter) DeleteSession(ctx context.Context, contextID string) error {
	if err := a.store.Delete(ctx, contextID); err != nil {
		return err
	}
	a.logger.Debug("session deleted", "context_id", contextID)
	return nil
}

func (a *Adapter) update(ctx context.Context, contextID string, fn func(*Record)) error {
	rec, err := a.store.Get(ctx, contextID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, contextID)
	}
	fn(rec)
	rec.UpdatedAt = a.now()
	return a.store.Put(ctx, rec)
}

// RunExpirySweeper removes expired sessions every interval until ctx is done.
// Stores that expire records themselves are left alone.
func (a *Adapter) RunExpirySweeper(ctx context.Context, interval time.Duration) {
	expirer, ok := a.store.(Expirer)
	if !ok || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweep(ctx, expirer)
		}
	}
}

func (a *Adapter) sweep(ctx context.Context, expirer Expirer) {
	sweepCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	removed, err := expirer.DeleteExpired(sweepCtx)
	if err != nil {
		a.logger.Warn("session expiry sweep failed", "error", err)
		return
	}
	if removed > 0 {
		a.logger.Info("expired sessions removed", "count", removed)
	}
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &lockEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
