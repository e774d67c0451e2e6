// Package service runs chat and action turns: it resolves the caller's
// session, consults the action policy, calls the backend, stores the new
// state and builds the view for it.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/xiaot623/gogo/a2ui/internal/backend"
	"github.com/xiaot623/gogo/a2ui/internal/domain"
	"github.com/xiaot623/gogo/a2ui/internal/policy"
	"github.com/xiaot623/gogo/a2ui/internal/protocol"
	"github.com/xiaot623/gogo/a2ui/internal/session"
	"github.com/xiaot623/gogo/a2ui/internal/telemetry"
	"github.com/xiaot623/gogo/a2ui/internal/view"
)

// ErrInvalidRequest is returned for requests missing a required field.
var ErrInvalidRequest = errors.New("invalid request")

// Publisher delivers frames to every connection bound to a client session.
type Publisher interface {
	BroadcastJSON(sessionID string, v any) error
}

// TurnResult is the outcome of one turn.
type TurnResult struct {
	SessionID     string
	Seq           uint64
	View          domain.ViewName
	Language      string
	AssistantText string
	Messages      []protocol.Message
}

// Response converts r into the HTTP response body.
func (r *TurnResult) Response() domain.TurnResponse {
	return domain.TurnResponse{
		SessionID:     r.SessionID,
		Seq:           r.Seq,
		View:          r.View,
		Language:      r.Language,
		AssistantText: r.AssistantText,
		Messages:      r.Messages,
	}
}

// Frame converts r into the WebSocket frame pushed to clients.
func (r *TurnResult) Frame(requestID string) protocol.UIFrame {
	return protocol.UIFrame{
		BaseFrame: protocol.BaseFrame{
			Type:      protocol.TypeUI,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
			SessionID: r.SessionID,
		},
		Seq:           r.Seq,
		View:          string(r.View),
		AssistantText: r.AssistantText,
		Messages:      r.Messages,
	}
}

// Service serves turns.
type Service struct {
	sessions  *session.Adapter
	backend   backend.Backend
	policy    *policy.Engine
	builder   *view.Builder
	telemetry *telemetry.Provider
	publisher Publisher
	logger    *slog.Logger

	seqMu sync.Mutex
	seqs  map[string]*sequence
	now   func() time.Time
}

// sequence is the frame counter of one client session.
type sequence struct {
	last    uint64
	touched time.Time
}

// connectionChecker is implemented by publishers that know whether a client
// session still has connections.
type connectionChecker interface {
	HasActiveConnections(sessionID string) bool
}

// Option configures a Service.
type Option func(*Service)

// WithPolicy enables action policy checks. Without it every action runs.
func WithPolicy(engine *policy.Engine) Option {
	return func(s *Service) {
		s.policy = engine
	}
}

// WithTelemetry sets the telemetry provider.
func WithTelemetry(p *telemetry.Provider) Option {
	return func(s *Service) {
		s.telemetry = p
	}
}

// WithPublisher makes every turn result also go out to connected clients.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithClock overrides time.Now for sequence pruning.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a Service.
func New(sessions *session.Adapter, b backend.Backend, builder *view.Builder, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		sessions: sessions,
		backend:  b,
		builder:  builder,
		logger:   logger.With("component", "service"),
		seqs:     make(map[string]*sequence),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.telemetry == nil {
		// A disabled provider never fails to build.
		s.telemetry, _ = telemetry.New(&telemetry.Config{Enabled: false}, logger)
	}
	return s
}

// SetPublisher sets the publisher after construction, for transports that
// need the service to exist first.
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

// Builder returns the view builder.
func (s *Service) Builder() *view.Builder {
	return s.builder
}

func (s *Service) nextSeq(clientSessionID string) uint64 {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	seq, ok := s.seqs[clientSessionID]
	if !ok {
		seq = &sequence{}
		s.seqs[clientSessionID] = seq
	}
	seq.last++
	seq.touched = s.now()
	return seq.last
}

// PruneSequences forgets the frame counters of client sessions idle for
// longer than idle. Sessions that still have connections keep theirs, since
// their clients drop any frame numbered below what they already saw.
func (s *Service) PruneSequences(idle time.Duration) int {
	checker, _ := s.publisher.(connectionChecker)
	cutoff := s.now().Add(-idle)

	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	pruned := 0
	for id, seq := range s.seqs {
		if seq.touched.After(cutoff) {
			continue
		}
		if checker != nil && checker.HasActiveConnections(id) {
			continue
		}
		delete(s.seqs, id)
		pruned++
	}
	return pruned
}

// RunSequencePruner calls PruneSequences every interval until ctx is done.
func (s *Service) RunSequencePruner(ctx context.Context, interval, idle time.Duration) {
	if interval <= 0 || idle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.PruneSequences(idle); n > 0 {
				s.logger.Debug("pruned frame counters", "count", n)
			}
		}
	}
}

func (s *Service) publish(res *TurnResult, requestID string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.BroadcastJSON(res.SessionID, res.Frame(requestID)); err != nil {
		s.logger.Warn("failed to publish turn", "session_id", res.SessionID, "seq", res.Seq, "error", err)
	}
}
