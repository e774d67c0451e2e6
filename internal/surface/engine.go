// Package surface keeps per-surface component registries and resolves them
// into render trees.
package surface

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/xiaot623/gogo/a2ui/internal/protocol"
)

// DefaultMaxDepth bounds tree resolution.
const DefaultMaxDepth = 64

// DefaultMaxNodes bounds the size of one resolved tree. A child ID listed
// several times is expanded at every reference, so depth alone does not.
const DefaultMaxNodes = 10000

type surface struct {
	components map[string]protocol.Component
	root       string
	tree       *Node
}

// Engine applies protocol messages and renders surfaces. It is safe for
// concurrent use, although one rendering context normally owns it.
type Engine struct {
	mu       sync.Mutex
	surfaces map[string]*surface
	seqs     map[string]uint64
	rejected int
	maxDepth int
	maxNodes int
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// WithMaxNodes overrides DefaultMaxNodes.
func WithMaxNodes(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxNodes = n
		}
	}
}

// NewEngine creates an empty engine.
func NewEngine(logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		surfaces: make(map[string]*surface),
		seqs:     make(map[string]uint64),
		maxDepth: DefaultMaxDepth,
		maxNodes: DefaultMaxNodes,
		logger:   logger.With("component", "surface"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply applies one message. Invalid messages are logged and dropped.
func (e *Engine) Apply(msg protocol.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.apply(msg)
}

// ApplyBatch applies messages in order.
func (e *Engine) ApplyBatch(msgs []protocol.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, msg := range msgs {
		e.apply(msg)
	}
}

// ApplyJSON decodes and applies one wire message. Undecodable input is
// logged and dropped.
func (e *Engine) ApplyJSON(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		e.mu.Lock()
		e.reject("", "undecodable message", err)
		e.mu.Unlock()
		return
	}
	e.Apply(msg)
}

// ApplySequenced applies a batch tagged with a sequence number. A batch whose
// number is not above the last accepted one for surfaceID is dropped whole.
// It reports whether the batch was applied.
func (e *Engine) ApplySequenced(surfaceID string, seq uint64, msgs []protocol.Message) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if last, ok := e.seqs[surfaceID]; ok && seq <= last {
		e.reject(surfaceID, "stale batch", fmt.Errorf("seq %d not after %d", seq, last))
		return false
	}
	e.seqs[surfaceID] = seq
	for _, msg := range msgs {
		e.apply(msg)
	}
	return true
}

// Render returns a copy of the surface's current tree, or nil when the surface
// does not exist or has never rendered.
func (e *Engine) Render(surfaceID string) *Node {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.surfaces[surfaceID]
	if !ok || s.tree == nil {
		return nil
	}
	return s.tree.Clone()
}

// Root returns the surface's current root ID.
func (e *Engine) Root(surfaceID string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.surfaces[surfaceID]; ok {
		return s.root
	}
	return ""
}

// Component returns a registered component.
func (e *Engine) Component(surfaceID, id string) (protocol.Component, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.surfaces[surfaceID]
	if !ok {
		return protocol.Component{}, false
	}
	c, ok := s.components[id]
	return c, ok
}

// Len returns the number of registered components on a surface.
func (e *Engine) Len(surfaceID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.surfaces[surfaceID]; ok {
		return len(s.components)
	}
	return 0
}

// Surfaces lists live surface IDs in sorted order.
func (e *Engine) Surfaces() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.surfaces))
	for id := range e.surfaces {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Rejected returns how many messages or components were dropped.
func (e *Engine) Rejected() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rejected
}

func (e *Engine) apply(msg protocol.Message) {
	if err := msg.Validate(); err != nil {
		e.reject(msg.SurfaceID(), "invalid message", err)
		return
	}

	switch msg.Type() {
	case protocol.MessageSurfaceUpdate:
		e.applyUpdate(msg.SurfaceUpdate)
	case protocol.MessageBeginRendering:
		e.applyBegin(msg.BeginRendering)
	case protocol.MessageDeleteSurface:
		e.applyDelete(msg.DeleteSurface)
	}
}

func (e *Engine) applyUpdate(u *protocol.SurfaceUpdate) {
	s := e.surfaceFor(u.SurfaceID)
	for _, c := range u.Components {
		if c.ID == "" {
			e.reject(u.SurfaceID, "component without id", fmt.Errorf("kind %s", c.Kind))
			continue
		}
		if c.Problem != "" {
			e.reject(u.SurfaceID, "malformed component", fmt.Errorf("%s", c.Problem))
		}
		s.components[c.ID] = c
	}
}

func (e *Engine) applyBegin(b *protocol.BeginRendering) {
	s := e.surfaceFor(b.SurfaceID)
	if _, ok := s.components[b.Root]; !ok {
		e.reject(b.SurfaceID, "root not registered", fmt.Errorf("root %q", b.Root))
		return
	}
	s.root = b.Root
	budget := e.maxNodes
	s.tree = e.resolve(s, b.Root, make(map[string]bool), 0, &budget)
	if budget < 0 {
		e.logger.Warn("render tree truncated", "surface", b.SurfaceID, "root", b.Root, "max_nodes", e.maxNodes)
	}
}

func (e *Engine) applyDelete(d *protocol.DeleteSurface) {
	if _, ok := e.surfaces[d.SurfaceID]; !ok {
		return
	}
	delete(e.surfaces, d.SurfaceID)
	e.logger.Debug("surface deleted", "surface", d.SurfaceID)
}

func (e *Engine) surfaceFor(id string) *surface {
	s, ok := e.surfaces[id]
	if !ok {
		s = &surface{components: make(map[string]protocol.Component)}
		e.surfaces[id] = s
	}
	return s
}

// truncated marks the budget as overrun.
func (e *Engine) truncated(id string, budget *int) *Node {
	*budget = -1
	return &Node{ID: id, Status: StatusTruncated, Detail: fmt.Sprintf("node limit %d reached", e.maxNodes)}
}

func (e *Engine) resolve(s *surface, id string, path map[string]bool, depth int, budget *int) *Node {
	if *budget <= 0 {
		return e.truncated(id, budget)
	}
	*budget--

	c, ok := s.components[id]
	if !ok {
		return &Node{ID: id, Status: StatusMissing, Detail: "missing component " + id}
	}
	if path[id] {
		return &Node{ID: id, Kind: c.Kind, Status: StatusCycle, Detail: "cyclic reference to " + id}
	}
	if depth >= e.maxDepth {
		return &Node{ID: id, Kind: c.Kind, Status: StatusTooDeep, Detail: fmt.Sprintf("depth limit %d reached", e.maxDepth)}
	}
	if c.Problem != "" {
		return &Node{ID: id, Kind: c.Kind, Status: StatusMalformed, Detail: c.Problem}
	}
	if !c.Kind.Known() {
		return &Node{ID: id, Kind: c.Kind, Status: StatusUnsupported, Detail: "unsupported component kind " + string(c.Kind)}
	}
	if !c.HasPayload() {
		return &Node{ID: id, Kind: c.Kind, Status: StatusMalformed, Detail: string(c.Kind) + " without properties"}
	}

	node := nodeFor(c)
	children := c.Children()
	if len(children) == 0 {
		return node
	}

	path[id] = true
	node.Children = make([]*Node, 0, len(children))
	for _, child := range children {
		if *budget <= 0 {
			node.Children = append(node.Children, e.truncated(child, budget))
			break
		}
		node.Children = append(node.Children, e.resolve(s, child, path, depth+1, budget))
	}
	delete(path, id)
	return node
}

func (e *Engine) reject(surfaceID, reason string, err error) {
	e.rejected++
	e.logger.Warn("dropped surface input", "surface", surfaceID, "reason", reason, "error", err)
}
