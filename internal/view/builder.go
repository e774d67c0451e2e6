// Package view turns application state into a message batch for one surface.
// Building is deterministic: the same state and language always yield the
// same components with the same IDs.
package view

import (
	"fmt"

	"github.com/xiaot623/gogo/a2ui/internal/action"
	"github.com/xiaot623/gogo/a2ui/internal/domain"
	"github.com/xiaot623/gogo/a2ui/internal/protocol"
)

const rootID = "root"

// Config configures a Builder.
type Config struct {
	SurfaceID       string
	DefaultLanguage string
	// MaxCandidates caps the rendered candidate cards. Zero means no cap.
	MaxCandidates int
}

// Builder builds views. It holds no per-call state and is safe for concurrent use.
type Builder struct {
	cfg Config
	loc *Localizer
}

// Result is one built view.
type Result struct {
	View          domain.ViewName
	Language      string
	AssistantText string
	Messages      []protocol.Message
}

// NewBuilder creates a Builder.
func NewBuilder(cfg Config) (*Builder, error) {
	if cfg.SurfaceID == "" {
		cfg.SurfaceID = protocol.DefaultSurfaceID
	}
	if cfg.MaxCandidates < 0 {
		return nil, fmt.Errorf("max candidates must not be negative, got %d", cfg.MaxCandidates)
	}
	loc, err := NewLocalizer(cfg.DefaultLanguage)
	if err != nil {
		return nil, err
	}
	cfg.DefaultLanguage = loc.Default()
	return &Builder{cfg: cfg, loc: loc}, nil
}

// Localizer exposes the builder's message catalog.
func (b *Builder) Localizer() *Localizer {
	return b.loc
}

// SurfaceID is the surface every view targets.
func (b *Builder) SurfaceID() string {
	return b.cfg.SurfaceID
}

// Select picks the view for state. Exactly one view is returned for any input.
func (b *Builder) Select(state *domain.State) domain.ViewName {
	switch {
	case state.IsEmpty():
		return domain.ViewWelcome
	case state.Route == nil && state.Candidates != nil && len(state.Candidates.Candidates) > 0:
		return domain.ViewCandidates
	case state.Route != nil:
		return domain.ViewRoute
	case state.Error != nil:
		return domain.ViewError
	default:
		return domain.ViewError
	}
}

// Controls reports how many candidate cards and removable points the view
// for state renders.
func (b *Builder) Controls(state *domain.State) (candidates, points int) {
	switch b.Select(state) {
	case domain.ViewCandidates:
		candidates = len(state.Candidates.Candidates)
		if b.cfg.MaxCandidates > 0 && candidates > b.cfg.MaxCandidates {
			candidates = b.cfg.MaxCandidates
		}
	case domain.ViewRoute:
		if state.Points != nil {
			points = len(state.Points.SelectedPoints)
		}
	}
	return candidates, points
}

// Language resolves the language for a call: the explicit value first, then
// the language the backend detected, then the default.
func (b *Builder) Language(state *domain.State, lang string) string {
	if lang == "" {
		lang = state.Language()
	}
	return b.loc.Match(lang)
}

// Build renders state in lang.
func (b *Builder) Build(state *domain.State, lang string) Result {
	lang = b.Language(state, lang)
	name := b.Select(state)

	var (
		res Result
		err error
	)
	switch name {
	case domain.ViewWelcome:
		res, err = b.welcome(lang)
	case domain.ViewCandidates:
		res, err = b.candidates(state, lang)
	case domain.ViewRoute:
		res, err = b.route(state, lang)
	default:
		msg := b.loc.T(lang, "error.no_results")
		if state.Error != nil && state.Error.Message != "" {
			msg = state.Error.Message
		}
		return b.BuildError(lang, msg)
	}
	if err != nil {
		return b.BuildError(lang, err.Error())
	}
	return res
}

// BuildError renders the error view with message, independent of state.
func (b *Builder) BuildError(lang, message string) Result {
	lang = b.loc.Match(lang)

	var c components
	c.column(rootID, []string{"error-header", "divider-1", "error-card", "divider-2", "error-controls"})
	c.text("error-header", b.loc.T(lang, "error.header"), protocol.HintH2)
	c.divider("divider-1")
	c.card("error-card", "error-card-content")
	c.column("error-card-content", []string{"error-message"})
	c.text("error-message", message, protocol.HintBody)
	c.divider("divider-2")
	c.row("error-controls", []string{"error-reset"}, protocol.DistributionEnd)
	c.button("error-reset", b.loc.T(lang, "common.reset"), action.Reset, true)

	msgs, _ := c.batch(b.cfg.SurfaceID, rootID)
	return Result{
		View:          domain.ViewError,
		Language:      lang,
		AssistantText: b.loc.T(lang, "error.assistant", message),
		Messages:      msgs,
	}
}

func (b *Builder) result(view domain.ViewName, lang, text string, c *components) (Result, error) {
	msgs, err := c.batch(b.cfg.SurfaceID, rootID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to build %s view: %w", view, err)
	}
	return Result{View: view, Language: lang, AssistantText: text, Messages: msgs}, nil
}
