// Package term draws surface render trees as styled terminal text.
package term

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xiaot623/gogo/a2ui/internal/protocol"
	"github.com/xiaot623/gogo/a2ui/internal/surface"
)

// Styles holds the styles used for each element.
type Styles struct {
	H1      lipgloss.Style
	H2      lipgloss.Style
	Heading lipgloss.Style
	Body    lipgloss.Style
	Caption lipgloss.Style
	Card    lipgloss.Style
	Button  lipgloss.Style
	Primary lipgloss.Style
	Problem lipgloss.Style
	Divider lipgloss.Style
}

// DefaultStyles returns the default palette.
func DefaultStyles() Styles {
	return Styles{
		H1:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		H2:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("111")),
		Heading: lipgloss.NewStyle().Bold(true),
		Body:    lipgloss.NewStyle(),
		Caption: lipgloss.NewStyle().Faint(true),
		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		Button:  lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Primary: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		Problem: lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Italic(true),
		Divider: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// Renderer draws render trees. Buttons are numbered in render order so a
// line-based client can press them by number.
type Renderer struct {
	width  int
	styles Styles
}

// Frame is one drawn tree.
type Frame struct {
	Text string
	// Actions holds the action of button N at index N-1.
	Actions []string
}

// New creates a renderer wrapping text at width. Zero disables wrapping.
func New(width int) *Renderer {
	return &Renderer{width: width, styles: DefaultStyles()}
}

// WithStyles replaces the palette.
func (r *Renderer) WithStyles(s Styles) *Renderer {
	r.styles = s
	return r
}

// Render draws root. A nil root draws nothing.
func (r *Renderer) Render(root *surface.Node) Frame {
	if root == nil {
		return Frame{}
	}
	var actions []string
	text := r.node(root, &actions)
	return Frame{Text: text, Actions: actions}
}

// Action returns the action of button n (1-based).
func (f Frame) Action(n int) (string, bool) {
	if n < 1 || n > len(f.Actions) {
		return "", false
	}
	return f.Actions[n-1], true
}

func (r *Renderer) node(n *surface.Node, actions *[]string) string {
	if !n.OK() {
		return r.styles.Problem.Render(problem(n))
	}

	switch n.Kind {
	case protocol.KindText:
		return r.text(n)
	case protocol.KindDivider:
		if n.Axis == protocol.AxisVertical {
			return r.styles.Divider.Render("│")
		}
		width := r.width
		if width <= 0 {
			width = 24
		}
		return r.styles.Divider.Render(strings.Repeat("─", width))
	case protocol.KindImage:
		return r.styles.Caption.Render("[image] " + n.URL)
	case protocol.KindRow:
		var parts []string
		for i, part := range r.children(n, actions) {
			if i > 0 {
				parts = append(parts, "  ")
			}
			parts = append(parts, part)
		}
		return lipgloss.JoinHorizontal(alignV(n.Alignment), parts...)
	case protocol.KindColumn:
		return lipgloss.JoinVertical(alignH(n.Alignment), r.children(n, actions)...)
	case protocol.KindCard:
		return r.styles.Card.Render(strings.Join(r.children(n, actions), "\n"))
	case protocol.KindButton:
		*actions = append(*actions, n.Action)
		label := strings.TrimSpace(plain(n))
		style := r.styles.Button
		if n.Primary {
			style = r.styles.Primary
		}
		return style.Render(fmt.Sprintf("[%d] %s", len(*actions), label))
	}
	return r.styles.Problem.Render(problem(n))
}

func (r *Renderer) text(n *surface.Node) string {
	style := r.styles.Body
	switch n.Hint {
	case protocol.HintH1:
		style = r.styles.H1
	case protocol.HintH2:
		style = r.styles.H2
	case protocol.HintH3, protocol.HintH4, protocol.HintH5:
		style = r.styles.Heading
	case protocol.HintCaption:
		style = r.styles.Caption
	}
	if r.width > 0 && lipgloss.Width(n.Text) > r.width {
		style = style.Width(r.width)
	}
	return style.Render(n.Text)
}

func (r *Renderer) children(n *surface.Node, actions *[]string) []string {
	out := make([]string, 0, len(n.Children))
	for _, child := range n.Children {
		out = append(out, r.node(child, actions))
	}
	return out
}

// plain flattens the text under a node, used for button labels.
func plain(n *surface.Node) string {
	var parts []string
	n.Walk(func(node *surface.Node) bool {
		if node.Kind == protocol.KindText && node.OK() {
			parts = append(parts, node.Text)
		}
		return true
	})
	return strings.Join(parts, " ")
}

func problem(n *surface.Node) string {
	switch n.Status {
	case surface.StatusMissing:
		return fmt.Sprintf("<missing %s>", n.ID)
	case surface.StatusUnsupported:
		return fmt.Sprintf("<unsupported %s: %s>", n.Kind, n.ID)
	case surface.StatusMalformed:
		return fmt.Sprintf("<malformed %s: %s>", n.Kind, n.ID)
	case surface.StatusCycle:
		return fmt.Sprintf("<cycle at %s>", n.ID)
	case surface.StatusTooDeep:
		return fmt.Sprintf("<too deep at %s>", n.ID)
	case surface.StatusTruncated:
		return fmt.Sprintf("<truncated at %s>", n.ID)
	}
	return fmt.Sprintf("<%s>", n.ID)
}

func alignV(a string) lipgloss.Position {
	switch a {
	case protocol.AlignmentCenter:
		return lipgloss.Center
	case protocol.AlignmentEnd:
		return lipgloss.Bottom
	}
	return lipgloss.Top
}

func alignH(a string) lipgloss.Position {
	switch a {
	case protocol.AlignmentCenter:
		return lipgloss.Center
	case protocol.AlignmentEnd:
		return lipgloss.Right
	}
	return lipgloss.Left
}
