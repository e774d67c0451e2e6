package surface

import "github.com/xiaot623/gogo/a2ui/internal/protocol"

// Status describes how a node was resolved.
type Status string

const (
	StatusOK Status = "ok"
	// StatusMissing marks a placeholder for a child ID absent from the registry.
	StatusMissing Status = "missing"
	// StatusUnsupported marks a component whose kind the engine does not know.
	StatusUnsupported Status = "unsupported"
	// StatusMalformed marks a known kind without its payload.
	StatusMalformed Status = "malformed"
	// StatusCycle marks a reference back to an ancestor.
	StatusCycle Status = "cycle"
	// StatusTooDeep marks a subtree cut at the depth limit.
	StatusTooDeep Status = "too_deep"
	// StatusTruncated marks where resolution stopped at the node limit.
	StatusTruncated Status = "truncated"
)

// Node is one resolved element of a render tree. Only the fields relevant to
// Kind are set.
type Node struct {
	ID     string        `json:"id"`
	Kind   protocol.Kind `json:"kind,omitempty"`
	Status Status        `json:"status"`
	Detail string        `json:"detail,omitempty"`

	Text string             `json:"text,omitempty"`
	Hint protocol.UsageHint `json:"hint,omitempty"`
	URL  string             `json:"url,omitempty"`
	Axis protocol.Axis      `json:"axis,omitempty"`

	Distribution string `json:"distribution,omitempty"`
	Alignment    string `json:"alignment,omitempty"`

	Action  string `json:"action,omitempty"`
	Primary bool   `json:"primary,omitempty"`

	Children []*Node `json:"children,omitempty"`
}

// OK reports whether the node resolved to a real component.
func (n *Node) OK() bool {
	return n != nil && n.Status == StatusOK
}

// Clone returns a deep copy.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	if n.Children != nil {
		out.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			out.Children[i] = child.Clone()
		}
	}
	return &out
}

// Walk visits n and its descendants depth-first, parents before children.
// Returning false from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

// Find returns the first node with the given ID.
func (n *Node) Find(id string) *Node {
	var found *Node
	n.Walk(func(node *Node) bool {
		if found != nil {
			return false
		}
		if node.ID == id {
			found = node
			return false
		}
		return true
	})
	return found
}

// Actions returns the action names of every button in render order.
func (n *Node) Actions() []string {
	var out []string
	n.Walk(func(node *Node) bool {
		if node.Kind == protocol.KindButton && node.OK() && node.Action != "" {
			out = append(out, node.Action)
		}
		return true
	})
	return out
}

func nodeFor(c protocol.Component) *Node {
	n := &Node{ID: c.ID, Kind: c.Kind, Status: StatusOK}
	switch c.Kind {
	case protocol.KindText:
		n.Text = c.Text.Text.LiteralString
		n.Hint = c.Text.UsageHint
	case protocol.KindDivider:
		n.Axis = c.Divider.Axis
	case protocol.KindImage:
		n.URL = c.Image.URL.LiteralString
	case protocol.KindRow:
		n.Distribution = c.Row.Distribution
		n.Alignment = c.Row.Alignment
	case protocol.KindColumn:
		n.Distribution = c.Column.Distribution
		n.Alignment = c.Column.Alignment
	case protocol.KindCard:
	case protocol.KindButton:
		n.Action = c.Button.Action.Name
		n.Primary = c.Button.Primary
	}
	return n
}
