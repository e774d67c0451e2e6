// Package protocol defines the declarative UI wire model (components and
// surface messages) and the WebSocket frames that carry it.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies the variant carried by a Component.
type Kind string

const (
	KindText    Kind = "Text"
	KindDivider Kind = "Divider"
	KindImage   Kind = "Image"
	KindRow     Kind = "Row"
	KindColumn  Kind = "Column"
	KindCard    Kind = "Card"
	KindButton  Kind = "Button"
)

// Known reports whether k is part of the closed kind set.
func (k Kind) Known() bool {
	switch k {
	case KindText, KindDivider, KindImage, KindRow, KindColumn, KindCard, KindButton:
		return true
	}
	return false
}

// UsageHint is the typographic category of a Text.
type UsageHint string

const (
	HintH1      UsageHint = "h1"
	HintH2      UsageHint = "h2"
	HintH3      UsageHint = "h3"
	HintH4      UsageHint = "h4"
	HintH5      UsageHint = "h5"
	HintBody    UsageHint = "body"
	HintCaption UsageHint = "caption"
)

// Axis is the orientation of a Divider.
type Axis string

const (
	AxisHorizontal Axis = "horizontal"
	AxisVertical   Axis = "vertical"
)

// Distribution and alignment hints for Row and Column.
const (
	DistributionStart        = "start"
	DistributionCenter       = "center"
	DistributionEnd          = "end"
	DistributionSpaceBetween = "spaceBetween"

	AlignmentStart   = "start"
	AlignmentCenter  = "center"
	AlignmentEnd     = "end"
	AlignmentStretch = "stretch"
)

// ErrInvalidComponent is returned by constructors when a required field is missing.
var ErrInvalidComponent = errors.New("invalid component")

// LiteralString is a value source holding a literal.
type LiteralString struct {
	LiteralString string `json:"literalString"`
}

// TextProps are the fields of a Text component.
type TextProps struct {
	Text      LiteralString `json:"text"`
	UsageHint UsageHint     `json:"usageHint,omitempty"`
}

// DividerProps are the fields of a Divider component.
type DividerProps struct {
	Axis Axis `json:"axis,omitempty"`
}

// ImageProps are the fields of an Image component.
type ImageProps struct {
	URL LiteralString `json:"url"`
}

// ChildList is an ordered list of child component IDs.
type ChildList struct {
	ExplicitList []string `json:"explicitList"`
}

// ContainerProps are the fields shared by Row and Column.
type ContainerProps struct {
	Children     ChildList `json:"children"`
	Distribution string    `json:"distribution,omitempty"`
	Alignment    string    `json:"alignment,omitempty"`
}

// CardProps are the fields of a Card component.
type CardProps struct {
	Child string `json:"child"`
}

// ActionRef names the action a Button emits.
type ActionRef struct {
	Name string `json:"name"`
}

// ButtonProps are the fields of a Button component.
type ButtonProps struct {
	Child   string    `json:"child"`
	Primary bool      `json:"primary,omitempty"`
	Action  ActionRef `json:"action"`
}

// Component is one node of a surface. Exactly one of the typed payloads is set,
// matching Kind. Components of a kind outside the known set keep the raw payload
// so a renderer can report them.
type Component struct {
	ID   string
	Kind Kind

	Text    *TextProps
	Divider *DividerProps
	Image   *ImageProps
	Row     *ContainerProps
	Column  *ContainerProps
	Card    *CardProps
	Button  *ButtonProps

	Raw json.RawMessage
	// Problem is set when the wire form could not be decoded. The component
	// keeps its ID so a renderer can show it as one malformed node.
	Problem string
}

// Children returns the IDs this component references, in render order.
func (c Component) Children() []string {
	switch c.Kind {
	case KindRow:
		if c.Row != nil {
			return c.Row.Children.ExplicitList
		}
	case KindColumn:
		if c.Column != nil {
			return c.Column.Children.ExplicitList
		}
	case KindCard:
		if c.Card != nil && c.Card.Child != "" {
			return []string{c.Card.Child}
		}
	case KindButton:
		if c.Button != nil && c.Button.Child != "" {
			return []string{c.Button.Child}
		}
	}
	return nil
}

// HasPayload reports whether the payload matching Kind is present.
func (c Component) HasPayload() bool {
	switch c.Kind {
	case KindText:
		return c.Text != nil
	case KindDivider:
		return c.Divider != nil
	case KindImage:
		return c.Image != nil
	case KindRow:
		return c.Row != nil
	case KindColumn:
		return c.Column != nil
	case KindCard:
		return c.Card != nil
	case KindButton:
		return c.Button != nil
	}
	return false
}

// NewText creates a Text component.
func NewText(id, value string, hint UsageHint) (Component, error) {
	if id == "" {
		return Component{}, fmt.Errorf("%w: text id is required", ErrInvalidComponent)
	}
	return Component{ID: id, Kind: KindText, Text: &TextProps{
		Text:      LiteralString{LiteralString: value},
		UsageHint: hint,
	}}, nil
}

// NewDivider creates a Divider component. An empty axis means horizontal.
func NewDivider(id string, axis Axis) (Component, error) {
	if id == "" {
		return Component{}, fmt.Errorf("%w: divider id is required", ErrInvalidComponent)
	}
	if axis == "" {
		axis = AxisHorizontal
	}
	return Component{ID: id, Kind: KindDivider, Divider: &DividerProps{Axis: axis}}, nil
}

// NewImage creates an Image component.
func NewImage(id, url string) (Component, error) {
	if id == "" {
		return Component{}, fmt.Errorf("%w: image id is required", ErrInvalidComponent)
	}
	if url == "" {
		return Component{}, fmt.Errorf("%w: image %s has no url", ErrInvalidComponent, id)
	}
	return Component{ID: id, Kind: KindImage, Image: &ImageProps{URL: LiteralString{LiteralString: url}}}, nil
}

// NewRow creates a Row. A nil child list becomes an empty list.
func NewRow(id string, children []string, distribution, alignment string) (Component, error) {
	props, err := newContainer(id, children, distribution, alignment)
	if err != nil {
		return Component{}, err
	}
	return Component{ID: id, Kind: KindRow, Row: props}, nil
}

// NewColumn creates a Column. A nil child list becomes an empty list.
func NewColumn(id string, children []string, distribution, alignment string) (Component, error) {
	props, err := newContainer(id, children, distribution, alignment)
	if err != nil {
		return Component{}, err
	}
	return Component{ID: id, Kind: KindColumn, Column: props}, nil
}

func newContainer(id string, children []string, distribution, alignment string) (*ContainerProps, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: container id is required", ErrInvalidComponent)
	}
	list := make([]string, 0, len(children))
	for i, child := range children {
		if child == "" {
			return nil, fmt.Errorf("%w: container %s has an empty child id at %d", ErrInvalidComponent, id, i)
		}
		list = append(list, child)
	}
	return &ContainerProps{
		Children:     ChildList{ExplicitList: list},
		Distribution: distribution,
		Alignment:    alignment,
	}, nil
}

// NewCard creates a Card wrapping a single child.
func NewCard(id, child string) (Component, error) {
	if id == "" {
		return Component{}, fmt.Errorf("%w: card id is required", ErrInvalidComponent)
	}
	if child == "" {
		return Component{}, fmt.Errorf("%w: card %s has no child", ErrInvalidComponent, id)
	}
	return Component{ID: id, Kind: KindCard, Card: &CardProps{Child: child}}, nil
}

// NewButton creates a Button whose label is the component labelID.
func NewButton(id, labelID, action string, primary bool) (Component, error) {
	if id == "" {
		return Component{}, fmt.Errorf("%w: button id is required", ErrInvalidComponent)
	}
	if labelID == "" {
		return Component{}, fmt.Errorf("%w: button %s has no label", ErrInvalidComponent, id)
	}
	if action == "" {
		return Component{}, fmt.Errorf("%w: button %s has no action", ErrInvalidComponent, id)
	}
	return Component{ID: id, Kind: KindButton, Button: &ButtonProps{
		Child:   labelID,
		Primary: primary,
		Action:  ActionRef{Name: action},
	}}, nil
}

type componentJSON struct {
	ID        string                     `json:"id"`
	Component map[string]json.RawMessage `json:"component"`
}

// MarshalJSON encodes the component as {"id": ..., "component": {"<Kind>": {...}}}.
func (c Component) MarshalJSON() ([]byte, error) {
	if c.Kind == "" && len(c.Raw) > 0 {
		return json.Marshal(struct {
			ID        string          `json:"id"`
			Component json.RawMessage `json:"component"`
		}{c.ID, c.Raw})
	}

	var (
		payload []byte
		err     error
	)
	switch {
	case !c.HasPayload():
		payload = c.Raw
		if len(payload) == 0 {
			payload = []byte("{}")
		}
	case c.Kind == KindText:
		payload, err = json.Marshal(c.Text)
	case c.Kind == KindDivider:
		payload, err = json.Marshal(c.Divider)
	case c.Kind == KindImage:
		payload, err = json.Marshal(c.Image)
	case c.Kind == KindRow:
		payload, err = json.Marshal(c.Row)
	case c.Kind == KindColumn:
		payload, err = json.Marshal(c.Column)
	case c.Kind == KindCard:
		payload, err = json.Marshal(c.Card)
	case c.Kind == KindButton:
		payload, err = json.Marshal(c.Button)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(componentJSON{
		ID:        c.ID,
		Component: map[string]json.RawMessage{string(c.Kind): payload},
	})
}

// UnmarshalJSON decodes the wire form. Unknown kinds are kept with their raw
// payload. Input that does not decode is kept too, with Problem set and no
// typed payload, so one bad component never fails the message carrying it.
func (c *Component) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		*c = Component{Raw: append(json.RawMessage(nil), data...), Problem: "component is not an object"}
		return nil
	}

	out := Component{}
	if rawID, ok := fields["id"]; ok {
		if err := json.Unmarshal(rawID, &out.ID); err != nil {
			out.ID = ""
		}
	}

	var kinds map[string]json.RawMessage
	if err := json.Unmarshal(fields["component"], &kinds); err != nil || len(kinds) != 1 {
		out.Raw = append(json.RawMessage(nil), fields["component"]...)
		out.Problem = fmt.Sprintf("%v: component %q must carry exactly one kind, got %d", ErrInvalidComponent, out.ID, len(kinds))
		*c = out
		return nil
	}

	for name, raw := range kinds {
		out.Kind = Kind(name)
		out.Raw = append(json.RawMessage(nil), raw...)
		var target any
		switch out.Kind {
		case KindText:
			out.Text = &TextProps{}
			target = out.Text
		case KindDivider:
			out.Divider = &DividerProps{}
			target = out.Divider
		case KindImage:
			out.Image = &ImageProps{}
			target = out.Image
		case KindRow:
			out.Row = &ContainerProps{}
			target = out.Row
		case KindColumn:
			out.Column = &ContainerProps{}
			target = out.Column
		case KindCard:
			out.Card = &CardProps{}
			target = out.Card
		case KindButton:
			out.Button = &ButtonProps{}
			target = out.Button
		default:
			continue
		}
		if err := json.Unmarshal(raw, target); err != nil {
			out.Text, out.Divider, out.Image = nil, nil, nil
			out.Row, out.Column, out.Card, out.Button = nil, nil, nil, nil
			out.Problem = fmt.Sprintf("failed to decode %s component %q: %v", name, out.ID, err)
			break
		}
		out.Raw = nil
	}
	*c = out
	return nil
}
