package protocol

import (
	"errors"
	"fmt"
)

// MessageType names the variant carried by a Message.
type MessageType string

const (
	MessageSurfaceUpdate  MessageType = "surfaceUpdate"
	MessageBeginRendering MessageType = "beginRendering"
	MessageDeleteSurface  MessageType = "deleteSurface"
)

// DefaultSurfaceID is the surface every view targets unless configured otherwise.
const DefaultSurfaceID = "main"

// ErrInvalidMessage is returned for messages that carry zero or several variants.
var ErrInvalidMessage = errors.New("invalid message")

// SurfaceUpdate merges components into a surface registry.
type SurfaceUpdate struct {
	SurfaceID  string      `json:"surfaceId"`
	Components []Component `json:"components"`
}

// BeginRendering marks the registry consistent and names the root to render.
type BeginRendering struct {
	SurfaceID string `json:"surfaceId"`
	Root      string `json:"root"`
}

// DeleteSurface discards a surface entirely.
type DeleteSurface struct {
	SurfaceID string `json:"surfaceId"`
}

// Message is one protocol message. Exactly one field is set.
type Message struct {
	SurfaceUpdate  *SurfaceUpdate  `json:"surfaceUpdate,omitempty"`
	BeginRendering *BeginRendering `json:"beginRendering,omitempty"`
	DeleteSurface  *DeleteSurface  `json:"deleteSurface,omitempty"`
}

// Type returns the variant name, or "" when the message carries none or several.
func (m Message) Type() MessageType {
	var (
		t     MessageType
		count int
	)
	if m.SurfaceUpdate != nil {
		t = MessageSurfaceUpdate
		count++
	}
	if m.BeginRendering != nil {
		t = MessageBeginRendering
		count++
	}
	if m.DeleteSurface != nil {
		t = MessageDeleteSurface
		count++
	}
	if count != 1 {
		return ""
	}
	return t
}

// SurfaceID returns the surface the message addresses.
func (m Message) SurfaceID() string {
	switch m.Type() {
	case MessageSurfaceUpdate:
		return m.SurfaceUpdate.SurfaceID
	case MessageBeginRendering:
		return m.BeginRendering.SurfaceID
	case MessageDeleteSurface:
		return m.DeleteSurface.SurfaceID
	}
	return ""
}

// Validate checks that the message has exactly one variant and a surface ID.
func (m Message) Validate() error {
	t := m.Type()
	if t == "" {
		return fmt.Errorf("%w: expected exactly one of surfaceUpdate, beginRendering, deleteSurface", ErrInvalidMessage)
	}
	if m.SurfaceID() == "" {
		return fmt.Errorf("%w: %s has no surfaceId", ErrInvalidMessage, t)
	}
	if t == MessageBeginRendering && m.BeginRendering.Root == "" {
		return fmt.Errorf("%w: beginRendering has no root", ErrInvalidMessage)
	}
	return nil
}

// NewSurfaceUpdate wraps components in a SurfaceUpdate message.
func NewSurfaceUpdate(surfaceID string, components []Component) Message {
	if components == nil {
		components = []Component{}
	}
	return Message{SurfaceUpdate: &SurfaceUpdate{SurfaceID: surfaceID, Components: components}}
}

// NewBeginRendering creates a BeginRendering message.
func NewBeginRendering(surfaceID, root string) Message {
	return Message{BeginRendering: &BeginRendering{SurfaceID: surfaceID, Root: root}}
}

// NewDeleteSurface creates a DeleteSurface message.
func NewDeleteSurface(surfaceID string) Message {
	return Message{DeleteSurface: &DeleteSurface{SurfaceID: surfaceID}}
}

// NewBatch returns the canonical two-message sequence: one SurfaceUpdate with
// every component, then BeginRendering for root.
func NewBatch(surfaceID string, components []Component, root string) ([]Message, error) {
	if surfaceID == "" {
		return nil, fmt.Errorf("%w: surface id is required", ErrInvalidMessage)
	}
	if root == "" {
		return nil, fmt.Errorf("%w: root id is required", ErrInvalidMessage)
	}
	return []Message{
		NewSurfaceUpdate(surfaceID, components),
		NewBeginRendering(surfaceID, root),
	}, nil
}
