// Package action encodes and decodes the action names attached to buttons.
//
// Names come in three shapes: static ("reset"), indexed ("select_candidate_2")
// and payload ("send_text:Slam Dunk Kamakura"). Anything else decodes to an
// unknown action carrying the raw name so it can still be forwarded.
package action

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Shape is the structural form of an action.
type Shape string

const (
	ShapeStatic  Shape = "static"
	ShapeIndexed Shape = "indexed"
	ShapePayload Shape = "payload"
	ShapeUnknown Shape = "unknown"
)

// Known action names.
const (
	Reset           = "reset"
	Back            = "back"
	SelectCandidate = "select_candidate"
	RemovePoint     = "remove_point"
	SendTextPrefix  = "send_text"
	OpenURLPrefix   = "open_url"
)

const (
	indexSep   = "_"
	payloadSep = ":"
)

// ErrMalformed is returned by Encode for actions that cannot be written as a name.
var ErrMalformed = errors.New("malformed action")

// Action is a decoded action name.
//
// Name holds the static name or the prefix. Index is set for indexed actions,
// Payload for payload actions. Unknown actions keep the raw name in Payload.
type Action struct {
	Shape   Shape  `json:"shape"`
	Name    string `json:"name,omitempty"`
	Index   int    `json:"index,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// Is reports whether a is the static action or prefix called name.
func (a Action) Is(name string) bool {
	return a.Shape != ShapeUnknown && a.Name == name
}

// String returns the wire name, or the raw text for malformed actions.
func (a Action) String() string {
	name, err := DefaultCodec.Encode(a)
	if err != nil {
		return a.Payload
	}
	return name
}

// Codec decodes and encodes names for a fixed vocabulary.
type Codec struct {
	static  map[string]struct{}
	indexed []string
	payload []string
}

// NewCodec creates a codec. Longer prefixes are tried first so that a prefix
// sharing a stem with another never shadows it.
func NewCodec(static, indexed, payload []string) *Codec {
	c := &Codec{static: make(map[string]struct{}, len(static))}
	for _, name := range static {
		c.static[name] = struct{}{}
	}
	c.indexed = sortedByLength(indexed)
	c.payload = sortedByLength(payload)
	return c
}

// DefaultCodec knows every action the views emit.
var DefaultCodec = NewCodec(
	[]string{Reset, Back},
	[]string{SelectCandidate, RemovePoint},
	[]string{SendTextPrefix, OpenURLPrefix},
)

// Decode parses name. It never fails.
func (c *Codec) Decode(name string) Action {
	if _, ok := c.static[name]; ok {
		return Action{Shape: ShapeStatic, Name: name}
	}

	for _, prefix := range c.indexed {
		rest, ok := strings.CutPrefix(name, prefix+indexSep)
		if !ok {
			continue
		}
		if idx, ok := parseIndex(rest); ok {
			return Action{Shape: ShapeIndexed, Name: prefix, Index: idx}
		}
	}

	if prefix, payload, ok := strings.Cut(name, payloadSep); ok && c.hasPayloadPrefix(prefix) {
		return Action{Shape: ShapePayload, Name: prefix, Payload: payload}
	}

	return Action{Shape: ShapeUnknown, Payload: name}
}

// Encode writes a as a name. Unknown actions encode to their raw text.
func (c *Codec) Encode(a Action) (string, error) {
	switch a.Shape {
	case ShapeStatic:
		if _, ok := c.static[a.Name]; !ok {
			return "", fmt.Errorf("%w: unknown static action %q", ErrMalformed, a.Name)
		}
		return a.Name, nil
	case ShapeIndexed:
		if !c.hasIndexedPrefix(a.Name) {
			return "", fmt.Errorf("%w: unknown indexed prefix %q", ErrMalformed, a.Name)
		}
		if a.Index < 0 {
			return "", fmt.Errorf("%w: negative index %d", ErrMalformed, a.Index)
		}
		return a.Name + indexSep + strconv.Itoa(a.Index), nil
	case ShapePayload:
		if !c.hasPayloadPrefix(a.Name) {
			return "", fmt.Errorf("%w: unknown payload prefix %q", ErrMalformed, a.Name)
		}
		return a.Name + payloadSep + a.Payload, nil
	case ShapeUnknown:
		return a.Payload, nil
	}
	return "", fmt.Errorf("%w: unknown shape %q", ErrMalformed, a.Shape)
}

func (c *Codec) hasIndexedPrefix(prefix string) bool {
	for _, p := range c.indexed {
		if p == prefix {
			return true
		}
	}
	return false
}

func (c *Codec) hasPayloadPrefix(prefix string) bool {
	for _, p := range c.payload {
		if p == prefix {
			return true
		}
	}
	return false
}

// parseIndex accepts canonical non-negative decimal integers only: no sign,
// no leading zeros, no overflow.
func parseIndex(s string) (int, bool) {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func sortedByLength(names []string) []string {
	out := append([]string(nil), names...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && len(out[j]) > len(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Decode parses name with the default vocabulary.
func Decode(name string) Action {
	return DefaultCodec.Decode(name)
}

// Encode writes a with the default vocabulary.
func Encode(a Action) (string, error) {
	return DefaultCodec.Encode(a)
}

// Static returns the action for a static name.
func Static(name string) Action {
	return Action{Shape: ShapeStatic, Name: name}
}

// Indexed returns the action for prefix and index.
func Indexed(prefix string, index int) Action {
	return Action{Shape: ShapeIndexed, Name: prefix, Index: index}
}

// Payload returns the action for prefix carrying payload.
func Payload(prefix, payload string) Action {
	return Action{Shape: ShapePayload, Name: prefix, Payload: payload}
}

// SelectCandidateName is the name of the button picking the nth candidate (1-based).
func SelectCandidateName(n int) string {
	return SelectCandidate + indexSep + strconv.Itoa(n)
}

// RemovePointName is the name of the button removing the point at index i (0-based).
func RemovePointName(i int) string {
	return RemovePoint + indexSep + strconv.Itoa(i)
}

// SendTextName is the name of a button that sends text as if typed.
func SendTextName(text string) string {
	return SendTextPrefix + payloadSep + text
}

// OpenURLName is the name of a button that opens url.
func OpenURLName(url string) string {
	return OpenURLPrefix + payloadSep + url
}
