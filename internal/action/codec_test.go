package action

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Action
	}{
		{"static reset", "reset", Action{Shape: ShapeStatic, Name: Reset}},
		{"static back", "back", Action{Shape: ShapeStatic, Name: Back}},
		{"select first", "select_candidate_1", Action{Shape: ShapeIndexed, Name: SelectCandidate, Index: 1}},
		{"remove zero", "remove_point_0", Action{Shape: ShapeIndexed, Name: RemovePoint, Index: 0}},
		{"multi digit", "remove_point_128", Action{Shape: ShapeIndexed, Name: RemovePoint, Index: 128}},
		{"send text", "send_text:Slam Dunk Kamakura", Action{Shape: ShapePayload, Name: SendTextPrefix, Payload: "Slam Dunk Kamakura"}},
		{"url keeps colons", "open_url:https://maps.example/?q=1:2", Action{Shape: ShapePayload, Name: OpenURLPrefix, Payload: "https://maps.example/?q=1:2"}},
		{"empty payload", "send_text:", Action{Shape: ShapePayload, Name: SendTextPrefix, Payload: ""}},
		{"leading zero", "remove_point_01", Action{Shape: ShapeUnknown, Payload: "remove_point_01"}},
		{"negative", "remove_point_-1", Action{Shape: ShapeUnknown, Payload: "remove_point_-1"}},
		{"missing index", "select_candidate_", Action{Shape: ShapeUnknown, Payload: "select_candidate_"}},
		{"overflow", "select_candidate_99999999999999999999999", Action{Shape: ShapeUnknown, Payload: "select_candidate_99999999999999999999999"}},
		{"unknown prefix", "play_video:abc", Action{Shape: ShapeUnknown, Payload: "play_video:abc"}},
		{"static with suffix", "reset_1", Action{Shape: ShapeUnknown, Payload: "reset_1"}},
		{"empty", "", Action{Shape: ShapeUnknown, Payload: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode(tt.in))
		})
	}
}

func TestEncode(t *testing.T) {
	name, err := Encode(Indexed(RemovePoint, 0))
	require.NoError(t, err)
	assert.Equal(t, "remove_point_0", name)

	name, err = Encode(Payload(SendTextPrefix, "a:b:c"))
	require.NoError(t, err)
	assert.Equal(t, "send_text:a:b:c", name)

	name, err = Encode(Action{Shape: ShapeUnknown, Payload: "whatever_7"})
	require.NoError(t, err)
	assert.Equal(t, "whatever_7", name)

	_, err = Encode(Indexed(RemovePoint, -1))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Encode(Static("explode"))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Encode(Payload("nope", "x"))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestNamedHelpers(t *testing.T) {
	assert.Equal(t, "select_candidate_3", SelectCandidateName(3))
	assert.Equal(t, "remove_point_0", RemovePointName(0))
	assert.Equal(t, "send_text:hi", SendTextName("hi"))
	assert.Equal(t, "open_url:https://x", OpenURLName("https://x"))
	assert.Equal(t, "select_candidate_3", Indexed(SelectCandidate, 3).String())
}

func TestOlderCodecForwardsNewNames(t *testing.T) {
	old := NewCodec([]string{Reset}, []string{SelectCandidate}, []string{SendTextPrefix})

	got := old.Decode("remove_point_2")
	assert.Equal(t, ShapeUnknown, got.Shape)
	assert.Equal(t, "remove_point_2", got.Payload)

	name, err := old.Encode(got)
	require.NoError(t, err)
	assert.Equal(t, "remove_point_2", name)
	assert.Equal(t, Indexed(RemovePoint, 2), Decode(name))
}

func TestOverlappingPrefixes(t *testing.T) {
	c := NewCodec(nil, []string{"pick", "pick_item"}, nil)
	assert.Equal(t, Indexed("pick_item", 4), c.Decode("pick_item_4"))
	assert.Equal(t, Indexed("pick", 4), c.Decode("pick_4"))
}

func TestRoundTripProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("indexed actions survive encode/decode", prop.ForAll(
		func(idx int, pickSelect bool) bool {
			prefix := RemovePoint
			if pickSelect {
				prefix = SelectCandidate
			}
			in := Indexed(prefix, idx)
			name, err := Encode(in)
			return err == nil && Decode(name) == in
		},
		gen.IntRange(0, 1<<30),
		gen.Bool(),
	))

	properties.Property("payload actions survive encode/decode with delimiters", prop.ForAll(
		func(head, tail string, openURL bool) bool {
			prefix := SendTextPrefix
			if openURL {
				prefix = OpenURLPrefix
			}
			in := Payload(prefix, head+":"+tail+"_1")
			name, err := Encode(in)
			return err == nil && Decode(name) == in
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.Bool(),
	))

	properties.Property("decode never panics and unknown names encode back verbatim", prop.ForAll(
		func(raw string) bool {
			got := Decode(raw)
			name, err := Encode(got)
			return err == nil && name == raw
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
