package surface

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/a2ui/internal/protocol"
)

func newTestEngine() *Engine {
	return NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func text(t *testing.T, id, value string) protocol.Component {
	t.Helper()
	c, err := protocol.NewText(id, value, protocol.HintBody)
	require.NoError(t, err)
	return c
}

func column(t *testing.T, id string, children ...string) protocol.Component {
	t.Helper()
	c, err := protocol.NewColumn(id, children, "", "")
	require.NoError(t, err)
	return c
}

func update(components ...protocol.Component) protocol.Message {
	return protocol.NewSurfaceUpdate("main", components)
}

func TestMergeAndOverwrite(t *testing.T) {
	e := newTestEngine()

	e.Apply(update(column(t, "A", "B", "C", "D"), text(t, "B", "first")))
	e.Apply(update(text(t, "B", "second"), text(t, "C", "c")))
	e.Apply(protocol.NewBeginRendering("main", "A"))

	tree := e.Render("main")
	require.NotNil(t, tree)
	require.Len(t, tree.Children, 3)

	assert.Equal(t, "second", tree.Children[0].Text)
	assert.Equal(t, "c", tree.Children[1].Text)

	missing := tree.Children[2]
	assert.Equal(t, StatusMissing, missing.Status)
	assert.Equal(t, "D", missing.ID)
	assert.Contains(t, missing.Detail, "D")

	assert.True(t, tree.OK())
	assert.True(t, tree.Children[0].OK())
	assert.Equal(t, 3, e.Len("main"))
}

func TestUpdateNeverRemoves(t *testing.T) {
	e := newTestEngine()
	e.Apply(update(text(t, "x", "1"), text(t, "y", "2")))
	e.Apply(update(text(t, "z", "3")))

	for _, id := range []string{"x", "y", "z"} {
		_, ok := e.Component("main", id)
		assert.True(t, ok, id)
	}
}

func TestRenderIdempotent(t *testing.T) {
	e := newTestEngine()
	e.ApplyBatch([]protocol.Message{
		update(column(t, "root", "a", "ghost"), text(t, "a", "hello")),
		protocol.NewBeginRendering("main", "root"),
	})

	first := e.Render("main")
	second := e.Render("main")
	assert.Equal(t, first, second)

	first.Children[0].Text = "mutated"
	assert.Equal(t, "hello", e.Render("main").Children[0].Text)
}

func TestButtonMissingLabelIsPlaceholder(t *testing.T) {
	e := newTestEngine()
	btn, err := protocol.NewButton("btn", "btn-text", "reset", true)
	require.NoError(t, err)

	e.ApplyBatch([]protocol.Message{
		update(column(t, "root", "title", "btn"), text(t, "title", "Title"), btn),
		protocol.NewBeginRendering("main", "root"),
	})

	tree := e.Render("main")
	require.NotNil(t, tree)
	assert.Equal(t, "Title", tree.Children[0].Text)

	button := tree.Children[1]
	assert.Equal(t, StatusOK, button.Status)
	assert.Equal(t, "reset", button.Action)
	require.Len(t, button.Children, 1)
	assert.Equal(t, StatusMissing, button.Children[0].Status)
	assert.Equal(t, "btn-text", button.Children[0].ID)
}

func TestUnknownKindRendersErrorNode(t *testing.T) {
	e := newTestEngine()
	raw := `{"surfaceUpdate":{"surfaceId":"main","components":[
		{"id":"root","component":{"Column":{"children":{"explicitList":["s","t"]}}}},
		{"id":"s","component":{"Slider":{"min":1}}},
		{"id":"t","component":{"Text":{"text":{"literalString":"ok"}}}}
	]}}`
	e.ApplyJSON([]byte(raw))
	e.Apply(protocol.NewBeginRendering("main", "root"))

	tree := e.Render("main")
	require.NotNil(t, tree)
	require.Len(t, tree.Children, 2)
	assert.Equal(t, StatusUnsupported, tree.Children[0].Status)
	assert.Contains(t, tree.Children[0].Detail, "Slider")
	assert.Equal(t, "ok", tree.Children[1].Text)
}

func TestMalformedComponentStaysLocal(t *testing.T) {
	e := newTestEngine()
	raw := `{"surfaceUpdate":{"surfaceId":"main","components":[
		{"id":"root","component":{"Column":{"children":{"explicitList":["ok","bad"]}}}},
		{"id":"ok","component":{"Text":{"text":{"literalString":"fine"}}}},
		{"id":"bad","component":{"Text":{"text":5}}}
	]}}`
	e.ApplyJSON([]byte(raw))
	e.Apply(protocol.NewBeginRendering("main", "root"))

	assert.Equal(t, 3, e.Len("main"))
	assert.Equal(t, 1, e.Rejected())

	tree := e.Render("main")
	require.NotNil(t, tree)
	require.Len(t, tree.Children, 2)
	assert.Equal(t, "fine", tree.Children[0].Text)
	assert.Equal(t, StatusMalformed, tree.Children[1].Status)
	assert.Equal(t, "bad", tree.Children[1].ID)
	assert.Equal(t, protocol.KindText, tree.Children[1].Kind)
}

func TestSharedChildrenAreBounded(t *testing.T) {
	e := NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)), WithMaxNodes(100))

	// Each row lists the next one twice, so the full expansion would be 2^40 nodes.
	const levels = 40
	var components []protocol.Component
	for i := 0; i < levels; i++ {
		next := fmt.Sprintf("r%d", i+1)
		row, err := protocol.NewRow(fmt.Sprintf("r%d", i), []string{next, next}, "", "")
		require.NoError(t, err)
		components = append(components, row)
	}
	components = append(components, text(t, fmt.Sprintf("r%d", levels), "leaf"))
	e.ApplyBatch([]protocol.Message{update(components...), protocol.NewBeginRendering("main", "r0")})

	tree := e.Render("main")
	require.NotNil(t, tree)

	var total, truncated int
	tree.Walk(func(n *Node) bool {
		total++
		if n.Status == StatusTruncated {
			truncated++
		}
		return true
	})
	assert.LessOrEqual(t, total, 200)
	assert.Greater(t, truncated, 0)
}

func TestCycleIsContained(t *testing.T) {
	e := newTestEngine()
	card, err := protocol.NewCard("card", "col")
	require.NoError(t, err)
	e.ApplyBatch([]protocol.Message{
		update(column(t, "col", "card"), card),
		protocol.NewBeginRendering("main", "col"),
	})

	tree := e.Render("main")
	require.NotNil(t, tree)
	inner := tree.Children[0].Children[0]
	assert.Equal(t, StatusCycle, inner.Status)
	assert.Equal(t, "col", inner.ID)
}

func TestDepthLimit(t *testing.T) {
	e := NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)), WithMaxDepth(2))
	e.ApplyBatch([]protocol.Message{
		update(column(t, "a", "b"), column(t, "b", "c"), column(t, "c", "d"), text(t, "d", "deep")),
		protocol.NewBeginRendering("main", "a"),
	})

	tree := e.Render("main")
	require.NotNil(t, tree)
	assert.Equal(t, StatusTooDeep, tree.Children[0].Children[0].Status)
}

func TestDeleteSurfaceTwice(t *testing.T) {
	e := newTestEngine()
	e.ApplyBatch([]protocol.Message{
		update(text(t, "a", "x")),
		protocol.NewBeginRendering("main", "a"),
	})
	require.NotNil(t, e.Render("main"))

	e.Apply(protocol.NewDeleteSurface("main"))
	assert.Nil(t, e.Render("main"))

	e.Apply(protocol.NewDeleteSurface("main"))
	assert.Nil(t, e.Render("main"))
	assert.Empty(t, e.Surfaces())
	assert.Equal(t, 0, e.Rejected())
}

func TestRenderUnknownSurface(t *testing.T) {
	e := newTestEngine()
	assert.Nil(t, e.Render("nope"))

	e.Apply(update(text(t, "a", "x")))
	assert.Nil(t, e.Render("main"), "no root yet")
}

func TestBadBatchKeepsPreviousRoot(t *testing.T) {
	e := newTestEngine()
	e.ApplyBatch([]protocol.Message{
		update(text(t, "old", "still here")),
		protocol.NewBeginRendering("main", "old"),
	})

	e.ApplyJSON([]byte(`{"surfaceUpdate":{"surfaceId":"main","components":[{"id":"x","component":{}}]}}`))
	e.Apply(protocol.NewBeginRendering("main", "never-sent"))
	e.Apply(protocol.Message{})

	tree := e.Render("main")
	require.NotNil(t, tree)
	assert.Equal(t, "old", tree.ID)
	assert.Equal(t, "still here", tree.Text)
	assert.Equal(t, "old", e.Root("main"))
	assert.Equal(t, 3, e.Rejected())
}

func TestUpdateAfterBeginWaitsForNextBegin(t *testing.T) {
	e := newTestEngine()
	e.ApplyBatch([]protocol.Message{
		update(text(t, "a", "v1")),
		protocol.NewBeginRendering("main", "a"),
		update(text(t, "a", "v2")),
	})
	assert.Equal(t, "v1", e.Render("main").Text)

	e.Apply(protocol.NewBeginRendering("main", "a"))
	assert.Equal(t, "v2", e.Render("main").Text)
}

func TestSurfacesAreIsolated(t *testing.T) {
	e := newTestEngine()
	e.Apply(protocol.NewSurfaceUpdate("left", []protocol.Component{text(t, "a", "left")}))
	e.Apply(protocol.NewSurfaceUpdate("right", []protocol.Component{text(t, "a", "right")}))
	e.Apply(protocol.NewBeginRendering("left", "a"))
	e.Apply(protocol.NewBeginRendering("right", "a"))

	assert.Equal(t, "left", e.Render("left").Text)
	assert.Equal(t, "right", e.Render("right").Text)
	assert.Equal(t, []string{"left", "right"}, e.Surfaces())
}

func TestApplySequenced(t *testing.T) {
	e := newTestEngine()
	batch := func(value string) []protocol.Message {
		return []protocol.Message{update(text(t, "a", value)), protocol.NewBeginRendering("main", "a")}
	}

	assert.True(t, e.ApplySequenced("main", 1, batch("one")))
	assert.True(t, e.ApplySequenced("main", 3, batch("three")))
	assert.False(t, e.ApplySequenced("main", 2, batch("two")))
	assert.False(t, e.ApplySequenced("main", 3, batch("dup")))

	assert.Equal(t, "three", e.Render("main").Text)
}

func TestActionsAndFind(t *testing.T) {
	e := newTestEngine()
	b1, err := protocol.NewButton("b1", "b1-text", "select_candidate_1", true)
	require.NoError(t, err)
	b2, err := protocol.NewButton("b2", "b2-text", "reset", false)
	require.NoError(t, err)

	e.ApplyBatch([]protocol.Message{
		update(column(t, "root", "b1", "b2"), b1, b2, text(t, "b1-text", "Pick"), text(t, "b2-text", "Reset")),
		protocol.NewBeginRendering("main", "root"),
	})

	tree := e.Render("main")
	assert.Equal(t, []string{"select_candidate_1", "reset"}, tree.Actions())
	assert.Equal(t, "Pick", tree.Find("b1-text").Text)
	assert.Nil(t, tree.Find("missing"))

	data, err := json.Marshal(tree)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"action":"reset"`)
}
