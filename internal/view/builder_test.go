package view

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/a2ui/internal/action"
	"github.com/xiaot623/gogo/a2ui/internal/domain"
	"github.com/xiaot623/gogo/a2ui/internal/protocol"
	"github.com/xiaot623/gogo/a2ui/internal/surface"
)

func newTestBuilder(t *testing.T, maxCandidates int) *Builder {
	t.Helper()
	b, err := NewBuilder(Config{MaxCandidates: maxCandidates})
	require.NoError(t, err)
	return b
}

func render(t *testing.T, res Result) *surface.Node {
	t.Helper()
	e := surface.NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.ApplyBatch(res.Messages)
	tree := e.Render(protocol.DefaultSurfaceID)
	require.NotNil(t, tree)
	require.Zero(t, e.Rejected())
	return tree
}

// assertResolved fails if any node in the tree is a placeholder or error node.
func assertResolved(t *testing.T, tree *surface.Node) {
	t.Helper()
	tree.Walk(func(n *surface.Node) bool {
		assert.True(t, n.OK(), "node %s: %s", n.ID, n.Detail)
		return true
	})
}

func threeCandidates() *domain.State {
	return &domain.State{
		Extraction: &domain.ExtractionResult{UserLanguage: "zh-CN", BangumiQuery: "镰仓"},
		Candidates: &domain.Candidates{Query: "镰仓", Candidates: []domain.Candidate{
			{ID: 1, Title: "スラムダンク", TitleCN: "灌篮高手", AirDate: "1993-10-16"},
			{ID: 2, Title: "青春ブタ野郎はバニーガール先輩の夢を見ない", TitleCN: "青春猪头少年不会梦到兔女郎学姐", AirDate: "2018-10-04"},
			{ID: 3, Title: "TARI TARI", AirDate: "2012-07-01"},
		}},
	}
}

func routeState() *domain.State {
	return &domain.State{
		Extraction: &domain.ExtractionResult{UserLanguage: "en", Location: "Kamakura Station"},
		Selected:   &domain.SelectedBangumi{BangumiID: 1, BangumiTitle: "Slam Dunk", BangumiTitleCN: "灌篮高手"},
		Points: &domain.PointsSelection{
			SelectedPoints: []domain.Point{
				{Name: "Kamakurakokomae Station", Lat: 35.3067, Lng: 139.5003, Episode: 1, TimeSeconds: 90},
				{Name: "Shichirigahama", Lat: 35.3031, Lng: 139.5147, Episode: 1, TimeSeconds: 30, ScreenshotURL: "https://img.example/1.jpg"},
				{Name: "Enoshima", Lat: 35.2999, Lng: 139.4805},
			},
			SelectionRationale: "Closest points first.",
			TotalAvailable:     10,
			RejectedCount:      7,
		},
		Route: &domain.RoutePlan{
			RecommendedOrder:  []string{"Shichirigahama", "Kamakurakokomae Station", "Enoshima"},
			EstimatedDuration: "3h",
			EstimatedDistance: "12km",
			TransportTips:     "Take the Enoden line.",
			SpecialNotes:      []string{"Crowded on weekends."},
		},
	}
}

func TestWelcomeViewEnglish(t *testing.T) {
	b := newTestBuilder(t, 0)
	res := b.Build(nil, "en")

	assert.Equal(t, domain.ViewWelcome, res.View)
	assert.Equal(t, "en", res.Language)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, protocol.MessageSurfaceUpdate, res.Messages[0].Type())
	assert.Equal(t, protocol.MessageBeginRendering, res.Messages[1].Type())

	tree := render(t, res)
	assertResolved(t, tree)

	headers := 0
	tree.Walk(func(n *surface.Node) bool {
		if n.Kind == protocol.KindText && n.Hint == protocol.HintH2 {
			headers++
		}
		return true
	})
	assert.Equal(t, 1, headers)
	assert.Equal(t, "Seichijunrei Pilgrimage Assistant", tree.Find("welcome-header").Text)

	actions := tree.Actions()
	require.Len(t, actions, 3)
	want := []string{"Slam Dunk Kamakura", "Bocchi the Rock Shimokitazawa", "Bunny Girl Senpai Kamakura"}
	for i, name := range actions {
		got := action.Decode(name)
		assert.Equal(t, action.ShapePayload, got.Shape)
		assert.Equal(t, action.SendTextPrefix, got.Name)
		assert.Equal(t, want[i], got.Payload)
		assert.Equal(t, want[i], tree.Find(fmt.Sprintf("example-btn-%d-text", i+1)).Text)
	}
	assert.True(t, tree.Find("example-btn-1").Primary)
	assert.False(t, tree.Find("example-btn-2").Primary)
}

func TestCandidatesViewChinese(t *testing.T) {
	b := newTestBuilder(t, 0)
	res := b.Build(threeCandidates(), "zh-CN")
	assert.Equal(t, domain.ViewCandidates, res.View)

	tree := render(t, res)
	assertResolved(t, tree)

	cards := 0
	tree.Walk(func(n *surface.Node) bool {
		if n.Kind == protocol.KindCard {
			cards++
		}
		return true
	})
	assert.Equal(t, 3, cards)

	for i := 1; i <= 3; i++ {
		card := tree.Find(fmt.Sprintf("cand-card-%d", i))
		require.NotNil(t, card)
		actions := card.Actions()
		require.Len(t, actions, 1)
		assert.Equal(t, fmt.Sprintf("select_candidate_%d", i), actions[0])
		assert.Equal(t, action.Indexed(action.SelectCandidate, i), action.Decode(actions[0]))
	}

	assert.Equal(t, "1. 灌篮高手", tree.Find("cand-card-1-title").Text)
	assert.Equal(t, "3. TARI TARI", tree.Find("cand-card-3-title").Text)
	assert.Equal(t, "スラムダンク · 1993-10-16", tree.Find("cand-card-1-subtitle").Text)
	assert.Contains(t, tree.Find("cand-count").Text, "3")
	assert.Contains(t, res.AssistantText, "3")
	assert.Equal(t, "reset", tree.Find("cand-reset").Action)
}

func TestCandidatesCountAgreesWithButtons(t *testing.T) {
	state := &domain.State{Candidates: &domain.Candidates{Query: "q"}}
	for i := 1; i <= 7; i++ {
		state.Candidates.Candidates = append(state.Candidates.Candidates, domain.Candidate{ID: i, Title: fmt.Sprintf("T%d", i)})
	}

	for _, limit := range []int{0, 3, 7, 10} {
		t.Run(fmt.Sprintf("limit %d", limit), func(t *testing.T) {
			b := newTestBuilder(t, limit)
			res := b.Build(state, "en")
			tree := render(t, res)

			selects := 0
			for _, name := range tree.Actions() {
				if action.Decode(name).Is(action.SelectCandidate) {
					selects++
				}
			}

			want := 7
			if limit > 0 && limit < 7 {
				want = limit
				assert.Equal(t, fmt.Sprintf("Showing the top %d of 7 titles", limit), tree.Find("cand-count").Text)
			} else {
				assert.Equal(t, "Found 7 titles", tree.Find("cand-count").Text)
			}
			assert.Equal(t, want, selects)
			assert.True(t, strings.HasPrefix(res.AssistantText, strings.Split(tree.Find("cand-count").Text, " titles")[0]))
		})
	}
}

func TestRouteView(t *testing.T) {
	b := newTestBuilder(t, 0)
	res := b.Build(routeState(), "")
	assert.Equal(t, domain.ViewRoute, res.View)
	assert.Equal(t, "en", res.Language)

	tree := render(t, res)
	assertResolved(t, tree)

	assert.Equal(t, "Slam Dunk Pilgrimage Route", tree.Find("route-header").Text)
	assert.Equal(t, "3h · 12km", tree.Find("route-subheader").Text)
	assert.Equal(t, "Selected 3 / Available 10 · Rejected 7", tree.Find("points-meta").Text)
	assert.Equal(t, "1. Shichirigahama", tree.Find("route-step-1").Text)
	assert.Equal(t, "Transport tips:\nTake the Enoden line.\nNotes:\nCrowded on weekends.", tree.Find("route-tips-card-text").Text)
	assert.NotNil(t, tree.Find("pt-card-2-image"))
	assert.Nil(t, tree.Find("pt-card-1-image"))
	assert.Equal(t, "Ep 1", tree.Find("pt-card-1-subtitle").Text)

	var removes []action.Action
	for _, name := range tree.Actions() {
		if a := action.Decode(name); a.Is(action.RemovePoint) {
			removes = append(removes, a)
		}
	}
	require.Len(t, removes, 3)
	for i, a := range removes {
		assert.Equal(t, i, a.Index)
	}

	root := tree
	var order []string
	for _, child := range root.Children {
		order = append(order, child.ID)
	}
	assert.Equal(t, []string{
		"route-header", "route-subheader", "divider-1", "route-steps", "divider-2", "route-tips-card",
		"points-header", "points-meta", "points-rationale-card", "points-list", "divider-3", "route-controls",
	}, order)

	controls := tree.Find("route-controls").Actions()
	require.Len(t, controls, 3)
	open := action.Decode(controls[0])
	assert.Equal(t, action.OpenURLPrefix, open.Name)
	assert.Equal(t,
		"https://www.google.com/maps/dir/?api=1&origin=Kamakura%20Station&destination=35.2999,139.4805&waypoints=35.3067,139.5003&travelmode=transit",
		open.Payload)
	assert.Equal(t, []string{"back", "reset"}, controls[1:])
}

func TestRouteViewWithoutPoints(t *testing.T) {
	b := newTestBuilder(t, 0)
	res := b.Build(&domain.State{Route: &domain.RoutePlan{}}, "ja")
	tree := render(t, res)
	assertResolved(t, tree)

	assert.Equal(t, "（スポットなし）", tree.Find("points-empty").Text)
	assert.Equal(t, []string{"back", "reset"}, tree.Actions())
}

func TestErrorViews(t *testing.T) {
	b := newTestBuilder(t, 0)

	res := b.Build(&domain.State{Error: &domain.StateError{Message: "backend exploded"}}, "en")
	assert.Equal(t, domain.ViewError, res.View)
	tree := render(t, res)
	assert.Equal(t, "backend exploded", tree.Find("error-message").Text)
	assert.Equal(t, "Error: backend exploded", res.AssistantText)
	assert.Equal(t, []string{"reset"}, tree.Actions())

	res = b.Build(&domain.State{Selected: &domain.SelectedBangumi{BangumiTitle: "x"}}, "en")
	assert.Equal(t, domain.ViewError, res.View)
	assert.Equal(t, "Nothing to show for this request. Try another title.", render(t, res).Find("error-message").Text)
}

func TestErrorSectionDoesNotHideProgress(t *testing.T) {
	b := newTestBuilder(t, 0)
	stale := &domain.StateError{Message: "stale"}

	state := &domain.State{Candidates: threeCandidates().Candidates, Error: stale}
	res := b.Build(state, "en")
	assert.Equal(t, domain.ViewCandidates, res.View)
	assert.Contains(t, render(t, res).Actions(), "select_candidate_1")

	state = routeState()
	state.Error = stale
	assert.Equal(t, domain.ViewRoute, b.Select(state))
}

func TestSelectIsExclusive(t *testing.T) {
	b := newTestBuilder(t, 0)
	cands := threeCandidates().Candidates
	route := &domain.RoutePlan{}
	errSection := &domain.StateError{Message: "x"}

	for mask := 0; mask < 8; mask++ {
		state := &domain.State{}
		if mask&1 != 0 {
			state.Candidates = cands
		}
		if mask&2 != 0 {
			state.Route = route
		}
		if mask&4 != 0 {
			state.Error = errSection
		}

		view := b.Select(state)
		res := b.Build(state, "en")
		assert.Equal(t, view, res.View)

		switch {
		case mask == 0:
			assert.Equal(t, domain.ViewWelcome, view)
		case mask&2 != 0:
			assert.Equal(t, domain.ViewRoute, view)
		case mask&1 != 0:
			assert.Equal(t, domain.ViewCandidates, view)
		default:
			assert.Equal(t, domain.ViewError, view)
		}
	}
}

func TestBuildIsStable(t *testing.T) {
	b := newTestBuilder(t, 0)
	first := b.Build(routeState(), "en")
	second := b.Build(routeState(), "en")
	assert.Equal(t, first, second)

	ids := make(map[string]bool)
	for _, c := range first.Messages[0].SurfaceUpdate.Components {
		assert.False(t, ids[c.ID], "duplicate id %s", c.ID)
		ids[c.ID] = true
	}
}

func TestLanguageFallback(t *testing.T) {
	b := newTestBuilder(t, 0)

	assert.Equal(t, "zh-CN", b.Build(nil, "fr").Language)
	assert.Equal(t, "zh-CN", b.Build(nil, "not a tag!").Language)
	assert.Equal(t, "en", b.Build(nil, "en-US").Language)
	assert.Equal(t, "ja", b.Build(nil, "ja-JP").Language)
	assert.Equal(t, "ja", b.Build(&domain.State{Extraction: &domain.ExtractionResult{UserLanguage: "ja"}}, "").Language)

	custom, err := NewBuilder(Config{DefaultLanguage: "en"})
	require.NoError(t, err)
	assert.Equal(t, "en", custom.Build(nil, "fr").Language)

	_, err = NewBuilder(Config{DefaultLanguage: "de"})
	assert.Error(t, err)
}

func TestDirectionsURLWithoutCoordinates(t *testing.T) {
	assert.Equal(t, "", directionsURL("x", []domain.Point{{Name: "nowhere"}}))
	assert.Equal(t,
		"https://www.google.com/maps/dir/?api=1&origin=35.1%2C139.2&destination=35.1,139.2&travelmode=transit",
		directionsURL(" ", []domain.Point{{Lat: 35.1, Lng: 139.2}}))
}
