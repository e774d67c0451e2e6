package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/xiaot623/gogo/a2ui/internal/action"
	"github.com/xiaot623/gogo/a2ui/internal/domain"
	"github.com/xiaot623/gogo/a2ui/internal/session"
)

type mockTitle struct {
	candidate domain.Candidate
	points    []domain.Point
	duration  string
	distance  string
	tips      string
}

var mockCatalog = []mockTitle{
	{
		candidate: domain.Candidate{ID: 1, Title: "SLAM DUNK", TitleCN: "灌篮高手", AirDate: "1993-10-16",
			Summary: "Basketball at Shohoku High."},
		points: []domain.Point{
			{Name: "Kamakurakokomae Station", CNName: "镰仓高校前站", Lat: 35.3067, Lng: 139.5003, Episode: 1, TimeSeconds: 90},
			{Name: "Shichirigahama Beach", CNName: "七里滨", Lat: 35.3031, Lng: 139.5147, Episode: 1, TimeSeconds: 300},
			{Name: "Enoshima", CNName: "江之岛", Lat: 35.2999, Lng: 139.4805, Episode: 8, TimeSeconds: 60},
		},
		duration: "3h",
		distance: "8km",
		tips:     "Use the Enoden line between stops.",
	},
	{
		candidate: domain.Candidate{ID: 2, Title: "Bocchi the Rock!", TitleCN: "孤独摇滚！", AirDate: "2022-10-09",
			Summary: "A shy guitarist joins a band."},
		points: []domain.Point{
			{Name: "Shimokitazawa Station", CNName: "下北泽站", Lat: 35.6616, Lng: 139.6680, Episode: 1, TimeSeconds: 120},
			{Name: "STARRY (Shimokitazawa SHELTER)", Lat: 35.6610, Lng: 139.6677, Episode: 2, TimeSeconds: 400},
		},
		duration: "2h",
		distance: "3km",
	},
	{
		candidate: domain.Candidate{ID: 3, Title: "Rascal Does Not Dream of Bunny Girl Senpai", TitleCN: "青春猪头少年不会梦到兔女郎学姐",
			AirDate: "2018-10-04", Summary: "Strange phenomena in Fujisawa."},
		points: []domain.Point{
			{Name: "Shichirigahama Station", CNName: "七里滨站", Lat: 35.3069, Lng: 139.5132, Episode: 1, TimeSeconds: 200},
			{Name: "Fujisawa Station", CNName: "藤泽站", Lat: 35.3387, Lng: 139.4874, Episode: 2, TimeSeconds: 30},
		},
		duration: "2h30m",
		distance: "10km",
	},
}

// Mock is an in-process backend with a small built-in catalog. Free text
// searches the catalog and selecting a candidate plans a route for it.
type Mock struct {
	mu    sync.Mutex
	calls []Input
	err   error
}

var _ Backend = (*Mock)(nil)

// NewMock creates a mock backend.
func NewMock() *Mock {
	return &Mock{}
}

// FailWith makes every later call return err. Nil restores normal replies.
func (m *Mock) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the inputs received so far.
func (m *Mock) Calls() []Input {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Input(nil), m.calls...)
}

// Send implements Backend.
func (m *Mock) Send(ctx context.Context, sess session.Info, in Input, state *domain.State) (*Output, error) {
	m.mu.Lock()
	m.calls = append(m.calls, in)
	err := m.err
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if in.Action != nil {
		if in.Action.Is(action.SelectCandidate) && state != nil && state.Selected != nil {
			return m.plan(state)
		}
		return &Output{Reply: fmt.Sprintf("[MOCK] ignored action %q", in.Action.String()), State: state.Clone()}, nil
	}
	return m.search(in.Text, state), nil
}

func (m *Mock) search(text string, state *domain.State) *Output {
	query := strings.TrimSpace(text)
	next := &domain.State{
		Extraction: &domain.ExtractionResult{UserLanguage: detectLanguage(query), BangumiQuery: query},
		Candidates: &domain.Candidates{Query: query, Candidates: []domain.Candidate{}},
	}
	if state != nil && state.Extraction != nil && next.Extraction.UserLanguage == "" {
		next.Extraction.UserLanguage = state.Extraction.UserLanguage
	}

	fields := strings.Fields(query)
	for _, word := range fields {
		if matches := searchCatalog(word); len(matches) > 0 {
			next.Candidates.Candidates = matches
			break
		}
	}
	if last := len(fields) - 1; last > 0 && len(searchCatalog(fields[last])) == 0 {
		next.Extraction.Location = fields[last]
	}
	return &Output{
		Reply: fmt.Sprintf("[MOCK] %d candidates for %q", len(next.Candidates.Candidates), truncate(query, 100)),
		State: next,
	}
}

func searchCatalog(word string) []domain.Candidate {
	word = strings.ToLower(word)
	var out []domain.Candidate
	for _, title := range mockCatalog {
		c := title.candidate
		if strings.Contains(strings.ToLower(c.Title), word) || strings.Contains(c.TitleCN, word) {
			out = append(out, c)
		}
	}
	return out
}

func (m *Mock) plan(state *domain.State) (*Output, error) {
	var title *mockTitle
	for i := range mockCatalog {
		if mockCatalog[i].candidate.ID == state.Selected.BangumiID {
			title = &mockCatalog[i]
			break
		}
	}
	if title == nil {
		return nil, fmt.Errorf("%w: unknown title %d", ErrUnavailable, state.Selected.BangumiID)
	}

	next := state.Clone()
	points := append([]domain.Point(nil), title.points...)
	next.Points = &domain.PointsSelection{
		SelectedPoints:     points,
		SelectionRationale: "[MOCK] every known location for this title",
		TotalAvailable:     len(points),
	}
	order := make([]string, 0, len(points))
	for _, p := range domain.PlannerOrder(points) {
		order = append(order, p.Name)
	}
	next.Route = &domain.RoutePlan{
		RecommendedOrder:  order,
		EstimatedDuration: title.duration,
		EstimatedDistance: title.distance,
		TransportTips:     title.tips,
	}
	return &Output{Reply: "[MOCK] route for " + next.Selected.DisplayTitle(), State: next}, nil
}

func detectLanguage(s string) string {
	lang := ""
	for _, r := range s {
		switch {
		case unicode.In(r, unicode.Hiragana, unicode.Katakana):
			return domain.LanguageJa
		case unicode.Is(unicode.Han, r):
			lang = domain.LanguageZhCN
		case lang == "" && unicode.IsLetter(r):
			lang = domain.LanguageEn
		}
	}
	return lang
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
