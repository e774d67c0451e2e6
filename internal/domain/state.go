// Package domain defines the application state the views are built from and
// the request/response shapes of a conversation turn.
package domain

import "encoding/json"

// ExtractionResult is what the backend understood from the user's message.
type ExtractionResult struct {
	Location     string `json:"location,omitempty"`
	UserLanguage string `json:"user_language,omitempty"`
	BangumiQuery string `json:"bangumi_query,omitempty"`
}

// Candidate is one title offered for selection.
type Candidate struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	TitleCN string `json:"title_cn,omitempty"`
	AirDate string `json:"air_date,omitempty"`
	Summary string `json:"summary,omitempty"`
	Image   string `json:"image,omitempty"`
}

// DisplayTitle prefers the localized title.
func (c Candidate) DisplayTitle() string {
	if c.TitleCN != "" {
		return c.TitleCN
	}
	return c.Title
}

// Candidates is the candidate list for a query.
type Candidates struct {
	Query      string      `json:"query"`
	Candidates []Candidate `json:"candidates"`
}

// SelectedBangumi is the title the user picked.
type SelectedBangumi struct {
	BangumiID      int    `json:"bangumi_id,omitempty"`
	BangumiTitle   string `json:"bangumi_title,omitempty"`
	BangumiTitleCN string `json:"bangumi_title_cn,omitempty"`
}

// DisplayTitle prefers the localized title.
func (s SelectedBangumi) DisplayTitle() string {
	if s.BangumiTitleCN != "" {
		return s.BangumiTitleCN
	}
	return s.BangumiTitle
}

// Point is one location on the route.
type Point struct {
	Name          string  `json:"name"`
	CNName        string  `json:"cn_name,omitempty"`
	Address       string  `json:"address,omitempty"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	Episode       int     `json:"episode,omitempty"`
	TimeSeconds   int     `json:"time_seconds,omitempty"`
	ScreenshotURL string  `json:"screenshot_url,omitempty"`
}

// DisplayName prefers the localized name.
func (p Point) DisplayName() string {
	if p.CNName != "" {
		return p.CNName
	}
	return p.Name
}

// PointsSelection is the set of points chosen for the route.
type PointsSelection struct {
	SelectedPoints     []Point `json:"selected_points"`
	SelectionRationale string  `json:"selection_rationale,omitempty"`
	TotalAvailable     int     `json:"total_available"`
	RejectedCount      int     `json:"rejected_count"`
}

// RoutePlan is the planned visiting order.
type RoutePlan struct {
	RecommendedOrder  []string `json:"recommended_order,omitempty"`
	EstimatedDuration string   `json:"estimated_duration,omitempty"`
	EstimatedDistance string   `json:"estimated_distance,omitempty"`
	TransportTips     string   `json:"transport_tips,omitempty"`
	RouteDescription  string   `json:"route_description,omitempty"`
	SpecialNotes      []string `json:"special_notes,omitempty"`
}

// StateError flags a failed turn.
type StateError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// State is the application state of one conversation. Which sections are
// present decides the view.
type State struct {
	Extraction *ExtractionResult `json:"extraction_result,omitempty"`
	Candidates *Candidates       `json:"bangumi_candidates,omitempty"`
	Selected   *SelectedBangumi  `json:"selected_bangumi,omitempty"`
	Points     *PointsSelection  `json:"points_selection_result,omitempty"`
	Route      *RoutePlan        `json:"route_plan,omitempty"`
	Error      *StateError       `json:"error,omitempty"`
}

// IsEmpty reports whether no section is present. A nil state is empty.
func (s *State) IsEmpty() bool {
	return s == nil || (s.Extraction == nil && s.Candidates == nil && s.Selected == nil &&
		s.Points == nil && s.Route == nil && s.Error == nil)
}

// Language returns the language the backend detected, if any.
func (s *State) Language() string {
	if s == nil || s.Extraction == nil {
		return ""
	}
	return s.Extraction.UserLanguage
}

// Clone returns a deep copy. Stores and views never share state with callers.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return &State{}
	}
	out := &State{}
	if err := json.Unmarshal(data, out); err != nil {
		return &State{}
	}
	return out
}

// ClearRouteStage drops everything derived from a selected title.
func (s *State) ClearRouteStage() {
	s.Selected = nil
	s.Points = nil
	s.Route = nil
}
