package view

import (
	"fmt"
	"strings"

	"github.com/xiaot623/gogo/a2ui/internal/action"
	"github.com/xiaot623/gogo/a2ui/internal/domain"
	"github.com/xiaot623/gogo/a2ui/internal/protocol"
)

var welcomeExamples = []string{"welcome.example.1", "welcome.example.2", "welcome.example.3"}

func (b *Builder) welcome(lang string) (Result, error) {
	var c components
	c.column(rootID, []string{"welcome-header", "welcome-hint", "divider-1", "welcome-examples-row"})
	c.text("welcome-header", b.loc.T(lang, "welcome.header"), protocol.HintH2)
	c.text("welcome-hint", b.loc.T(lang, "welcome.hint"), protocol.HintBody)
	c.divider("divider-1")

	buttonIDs := make([]string, 0, len(welcomeExamples))
	for i, key := range welcomeExamples {
		id := fmt.Sprintf("example-btn-%d", i+1)
		buttonIDs = append(buttonIDs, id)
		example := b.loc.T(lang, key)
		c.button(id, example, action.SendTextName(example), i == 0)
	}
	c.row("welcome-examples-row", buttonIDs, protocol.DistributionStart)

	return b.result(domain.ViewWelcome, lang, b.loc.T(lang, "welcome.assistant"), &c)
}

func (b *Builder) candidates(state *domain.State, lang string) (Result, error) {
	all := state.Candidates.Candidates
	shown := all
	capped := b.cfg.MaxCandidates > 0 && len(all) > b.cfg.MaxCandidates
	if capped {
		shown = all[:b.cfg.MaxCandidates]
	}

	var c components
	c.column(rootID, []string{"cand-header", "cand-count", "divider-1", "cand-list", "divider-2", "cand-controls-row"})
	c.text("cand-header", b.loc.T(lang, "candidates.header", state.Candidates.Query), protocol.HintH3)

	var assistant string
	if capped {
		c.text("cand-count", b.loc.T(lang, "candidates.count.capped", len(shown), len(all)), protocol.HintCaption)
		assistant = b.loc.T(lang, "candidates.assistant.capped", len(shown), len(all))
	} else {
		c.text("cand-count", b.loc.T(lang, "candidates.count", len(shown)), protocol.HintCaption)
		assistant = b.loc.T(lang, "candidates.assistant", len(shown))
	}
	c.divider("divider-1")

	cardIDs := make([]string, 0, len(shown))
	for i, cand := range shown {
		n := i + 1
		cardID := fmt.Sprintf("cand-card-%d", n)
		cardIDs = append(cardIDs, cardID)

		title := cand.Title
		if lang == domain.LanguageZhCN && cand.TitleCN != "" {
			title = cand.TitleCN
		}

		content := cardID + "-content"
		titleID := cardID + "-title"
		subtitleID := cardID + "-subtitle"
		summaryID := cardID + "-summary"
		actionsID := cardID + "-actions"
		selectID := cardID + "-select"

		c.card(cardID, content)
		c.column(content, []string{titleID, subtitleID, summaryID, actionsID})
		c.text(titleID, fmt.Sprintf("%d. %s", n, title), protocol.HintH4)
		c.text(subtitleID, joinNonEmpty(" · ", cand.Title, cand.AirDate), protocol.HintCaption)
		c.text(summaryID, cand.Summary, protocol.HintBody)
		c.row(actionsID, []string{selectID}, protocol.DistributionEnd)
		c.button(selectID, b.loc.T(lang, "candidates.select"), action.SelectCandidateName(n), true)
	}
	c.column("cand-list", cardIDs)
	c.divider("divider-2")
	c.row("cand-controls-row", []string{"cand-reset"}, protocol.DistributionEnd)
	c.button("cand-reset", b.loc.T(lang, "common.reset"), action.Reset, false)

	return b.result(domain.ViewCandidates, lang, assistant, &c)
}

func (b *Builder) route(state *domain.State, lang string) (Result, error) {
	plan := state.Route
	var points []domain.Point
	var sel domain.PointsSelection
	if state.Points != nil {
		sel = *state.Points
		points = sel.SelectedPoints
	}
	origin := ""
	if state.Extraction != nil {
		origin = state.Extraction.Location
	}

	title := ""
	if state.Selected != nil {
		title = state.Selected.BangumiTitle
		if (lang == domain.LanguageZhCN || title == "") && state.Selected.BangumiTitleCN != "" {
			title = state.Selected.BangumiTitleCN
		}
	}

	tips := b.tips(lang, plan)
	rationale := strings.TrimSpace(sel.SelectionRationale)
	directions := directionsURL(origin, points)

	rootChildren := []string{"route-header", "route-subheader", "divider-1", "route-steps"}
	if plan.RouteDescription != "" {
		rootChildren = append(rootChildren, "route-desc-card")
	}
	rootChildren = append(rootChildren, "divider-2")
	if tips != "" {
		rootChildren = append(rootChildren, "route-tips-card")
	}
	rootChildren = append(rootChildren, "points-header", "points-meta")
	if rationale != "" {
		rootChildren = append(rootChildren, "points-rationale-card")
	}
	rootChildren = append(rootChildren, "points-list", "divider-3", "route-controls")

	var c components
	c.column(rootID, rootChildren)
	c.text("route-header", b.loc.T(lang, "route.header", title), protocol.HintH2)
	c.text("route-subheader", joinNonEmpty(" · ", plan.EstimatedDuration, plan.EstimatedDistance), protocol.HintCaption)
	c.divider("divider-1")

	stepIDs := make([]string, 0, len(plan.RecommendedOrder))
	for i, name := range plan.RecommendedOrder {
		id := fmt.Sprintf("route-step-%d", i+1)
		stepIDs = append(stepIDs, id)
		c.text(id, fmt.Sprintf("%d. %s", i+1, name), protocol.HintBody)
	}
	if len(stepIDs) == 0 {
		c.text("route-step-empty", b.loc.T(lang, "route.steps.empty"), protocol.HintBody)
		stepIDs = []string{"route-step-empty"}
	}
	c.column("route-steps", stepIDs)

	if plan.RouteDescription != "" {
		c.textCard("route-desc-card", plan.RouteDescription)
	}
	c.divider("divider-2")
	if tips != "" {
		c.textCard("route-tips-card", tips)
	}

	c.text("points-header", b.loc.T(lang, "route.points.header"), protocol.HintH3)
	c.text("points-meta", b.loc.T(lang, "route.points.meta", len(points), sel.TotalAvailable, sel.RejectedCount), protocol.HintCaption)
	if rationale != "" {
		c.textCard("points-rationale-card", rationale)
	}

	cardIDs := make([]string, 0, len(points))
	for i, p := range points {
		cardIDs = append(cardIDs, b.pointCard(&c, lang, i, p))
	}
	if len(cardIDs) == 0 {
		c.text("points-empty", b.loc.T(lang, "route.points.empty"), protocol.HintBody)
		cardIDs = []string{"points-empty"}
	}
	c.column("points-list", cardIDs)
	c.divider("divider-3")

	var controls []string
	if directions != "" {
		controls = append(controls, "route-open-maps")
		c.button("route-open-maps", b.loc.T(lang, "route.open_maps"), action.OpenURLName(directions), true)
	}
	controls = append(controls, "route-back", "route-reset")
	c.button("route-back", b.loc.T(lang, "route.back"), action.Back, false)
	c.button("route-reset", b.loc.T(lang, "common.reset"), action.Reset, false)
	c.row("route-controls", controls, protocol.DistributionEnd)

	return b.result(domain.ViewRoute, lang, b.loc.T(lang, "route.assistant", len(points)), &c)
}

// pointCard adds the card for the point at index i and returns its ID.
// Card IDs are 1-based for display; the remove action carries the 0-based index.
func (b *Builder) pointCard(c *components, lang string, i int, p domain.Point) string {
	cardID := fmt.Sprintf("pt-card-%d", i+1)
	content := cardID + "-content"
	imageID := cardID + "-image"
	titleID := cardID + "-title"
	subtitleID := cardID + "-subtitle"
	actionsID := cardID + "-actions"
	mapID := cardID + "-map"
	removeID := cardID + "-remove"

	name := p.Name
	if lang == domain.LanguageZhCN && p.CNName != "" {
		name = p.CNName
	}

	var subtitle []string
	if p.Name != "" && p.Name != name {
		subtitle = append(subtitle, p.Name)
	}
	if p.Episode > 0 {
		subtitle = append(subtitle, b.loc.T(lang, "route.episode", p.Episode))
	}
	if p.Address != "" {
		subtitle = append(subtitle, p.Address)
	}

	var children []string
	if p.ScreenshotURL != "" {
		c.image(imageID, p.ScreenshotURL)
		children = append(children, imageID)
	}
	children = append(children, titleID, subtitleID, actionsID)

	c.card(cardID, content)
	c.column(content, children)
	c.text(titleID, fmt.Sprintf("%d. %s", i+1, name), protocol.HintH4)
	c.text(subtitleID, strings.Join(subtitle, " · "), protocol.HintCaption)

	var buttons []string
	if hasCoordinates(p) {
		buttons = append(buttons, mapID)
		c.button(mapID, b.loc.T(lang, "route.map"), action.OpenURLName(pointSearchURL(p)), false)
	}
	buttons = append(buttons, removeID)
	c.button(removeID, b.loc.T(lang, "route.remove"), action.RemovePointName(i), false)
	c.row(actionsID, buttons, protocol.DistributionEnd)

	return cardID
}

func (b *Builder) tips(lang string, plan *domain.RoutePlan) string {
	var parts []string
	if plan.TransportTips != "" {
		parts = append(parts, b.loc.T(lang, "route.tips.transport"), plan.TransportTips)
	}
	if len(plan.SpecialNotes) > 0 {
		parts = append(parts, b.loc.T(lang, "route.tips.notes"))
		parts = append(parts, plan.SpecialNotes...)
	}
	return strings.Join(parts, "\n")
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
