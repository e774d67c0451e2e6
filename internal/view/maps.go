package view

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/xiaot623/gogo/a2ui/internal/domain"
)

const (
	mapsSearchBase     = "https://www.google.com/maps/search/?api=1&query="
	mapsDirectionsBase = "https://www.google.com/maps/dir/?"
)

func hasCoordinates(p domain.Point) bool {
	return p.Lat != 0 || p.Lng != 0
}

func coordinates(p domain.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}

// pointSearchURL links one point on Google Maps.
func pointSearchURL(p domain.Point) string {
	return mapsSearchBase + coordinates(p)
}

// directionsURL builds a transit route through points. origin defaults to the
// first point. It returns "" when no point has coordinates.
func directionsURL(origin string, points []domain.Point) string {
	var coords []string
	for _, p := range domain.PlannerOrder(points) {
		if hasCoordinates(p) {
			coords = append(coords, coordinates(p))
		}
	}
	if len(coords) == 0 {
		return ""
	}

	origin = strings.TrimSpace(origin)
	if origin == "" {
		origin = coords[0]
	}
	destination := coords[len(coords)-1]

	params := []string{
		"api=1",
		"origin=" + escape(origin, ""),
		"destination=" + escape(destination, ","),
	}
	if len(coords) > 2 {
		params = append(params, "waypoints="+escape(strings.Join(coords[1:len(coords)-1], "|"), ",|"))
	}
	params = append(params, "travelmode=transit")
	return mapsDirectionsBase + strings.Join(params, "&")
}

// escape percent-encodes s, leaving the characters in safe untouched and
// writing spaces as %20.
func escape(s, safe string) string {
	out := strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
	for _, r := range safe {
		enc := url.QueryEscape(string(r))
		out = strings.ReplaceAll(out, enc, string(r))
	}
	return out
}
