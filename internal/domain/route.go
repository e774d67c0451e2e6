package domain

import "sort"

const unknownEpisode = 99

// PlannerOrder returns points sorted by episode, then by timestamp within the
// episode. Points without an episode go last. The input is not modified.
func PlannerOrder(points []Point) []Point {
	out := append([]Point(nil), points...)
	key := func(p Point) int {
		if p.Episode == 0 {
			return unknownEpisode
		}
		return p.Episode
	}
	sort.SliceStable(out, func(i, j int) bool {
		ei, ej := key(out[i]), key(out[j])
		if ei != ej {
			return ei < ej
		}
		return out[i].TimeSeconds < out[j].TimeSeconds
	})
	return out
}
