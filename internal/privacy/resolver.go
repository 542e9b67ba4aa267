package privacy

import "sort"

// Resolve selects a non-overlapping subset of candidates by greedy earliest-start
// interval scheduling. Candidates are stable-sorted by start offset, so ties fall back
// to discovery order and the earlier-registered category wins. A candidate that
// overlaps an accepted one is dropped whole, never truncated.
//
// Earliest start beats specificity: a generic digit run that begins one character
// earlier suppresses a structured match that begins later. Callers depend on which
// category wins, so this is kept as is.
func Resolve(candidates []Candidate) []Candidate {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].seq < sorted[j].seq
	})

	accepted := make([]Candidate, 0, len(sorted))
	lastEnd := -1
	for _, candidate := range sorted {
		if candidate.Start >= lastEnd {
			accepted = append(accepted, candidate)
			lastEnd = candidate.End
		}
	}

	return accepted
}
