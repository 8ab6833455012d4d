package extraction

import (
	"strings"

	"golang.org/x/exp/slices"

	"docqa/models"
)

// Merge combines the per-chunk results into a single extraction. Single
// values keep the most frequent answer across chunks, with the first seen
// winning ties; lists are deduplicated and sorted so the merge is stable
// regardless of chunk order.
func Merge(results []*Result) *Result {
	if len(results) == 0 {
		return nil
	}

	merged := &Result{}

	lotVotes := newVoteCounter()
	subLotVotes := newVoteCounter()
	locationVotes := newVoteCounter()

	materials := map[string]bool{}
	equipment := map[string]bool{}
	methods := map[string]bool{}
	criteria := map[string]bool{}
	var quantities []models.Quantity

	for _, r := range results {
		if r == nil {
			continue
		}

		lotVotes.add(r.Lot)
		subLotVotes.add(r.SubLot)
		locationVotes.add(r.Location)

		for _, m := range r.Materials {
			materials[m] = true
		}
		for _, e := range r.Equipment {
			equipment[e] = true
		}
		for _, m := range r.ExecutionMethods {
			methods[m] = true
		}
		for _, c := range r.PerformanceCriteria {
			criteria[c] = true
		}
		quantities = append(quantities, r.Quantities...)
	}

	merged.Lot = lotVotes.winner()
	merged.SubLot = subLotVotes.winner()
	merged.Location = locationVotes.winner()
	merged.Materials = sortedKeys(materials)
	merged.Equipment = sortedKeys(equipment)
	merged.ExecutionMethods = sortedKeys(methods)
	merged.PerformanceCriteria = sortedKeys(criteria)
	merged.Quantities = dedupeQuantities(quantities)

	return merged
}

// ConfidenceScore grades an extraction by how many of the weighted fields it
// managed to fill, normalized to 0..1.
func ConfidenceScore(r *Result) float64 {
	if r == nil {
		return 0
	}

	var score, max float64

	weigh := func(present bool, weight float64) {
		if present {
			score += weight
		}
		max += weight
	}

	weigh(r.Lot != "", 0.2)
	weigh(r.SubLot != "", 0.15)
	weigh(len(r.Materials) > 0, 0.2)
	weigh(len(r.Equipment) > 0, 0.15)
	weigh(len(r.Quantities) > 0, 0.2)
	weigh(r.Location != "", 0.1)

	return score / max
}

// voteCounter tracks how often each value appears. The first value to reach
// the top count wins, so ties resolve deterministically.
type voteCounter struct {
	counts map[string]int
	order  []string
}

func newVoteCounter() *voteCounter {
	return &voteCounter{counts: map[string]int{}}
}

func (v *voteCounter) add(value string) {
	if value == "" {
		return
	}
	if _, seen := v.counts[value]; !seen {
		v.order = append(v.order, value)
	}
	v.counts[value]++
}

func (v *voteCounter) winner() string {
	best := ""
	bestCount := 0
	for _, value := range v.order {
		if v.counts[value] > bestCount {
			best = value
			bestCount = v.counts[value]
		}
	}

	return best
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	return keys
}

// dedupeQuantities drops repeated quantities, comparing label and unit case
// insensitively. Order of first appearance is preserved.
func dedupeQuantities(quantities []models.Quantity) []models.Quantity {
	if len(quantities) == 0 {
		return nil
	}

	type key struct {
		label string
		qty   float64
		unit  string
	}

	seen := map[key]bool{}
	unique := make([]models.Quantity, 0, len(quantities))
	for _, q := range quantities {
		k := key{strings.ToLower(q.Label), q.Qty, strings.ToLower(q.Unit)}
		if seen[k] {
			continue
		}
		seen[k] = true
		unique = append(unique, q)
	}

	return unique
}
