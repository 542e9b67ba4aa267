package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func candidate(start, end int, category string, seq int) Candidate {
	return Candidate{Start: start, End: end, Category: category, seq: seq}
}

func TestResolve(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		assert.Empty(t, Resolve(nil))
	})

	t.Run("SortsByStart", func(t *testing.T) {
		accepted := Resolve([]Candidate{
			candidate(20, 25, "b", 0),
			candidate(0, 5, "a", 1),
			candidate(10, 12, "c", 2),
		})
		assert.Equal(t, []Candidate{
			candidate(0, 5, "a", 1),
			candidate(10, 12, "c", 2),
			candidate(20, 25, "b", 0),
		}, accepted)
	})

	t.Run("EarliestStartWinsOverLonger", func(t *testing.T) {
		accepted := Resolve([]Candidate{
			candidate(5, 30, "long", 0),
			candidate(4, 8, "short", 1),
		})
		assert.Equal(t, []Candidate{candidate(4, 8, "short", 1)}, accepted)
	})

	t.Run("TieGoesToDiscoveryOrder", func(t *testing.T) {
		accepted := Resolve([]Candidate{
			candidate(3, 10, "phone_number", 5),
			candidate(3, 17, "aadhar_num", 2),
		})
		assert.Equal(t, []Candidate{candidate(3, 17, "aadhar_num", 2)}, accepted)
	})

	t.Run("OverlapIsDiscardedWhole", func(t *testing.T) {
		accepted := Resolve([]Candidate{
			candidate(0, 10, "a", 0),
			candidate(9, 20, "b", 1),
			candidate(15, 18, "c", 2),
		})
		// b overlaps a and is dropped; c no longer overlaps anything accepted
		assert.Equal(t, []Candidate{candidate(0, 10, "a", 0), candidate(15, 18, "c", 2)}, accepted)
	})

	t.Run("TouchingSpansAreKept", func(t *testing.T) {
		accepted := Resolve([]Candidate{
			candidate(0, 4, "a", 0),
			candidate(4, 8, "b", 1),
		})
		assert.Len(t, accepted, 2)
	})

	t.Run("DoesNotModifyInput", func(t *testing.T) {
		input := []Candidate{candidate(9, 10, "b", 0), candidate(0, 1, "a", 1)}
		Resolve(input)
		assert.Equal(t, "b", input[0].Category)
	})
}
