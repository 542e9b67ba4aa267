package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedact(t *testing.T) {
	t.Run("NoMatches", func(t *testing.T) {
		result := Redact("nothing here", nil)
		assert.Equal(t, "nothing here", result.MaskedText)
		assert.NotNil(t, result.Entities)
		assert.Empty(t, result.Entities)
	})

	t.Run("ReplacesSpans", func(t *testing.T) {
		text := "call 555 and 777"
		result := Redact(text, []Candidate{
			{Start: 5, End: 8, Category: "x"},
			{Start: 13, End: 16, Category: "y"},
		})

		assert.Equal(t, "call [x] and [y]", result.MaskedText)
		require.Len(t, result.Entities, 2)
		assert.Equal(t, Entity{Position: [2]int{5, 8}, Classification: "x", Entity: "555"}, result.Entities[0])
		assert.Equal(t, Entity{Position: [2]int{13, 16}, Classification: "y", Entity: "777"}, result.Entities[1])
	})

	t.Run("SpanAtBoundaries", func(t *testing.T) {
		result := Redact("abc", []Candidate{{Start: 0, End: 3, Category: "all"}})
		assert.Equal(t, "[all]", result.MaskedText)
	})

	t.Run("MultiByteText", func(t *testing.T) {
		result := Redact("ñandú 123 ü", []Candidate{{Start: 6, End: 9, Category: "n"}})
		assert.Equal(t, "ñandú [n] ü", result.MaskedText)
		assert.Equal(t, "123", result.Entities[0].Entity)
	})

	t.Run("MalformedSpansPanic", func(t *testing.T) {
		assert.Panics(t, func() {
			Redact("abcdef", []Candidate{{Start: 3, End: 2, Category: "x"}})
		})
		assert.Panics(t, func() {
			Redact("abc", []Candidate{{Start: 1, End: 9, Category: "x"}})
		})
		assert.Panics(t, func() {
			Redact("abcdef", []Candidate{
				{Start: 0, End: 4, Category: "x"},
				{Start: 2, End: 5, Category: "y"},
			})
		})
	})
}
