package privacy

import (
	"fmt"
	"strings"
)

// Redact rebuilds text with every accepted span replaced by its [category] tag and
// reports the replaced spans in order. accepted must be sorted by start and pairwise
// non-overlapping, as returned by Resolve; anything else is a programming error.
func Redact(text string, accepted []Candidate) Result {
	entities := make([]Entity, 0, len(accepted))
	if len(accepted) == 0 {
		return Result{MaskedText: text, Entities: entities}
	}

	runes := []rune(text)

	var b strings.Builder
	b.Grow(len(text))

	cursor := 0
	for _, match := range accepted {
		if match.Start < cursor || match.End < match.Start || match.End > len(runes) {
			panic(fmt.Sprintf("privacy: invalid span [%d, %d) for %s at cursor %d of %d",
				match.Start, match.End, match.Category, cursor, len(runes)))
		}

		b.WriteString(string(runes[cursor:match.Start]))
		b.WriteByte('[')
		b.WriteString(match.Category)
		b.WriteByte(']')

		entities = append(entities, Entity{
			Position:       [2]int{match.Start, match.End},
			Classification: match.Category,
			Entity:         string(runes[match.Start:match.End]),
		})
		cursor = match.End
	}
	b.WriteString(string(runes[cursor:]))

	return Result{MaskedText: b.String(), Entities: entities}
}
