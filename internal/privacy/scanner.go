package privacy

import "fmt"

// Scan applies every rule of the registry to the full original text and returns all
// candidates in discovery order. Rules never see each other's output.
func (r *Registry) Scan(text string) ([]Candidate, error) {
	var candidates []Candidate
	if text == "" {
		return candidates, nil
	}

	for _, rule := range r.rules {
		found, err := scanRule(rule, text, len(candidates))
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, found...)
	}

	return candidates, nil
}

// scanRule collects the leftmost, non-overlapping matches of a single rule
func scanRule(rule Rule, text string, seq int) ([]Candidate, error) {
	var found []Candidate

	match, err := rule.Pattern.FindStringMatch(text)
	for ; match != nil && err == nil; match, err = rule.Pattern.FindNextMatch(match) {
		// regexp2 reports rune offsets, which are the character offsets we expose
		start := match.Index
		end := match.Index + match.Length
		if end < start {
			panic(fmt.Sprintf("privacy: rule %s reported malformed span [%d, %d)", rule.Category, start, end))
		}
		if start == end {
			continue
		}

		found = append(found, Candidate{
			Start:    start,
			End:      end,
			Category: rule.Category,
			Text:     match.String(),
			seq:      seq + len(found),
		})
	}
	if err != nil {
		// The engine's error text embeds the input, so only the category is reported
		return nil, fmt.Errorf("%w: rule %s", ErrMatchTimeout, rule.Category)
	}

	return found, nil
}
