package privacy

import (
	"errors"

	"github.com/dlclark/regexp2"
)

var (
	// ErrUnknownCategory is returned when a configuration names a category the registry does not define
	ErrUnknownCategory = errors.New("unknown category")
	// ErrMatchTimeout is returned when a rule exceeds the configured match timeout
	ErrMatchTimeout = errors.New("pattern match timed out")
)

// RuleDef is the uncompiled form of a detection rule
type RuleDef struct {
	Category string
	Pattern  string
}

// Rule is a compiled pattern bound to a category
type Rule struct {
	Category string
	Pattern  *regexp2.Regexp
}

// Candidate is a single match produced by one rule, before overlap resolution.
// Start and End are half-open rune offsets into the scanned text.
type Candidate struct {
	Start    int
	End      int
	Category string
	Text     string

	// seq is the discovery order: registry order, then match order within a rule
	seq int
}

// Entity is one entry of the entity report
type Entity struct {
	Position       [2]int `json:"position"`
	Classification string `json:"classification"`
	Entity         string `json:"entity"`
}

// Start returns the first rune offset of the entity
func (e Entity) Start() int { return e.Position[0] }

// End returns the rune offset one past the entity
func (e Entity) End() int { return e.Position[1] }

// Result contains the masked text and the entities that were replaced
type Result struct {
	MaskedText string   `json:"masked_text"`
	Entities   []Entity `json:"entities"`
}

// CategoryCount summarizes how many entities of one category were masked
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}
