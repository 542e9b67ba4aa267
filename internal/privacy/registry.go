package privacy

import (
	"fmt"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
)

// Category names of the built-in rules
const (
	CategoryCreditDebitNo = "credit_debit_no"
	CategoryAadharNum     = "aadhar_num"
	CategoryDOB           = "dob"
	CategoryExpiryNo      = "expiry_no"
	CategoryEmail         = "email"
	CategoryFullName      = "full_name"
	CategoryPhoneNumber   = "phone_number"
	CategoryCVVNo         = "cvv_no"
)

// AllCategories selects every rule of a registry
const AllCategories = "all"

// Registry order is the tie-break order of the overlap resolver: when two candidates
// start at the same offset, the one whose rule appears first wins.
var defaultRuleDefs = []RuleDef{
	{
		Category: CategoryCreditDebitNo,
		Pattern:  `\b(?:\d{4}[-\s]?){3}\d{4}\b`,
	},
	{
		// The separator captured in the first gap must repeat in the second.
		Category: CategoryAadharNum,
		Pattern:  `\b\d{4}([- ]?)\d{4}\1\d{4}\b`,
	},
	{
		Category: CategoryDOB,
		Pattern: `\b\d{1,2}[-/](?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*[-/]\d{2,4}\b` +
			`|\b\d{2}[-/]\d{2}[-/]\d{2,4}\b`,
	},
	{
		Category: CategoryExpiryNo,
		Pattern:  `\b(0[1-9]|1[0-2])[-/](\d{2}|\d{4})\b`,
	},
	{
		Category: CategoryEmail,
		Pattern: `[a-zA-Z0-9_.+-]+(?:[a-zA-Z0-9áéíóúñüÁÉÍÓÚÑÜ]+)?@` +
			`[a-zA-Z0-9-]+(?:\.[a-zA-Z]{2,})+(?=\s|$|[^a-zA-Z0-9])`,
	},
	{
		// Capitalization heuristic, not NER. Expect false positives on title-cased phrases.
		Category: CategoryFullName,
		Pattern: `\b(?!(?:My|Aadhar|Aadhaar|Credit|Account|Technical|Card|` +
			`Support|Assistance|Needed|State|City|number|ID|Contact|Phone|for)\b)` +
			`([A-ZÀ-ÿ][a-zÀ-ÿ'-]{2,})(?:\s+[A-ZÀ-ÿ][a-zÀ-ÿ'-]+){1,2}` +
			`(?!\s*(?:is|number|no|is:|in|at|from|to|-|:|\.)\b)` +
			`(?<!\b\d)`,
	},
	{
		Category: CategoryPhoneNumber,
		Pattern: `(?:\+?\d{1,3}[-\s]?)?(?:\(\d{1,4}\)|\d{1,4})[-\s]?` +
			`\d{1,4}[-\s]?\d{1,4}(?:[-\s]?\d{1,4}){1,}|\d{10,}`,
	},
	{
		// Lookarounds are zero-width: the bounding characters may belong to neighbouring matches.
		Category: CategoryCVVNo,
		Pattern:  `(?<=\D)\d{3}(?=\D)`,
	},
}

// DefaultRuleDefs returns a copy of the built-in rule table in registry order
func DefaultRuleDefs() []RuleDef {
	defs := make([]RuleDef, len(defaultRuleDefs))
	copy(defs, defaultRuleDefs)
	return defs
}

// Registry is an ordered, immutable set of compiled rules. A Registry is safe for
// concurrent use; compiled regexp2 patterns only keep pooled per-match runner state.
type Registry struct {
	rules []Rule
}

// RegistryOption customizes registry compilation
type RegistryOption func(*registryOptions)

type registryOptions struct {
	matchTimeout time.Duration
}

// WithMatchTimeout bounds the time a single rule may spend on one scan.
// Zero disables the bound.
func WithMatchTimeout(d time.Duration) RegistryOption {
	return func(o *registryOptions) {
		o.matchTimeout = d
	}
}

// NewRegistry compiles the given rule definitions in order
func NewRegistry(defs []RuleDef, opts ...RegistryOption) (*Registry, error) {
	options := registryOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	seen := make(map[string]bool, len(defs))
	rules := make([]Rule, 0, len(defs))
	for _, def := range defs {
		if def.Category == "" {
			return nil, fmt.Errorf("rule with empty category")
		}
		if seen[def.Category] {
			return nil, fmt.Errorf("duplicate category: %s", def.Category)
		}
		seen[def.Category] = true

		pattern, err := regexp2.Compile(def.Pattern, regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule %s: %w", def.Category, err)
		}
		if options.matchTimeout > 0 {
			pattern.MatchTimeout = options.matchTimeout
		}

		rules = append(rules, Rule{Category: def.Category, Pattern: pattern})
	}

	return &Registry{rules: rules}, nil
}

var defaultRegistry = sync.OnceValues(func() (*Registry, error) {
	return NewRegistry(defaultRuleDefs)
})

// DefaultRegistry returns the built-in registry. It is compiled on first use and
// shared by every caller for the lifetime of the process.
func DefaultRegistry() (*Registry, error) {
	return defaultRegistry()
}

// Rules returns the compiled rules in registry order
func (r *Registry) Rules() []Rule {
	rules := make([]Rule, len(r.rules))
	copy(rules, r.rules)
	return rules
}

// Categories returns the category names in registry order
func (r *Registry) Categories() []string {
	categories := make([]string, len(r.rules))
	for i, rule := range r.rules {
		categories[i] = rule.Category
	}
	return categories
}

// Len returns the number of rules
func (r *Registry) Len() int {
	return len(r.rules)
}

// Select derives a registry holding only the named categories, keeping registry order.
// The name "all" selects every rule.
func (r *Registry) Select(categories []string) (*Registry, error) {
	wanted := make(map[string]bool, len(categories))
	for _, category := range categories {
		if category == AllCategories {
			return r, nil
		}

		found := false
		for _, rule := range r.rules {
			if rule.Category == category {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
		}
		wanted[category] = true
	}

	rules := make([]Rule, 0, len(wanted))
	for _, rule := range r.rules {
		if wanted[rule.Category] {
			rules = append(rules, rule)
		}
	}

	return &Registry{rules: rules}, nil
}
