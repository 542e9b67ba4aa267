package privacy

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scanCategory returns the texts matched by a single built-in rule
func scanCategory(t *testing.T, category, text string) []string {
	t.Helper()

	base, err := DefaultRegistry()
	require.NoError(t, err)
	registry, err := base.Select([]string{category})
	require.NoError(t, err)

	candidates, err := registry.Scan(text)
	require.NoError(t, err)

	texts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		texts = append(texts, c.Text)
	}
	return texts
}

func TestDefaultRegistry(t *testing.T) {
	registry, err := DefaultRegistry()
	require.NoError(t, err)

	assert.Equal(t, []string{
		CategoryCreditDebitNo,
		CategoryAadharNum,
		CategoryDOB,
		CategoryExpiryNo,
		CategoryEmail,
		CategoryFullName,
		CategoryPhoneNumber,
		CategoryCVVNo,
	}, registry.Categories())

	again, err := DefaultRegistry()
	require.NoError(t, err)
	assert.Same(t, registry, again, "default registry must be compiled once")
}

func TestRules(t *testing.T) {
	tests := []struct {
		name     string
		category string
		text     string
		want     []string
	}{
		{"card with spaces", CategoryCreditDebitNo, "card 1234 5678 9012 3456 ok", []string{"1234 5678 9012 3456"}},
		{"card without separators", CategoryCreditDebitNo, "1234567890123456", []string{"1234567890123456"}},
		{"card too short", CategoryCreditDebitNo, "1234-5678-9012", []string{}},
		{"card too long", CategoryCreditDebitNo, "12345678901234567", []string{}},

		{"aadhar spaces", CategoryAadharNum, "id 1234 5678 9012", []string{"1234 5678 9012"}},
		{"aadhar hyphens", CategoryAadharNum, "1234-5678-9012", []string{"1234-5678-9012"}},
		{"aadhar no separator", CategoryAadharNum, "123456789012", []string{"123456789012"}},
		{"aadhar mixed separators", CategoryAadharNum, "1234-5678 9012", []string{}},

		{"dob month abbreviation", CategoryDOB, "born on 5-Jan-1990", []string{"5-Jan-1990"}},
		{"dob long month", CategoryDOB, "on 12/March/85", []string{"12/March/85"}},
		{"dob numeric", CategoryDOB, "dob 05/11/1990.", []string{"05/11/1990"}},
		{"dob iso date is not matched", CategoryDOB, "2024-01-05", []string{}},

		{"expiry short year", CategoryExpiryNo, "exp 08/27", []string{"08/27"}},
		{"expiry long year", CategoryExpiryNo, "exp 12/2030", []string{"12/2030"}},
		{"expiry invalid month", CategoryExpiryNo, "exp 13/25 or 00/25", []string{}},

		{"email", CategoryEmail, "reach me at a.b@example.com today", []string{"a.b@example.com"}},
		{"email accented local part", CategoryEmail, "mail josé@x.io", []string{"josé@x.io"}},
		{"email followed by alphanumeric", CategoryEmail, "user@example.com2", []string{}},
		{"email without dot", CategoryEmail, "a@localhost", []string{}},

		{"two word name", CategoryFullName, "Contact: John Doe, 1234", []string{"John Doe"}},
		{"three word name", CategoryFullName, "Mary Ann Smith, hello", []string{"Mary Ann Smith"}},
		{"accented name", CategoryFullName, "José Álvarez called", []string{"José Álvarez"}},
		{"stoplisted words", CategoryFullName, "Technical Support Team", []string{}},
		{"followed by is", CategoryFullName, "Ann Li is here", []string{}},

		{"phone digit run", CategoryPhoneNumber, "Call 9876543210", []string{"9876543210"}},
		{"phone country code", CategoryPhoneNumber, "+91 98765 43210", []string{"+91 98765 43210"}},
		{"phone area code", CategoryPhoneNumber, "(022) 2345 6789", []string{"(022) 2345 6789"}},

		{"cvv", CategoryCVVNo, "cvv 123 thanks", []string{"123"}},
		{"cvv shares bounding characters", CategoryCVVNo, "cvv 123/456 ok", []string{"123", "456"}},
		{"four digits", CategoryCVVNo, "cvv is 1234", []string{}},
		{"cvv needs a leading character", CategoryCVVNo, "123 first", []string{}},
		{"cvv needs a trailing character", CategoryCVVNo, "code 456", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scanCategory(t, tt.category, tt.text))
		})
	}
}

func TestScan(t *testing.T) {
	registry, err := DefaultRegistry()
	require.NoError(t, err)

	t.Run("EmptyText", func(t *testing.T) {
		candidates, err := registry.Scan("")
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})

	t.Run("RuneOffsets", func(t *testing.T) {
		candidates, err := registry.Scan("Olá, José Álvarez")
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, 5, candidates[0].Start)
		assert.Equal(t, 17, candidates[0].End)
		assert.Equal(t, "José Álvarez", candidates[0].Text)
	})

	t.Run("DiscoveryOrder", func(t *testing.T) {
		candidates, err := registry.Scan("Contact: John Doe, 1234-5678-9012-3456")
		require.NoError(t, err)
		require.NotEmpty(t, candidates)

		// Registry order first, then match order within a rule
		assert.Equal(t, CategoryCreditDebitNo, candidates[0].Category)
		for i, c := range candidates {
			assert.Equal(t, i, c.seq)
		}
	})
}

func TestNewRegistry(t *testing.T) {
	t.Run("InvalidPattern", func(t *testing.T) {
		_, err := NewRegistry([]RuleDef{{Category: "broken", Pattern: `(\d+`}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken")
	})

	t.Run("DuplicateCategory", func(t *testing.T) {
		_, err := NewRegistry([]RuleDef{
			{Category: "digits", Pattern: `\d+`},
			{Category: "digits", Pattern: `\d{2}`},
		})
		require.Error(t, err)
	})

	t.Run("EmptyCategory", func(t *testing.T) {
		_, err := NewRegistry([]RuleDef{{Pattern: `\d+`}})
		require.Error(t, err)
	})

	t.Run("DefaultRuleDefsIsACopy", func(t *testing.T) {
		defs := DefaultRuleDefs()
		defs[0].Pattern = `x`
		assert.NotEqual(t, `x`, DefaultRuleDefs()[0].Pattern)
	})
}

func TestSelect(t *testing.T) {
	registry, err := DefaultRegistry()
	require.NoError(t, err)

	t.Run("All", func(t *testing.T) {
		selected, err := registry.Select([]string{AllCategories})
		require.NoError(t, err)
		assert.Equal(t, registry.Categories(), selected.Categories())
	})

	t.Run("KeepsRegistryOrder", func(t *testing.T) {
		selected, err := registry.Select([]string{CategoryCVVNo, CategoryEmail, CategoryCreditDebitNo})
		require.NoError(t, err)
		assert.Equal(t, []string{CategoryCreditDebitNo, CategoryEmail, CategoryCVVNo}, selected.Categories())
	})

	t.Run("UnknownCategory", func(t *testing.T) {
		_, err := registry.Select([]string{"passport"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnknownCategory))
	})
}

func TestMatchTimeout(t *testing.T) {
	registry, err := NewRegistry(
		[]RuleDef{{Category: "runaway", Pattern: `^(a+)+$`}},
		WithMatchTimeout(time.Millisecond),
	)
	require.NoError(t, err)

	_, err = registry.Scan(strings.Repeat("a", 40) + "!")
	require.ErrorIs(t, err, ErrMatchTimeout)
	assert.NotContains(t, err.Error(), "aaaa")
}
