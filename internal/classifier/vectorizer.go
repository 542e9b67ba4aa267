package classifier

import (
	"math"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"
)

// tokenPattern keeps runs of two or more word characters, so masked tags such as
// [credit_debit_no] become a single feature
var tokenPattern = regexp2.MustCompile(`\b\w\w+\b`, regexp2.None)

// SparseVector is a document vector holding only its non-zero entries
type SparseVector struct {
	Indices []int     `json:"indices"`
	Values  []float64 `json:"values"`
}

// Vectorizer turns documents into l2-normalized TF-IDF vectors
type Vectorizer struct {
	MaxFeatures int            `json:"max_features"`
	Vocabulary  map[string]int `json:"vocabulary"`
	IDF         []float64      `json:"idf"`
}

// NewVectorizer creates an unfitted vectorizer keeping at most maxFeatures terms
func NewVectorizer(maxFeatures int) *Vectorizer {
	return &Vectorizer{MaxFeatures: maxFeatures}
}

// Tokenize lowercases text and splits it into tokens, dropping English stop words
func Tokenize(text string) []string {
	lower := strings.ToLower(text)

	var tokens []string
	match, err := tokenPattern.FindStringMatch(lower)
	for ; match != nil && err == nil; match, err = tokenPattern.FindNextMatch(match) {
		token := match.String()
		if _, stop := englishStopWords[token]; stop {
			continue
		}
		tokens = append(tokens, token)
	}

	return tokens
}

// Fit learns the vocabulary and inverse document frequencies of the corpus.
// When the corpus has more distinct terms than MaxFeatures, the most frequent terms
// across the corpus are kept.
func (v *Vectorizer) Fit(docs []string) error {
	if len(docs) == 0 {
		return ErrEmptyDataset
	}

	termCounts := make(map[string]int)
	docFreq := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, token := range Tokenize(doc) {
			termCounts[token]++
			if !seen[token] {
				seen[token] = true
				docFreq[token]++
			}
		}
	}
	if len(termCounts) == 0 {
		return ErrEmptyVocabulary
	}

	terms := make([]string, 0, len(termCounts))
	for term := range termCounts {
		terms = append(terms, term)
	}

	if v.MaxFeatures > 0 && len(terms) > v.MaxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if termCounts[terms[i]] != termCounts[terms[j]] {
				return termCounts[terms[i]] > termCounts[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:v.MaxFeatures]
	}

	// Feature indices follow alphabetical order of the kept terms
	sort.Strings(terms)

	n := float64(len(docs))
	v.Vocabulary = make(map[string]int, len(terms))
	v.IDF = make([]float64, len(terms))
	for i, term := range terms {
		v.Vocabulary[term] = i
		v.IDF[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	return nil
}

// Transform converts a document into its TF-IDF vector. Unknown terms are ignored.
func (v *Vectorizer) Transform(doc string) SparseVector {
	counts := make(map[int]float64)
	for _, token := range Tokenize(doc) {
		if index, ok := v.Vocabulary[token]; ok {
			counts[index]++
		}
	}

	vec := SparseVector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for index := range counts {
		vec.Indices = append(vec.Indices, index)
	}
	sort.Ints(vec.Indices)

	var norm float64
	for _, index := range vec.Indices {
		value := counts[index] * v.IDF[index]
		vec.Values = append(vec.Values, value)
		norm += value * value
	}

	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec.Values {
			vec.Values[i] /= norm
		}
	}

	return vec
}

// NumFeatures returns the vocabulary size
func (v *Vectorizer) NumFeatures() int {
	return len(v.Vocabulary)
}
