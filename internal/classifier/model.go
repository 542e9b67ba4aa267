package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrNotTrained is returned when predicting with a model that has not been fitted
	ErrNotTrained = errors.New("classifier: model not trained")
	// ErrEmptyDataset is returned when training on no samples
	ErrEmptyDataset = errors.New("classifier: empty dataset")
	// ErrEmptyVocabulary is returned when no document produced a usable token
	ErrEmptyVocabulary = errors.New("classifier: empty vocabulary")
)

// Options configures model training
type Options struct {
	MaxFeatures int
	Alpha       float64
}

// DefaultOptions matches the settings the shipped model is trained with
func DefaultOptions() Options {
	return Options{MaxFeatures: 5000, Alpha: 1.0}
}

// Model chains a TF-IDF vectorizer with a naive Bayes classifier
type Model struct {
	Vectorizer *Vectorizer `json:"vectorizer"`
	NaiveBayes *NaiveBayes `json:"naive_bayes"`
}

// NewModel creates an untrained model
func NewModel(opts Options) *Model {
	return &Model{
		Vectorizer: NewVectorizer(opts.MaxFeatures),
		NaiveBayes: NewNaiveBayes(opts.Alpha),
	}
}

// Train fits the vectorizer and classifier on the given texts and labels
func (m *Model) Train(texts, labels []string) error {
	if len(texts) == 0 {
		return ErrEmptyDataset
	}
	if len(texts) != len(labels) {
		return fmt.Errorf("texts and labels length mismatch: %d != %d", len(texts), len(labels))
	}

	if err := m.Vectorizer.Fit(texts); err != nil {
		return fmt.Errorf("failed to fit vectorizer: %w", err)
	}

	vectors := make([]SparseVector, len(texts))
	for i, text := range texts {
		vectors[i] = m.Vectorizer.Transform(text)
	}

	if err := m.NaiveBayes.Fit(vectors, labels, m.Vectorizer.NumFeatures()); err != nil {
		return fmt.Errorf("failed to fit classifier: %w", err)
	}

	return nil
}

// Trained reports whether the model can make predictions
func (m *Model) Trained() bool {
	return m != nil && m.Vectorizer != nil && m.NaiveBayes != nil &&
		len(m.Vectorizer.Vocabulary) > 0 && len(m.NaiveBayes.Classes) > 0
}

// Predict returns the predicted category for a (masked) email body
func (m *Model) Predict(text string) (string, error) {
	if !m.Trained() {
		return "", ErrNotTrained
	}
	return m.NaiveBayes.Predict(m.Vectorizer.Transform(text))
}

// Classes returns the categories the model can predict
func (m *Model) Classes() []string {
	if !m.Trained() {
		return nil
	}
	return append([]string(nil), m.NaiveBayes.Classes...)
}

// Score returns the accuracy of the model on the given samples
func (m *Model) Score(texts, labels []string) (float64, error) {
	if len(texts) == 0 {
		return 0, ErrEmptyDataset
	}
	if len(texts) != len(labels) {
		return 0, fmt.Errorf("texts and labels length mismatch: %d != %d", len(texts), len(labels))
	}

	correct := 0
	for i, text := range texts {
		predicted, err := m.Predict(text)
		if err != nil {
			return 0, err
		}
		if predicted == labels[i] {
			correct++
		}
	}

	return float64(correct) / float64(len(texts)), nil
}

// Save writes the model as JSON, creating parent directories as needed
func (m *Model) Save(path string) error {
	if !m.Trained() {
		return ErrNotTrained
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create model directory: %w", err)
		}
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}

	return nil
}

// Load reads a model previously written by Save
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}

	if !m.Trained() {
		return nil, fmt.Errorf("model %s: %w", path, ErrNotTrained)
	}
	if len(m.Vectorizer.IDF) != len(m.Vectorizer.Vocabulary) {
		return nil, fmt.Errorf("model %s: idf has %d entries for %d terms", path, len(m.Vectorizer.IDF), len(m.Vectorizer.Vocabulary))
	}
	for c, probs := range m.NaiveBayes.FeatureLogProb {
		if len(probs) != len(m.Vectorizer.Vocabulary) {
			return nil, fmt.Errorf("model %s: class %d has %d feature weights for %d terms", path, c, len(probs), len(m.Vectorizer.Vocabulary))
		}
	}

	return &m, nil
}
