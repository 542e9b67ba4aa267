package classifier

import (
	"fmt"
	"math"
	"sort"
)

// NaiveBayes is a multinomial naive Bayes classifier over TF-IDF features
type NaiveBayes struct {
	Alpha          float64     `json:"alpha"`
	Classes        []string    `json:"classes"`
	ClassLogPrior  []float64   `json:"class_log_prior"`
	FeatureLogProb [][]float64 `json:"feature_log_prob"`
}

// NewNaiveBayes creates an unfitted classifier with additive smoothing alpha
func NewNaiveBayes(alpha float64) *NaiveBayes {
	return &NaiveBayes{Alpha: alpha}
}

// Fit estimates class priors and per-class feature probabilities
func (nb *NaiveBayes) Fit(x []SparseVector, y []string, numFeatures int) error {
	if len(x) == 0 {
		return ErrEmptyDataset
	}
	if len(x) != len(y) {
		return fmt.Errorf("samples and labels length mismatch: %d != %d", len(x), len(y))
	}

	classIndex := make(map[string]int)
	for _, label := range y {
		classIndex[label] = 0
	}
	nb.Classes = make([]string, 0, len(classIndex))
	for label := range classIndex {
		nb.Classes = append(nb.Classes, label)
	}
	sort.Strings(nb.Classes)
	for i, label := range nb.Classes {
		classIndex[label] = i
	}

	classCounts := make([]float64, len(nb.Classes))
	featureCounts := make([][]float64, len(nb.Classes))
	for i := range featureCounts {
		featureCounts[i] = make([]float64, numFeatures)
	}

	for i, vec := range x {
		c := classIndex[y[i]]
		classCounts[c]++
		for j, index := range vec.Indices {
			featureCounts[c][index] += vec.Values[j]
		}
	}

	total := float64(len(x))
	nb.ClassLogPrior = make([]float64, len(nb.Classes))
	nb.FeatureLogProb = make([][]float64, len(nb.Classes))
	for c := range nb.Classes {
		nb.ClassLogPrior[c] = math.Log(classCounts[c] / total)

		var sum float64
		for _, count := range featureCounts[c] {
			sum += count + nb.Alpha
		}

		nb.FeatureLogProb[c] = make([]float64, numFeatures)
		for f, count := range featureCounts[c] {
			nb.FeatureLogProb[c][f] = math.Log((count + nb.Alpha) / sum)
		}
	}

	return nil
}

// Predict returns the most likely class. Ties go to the class that sorts first.
func (nb *NaiveBayes) Predict(vec SparseVector) (string, error) {
	if len(nb.Classes) == 0 {
		return "", ErrNotTrained
	}

	best := 0
	bestScore := math.Inf(-1)
	for c := range nb.Classes {
		score := nb.ClassLogPrior[c]
		for j, index := range vec.Indices {
			score += vec.Values[j] * nb.FeatureLogProb[c][index]
		}
		if score > bestScore {
			best = c
			bestScore = score
		}
	}

	return nb.Classes[best], nil
}
