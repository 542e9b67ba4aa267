package classifier

import (
	"math"
	"math/rand/v2"
)

// TrainTestSplit shuffles the indices 0..n-1 with a seeded generator and splits them
// into train and test sets. The test set holds ceil(n*testSize) samples.
func TrainTestSplit(n int, testSize float64, seed uint64) (train, test []int) {
	if n <= 0 {
		return nil, nil
	}

	nTest := int(math.Ceil(float64(n) * testSize))
	if nTest < 0 {
		nTest = 0
	}
	if nTest > n {
		nTest = n
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)

	test = perm[:nTest]
	train = perm[nTest:]
	return train, test
}

// Subset picks the elements of values at the given indices
func Subset(values []string, indices []int) []string {
	out := make([]string, len(indices))
	for i, index := range indices {
		out[i] = values[index]
	}
	return out
}
