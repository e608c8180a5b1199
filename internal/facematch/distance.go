package facematch

import "math"

// EuclideanDistance returns the L2 distance between two embeddings.
// Embeddings of different length or empty ones are infinitely far apart.
func EuclideanDistance(a, b Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// IsMatch reports whether two embeddings belong to the same person under the
// given threshold. The boundary is inclusive.
func IsMatch(a, b Embedding, threshold float64) bool {
	return withinThreshold(EuclideanDistance(a, b), threshold)
}

func withinThreshold(d, threshold float64) bool {
	return d <= threshold
}
