// Package diagonal implements the closed-form diagonal-alignment prior used
// by the E-step, the Viterbi decoder, and the tension optimizer: a prior
// that favors alignment points near the line i/n ~= j/m, sharpened or
// flattened by a tension parameter lambda.
//
// The four functions below are pure and numerically exact to standard
// double precision.
package diagonal

import "math"

// UnnormalizedProb returns exp(-lambda * |i/n - j/m|) for one candidate
// source position i (1-based) given target position j (1-based), target
// length m, and source length n.
func UnnormalizedProb(j, i, m, n int, lambda float64) float64 {
	fj := float64(j)
	fi := float64(i)
	fm := float64(m)
	fn := float64(n)
	return math.Exp(-math.Abs(fi/fn-fj/fm) * lambda)
}

// ComputeZ sums UnnormalizedProb over every non-null source position
// i in [1, n]; it normalizes the diagonal prior's non-null mass.
func ComputeZ(j, m, n int, lambda float64) float64 {
	// The terms are symmetric around the diagonal and monotonically
	// decreasing away from it, so no numerically special-cased summation
	// order is required for the sentence lengths this model targets.
	var z float64
	for i := 1; i <= n; i++ {
		z += UnnormalizedProb(j, i, m, n, lambda)
	}
	return z
}

// Feature is the sufficient statistic -|i/n - j/m| whose expectation under
// the posterior is matched to its empirical expectation while optimizing
// diagonal tension.
func Feature(j, i, m, n int) float64 {
	fj := float64(j)
	fi := float64(i)
	fm := float64(m)
	fn := float64(n)
	return -math.Abs(fi/fn - fj/fm)
}

// ComputeDLogZ returns d/d(lambda) log Z(j, m, n, lambda) in closed form:
// the weighted average of Feature over the same positions ComputeZ sums,
// weighted by their (unnormalized) posterior mass.
func ComputeDLogZ(j, m, n int, lambda float64) float64 {
	var z, dz float64
	for i := 1; i <= n; i++ {
		p := UnnormalizedProb(j, i, m, n, lambda)
		z += p
		dz += p * Feature(j, i, m, n)
	}
	if z == 0 {
		return 0
	}
	return dz / z
}
