package walign

import "math"

// Digamma returns the logarithmic derivative of the gamma function,
// psi(x). NormalizeVB needs it for the mean-field update under a
// symmetric Dirichlet(alpha) prior. Standard asymptotic expansion: shift
// x up past 6 using the recurrence psi(x) = psi(x+1) - 1/x, then apply
// the series.
func Digamma(x float64) float64 {
	var result float64
	for x < 6 {
		result -= 1 / x
		x++
	}
	f := 1 / (x * x)
	result += math.Log(x) - 0.5/x -
		f*(1.0/12-f*(1.0/120-f*(1.0/252-f*(1.0/240-f*(1.0/132)))))
	return result
}
