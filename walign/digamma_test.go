package walign

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDigammaKnownValues(t *testing.T) {
	// psi(1) = -gamma (Euler-Mascheroni constant)
	require.InDelta(t, -0.5772156649, Digamma(1), 1e-8)
	// psi(1/2) = -gamma - 2 ln 2
	require.InDelta(t, -1.9635100260, Digamma(0.5), 1e-8)
	// psi(n+1) = psi(n) + 1/n, spot-check monotonic increase for integers
	prev := Digamma(1)
	for n := 2; n < 20; n++ {
		cur := Digamma(float64(n))
		require.Greater(t, cur, prev)
		prev = cur
	}
}
