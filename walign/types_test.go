package walign

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDoubleInt64RoundTrip(t *testing.T) {
	cases := []float64{0, 1, -1, 0.5, -0.5, 1e-9, 1e300, -1e300, math.Pi, -math.Pi}
	for _, d := range cases {
		got := DoubleFromInt64(DoubleAsInt64(d))
		require.Equal(t, d, got)
	}
	// Negative zero survives bit-identically, even though it compares equal
	// to positive zero under ==.
	negZero := math.Copysign(0, -1)
	got := DoubleFromInt64(DoubleAsInt64(negZero))
	require.Equal(t, math.Signbit(negZero), math.Signbit(got))
}

func TestSzPairPackUnpack(t *testing.T) {
	for a := SentSz(0); a < 300; a += 37 {
		for b := SentSz(0); b < 300; b += 41 {
			p := MkSzPair(a, b)
			require.Equal(t, a, FirstSz(p))
			require.Equal(t, b, SecondSz(p))
		}
	}
	// boundary values near 2^16
	a, b := SentSz(65535), SentSz(65534)
	p := MkSzPair(a, b)
	require.Equal(t, a, FirstSz(p))
	require.Equal(t, b, SecondSz(p))
}

func TestMetaKeysAreNegativeAndDistinct(t *testing.T) {
	keys := []WordId{KSizeCountsKey, KEmpFeatKey, KToksKey, KLogLikelihoodKey}
	seen := map[WordId]bool{}
	for _, k := range keys {
		require.Less(t, int32(k), int32(0))
		require.False(t, seen[k], "duplicate meta key %d", k)
		seen[k] = true
	}
}
