package viterbi

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fastalign-go/paralign/mapper"
	"github.com/fastalign-go/paralign/walign"
)

type fakeTable struct {
	probs map[[2]walign.WordId]walign.Prob
}

func (f *fakeTable) Query(src, tgt walign.WordId) walign.Prob {
	if p, ok := f.probs[[2]walign.WordId{src, tgt}]; ok {
		return p
	}
	return walign.KDefaultProbability
}

// TestSinglePairTrivialAlignment: a one-token pair with p(2|1)=1 under a
// uniform no-null prior must decode to the single point "0\t0-0\n".
func TestSinglePairTrivialAlignment(t *testing.T) {
	tbl := &fakeTable{probs: map[[2]walign.WordId]walign.Prob{{1, 2}: 1.0}}
	dec := New(mapper.Options{FavorDiagonal: false, NoNullWord: true}, tbl)

	out := &bytes.Buffer{}
	sink := NewLineSink(out)
	require.NoError(t, dec.Run(bytes.NewReader([]byte("0\t1\t2\n")), sink))
	require.Equal(t, "0\t0-0\n", out.String())
}

func TestNoAlignmentPointsProducesEmptyList(t *testing.T) {
	tbl := &fakeTable{}
	dec := New(mapper.Options{FavorDiagonal: true, ProbAlignNull: 1.0, DiagonalTension: 4.0}, tbl)

	out := &bytes.Buffer{}
	sink := NewLineSink(out)
	require.NoError(t, dec.Run(bytes.NewReader([]byte("0\t1\t2\n")), sink))
	require.Equal(t, "0\t\n", out.String())
}

func TestNeverEmitsNullAlignment(t *testing.T) {
	tbl := &fakeTable{probs: map[[2]walign.WordId]walign.Prob{{0, 2}: 1.0, {1, 2}: 1e-12}}
	dec := New(mapper.Options{FavorDiagonal: false}, tbl)
	points := dec.Decode([]walign.WordId{1}, []walign.WordId{2})
	require.Empty(t, points)
}

func TestReverseSwapsCoordinatesBack(t *testing.T) {
	// With reverse set the input roles swap before decoding (src [1 3],
	// tgt [2] becomes src [2], tgt [1 3]), so the table is queried as
	// p(1 | 2) and p(3 | 2). Decoding yields (0,0) and (0,1) in the swapped
	// orientation; the emitted points must describe the ORIGINAL
	// orientation, i.e. 0-0 and 1-0.
	tbl := &fakeTable{probs: map[[2]walign.WordId]walign.Prob{{2, 1}: 1.0, {2, 3}: 1.0}}
	dec := New(mapper.Options{FavorDiagonal: false, NoNullWord: true, Reverse: true}, tbl)

	out := &bytes.Buffer{}
	sink := NewLineSink(out)
	require.NoError(t, dec.Run(bytes.NewReader([]byte("0\t1 3\t2\n")), sink))
	require.Equal(t, "0\t0-0 1-0\n", out.String())
}
