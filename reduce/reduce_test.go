package reduce

import (
	"bytes"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fastalign-go/paralign/perr"
	"github.com/fastalign-go/paralign/shuffle"
	"github.com/fastalign-go/paralign/ttable"
	"github.com/fastalign-go/paralign/walign"
)

// memWriter is an in-memory stand-in for ttstore.TTableWriter.
type memWriter struct {
	rows        map[walign.WordId]*ttable.Entry
	indexWrites int
}

func newMemWriter() *memWriter { return &memWriter{rows: map[walign.WordId]*ttable.Entry{}} }

func (w *memWriter) Write(src walign.WordId, e *ttable.Entry) error {
	items := e.Items()
	keys := make([]walign.WordId, len(items))
	probs := make([]walign.Prob, len(items))
	for i, it := range items {
		keys[i], probs[i] = it.Tgt, it.Prob
	}
	w.rows[src] = ttable.New(keys, probs)
	return nil
}

func (w *memWriter) WriteIndex() error {
	w.indexWrites++
	return nil
}

func srcFromLines(t *testing.T, lines string) *shuffle.GroupedSource {
	t.Helper()
	return shuffle.NewGroupedSource(shuffle.NewLineSource(bytes.NewReader([]byte(lines))))
}

func TestEmptyReducerSourceStillWritesIndexAndMeta(t *testing.T) {
	r, err := New(Options{}, newMemWriter(), ModeReducer)
	require.NoError(t, err)

	g := srcFromLines(t, "")
	require.True(t, g.Done())

	var sink memSink
	res, err := r.Run(g, &sink)
	require.NoError(t, err)
	require.Equal(t, 0.0, res.Toks)

	w := r.writer.(*memWriter)
	require.Equal(t, 1, w.indexWrites)

	var keys []walign.WordId
	for _, rec := range sink.recs {
		keys = append(keys, rec.Key)
	}
	require.ElementsMatch(t, []walign.WordId{
		walign.KSizeCountsKey, walign.KToksKey, walign.KEmpFeatKey, walign.KLogLikelihoodKey,
	}, keys)
}

type memSink struct {
	recs []shuffle.Record
}

func (s *memSink) Emit(rec shuffle.Record) error {
	s.recs = append(s.recs, rec)
	return nil
}

func TestReducerNormalizesAndWritesRow(t *testing.T) {
	w := newMemWriter()
	r, err := New(Options{VariationalBayes: false}, w, ModeReducer)
	require.NoError(t, err)

	e1 := ttable.New([]walign.WordId{1, 3}, []walign.Prob{1.0, 1.0})
	lines := "1\t" + shuffle.EncodeEntry(e1) + "\n"
	g := srcFromLines(t, lines)

	var sink memSink
	_, err = r.Run(g, &sink)
	require.NoError(t, err)

	row := w.rows[1]
	require.NotNil(t, row)
	got, ok := row.Get(1)
	require.True(t, ok)
	require.InDelta(t, 0.5, got, 1e-12)
}

func TestCombinerEmitsUnnormalizedSumAndNeverWrites(t *testing.T) {
	r, err := New(Options{}, nil, ModeCombiner)
	require.NoError(t, err)

	e1 := ttable.New([]walign.WordId{2}, []walign.Prob{1.0})
	e2 := ttable.New([]walign.WordId{2}, []walign.Prob{3.0})
	lines := "5\t" + shuffle.EncodeEntry(e1) + "\n5\t" + shuffle.EncodeEntry(e2) + "\n"
	g := srcFromLines(t, lines)

	var sink memSink
	_, err = r.Run(g, &sink)
	require.NoError(t, err)

	require.Equal(t, walign.WordId(5), sink.recs[0].Key)
	got, err := shuffle.DecodeEntry(sink.recs[0].Value)
	require.NoError(t, err)
	p, ok := got.Get(2)
	require.True(t, ok)
	require.Equal(t, 4.0, p) // summed, NOT normalized
}

// TestReducerAcceptsNullWordRow: key 0 is the NULL source word's row,
// not a meta record, and must merge and write like any other src.
func TestReducerAcceptsNullWordRow(t *testing.T) {
	w := newMemWriter()
	r, err := New(Options{}, w, ModeReducer)
	require.NoError(t, err)

	e := ttable.New([]walign.WordId{7}, []walign.Prob{2.0})
	g := srcFromLines(t, "0\t"+shuffle.EncodeEntry(e)+"\n")

	var sink memSink
	_, err = r.Run(g, &sink)
	require.NoError(t, err)

	row := w.rows[walign.KNull]
	require.NotNil(t, row)
	got, ok := row.Get(7)
	require.True(t, ok)
	require.InDelta(t, 1.0, got, 1e-12)
}

func TestCombinerConstructedWithWriterIsInvariantViolation(t *testing.T) {
	_, err := New(Options{}, newMemWriter(), ModeCombiner)
	require.Error(t, err)
	var iv *perr.InvariantViolation
	require.True(t, errors.As(err, &iv))
}

func TestTensionModeRejectsTTableEntryKey(t *testing.T) {
	r, err := New(Options{}, nil, ModeTension)
	require.NoError(t, err)
	g := srcFromLines(t, "1\t"+shuffle.EncodeEntry(ttable.New([]walign.WordId{1}, []walign.Prob{1}))+"\n")
	var sink memSink
	_, err = r.Run(g, &sink)
	require.Error(t, err)
}

func TestTensionOptimizerClampsHigh(t *testing.T) {
	sizeCounts := map[walign.SentSzPair]int64{walign.MkSzPair(3, 3): 1000}
	r := &Reducer{
		opts: Options{FavorDiagonal: true, OptimizeTension: true, DiagonalTension: 4.0},
		// A huge empirical feature average relative to the model's own
		// expectation pulls tension up against the clamp every iteration.
		sizeCounts: sizeCounts,
		toks:       1,
	}
	lambda := r.optimizeTension(1000.0)
	require.Equal(t, 14.0, lambda)
}

func TestTensionOptimizerClampsLow(t *testing.T) {
	sizeCounts := map[walign.SentSzPair]int64{walign.MkSzPair(3, 3): 1000}
	r := &Reducer{
		opts:       Options{FavorDiagonal: true, OptimizeTension: true, DiagonalTension: 4.0},
		sizeCounts: sizeCounts,
		toks:       1,
	}
	lambda := r.optimizeTension(-1000.0)
	require.Equal(t, 0.1, lambda)
}

func TestTensionOptimizerSkippedWhenDisabled(t *testing.T) {
	r := &Reducer{opts: Options{FavorDiagonal: false, DiagonalTension: 4.0}}
	require.Equal(t, 4.0, r.optimizeTension(100))
}

// groupByKey simulates the shuffle substrate: records sharing a key
// become consecutive, preserving their relative order.
func groupByKey(recs []shuffle.Record) []shuffle.Record {
	out := make([]shuffle.Record, len(recs))
	copy(out, recs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

type sliceSource struct {
	recs []shuffle.Record
	pos  int
}

func (s *sliceSource) Next() (shuffle.Record, bool, error) {
	if s.pos >= len(s.recs) {
		return shuffle.Record{}, false, nil
	}
	rec := s.recs[s.pos]
	s.pos++
	return rec, true, nil
}

// TestCombinerThenReducerMatchesReducerAlone: interposing combiners over
// any partitioning of the mapper output must produce the same shard rows
// and meta totals as reducing the raw output directly.
func TestCombinerThenReducerMatchesReducerAlone(t *testing.T) {
	sizeCounts := map[walign.SentSzPair]int64{walign.MkSzPair(2, 2): 3}
	mapperOut := func() []shuffle.Record {
		return []shuffle.Record{
			{Key: 1, Value: shuffle.EncodeEntry(ttable.New([]walign.WordId{2, 5}, []walign.Prob{0.5, 0.25}))},
			{Key: 4, Value: shuffle.EncodeEntry(ttable.New([]walign.WordId{2}, []walign.Prob{1.5}))},
			{Key: walign.KSizeCountsKey, Value: shuffle.EncodeSizeCounts(sizeCounts)},
			{Key: walign.KToksKey, Value: shuffle.EncodeScalar(6)},
			{Key: walign.KEmpFeatKey, Value: shuffle.EncodeScalar(-1.25)},
			{Key: walign.KLogLikelihoodKey, Value: shuffle.EncodeScalar(-3.5)},
		}
	}

	reduceAll := func(recs []shuffle.Record) (*memWriter, Result) {
		w := newMemWriter()
		r, err := New(Options{}, w, ModeReducer)
		require.NoError(t, err)
		var sink memSink
		res, err := r.Run(shuffle.NewGroupedSource(&sliceSource{recs: groupByKey(recs)}), &sink)
		require.NoError(t, err)
		return w, res
	}

	// Path A: reduce the raw output of two identical mapper splits.
	direct, directRes := reduceAll(append(mapperOut(), mapperOut()...))

	// Path B: combine each split separately, then reduce the emissions.
	var combined []shuffle.Record
	for i := 0; i < 2; i++ {
		c, err := New(Options{}, nil, ModeCombiner)
		require.NoError(t, err)
		var sink memSink
		_, err = c.Run(shuffle.NewGroupedSource(&sliceSource{recs: groupByKey(mapperOut())}), &sink)
		require.NoError(t, err)
		combined = append(combined, sink.recs...)
	}
	viaCombiner, viaRes := reduceAll(combined)

	require.Equal(t, len(direct.rows), len(viaCombiner.rows))
	for src, row := range direct.rows {
		require.True(t, ttable.Equal(row, viaCombiner.rows[src]), "row for src %d differs", src)
	}
	require.Equal(t, directRes.Toks, viaRes.Toks)
	require.Equal(t, directRes.EmpFeat, viaRes.EmpFeat)
	require.Equal(t, directRes.LogLikelihood, viaRes.LogLikelihood)
	require.Equal(t, directRes.SizeCounts, viaRes.SizeCounts)
}

func TestUnknownNegativeKeyIsFatal(t *testing.T) {
	r, err := New(Options{}, newMemWriter(), ModeReducer)
	require.NoError(t, err)
	g := srcFromLines(t, "-99\tgarbage\n")
	var sink memSink
	_, err = r.Run(g, &sink)
	require.Error(t, err)
}
