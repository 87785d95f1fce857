// Package mapper implements the E-step of one EM iteration: per-sentence
// posterior computation over latent alignment variables under a diagonal
// (or uniform) prior, with in-process combining of pseudo-counts before
// emission.
package mapper

import (
	"bufio"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/fastalign-go/paralign/diagonal"
	"github.com/fastalign-go/paralign/perr"
	"github.com/fastalign-go/paralign/shuffle"
	"github.com/fastalign-go/paralign/ttable"
	"github.com/fastalign-go/paralign/ttstore"
	"github.com/fastalign-go/paralign/walign"
)

// Options is the subset of the global configuration the E-step (and
// Viterbi, which shares the same posterior math) needs.
type Options struct {
	Reverse         bool
	FavorDiagonal   bool
	ProbAlignNull   float64
	DiagonalTension float64
	NoNullWord      bool
}

// Sentence is one input record: a zero-based sentence index plus its
// source and target token streams.
type Sentence struct {
	ID  int64
	Src []walign.WordId
	Tgt []walign.WordId
}

// ParseSentence parses one mapper input line:
// "<id:decimal>\t<src-ints>\t<tgt-ints>\n".
func ParseSentence(line string) (Sentence, error) {
	parts := strings.SplitN(line, "\t", 3)
	if len(parts) != 3 {
		return Sentence{}, perr.NewWireFormatError("mapper input: expected 3 tab-separated fields, got %d: %q", len(parts), line)
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Sentence{}, perr.WrapWireFormatError("mapper input: non-integer id "+parts[0], err)
	}
	src, err := parseWordIds(parts[1])
	if err != nil {
		return Sentence{}, err
	}
	tgt, err := parseWordIds(parts[2])
	if err != nil {
		return Sentence{}, err
	}
	return Sentence{ID: id, Src: src, Tgt: tgt}, nil
}

func parseWordIds(field string) ([]walign.WordId, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, nil
	}
	fields := strings.Fields(field)
	ids := make([]walign.WordId, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseInt(f, 10, 32)
		if err != nil {
			return nil, perr.WrapWireFormatError("mapper input: non-integer token id "+f, err)
		}
		ids[i] = walign.WordId(v)
	}
	return ids, nil
}

// Mapper accumulates expected counts and sufficient statistics across a
// stream of sentence pairs using in-mapper combining: the pseudo-counts
// map is kept in memory per source word for the lifetime of the mapper
// and flushed once, collapsing per-token emissions down to one emission
// per distinct source word this mapper ever saw. No buffering cap is
// enforced; callers size input splits accordingly.
type Mapper struct {
	opts  Options
	table Querier

	pseudoCounts  map[walign.WordId]map[walign.WordId]float64
	sizeCounts    map[walign.SentSzPair]int64
	toks          int64
	empFeat       float64
	logLikelihood float64
}

// Querier is the subset of ttstore.TTable the mapper and Viterbi depend
// on, so tests can substitute an in-memory fake t-table.
type Querier interface {
	Query(src, tgt walign.WordId) walign.Prob
}

var _ Querier = (*ttstore.TTable)(nil)

// New builds a Mapper against table under opts.
func New(opts Options, table Querier) *Mapper {
	return &Mapper{
		opts:         opts,
		table:        table,
		pseudoCounts: make(map[walign.WordId]map[walign.WordId]float64),
		sizeCounts:   make(map[walign.SentSzPair]int64),
	}
}

// Map processes one sentence pair, accumulating into the mapper's running
// state. If opts.Reverse is set, src and tgt are swapped first.
func (m *Mapper) Map(s Sentence) {
	src, tgt := s.Src, s.Tgt
	if m.opts.Reverse {
		src, tgt = tgt, src
	}

	m.toks += int64(len(tgt))
	m.sizeCounts[walign.MkSzPair(walign.SentSz(len(tgt)), walign.SentSz(len(src)))]++

	n := len(src)
	mLen := len(tgt)
	probs := make([]float64, n+1)

	for j := 0; j < mLen; j++ {
		fj := tgt[j]
		var sum float64

		pi0, piNonNull := Priors(m.opts, j+1, mLen, n)

		if !m.opts.NoNullWord {
			probs[0] = float64(m.table.Query(walign.KNull, fj)) * pi0
			sum += probs[0]
		}
		for i := 1; i <= n; i++ {
			probs[i] = float64(m.table.Query(src[i-1], fj)) * piNonNull(i)
			sum += probs[i]
		}

		if sum > 0 {
			m.logLikelihood += math.Log(sum)

			if !m.opts.NoNullWord {
				m.addPseudoCount(walign.KNull, fj, probs[0]/sum)
			}
			for i := 1; i <= n; i++ {
				p := probs[i] / sum
				m.addPseudoCount(src[i-1], fj, p)
				// The feature expectation uses the bare loop index j, not
				// the 1-based j+1 the prior/Z calls above use; the tension
				// update depends on this exact convention.
				m.empFeat += p * diagonal.Feature(j, i, mLen, n)
			}
		}
	}
}

// Priors returns pi(a=0 | j, m, n) and a closure for pi(a=i | j, m, n),
// i in [1, n]. With the diagonal prior off the distribution is uniform
// over the n source positions (n+1 when the null word is allowed); with
// it on, the null position gets ProbAlignNull and the rest share the
// normalized diagonal mass. Shared with the Viterbi decoder, which needs
// the identical prior over the argmax instead of the sum.
func Priors(opts Options, j, mLen, n int) (pi0 float64, piNonNull func(i int) float64) {
	if opts.FavorDiagonal {
		az := diagonal.ComputeZ(j, mLen, n, opts.DiagonalTension)
		return opts.ProbAlignNull, func(i int) float64 {
			if az == 0 {
				return 0
			}
			return (1 - opts.ProbAlignNull) * diagonal.UnnormalizedProb(j, i, mLen, n, opts.DiagonalTension) / az
		}
	}
	var uniform float64
	if opts.NoNullWord {
		uniform = 1.0 / float64(n)
	} else {
		uniform = 1.0 / float64(n+1)
	}
	return uniform, func(int) float64 { return uniform }
}

func (m *Mapper) addPseudoCount(src, tgt walign.WordId, p float64) {
	row, ok := m.pseudoCounts[src]
	if !ok {
		row = make(map[walign.WordId]float64)
		m.pseudoCounts[src] = row
	}
	row[tgt] += p
}

// Run streams sentences from r, mapping each one, then flushes the
// accumulated state to out.
func (m *Mapper) Run(r io.Reader, out shuffle.Sink) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		s, err := ParseSentence(line)
		if err != nil {
			return err
		}
		m.Map(s)
	}
	if err := sc.Err(); err != nil {
		return perr.WrapWireFormatError("reading mapper input", err)
	}
	return m.Flush(out)
}

// Flush emits one shuffle record per distinct source word this mapper
// saw, followed by the four meta records. Source words are emitted in
// ascending order so two runs over the same split produce identical
// output, though the shuffle contract does not require any particular
// emission order from the mapper side.
func (m *Mapper) Flush(out shuffle.Sink) error {
	srcs := make([]walign.WordId, 0, len(m.pseudoCounts))
	for src := range m.pseudoCounts {
		srcs = append(srcs, src)
	}
	sort.Slice(srcs, func(i, j int) bool { return srcs[i] < srcs[j] })

	for _, src := range srcs {
		row := m.pseudoCounts[src]
		tgts := make([]walign.WordId, 0, len(row))
		for tgt := range row {
			tgts = append(tgts, tgt)
		}
		sort.Slice(tgts, func(i, j int) bool { return tgts[i] < tgts[j] })
		probs := make([]walign.Prob, len(tgts))
		for i, tgt := range tgts {
			probs[i] = row[tgt]
		}
		entry := ttable.New(tgts, probs)
		if err := out.Emit(shuffle.Record{Key: src, Value: shuffle.EncodeEntry(entry)}); err != nil {
			return err
		}
	}

	if err := out.Emit(shuffle.Record{Key: walign.KSizeCountsKey, Value: shuffle.EncodeSizeCounts(m.sizeCounts)}); err != nil {
		return err
	}
	if err := out.Emit(shuffle.Record{Key: walign.KToksKey, Value: shuffle.EncodeScalar(float64(m.toks))}); err != nil {
		return err
	}
	if err := out.Emit(shuffle.Record{Key: walign.KEmpFeatKey, Value: shuffle.EncodeScalar(m.empFeat)}); err != nil {
		return err
	}
	if err := out.Emit(shuffle.Record{Key: walign.KLogLikelihoodKey, Value: shuffle.EncodeScalar(m.logLikelihood)}); err != nil {
		return err
	}
	return nil
}
