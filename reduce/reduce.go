// Package reduce implements the shuffle-side merge stages: the combiner,
// the reducer, and the tension optimizer are the same merge loop running
// in three Modes, not three separate implementations.
package reduce

import (
	"log/slog"
	"sort"

	"github.com/fastalign-go/paralign/diagonal"
	"github.com/fastalign-go/paralign/perr"
	"github.com/fastalign-go/paralign/shuffle"
	"github.com/fastalign-go/paralign/ttable"
	"github.com/fastalign-go/paralign/walign"
)

// Mode selects which stage this Reducer instance behaves as.
type Mode int

const (
	// ModeReducer normalizes and writes t-table shards.
	ModeReducer Mode = iota
	// ModeCombiner partially merges rows without normalizing or writing
	// a shard.
	ModeCombiner
	// ModeTension consumes only meta records and emits a tightened
	// diagonal tension.
	ModeTension
)

// Writer is the subset of ttstore.TTableWriter the reducer writes
// normalized rows through.
type Writer interface {
	Write(src walign.WordId, entry *ttable.Entry) error
	WriteIndex() error
}

// Options carries the smoothing and tension-optimization knobs the
// reducer/tension stages need.
type Options struct {
	VariationalBayes bool
	Alpha            float64
	FavorDiagonal    bool
	OptimizeTension  bool
	DiagonalTension  float64
}

// Result carries the four aggregated meta scalars plus, in ModeTension,
// the optimized diagonal tension.
type Result struct {
	SizeCounts      map[walign.SentSzPair]int64
	Toks            float64
	EmpFeat         float64
	LogLikelihood   float64
	DiagonalTension float64 // set only in ModeTension
}

// Reducer runs the merge/normalize (or tension-optimization) loop over a
// grouped shuffle source.
type Reducer struct {
	opts   Options
	writer Writer
	mode   Mode

	sizeCounts    map[walign.SentSzPair]int64
	toks          float64
	empFeat       float64
	logLikelihood float64
}

// New constructs a Reducer. A combiner or tension reducer must never
// write shards, so constructing one with a non-nil writer is an
// InvariantViolation, caught here rather than at the first misdirected
// Write.
func New(opts Options, writer Writer, mode Mode) (*Reducer, error) {
	switch mode {
	case ModeReducer:
	case ModeCombiner, ModeTension:
		if writer != nil {
			return nil, perr.NewInvariantViolation("reduce: running in combiner/tension mode but given a TTableWriter")
		}
	default:
		return nil, perr.NewInvariantViolation("reduce: unknown mode %d", mode)
	}
	return &Reducer{
		opts:       opts,
		writer:     writer,
		mode:       mode,
		sizeCounts: make(map[walign.SentSzPair]int64),
	}, nil
}

// Run drains in group by group, dispatching each key to the matching
// handler, then calls flush. In ModeReducer/ModeCombiner the aggregated
// meta records are emitted to out; in ModeTension nothing is emitted and
// the optimized tension is returned in Result.DiagonalTension.
func (r *Reducer) Run(in *shuffle.GroupedSource, out shuffle.Sink) (Result, error) {
	for !in.Done() {
		key := in.Key()
		switch {
		// key 0 is the NULL source word's row, not a meta record.
		case key >= 0:
			if r.mode == ModeTension {
				return Result{}, perr.NewInvariantViolation("reduce: tension mode received a ttable entry key %d, expected only meta records", key)
			}
			if err := r.reduceTTableEntry(key, in, out); err != nil {
				return Result{}, err
			}
		case key == walign.KSizeCountsKey:
			if err := r.reduceSizeCounts(in); err != nil {
				return Result{}, err
			}
		case key == walign.KEmpFeatKey:
			if err := r.reduceScalar(in, &r.empFeat); err != nil {
				return Result{}, err
			}
		case key == walign.KToksKey:
			if err := r.reduceScalar(in, &r.toks); err != nil {
				return Result{}, err
			}
		case key == walign.KLogLikelihoodKey:
			if err := r.reduceScalar(in, &r.logLikelihood); err != nil {
				return Result{}, err
			}
		default:
			return Result{}, perr.NewWireFormatError("reduce: unrecognized key %d", key)
		}
	}
	if err := in.Err(); err != nil {
		return Result{}, err
	}
	return r.flush(out)
}

// reduceTTableEntry consumes the consecutive run of records sharing key,
// merging them with ttable.PlusEq into a running sum via two scratch
// rows (ping-ponged to avoid reallocating on every record), then either
// writes the normalized row (ModeReducer) or emits the unnormalized sum
// to out (ModeCombiner).
func (r *Reducer) reduceTTableEntry(key walign.WordId, in *shuffle.GroupedSource, out shuffle.Sink) error {
	var a, b ttable.Entry
	sum, scratch := &a, &b

	for !in.Done() && in.Key() == key {
		incoming, err := shuffle.DecodeEntry(in.Value())
		if err != nil {
			return err
		}
		ttable.PlusEq(sum, incoming, scratch)
		sum, scratch = scratch, sum
		in.Next()
	}

	switch r.mode {
	case ModeReducer:
		if r.opts.VariationalBayes {
			sum.NormalizeVB(r.opts.Alpha)
		} else {
			sum.Normalize()
		}
		if r.writer == nil {
			return perr.NewInvariantViolation("reduce: reducer mode has no TTableWriter")
		}
		return r.writer.Write(key, sum)
	case ModeCombiner:
		return out.Emit(shuffle.Record{Key: key, Value: shuffle.EncodeEntry(sum)})
	default:
		return perr.NewInvariantViolation("reduce: unreachable mode in reduceTTableEntry")
	}
}

func (r *Reducer) reduceSizeCounts(in *shuffle.GroupedSource) error {
	for !in.Done() && in.Key() == walign.KSizeCountsKey {
		if err := shuffle.DecodeSizeCounts(in.Value(), r.sizeCounts); err != nil {
			return err
		}
		in.Next()
	}
	return nil
}

func (r *Reducer) reduceScalar(in *shuffle.GroupedSource, dest *float64) error {
	key := in.Key()
	for !in.Done() && in.Key() == key {
		v, err := shuffle.DecodeScalar(in.Value())
		if err != nil {
			return err
		}
		*dest += v
		in.Next()
	}
	return nil
}

// flush finalizes the reducer: WriteIndex (ModeReducer only, even if no
// rows were written, so the shard is still a valid empty index), then
// emits the four meta records (ModeReducer/ModeCombiner), or in
// ModeTension runs the diagonal-tension optimizer and returns the
// result.
func (r *Reducer) flush(out shuffle.Sink) (Result, error) {
	if r.mode == ModeReducer {
		if r.writer == nil {
			return Result{}, perr.NewInvariantViolation("reduce: reducer mode has no TTableWriter")
		}
		if err := r.writer.WriteIndex(); err != nil {
			return Result{}, err
		}
	}

	res := Result{
		SizeCounts:    r.sizeCounts,
		Toks:          r.toks,
		EmpFeat:       r.empFeat,
		LogLikelihood: r.logLikelihood,
	}

	if r.mode == ModeReducer || r.mode == ModeCombiner {
		if err := out.Emit(shuffle.Record{Key: walign.KSizeCountsKey, Value: shuffle.EncodeSizeCounts(r.sizeCounts)}); err != nil {
			return Result{}, err
		}
		if err := emitScalar(out, walign.KToksKey, r.toks); err != nil {
			return Result{}, err
		}
		if err := emitScalar(out, walign.KEmpFeatKey, r.empFeat); err != nil {
			return Result{}, err
		}
		if err := emitScalar(out, walign.KLogLikelihoodKey, r.logLikelihood); err != nil {
			return Result{}, err
		}
		return res, nil
	}

	// ModeTension: log the run summary, then optimize.
	if r.toks == 0 {
		return Result{}, perr.NewInvariantViolation("reduce: tension mode saw zero toks, cannot normalize emp_feat")
	}
	avgEmp := r.empFeat / r.toks
	slog.Info("reduce: tension pass summary",
		"log_likelihood_e", r.logLikelihood,
		"cross_entropy_bits", -r.logLikelihood/ln2/r.toks,
		"posterior_al_feat", r.empFeat,
		"distinct_sentence_sizes", len(r.sizeCounts))

	// The tightened tension is not a shuffle meta key (the reserved-key
	// set is closed at four entries): it goes back to the external driver
	// via Result.DiagonalTension, not through the shuffle Sink.
	res.DiagonalTension = r.optimizeTension(avgEmp)
	return res, nil
}

const ln2 = 0.6931471805599453

// optimizeTension tightens the diagonal tension by matching the model's
// expected diagonal feature to the empirical one. The 20.0 step size,
// the 8-iteration bound, and the [0.1, 14] clamp are fixed constants;
// changing them changes trained models.
func (r *Reducer) optimizeTension(avgEmp float64) float64 {
	if !r.opts.FavorDiagonal || !r.opts.OptimizeTension {
		return r.opts.DiagonalTension
	}
	lambda := r.opts.DiagonalTension

	pairs := make([]walign.SentSzPair, 0, len(r.sizeCounts))
	for p := range r.sizeCounts {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i] < pairs[j] })

	for iter := 0; iter < 8; iter++ {
		var modFeat float64
		for _, p := range pairs {
			count := r.sizeCounts[p]
			m := int(walign.FirstSz(p))
			n := int(walign.SecondSz(p))
			for j := 1; j <= m; j++ {
				modFeat += float64(count) * diagonal.ComputeDLogZ(j, m, n, lambda)
			}
		}
		modFeat /= r.toks
		lambda += (avgEmp - modFeat) * 20.0
		if lambda <= 0.1 {
			lambda = 0.1
		} else if lambda > 14 {
			lambda = 14
		}
		slog.Debug("reduce: tension iteration", "iter", iter+1, "model_al_feat", modFeat, "tension", lambda)
	}
	return lambda
}

func emitScalar(out shuffle.Sink, key walign.WordId, v float64) error {
	return out.Emit(shuffle.Record{Key: key, Value: shuffle.EncodeScalar(v)})
}
