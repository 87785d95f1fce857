package main

import (
	"os"
	"strconv"

	"github.com/fastalign-go/paralign/mapper"
	"github.com/fastalign-go/paralign/perr"
	"github.com/fastalign-go/paralign/reduce"
)

// Options holds the closed set of pa_* environment variables every stage
// worker recognizes. The shuffle substrate propagates environment to
// workers, so configuration rides the environment rather than flags.
type Options struct {
	Reverse          bool
	FavorDiagonal    bool
	ProbAlignNull    float64
	DiagonalTension  float64
	OptimizeTension  bool
	VariationalBayes bool
	Alpha            float64
	NoNullWord       bool
	TTablePrefix     string
	TTableParts      int
}

// DefaultOptions returns the defaults every unset pa_* variable falls
// back to.
func DefaultOptions() Options {
	return Options{
		FavorDiagonal:    true,
		ProbAlignNull:    0.08,
		DiagonalTension:  4.0,
		OptimizeTension:  true,
		VariationalBayes: true,
		Alpha:            0.01,
	}
}

// OptionsFromEnv reads the pa_* environment variables over
// DefaultOptions and validates the result.
func OptionsFromEnv() (Options, error) {
	o := DefaultOptions()
	var err error

	if o.Reverse, err = envBool("pa_reverse", o.Reverse); err != nil {
		return Options{}, err
	}
	if o.FavorDiagonal, err = envBool("pa_favor_diagonal", o.FavorDiagonal); err != nil {
		return Options{}, err
	}
	if o.ProbAlignNull, err = envFloat("pa_prob_align_null", o.ProbAlignNull); err != nil {
		return Options{}, err
	}
	if o.DiagonalTension, err = envFloat("pa_diagonal_tension", o.DiagonalTension); err != nil {
		return Options{}, err
	}
	if o.OptimizeTension, err = envBool("pa_optimize_tension", o.OptimizeTension); err != nil {
		return Options{}, err
	}
	if o.VariationalBayes, err = envBool("pa_variational_bayes", o.VariationalBayes); err != nil {
		return Options{}, err
	}
	if o.Alpha, err = envFloat("pa_alpha", o.Alpha); err != nil {
		return Options{}, err
	}
	if o.NoNullWord, err = envBool("pa_no_null_word", o.NoNullWord); err != nil {
		return Options{}, err
	}

	if v, ok := os.LookupEnv("pa_ttable_prefix"); ok {
		o.TTablePrefix = v
	}
	if v, ok := os.LookupEnv("pa_ttable_dir"); ok {
		o.TTablePrefix = v
	}
	if v, ok := os.LookupEnv("pa_ttable_parts"); ok {
		n, atoiErr := strconv.Atoi(v)
		if atoiErr != nil {
			return Options{}, wrapConfigErr("pa_ttable_parts", atoiErr)
		}
		o.TTableParts = n
	}

	return o, o.Check()
}

// Check rejects inconsistent option combinations. TTableParts == 0 means
// "unset" here; commands that need a t-table enforce a positive count
// themselves.
func (o Options) Check() error {
	if o.FavorDiagonal && (o.ProbAlignNull < 0 || o.ProbAlignNull > 1) {
		return perr.NewConfigError("pa_prob_align_null must be in [0,1], got %g", o.ProbAlignNull)
	}
	if o.VariationalBayes && o.Alpha <= 0 {
		return perr.NewConfigError("pa_alpha must be > 0 under variational bayes, got %g", o.Alpha)
	}
	if o.TTableParts < 0 {
		return perr.NewConfigError("pa_ttable_parts must be positive, got %d", o.TTableParts)
	}
	return nil
}

// MapperOptions adapts Options to the subset package mapper (and viterbi,
// which shares the same type) needs.
func (o Options) MapperOptions() mapper.Options {
	return mapper.Options{
		Reverse:         o.Reverse,
		FavorDiagonal:   o.FavorDiagonal,
		ProbAlignNull:   o.ProbAlignNull,
		DiagonalTension: o.DiagonalTension,
		NoNullWord:      o.NoNullWord,
	}
}

// ReduceOptions adapts Options to the subset package reduce needs.
func (o Options) ReduceOptions() reduce.Options {
	return reduce.Options{
		VariationalBayes: o.VariationalBayes,
		Alpha:            o.Alpha,
		FavorDiagonal:    o.FavorDiagonal,
		OptimizeTension:  o.OptimizeTension,
		DiagonalTension:  o.DiagonalTension,
	}
}

// recognizedTrue/recognizedFalse are the only accepted boolean
// spellings, case-sensitive; any other value is a ConfigError.
var (
	recognizedTrue  = map[string]bool{"true": true, "yes": true, "y": true, "1": true}
	recognizedFalse = map[string]bool{"false": true, "no": true, "n": true, "0": true}
)

func envBool(name string, def bool) (bool, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def, nil
	}
	if recognizedTrue[v] {
		return true, nil
	}
	if recognizedFalse[v] {
		return false, nil
	}
	return false, perr.NewConfigError("%s: unrecognized boolean value %q", name, v)
}

func envFloat(name string, def float64) (float64, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, wrapConfigErr(name, err)
	}
	return f, nil
}

func wrapConfigErr(name string, err error) error {
	return perr.WrapConfigError("env "+name, err)
}
