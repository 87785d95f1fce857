package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/fastalign-go/paralign/reduce"
	"github.com/fastalign-go/paralign/shuffle"
)

// newCmd_Tension wires the diagonal-tension optimizer: it consumes only
// meta records and prints the tightened lambda for the external driver
// to inject into the next EM iteration.
func newCmd_Tension() *cli.Command {
	return &cli.Command{
		Name:        "tension",
		Usage:       "Optimize the diagonal-tension hyperparameter from aggregated meta scalars.",
		Description: "Reads meta-only shuffle records from stdin and prints the tightened diagonal tension to stdout.",
		Action: func(c *cli.Context) error {
			opts, err := OptionsFromEnv()
			if err != nil {
				klog.Exit(err)
			}

			r, err := reduce.New(opts.ReduceOptions(), nil, reduce.ModeTension)
			if err != nil {
				klog.Exit(err)
			}

			in := shuffle.NewGroupedSource(shuffle.NewLineSource(os.Stdin))
			discard := shuffle.NewLineSink(discardWriter{})
			res, err := r.Run(in, discard)
			if err != nil {
				klog.Exit(err)
			}
			fmt.Fprintf(os.Stdout, "%g\n", res.DiagonalTension)
			return nil
		},
	}
}

// discardWriter satisfies io.Writer without emitting anything;
// ModeTension never calls Sink.Emit (it returns the tightened tension
// via Result instead), but reduce.Reducer.Run still requires a Sink.
type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
