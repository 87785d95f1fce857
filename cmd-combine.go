package main

import (
	"os"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/fastalign-go/paralign/reduce"
	"github.com/fastalign-go/paralign/shuffle"
)

// newCmd_Combine wires the combiner: the same reducer skeleton as
// "reduce", but in ModeCombiner, which never normalizes or writes a
// shard.
func newCmd_Combine() *cli.Command {
	return &cli.Command{
		Name:        "combine",
		Usage:       "Partially merge shuffle-grouped records without normalizing.",
		Description: "Reads shuffle-grouped records from stdin and emits partially summed rows and meta scalars to stdout.",
		Action: func(c *cli.Context) error {
			opts, err := OptionsFromEnv()
			if err != nil {
				klog.Exit(err)
			}

			r, err := reduce.New(opts.ReduceOptions(), nil, reduce.ModeCombiner)
			if err != nil {
				klog.Exit(err)
			}

			in := shuffle.NewGroupedSource(shuffle.NewLineSource(os.Stdin))
			out := shuffle.NewLineSink(os.Stdout)
			if _, err := r.Run(in, out); err != nil {
				klog.Exit(err)
			}
			return nil
		},
	}
}
