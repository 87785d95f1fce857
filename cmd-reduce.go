package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/fastalign-go/paralign/reduce"
	"github.com/fastalign-go/paralign/shuffle"
	"github.com/fastalign-go/paralign/ttstore"
)

// newCmd_Reduce wires the reducer: consumes one partition's worth of
// shuffle-grouped records and writes one t-table shard.
func newCmd_Reduce() *cli.Command {
	var indexAddr, entryAddr string
	return &cli.Command{
		Name:        "reduce",
		Usage:       "Merge, normalize, and write one t-table shard.",
		Description: "Reads shuffle-grouped records from stdin, writes index.<p>/entry.<p> via the given addresses, and emits meta scalars to stdout.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "index", Usage: "output index file address, e.g. file:index.0", Required: true, Destination: &indexAddr},
			&cli.StringFlag{Name: "entry", Usage: "output entry file address, e.g. file:entry.0", Required: true, Destination: &entryAddr},
		},
		Action: func(c *cli.Context) error {
			opts, err := OptionsFromEnv()
			if err != nil {
				klog.Exit(err)
			}

			w, err := ttstore.NewWriter(indexAddr, entryAddr)
			if err != nil {
				klog.Exit(err)
			}
			defer w.Close()

			r, err := reduce.New(opts.ReduceOptions(), w, reduce.ModeReducer)
			if err != nil {
				klog.Exit(err)
			}

			in := shuffle.NewGroupedSource(shuffle.NewLineSource(os.Stdin))
			out := shuffle.NewLineSink(os.Stdout)
			res, err := r.Run(in, out)
			if err != nil {
				klog.Exit(err)
			}
			if err := w.Close(); err != nil {
				klog.Exit(err)
			}
			fmt.Fprintf(os.Stderr, "reduce: toks=%g log_likelihood=%g distinct_sizes=%d\n",
				res.Toks, res.LogLikelihood, len(res.SizeCounts))
			return nil
		},
	}
}
