package main

import (
	"os"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/fastalign-go/paralign/ttstore"
	"github.com/fastalign-go/paralign/viterbi"
)

// newCmd_Viterbi wires the Viterbi decoder.
func newCmd_Viterbi() *cli.Command {
	return &cli.Command{
		Name:        "viterbi",
		Usage:       "Emit best alignments for a stream of sentence pairs using a trained t-table.",
		Description: "Reads \"id\\tsrc-ints\\ttgt-ints\" lines from stdin and writes \"id\\ti-j i-j ...\" alignment lines to stdout.",
		Action: func(c *cli.Context) error {
			opts, err := OptionsFromEnv()
			if err != nil {
				klog.Exit(err)
			}

			table, err := ttstore.LoadTable(opts.TTablePrefix, opts.TTableParts)
			if err != nil {
				klog.Exit(err)
			}
			defer table.Close()

			dec := viterbi.New(opts.MapperOptions(), table)
			out := viterbi.NewLineSink(os.Stdout)
			if err := dec.Run(os.Stdin, out); err != nil {
				klog.Exit(err)
			}
			return nil
		},
	}
}
