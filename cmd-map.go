package main

import (
	"os"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/fastalign-go/paralign/mapper"
	"github.com/fastalign-go/paralign/shuffle"
	"github.com/fastalign-go/paralign/ttstore"
)

// newCmd_Map wires the E-step mapper as a thin stdin/stdout front-end:
// all the interesting logic lives in package mapper.
func newCmd_Map() *cli.Command {
	return &cli.Command{
		Name:        "map",
		Usage:       "Run the E-step mapper over a stream of sentence pairs.",
		Description: "Reads \"id\\tsrc-ints\\ttgt-ints\" lines from stdin, queries the current t-table, and writes shuffle records to stdout.",
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

			m := mapper.New(opts.MapperOptions(), table)
			out := shuffle.NewLineSink(os.Stdout)
			if err := m.Run(os.Stdin, out); err != nil {
				klog.Exit(err)
			}
			return nil
		},
	}
}
