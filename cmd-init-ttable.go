package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/fastalign-go/paralign/ttstore"
)

// newCmd_InitTTable creates P empty shard files: an EM run's first
// iteration reads against an all-default t-table, materialized here as P
// valid (empty) shards rather than special-casing a missing directory.
func newCmd_InitTTable() *cli.Command {
	return &cli.Command{
		Name:        "init-ttable",
		Usage:       "Create P empty t-table shards.",
		Description: "Writes valid, empty index.<p>/entry.<p> shard pairs for p in [0, pa_ttable_parts) under pa_ttable_dir.",
		Action: func(c *cli.Context) error {
			opts, err := OptionsFromEnv()
			if err != nil {
				klog.Exit(err)
			}
			if opts.TTableParts <= 0 {
				klog.Exit(fmt.Sprintf("pa_ttable_parts must be > 0, got %d", opts.TTableParts))
			}

			bar := progressbar.Default(int64(opts.TTableParts), "init-ttable")
			for p := 0; p < opts.TTableParts; p++ {
				indexAddr := fmt.Sprintf("file:%s/index.%d", opts.TTablePrefix, p)
				entryAddr := fmt.Sprintf("file:%s/entry.%d", opts.TTablePrefix, p)
				w, err := ttstore.NewWriter(indexAddr, entryAddr)
				if err != nil {
					klog.Exit(err)
				}
				if err := w.WriteIndex(); err != nil {
					klog.Exit(err)
				}
				if err := w.Close(); err != nil {
					klog.Exit(err)
				}
				bar.Add(1)
			}
			return nil
		},
	}
}
