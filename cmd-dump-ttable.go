package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/fastalign-go/paralign/ttstore"
)

// newCmd_DumpTTable writes a human-readable shard dump plus a byte-size
// summary on stderr.
func newCmd_DumpTTable() *cli.Command {
	return &cli.Command{
		Name:        "dump-ttable",
		Usage:       "Dump a t-table's contents in human-readable form.",
		Description: "Loads pa_ttable_parts shards from pa_ttable_dir and prints \"src tgt ln(prob) prob int64-of-prob\" rows, plus a per-shard byte-size summary on stderr.",
		Action: func(c *cli.Context) error {
			opts, err := OptionsFromEnv()
			if err != nil {
				klog.Exit(err)
			}
			if opts.TTableParts <= 0 {
				klog.Exit(fmt.Sprintf("pa_ttable_parts must be > 0, got %d", opts.TTableParts))
			}

			bar := progressbar.Default(int64(opts.TTableParts), "scanning shards")
			var totalBytes int64
			for p := 0; p < opts.TTableParts; p++ {
				for _, name := range []string{fmt.Sprintf("index.%d", p), fmt.Sprintf("entry.%d", p)} {
					if fi, err := os.Stat(opts.TTablePrefix + "/" + name); err == nil {
						totalBytes += fi.Size()
					}
				}
				bar.Add(1)
			}
			fmt.Fprintf(os.Stderr, "dump-ttable: %s across %d shards\n", humanize.Bytes(uint64(totalBytes)), opts.TTableParts)

			table, err := ttstore.LoadTable(opts.TTablePrefix, opts.TTableParts)
			if err != nil {
				klog.Exit(err)
			}
			defer table.Close()

			if err := table.Dump(os.Stdout); err != nil {
				klog.Exit(err)
			}
			return nil
		},
	}
}
