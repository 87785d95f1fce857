package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/fastalign-go/paralign/mapper"
	"github.com/fastalign-go/paralign/ttstore"
	"github.com/fastalign-go/paralign/walign"
)

// newCmd_Estimate is a pre-flight sizing tool: given a tokenized corpus
// on stdin, it estimates the on-disk size of the t-table before running
// EM (distinct (src, tgt) pair count times the record sizes), useful for
// picking shard counts and disk budgets.
func newCmd_Estimate() *cli.Command {
	var reverse bool
	return &cli.Command{
		Name:        "estimate",
		Usage:       "Estimate the on-disk size of a t-table trained from a corpus.",
		Description: "Reads mapper-format sentence pairs from stdin and prints vocabulary sizes and a sparse on-disk t-table size estimate.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "reverse", Usage: "swap src/tgt before tokenizing", Destination: &reverse},
		},
		Action: func(c *cli.Context) error {
			srcStripes := make(map[walign.WordId]map[walign.WordId]struct{})
			tgtVocab := make(map[walign.WordId]struct{})

			sc := bufio.NewScanner(os.Stdin)
			sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
			for sc.Scan() {
				line := sc.Text()
				if line == "" {
					continue
				}
				s, err := mapper.ParseSentence(line)
				if err != nil {
					klog.Exit(err)
				}
				src, tgt := s.Src, s.Tgt
				if reverse {
					src, tgt = tgt, src
				}
				for _, w := range src {
					row, ok := srcStripes[w]
					if !ok {
						row = make(map[walign.WordId]struct{})
						srcStripes[w] = row
					}
					for _, v := range tgt {
						row[v] = struct{}{}
						tgtVocab[v] = struct{}{}
					}
				}
			}
			if err := sc.Err(); err != nil {
				klog.Exit(err)
			}

			m := int64(len(srcStripes))
			n := int64(len(tgtVocab))
			var l int64
			bytes := m * ttstore.IndexRecordSize
			for _, row := range srcStripes {
				l += int64(len(row))
				bytes += int64(len(row)) * ttstore.EntryRecordSize
			}

			fmt.Printf("src vocab size: %d\n", m)
			fmt.Printf("tgt vocab size: %d\n", n)
			fmt.Printf("non-null pairs: %d\n", l)
			fmt.Printf("sparse: %d bytes = %s\n", bytes, humanize.Bytes(uint64(bytes)))
			return nil
		},
	}
}
