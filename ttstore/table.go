package ttstore

import (
	"fmt"
	"io"
	"math"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/fastalign-go/paralign/perr"
	"github.com/fastalign-go/paralign/walign"
)

// TTable fans out point queries over P independently loaded shards.
// Shard count is fixed for the table's lifetime and must match the count
// the shards were written with.
type TTable struct {
	shards []*PartialTTable
}

// PartitionOf returns the shard index for src under P shards: the
// mathematical positive remainder of src mod P, so negative WordIds (never
// valid source ids, but exercised by tests) still route to a valid shard.
func PartitionOf(src walign.WordId, parts int) int {
	m := int32(src) % int32(parts)
	if m < 0 {
		m += int32(parts)
	}
	return int(m)
}

// shardPaths returns the "index.<p>"/"entry.<p>" file paths for shard p
// under dir.
func shardPaths(dir string, p int) (indexPath, entryPath string) {
	return filepath.Join(dir, fmt.Sprintf("index.%d", p)), filepath.Join(dir, fmt.Sprintf("entry.%d", p))
}

// LoadTable loads all P shards from dir concurrently. Shard loads are
// independent read-only I/O (mmap + fadvise); worker compute stays
// single-threaded.
func LoadTable(dir string, parts int) (*TTable, error) {
	if parts <= 0 {
		return nil, perr.NewConfigError("ttable_parts must be > 0, got %d", parts)
	}
	shards := make([]*PartialTTable, parts)
	var g errgroup.Group
	for p := 0; p < parts; p++ {
		p := p
		g.Go(func() error {
			indexPath, entryPath := shardPaths(dir, p)
			s, err := Load(indexPath, entryPath)
			if err != nil {
				return err
			}
			shards[p] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, s := range shards {
			if s != nil {
				s.Close()
			}
		}
		return nil, err
	}
	return &TTable{shards: shards}, nil
}

// Parts returns the fixed shard count.
func (t *TTable) Parts() int { return len(t.shards) }

// Query routes to shard PartitionOf(src, Parts()) and returns p(tgt | src).
func (t *TTable) Query(src, tgt walign.WordId) walign.Prob {
	return t.shards[PartitionOf(src, len(t.shards))].Query(src, tgt)
}

// Close unmaps every shard.
func (t *TTable) Close() error {
	for _, s := range t.shards {
		s.Close()
	}
	return nil
}

// Dump writes a human-readable "src tgt ln(prob) prob int64-of-prob"
// listing of every shard's entries, partitioned by shard, for diagnostic
// tooling.
func (t *TTable) Dump(w io.Writer) error {
	for p, shard := range t.shards {
		if _, err := fmt.Fprintf(w, "# shard %d\n", p); err != nil {
			return err
		}
		if err := shard.dumpTo(w); err != nil {
			return err
		}
	}
	return nil
}

// dumpTo writes this shard's entries in src/tgt ascending order.
func (p *PartialTTable) dumpTo(w io.Writer) error {
	for i := 0; i < p.indexCount; i++ {
		rec := p.indexRecordAt(i)
		n := int(rec.EntryCount)
		for j := 0; j < n; j++ {
			var buf [EntryRecordSize]byte
			off := (rec.EntryOffset + int64(j)) * EntryRecordSize
			if _, err := p.entry.ReadAt(buf[:], off); err != nil && err != io.EOF {
				return perr.WrapStorageError("dump: read entry record", err)
			}
			er := getEntryRecord(buf[:])
			if _, err := fmt.Fprintf(w, "%d\t%d\t%g\t%g\t%d\n",
				rec.Src, er.Tgt, math.Log(er.Prob), er.Prob, walign.DoubleAsInt64(er.Prob)); err != nil {
				return err
			}
		}
	}
	return nil
}
