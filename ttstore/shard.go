package ttstore

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/valyala/bytebufferpool"
	"golang.org/x/exp/mmap"
	"golang.org/x/sys/unix"

	"github.com/fastalign-go/paralign/perr"
	"github.com/fastalign-go/paralign/walign"
)

// PartialTTable is one shard of the distributed translation table: a
// read-only, memory-mapped pair of index/entry files exposing O(log n)
// point queries for p(f | e). The mmaps are owned by the shard, so it is
// not copyable; mappings are shared read-only across processes on a
// host.
type PartialTTable struct {
	index      mmapReaderAt
	entry      mmapReaderAt
	indexCount int
}

// mmapReaderAt is the subset of *mmap.ReaderAt this package depends on, so
// tests can substitute an in-memory fake without touching the filesystem.
type mmapReaderAt interface {
	io.ReaderAt
	Len() int
	Close() error
}

// Load memory-maps indexPath and entryPath read-only. A file whose size is
// not an exact multiple of its record size is rejected with a
// StorageError. Zero-length files are treated as an empty shard.
func Load(indexPath, entryPath string) (*PartialTTable, error) {
	idx, err := mmap.Open(indexPath)
	if err != nil {
		return nil, perr.WrapStorageError("open index file "+indexPath, err)
	}
	ent, err := mmap.Open(entryPath)
	if err != nil {
		idx.Close()
		return nil, perr.WrapStorageError("open entry file "+entryPath, err)
	}
	adviseRandom(indexPath)
	adviseRandom(entryPath)
	return newPartialTTable(idx, ent)
}

func newPartialTTable(idx, ent mmapReaderAt) (*PartialTTable, error) {
	if idx.Len()%IndexRecordSize != 0 {
		idx.Close()
		ent.Close()
		return nil, perr.NewStorageError("index file size %d is not a multiple of record size %d", idx.Len(), IndexRecordSize)
	}
	if ent.Len()%EntryRecordSize != 0 {
		idx.Close()
		ent.Close()
		return nil, perr.NewStorageError("entry file size %d is not a multiple of record size %d", ent.Len(), EntryRecordSize)
	}
	return &PartialTTable{
		index:      idx,
		entry:      ent,
		indexCount: idx.Len() / IndexRecordSize,
	}, nil
}

// adviseRandom issues a best-effort posix_fadvise(RANDOM) hint for the
// file's pages; point queries touch them in no useful readahead order.
// The advice applies to the page cache, so a short-lived descriptor is
// enough.
func adviseRandom(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	if err := unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_RANDOM); err != nil {
		slog.Warn("ttstore: fadvise(RANDOM) failed", "path", path, "error", err)
	}
}

func (p *PartialTTable) indexKeyAt(i int) int32 {
	var buf [IndexRecordSize]byte
	p.index.ReadAt(buf[:], int64(i)*IndexRecordSize)
	return int32(getIndexRecord(buf[:]).Src)
}

func (p *PartialTTable) indexRecordAt(i int) indexRecord {
	var buf [IndexRecordSize]byte
	p.index.ReadAt(buf[:], int64(i)*IndexRecordSize)
	return getIndexRecord(buf[:])
}

// Query returns p(tgt | src), or KDefaultProbability if src is unknown to
// this shard or tgt is unknown under src.
func (p *PartialTTable) Query(src, tgt walign.WordId) walign.Prob {
	i, found := lowerBoundSearch(p.indexCount, p.indexKeyAt, int32(src))
	if !found {
		return walign.KDefaultProbability
	}
	rec := p.indexRecordAt(i)
	if rec.EntryCount == 0 {
		return walign.KDefaultProbability
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	n := int(rec.EntryCount)
	buf.B = buf.B[:0]
	byteLen := n * EntryRecordSize
	if cap(buf.B) < byteLen {
		buf.B = make([]byte, byteLen)
	} else {
		buf.B = buf.B[:byteLen]
	}
	byteOff := rec.EntryOffset * EntryRecordSize
	if _, err := p.entry.ReadAt(buf.B, byteOff); err != nil && !errors.Is(err, io.EOF) {
		slog.Warn("ttstore: short read on entry group", "src", src, "error", err)
		return walign.KDefaultProbability
	}

	keyAt := func(i int) int32 {
		off := i * EntryRecordSize
		return int32(getEntryRecord(buf.B[off : off+EntryRecordSize]).Tgt)
	}
	j, found := lowerBoundSearch(n, keyAt, int32(tgt))
	if !found {
		return walign.KDefaultProbability
	}
	off := j * EntryRecordSize
	return getEntryRecord(buf.B[off : off+EntryRecordSize]).Prob
}

// Close unmaps the shard's files. Unmapping errors are logged, not fatal.
func (p *PartialTTable) Close() error {
	if err := p.index.Close(); err != nil {
		slog.Warn("ttstore: munmap index failed", "error", err)
	}
	if err := p.entry.Close(); err != nil {
		slog.Warn("ttstore: munmap entry failed", "error", err)
	}
	return nil
}
