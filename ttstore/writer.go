package ttstore

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fastalign-go/paralign/perr"
	"github.com/fastalign-go/paralign/ttable"
	"github.com/fastalign-go/paralign/walign"
)

const (
	fileScheme = "file:"
	hdfsScheme = "hdfs:"
)

// parseAddress splits a shard address into its scheme and path. A
// recognized prefix selects the backing filesystem; an address with no
// prefix is rejected rather than silently assumed local.
func parseAddress(addr string) (scheme, path string, err error) {
	addr = strings.TrimSpace(addr)
	switch {
	case strings.HasPrefix(addr, fileScheme):
		return fileScheme, strings.TrimPrefix(addr, fileScheme), nil
	case strings.HasPrefix(addr, hdfsScheme):
		return hdfsScheme, strings.TrimPrefix(addr, hdfsScheme), nil
	default:
		return "", "", perr.NewConfigError("shard address %q has no recognized protocol prefix (want %q or %q)", addr, fileScheme, hdfsScheme)
	}
}

// TTableWriter writes one shard: an append-only entry file plus the
// index file written once at WriteIndex time. hdfs: addresses are
// resolved through the same local-filesystem path today (no distributed
// filesystem client is wired up here); the scheme is still recognized
// and validated.
type TTableWriter struct {
	indexPath string
	entryPath string

	entryFile *os.File
	entryW    *bufio.Writer

	index      []indexRecord
	entryCount int64

	lastSrc  walign.WordId
	haveLast bool
	closed   bool
}

// NewWriter opens entryAddr for writing (truncating any existing file) and
// prepares to accumulate an index for indexAddr, written by WriteIndex.
func NewWriter(indexAddr, entryAddr string) (*TTableWriter, error) {
	_, indexPath, err := parseAddress(indexAddr)
	if err != nil {
		return nil, err
	}
	entryScheme, entryPath, err := parseAddress(entryAddr)
	if err != nil {
		return nil, err
	}
	_ = entryScheme

	f, err := os.Create(entryPath)
	if err != nil {
		return nil, perr.WrapStorageError("create entry file "+entryPath, err)
	}
	return &TTableWriter{
		indexPath: indexPath,
		entryPath: entryPath,
		entryFile: f,
		entryW:    bufio.NewWriter(f),
	}, nil
}

// Write appends entry's items to the entry file and records src's
// (offset, count) for the index. src must be strictly greater than the
// previously written src; violating this is an InvariantViolation, since
// the on-disk index is only correct under ascending-src delivery.
func (w *TTableWriter) Write(src walign.WordId, entry *ttable.Entry) error {
	if w.haveLast && src <= w.lastSrc {
		return perr.NewInvariantViolation("ttable writer: src %d written out of order after %d", src, w.lastSrc)
	}
	w.lastSrc = src
	w.haveLast = true

	offset := w.entryCount
	if offset*EntryRecordSize < 0 {
		return perr.NewInvariantViolation("ttable writer: entry offset overflow")
	}

	items := entry.Items()
	var buf [EntryRecordSize]byte
	for _, it := range items {
		putEntryRecord(buf[:], entryRecord{Tgt: it.Tgt, Prob: it.Prob})
		if _, err := w.entryW.Write(buf[:]); err != nil {
			return perr.WrapStorageError("write entry record for src "+fmt.Sprint(src), err)
		}
	}
	w.entryCount += int64(len(items))

	w.index = append(w.index, indexRecord{
		Src:         src,
		EntryOffset: offset,
		EntryCount:  uint64(len(items)),
	})
	return nil
}

// WriteIndex flushes the entry file and writes the complete index file in
// ascending src order. It is idempotent-safe to call once; calling it is
// mandatory even when no rows were written, so the shard has a valid (empty)
// index.
func (w *TTableWriter) WriteIndex() error {
	if err := w.entryW.Flush(); err != nil {
		return perr.WrapStorageError("flush entry file "+w.entryPath, err)
	}

	idxFile, err := os.Create(w.indexPath)
	if err != nil {
		return perr.WrapStorageError("create index file "+w.indexPath, err)
	}
	defer idxFile.Close()

	iw := bufio.NewWriter(idxFile)
	var buf [IndexRecordSize]byte
	for _, rec := range w.index {
		putIndexRecord(buf[:], rec)
		if _, err := iw.Write(buf[:]); err != nil {
			return perr.WrapStorageError("write index record", err)
		}
	}
	if err := iw.Flush(); err != nil {
		return perr.WrapStorageError("flush index file "+w.indexPath, err)
	}
	return nil
}

// Close flushes and releases the entry file handle. It is safe to call more
// than once.
func (w *TTableWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.entryW.Flush(); err != nil {
		w.entryFile.Close()
		return perr.WrapStorageError("flush entry file on close", err)
	}
	if err := w.entryFile.Close(); err != nil {
		return perr.WrapStorageError("close entry file "+w.entryPath, err)
	}
	return nil
}
