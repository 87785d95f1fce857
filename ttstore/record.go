// Package ttstore implements the sharded, on-disk, memory-mapped
// translation-table store: PartialTTable (one mmap'd shard), TTable (the
// fan-out over P shards), and TTableWriter (the shard producer the reducer
// writes through).
//
// The on-disk layout is a pair of files "index.<p>" and "entry.<p>"
// holding dense packed arrays of fixed-size little-endian records with no
// header, so file size alone implies record count. A file whose size is
// not a record-size multiple is rejected at load time.
package ttstore

import (
	"encoding/binary"
	"math"

	"github.com/fastalign-go/paralign/walign"
)

// IndexRecordSize is the on-disk size, in bytes, of one index record:
// a 4-byte source word id, an 8-byte entry offset (in entry records,
// not bytes), and an 8-byte entry count.
const IndexRecordSize = 4 + 8 + 8

// EntryRecordSize is the on-disk size, in bytes, of one entry record: a
// 4-byte target word id and an 8-byte IEEE-754 double.
const EntryRecordSize = 4 + 8

// indexRecord mirrors one record of an "index.<p>" file.
type indexRecord struct {
	Src         walign.WordId
	EntryOffset int64
	EntryCount  uint64
}

func putIndexRecord(buf []byte, r indexRecord) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Src))
	binary.LittleEndian.PutUint64(buf[4:12], uint64(r.EntryOffset))
	binary.LittleEndian.PutUint64(buf[12:20], r.EntryCount)
}

func getIndexRecord(buf []byte) indexRecord {
	return indexRecord{
		Src:         walign.WordId(int32(binary.LittleEndian.Uint32(buf[0:4]))),
		EntryOffset: int64(binary.LittleEndian.Uint64(buf[4:12])),
		EntryCount:  binary.LittleEndian.Uint64(buf[12:20]),
	}
}

// entryRecord mirrors one record of an "entry.<p>" file.
type entryRecord struct {
	Tgt  walign.WordId
	Prob walign.Prob
}

func putEntryRecord(buf []byte, r entryRecord) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Tgt))
	binary.LittleEndian.PutUint64(buf[4:12], math.Float64bits(r.Prob))
}

func getEntryRecord(buf []byte) entryRecord {
	return entryRecord{
		Tgt:  walign.WordId(int32(binary.LittleEndian.Uint32(buf[0:4]))),
		Prob: math.Float64frombits(binary.LittleEndian.Uint64(buf[4:12])),
	}
}
