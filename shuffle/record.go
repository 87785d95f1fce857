// Package shuffle implements the textual wire protocol used between
// mapper, combiner, and reducer stages, and a pair of small interfaces
// (Source, Sink) that stand in for the external job-launcher's shuffle
// transport: an interface offering iteration over key-grouped records
// and a sink that accepts (key, value). Different deployments plug in
// different back-ends; the line codec below is the format they all
// carry.
package shuffle

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fastalign-go/paralign/perr"
	"github.com/fastalign-go/paralign/ttable"
	"github.com/fastalign-go/paralign/walign"
)

// Record is one "KEY<TAB>VALUE" shuffle line, key already parsed.
type Record struct {
	Key   walign.WordId
	Value string
}

// EncodeEntry renders a row as its shuffle value form:
// "N k1 v1 k2 v2 ..." with N the decimal item count, ki ascending target
// WordIds, and vi the int64-of-double wire form of the probability.
func EncodeEntry(e *ttable.Entry) string {
	items := e.Items()
	var b strings.Builder
	fmt.Fprintf(&b, "%d", len(items))
	for _, it := range items {
		fmt.Fprintf(&b, " %d %d", it.Tgt, walign.DoubleAsInt64(it.Prob))
	}
	return b.String()
}

// DecodeEntry parses a row value. Deserialization is strict: a
// non-integer count, fewer items than advertised, or unsorted/duplicate
// keys is a WireFormatError; the input stream is corrupt and retrying is
// futile.
func DecodeEntry(value string) (*ttable.Entry, error) {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return nil, perr.NewWireFormatError("ttable entry: empty value, missing item count")
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, perr.WrapWireFormatError("ttable entry: non-integer count "+fields[0], err)
	}
	if n < 0 {
		return nil, perr.NewWireFormatError("ttable entry: negative count %d", n)
	}
	if len(fields) != 1+2*n {
		return nil, perr.NewWireFormatError("ttable entry: advertised %d items but got %d fields of payload", n, len(fields)-1)
	}

	keys := make([]walign.WordId, n)
	probs := make([]walign.Prob, n)
	var prevKey walign.WordId
	for i := 0; i < n; i++ {
		kField := fields[1+2*i]
		vField := fields[2+2*i]
		k, err := strconv.ParseInt(kField, 10, 32)
		if err != nil {
			return nil, perr.WrapWireFormatError("ttable entry: non-integer target id "+kField, err)
		}
		v, err := strconv.ParseInt(vField, 10, 64)
		if err != nil {
			return nil, perr.WrapWireFormatError("ttable entry: non-integer probability bits "+vField, err)
		}
		key := walign.WordId(k)
		if i > 0 && key <= prevKey {
			return nil, perr.NewWireFormatError("ttable entry: target ids not strictly ascending at index %d (%d after %d)", i, key, prevKey)
		}
		prevKey = key
		keys[i] = key
		probs[i] = walign.DoubleFromInt64(v)
	}
	return ttable.New(keys, probs), nil
}

// EncodeScalar renders a single meta scalar (emp_feat, toks,
// log_likelihood) as its int64-of-double decimal wire form.
func EncodeScalar(v float64) string {
	return strconv.FormatInt(walign.DoubleAsInt64(v), 10)
}

// DecodeScalar parses a meta scalar value.
func DecodeScalar(value string) (float64, error) {
	value = strings.TrimSpace(value)
	i, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, perr.WrapWireFormatError("scalar meta value: non-integer "+value, err)
	}
	return walign.DoubleFromInt64(i), nil
}

// EncodeSizeCounts renders the kSizeCountsKey payload: a whitespace
// separated sequence of "pair count" pairs, pair being the decimal of the
// packed SentSzPair. Pairs are emitted in ascending key order so that two
// runs over the same input produce byte-identical output (map iteration
// order is otherwise unspecified in Go).
func EncodeSizeCounts(counts map[walign.SentSzPair]int64) string {
	pairs := make([]walign.SentSzPair, 0, len(counts))
	for p := range counts {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i] < pairs[j] })

	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%d %d", uint32(p), counts[p])
	}
	return b.String()
}

// DecodeSizeCounts parses a kSizeCountsKey payload, accumulating into dst.
func DecodeSizeCounts(value string, dst map[walign.SentSzPair]int64) error {
	fields := strings.Fields(value)
	if len(fields)%2 != 0 {
		return perr.NewWireFormatError("size counts: odd field count %d", len(fields))
	}
	for i := 0; i < len(fields); i += 2 {
		p, err := strconv.ParseUint(fields[i], 10, 32)
		if err != nil {
			return perr.WrapWireFormatError("size counts: non-integer pair "+fields[i], err)
		}
		c, err := strconv.ParseInt(fields[i+1], 10, 64)
		if err != nil {
			return perr.WrapWireFormatError("size counts: non-integer count "+fields[i+1], err)
		}
		dst[walign.SentSzPair(p)] += c
	}
	return nil
}

// WriteEntry writes one "src<TAB>entry\n" shuffle line.
func WriteEntry(w io.Writer, src walign.WordId, e *ttable.Entry) error {
	_, err := fmt.Fprintf(w, "%d\t%s\n", src, EncodeEntry(e))
	return err
}

// WriteScalar writes one "key<TAB>scalar\n" shuffle line.
func WriteScalar(w io.Writer, key walign.WordId, v float64) error {
	_, err := fmt.Fprintf(w, "%d\t%s\n", key, EncodeScalar(v))
	return err
}

// WriteSizeCounts writes one "kSizeCountsKey<TAB>payload\n" shuffle line.
func WriteSizeCounts(w io.Writer, counts map[walign.SentSzPair]int64) error {
	_, err := fmt.Fprintf(w, "%d\t%s\n", walign.KSizeCountsKey, EncodeSizeCounts(counts))
	return err
}

// ParseLine splits one "KEY<TAB>VALUE" shuffle line (without its trailing
// newline) into a Record.
func ParseLine(line string) (Record, error) {
	tab := strings.IndexByte(line, '\t')
	if tab < 0 {
		return Record{}, perr.NewWireFormatError("shuffle record missing TAB separator: %q", line)
	}
	keyField, value := line[:tab], line[tab+1:]
	k, err := strconv.ParseInt(keyField, 10, 32)
	if err != nil {
		return Record{}, perr.WrapWireFormatError("shuffle record: non-integer key "+keyField, err)
	}
	return Record{Key: walign.WordId(k), Value: value}, nil
}

// Source reads shuffle records one at a time from an underlying stream.
// It stands in for the external shuffle substrate on the read side.
type Source interface {
	// Next returns the next record. ok is false at clean end of input.
	Next() (rec Record, ok bool, err error)
}

// Sink accepts shuffle records one at a time. It stands in for the
// external shuffle substrate on the write side.
type Sink interface {
	Emit(rec Record) error
}

// LineSource reads newline-delimited "KEY<TAB>VALUE" records from r. This
// is the local, single-process stand-in for the shuffle transport: a real
// deployment's job launcher groups records by key across many workers
// before they reach a Source implementation, but the wire format it
// delivers is this one.
type LineSource struct {
	sc *bufio.Scanner
}

// NewLineSource wraps r for line-oriented shuffle record reading.
func NewLineSource(r io.Reader) *LineSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	return &LineSource{sc: sc}
}

func (s *LineSource) Next() (Record, bool, error) {
	if !s.sc.Scan() {
		if err := s.sc.Err(); err != nil {
			return Record{}, false, perr.WrapWireFormatError("reading shuffle line", err)
		}
		return Record{}, false, nil
	}
	rec, err := ParseLine(s.sc.Text())
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// LineSink writes newline-delimited "KEY<TAB>VALUE" records to w.
type LineSink struct {
	w io.Writer
}

// NewLineSink wraps w for line-oriented shuffle record writing.
func NewLineSink(w io.Writer) *LineSink {
	return &LineSink{w: w}
}

func (s *LineSink) Emit(rec Record) error {
	_, err := fmt.Fprintf(s.w, "%d\t%s\n", rec.Key, rec.Value)
	return err
}
