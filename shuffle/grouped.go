package shuffle

import "github.com/fastalign-go/paralign/walign"

// GroupedSource exposes the reducer/combiner's view of a shuffle stream:
// one record at a time, with Done()/Key()/Value() cursor access. The
// shuffle substrate guarantees records sharing a key are delivered
// consecutively; GroupedSource does not re-sort or buffer, it only
// tracks whether input remains.
type GroupedSource struct {
	src  Source
	cur  Record
	have bool
	err  error
}

// NewGroupedSource wraps src and primes the first record.
func NewGroupedSource(src Source) *GroupedSource {
	g := &GroupedSource{src: src}
	g.advance()
	return g
}

// Done reports whether the stream is exhausted (or hit an error).
func (g *GroupedSource) Done() bool { return !g.have }

// Key returns the current record's key. Must not be called when Done().
func (g *GroupedSource) Key() walign.WordId { return g.cur.Key }

// Value returns the current record's raw value. Must not be called when Done().
func (g *GroupedSource) Value() string { return g.cur.Value }

// Err returns the first error encountered reading the underlying source,
// if any.
func (g *GroupedSource) Err() error { return g.err }

// Next advances to the next record.
func (g *GroupedSource) Next() {
	g.advance()
}

func (g *GroupedSource) advance() {
	if g.err != nil {
		g.have = false
		return
	}
	rec, ok, err := g.src.Next()
	if err != nil {
		g.err = err
		g.have = false
		return
	}
	if !ok {
		g.have = false
		return
	}
	g.cur = rec
	g.have = true
}
