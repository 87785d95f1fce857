// Package viterbi implements the argmax alignment decoder: for each
// target position, pick the source position maximizing
// pi(a) * p(f_j | e_a) under the same prior the E-step uses, and emit
// non-null alignment points. The prior math lives in mapper.Priors so
// the two stages cannot drift apart.
package viterbi

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fastalign-go/paralign/mapper"
	"github.com/fastalign-go/paralign/perr"
	"github.com/fastalign-go/paralign/walign"
)

// Point is one emitted alignment point (source index, target index), both
// zero-based.
type Point struct {
	I, J int
}

// Sink accepts one decoded alignment per sentence.
type Sink interface {
	WriteAlignment(id int64, points []Point) error
}

// Decoder finds the best alignment for each sentence pair under opts'
// prior, using table for lexical probabilities.
type Decoder struct {
	opts  mapper.Options
	table mapper.Querier
}

// New builds a Decoder against table under opts (the same Options type
// the E-step uses; the prior is identical).
func New(opts mapper.Options, table mapper.Querier) *Decoder {
	return &Decoder{opts: opts, table: table}
}

// Decode returns the best alignment points for one sentence pair, as
// (index into src, index into tgt) regardless of which array plays which
// conceptual role. Run swaps src/tgt first under the reverse option and
// swaps each point's two coordinates back afterward, so emitted points
// always describe the original orientation.
func (d *Decoder) Decode(src, tgt []walign.WordId) []Point {
	n := len(src)
	mLen := len(tgt)
	var points []Point

	for j := 0; j < mLen; j++ {
		fj := tgt[j]
		pi0, piNonNull := mapper.Priors(d.opts, j+1, mLen, n)

		maxIdx := -1
		var maxP float64 = -1

		if !d.opts.NoNullWord {
			maxP = float64(d.table.Query(walign.KNull, fj)) * pi0
			maxIdx = 0
		}
		for i := 1; i <= n; i++ {
			p := float64(d.table.Query(src[i-1], fj)) * piNonNull(i)
			if p > maxP {
				maxP = p
				maxIdx = i
			}
		}

		if maxIdx > 0 {
			points = append(points, Point{I: maxIdx - 1, J: j})
		}
	}
	return points
}

// Run streams sentences from r (same wire format as mapper input, with a
// leading sentence id) and writes one alignment record per sentence to
// out.
func (d *Decoder) Run(r io.Reader, out Sink) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		s, err := mapper.ParseSentence(line)
		if err != nil {
			return err
		}
		src, tgt := s.Src, s.Tgt
		if d.opts.Reverse {
			src, tgt = tgt, src
		}
		points := d.Decode(src, tgt)
		if d.opts.Reverse {
			for i := range points {
				points[i] = Point{I: points[i].J, J: points[i].I}
			}
		}
		if err := out.WriteAlignment(s.ID, points); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return perr.WrapWireFormatError("reading viterbi input", err)
	}
	return nil
}

// LineSink writes "id<TAB>i0-j0 i1-j1 ...\n" records to w. Sentences
// with no emitted points write "id<TAB>\n".
type LineSink struct {
	w io.Writer
}

// NewLineSink wraps w for textual Viterbi output.
func NewLineSink(w io.Writer) *LineSink {
	return &LineSink{w: w}
}

func (s *LineSink) WriteAlignment(id int64, points []Point) error {
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(a, b int) bool {
		if sorted[a].J != sorted[b].J {
			return sorted[a].J < sorted[b].J
		}
		return sorted[a].I < sorted[b].I
	})
	parts := make([]string, len(sorted))
	for i, p := range sorted {
		parts[i] = strconv.Itoa(p.I) + "-" + strconv.Itoa(p.J)
	}
	_, err := fmt.Fprintf(s.w, "%d\t%s\n", id, strings.Join(parts, " "))
	return err
}
