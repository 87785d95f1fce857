// Package ttable implements TTableEntry, the sorted-merge row at the heart
// of the alignment model's conditional-probability table: a strictly
// ascending, duplicate-free, zero-pruned vector of (WordId, Prob) items
// indexed by target word, for one source word. A plain sorted contiguous
// buffer with an associative merge, not a tree-shaped map: rows are
// merged and scanned far more often than they are point-queried.
package ttable

import (
	"log/slog"
	"math"
	"sort"

	"github.com/fastalign-go/paralign/walign"
)

// Item is one (target word, probability) pair within an Entry.
type Item struct {
	Tgt  walign.WordId
	Prob walign.Prob
}

// Entry is a row of a translation table, indexed by one source word.
// Items are kept strictly sorted ascending by Tgt, with unique keys and no
// zero-probability items. The zero value is an empty entry.
type Entry struct {
	items []Item
}

// New builds an Entry from parallel key/probability slices, keeping only
// items whose probability is nonzero. Keys need not arrive sorted; the
// result is.
func New(keys []walign.WordId, probs []walign.Prob) *Entry {
	e := &Entry{items: make([]Item, 0, len(keys))}
	for i, k := range keys {
		if probs[i] == 0 {
			continue
		}
		e.items = append(e.items, Item{Tgt: k, Prob: probs[i]})
	}
	sort.Slice(e.items, func(i, j int) bool { return e.items[i].Tgt < e.items[j].Tgt })
	return e
}

// Empty reports whether the entry has no items.
func (e *Entry) Empty() bool { return len(e.items) == 0 }

// Size returns the number of items.
func (e *Entry) Size() int { return len(e.items) }

// Items returns the entry's items in ascending Tgt order. The returned
// slice is owned by the entry and must not be mutated by the caller.
func (e *Entry) Items() []Item { return e.items }

// Clear empties the entry for reuse.
func (e *Entry) Clear() {
	e.items = e.items[:0]
}

// Add appends a single (tgt, prob) item that is already known to be
// greater than every existing key, as produced by in-mapper accumulation
// over an ordered map. A zero probability is dropped.
func (e *Entry) Add(tgt walign.WordId, prob walign.Prob) {
	if prob == 0 {
		return
	}
	e.items = append(e.items, Item{Tgt: tgt, Prob: prob})
}

// Get returns the probability stored for tgt and whether it was found.
func (e *Entry) Get(tgt walign.WordId) (walign.Prob, bool) {
	i := sort.Search(len(e.items), func(i int) bool { return e.items[i].Tgt >= tgt })
	if i < len(e.items) && e.items[i].Tgt == tgt {
		return e.items[i].Prob, true
	}
	return 0, false
}

// Normalize divides every probability by their sum. An empty entry is a
// no-op. A zero sum is a NumericWarning-class condition: it is logged and
// the values are left unchanged rather than risk dividing by zero into
// NaNs.
func (e *Entry) Normalize() {
	if e.Empty() {
		return
	}
	var sum float64
	for _, it := range e.items {
		sum += it.Prob
	}
	if sum == 0 {
		slog.Warn("ttable: Normalize on zero-sum entry, leaving values unchanged", "size", e.Size())
		return
	}
	for i := range e.items {
		e.items[i].Prob /= sum
	}
}

// NormalizeVB applies the mean-field update under a symmetric
// Dirichlet(alpha) prior: prob <- exp(digamma(prob+alpha) - digamma(S))
// where S = alpha*size + sum(prob). alpha must be > 0.
func (e *Entry) NormalizeVB(alpha float64) {
	if e.Empty() {
		return
	}
	m := float64(e.Size())
	var sum float64
	for _, it := range e.items {
		sum += it.Prob
	}
	s := alpha*m + sum
	logDenom := walign.Digamma(s)
	for i := range e.items {
		e.items[i].Prob = math.Exp(walign.Digamma(e.items[i].Prob+alpha) - logDenom)
	}
}

// PlusEq performs a sorted linear merge of a and b by Tgt into out (cleared
// first). Matching keys have their probabilities summed; if the sum is
// exactly zero the item is dropped. Associative and commutative on entries
// that honor the sortedness/uniqueness invariant.
func PlusEq(a, b *Entry, out *Entry) {
	out.Clear()
	ai, bi := a.items, b.items
	i, j := 0, 0
	for i < len(ai) && j < len(bi) {
		switch {
		case ai[i].Tgt < bi[j].Tgt:
			out.items = append(out.items, ai[i])
			i++
		case ai[i].Tgt > bi[j].Tgt:
			out.items = append(out.items, bi[j])
			j++
		default:
			sum := ai[i].Prob + bi[j].Prob
			if sum != 0 {
				out.items = append(out.items, Item{Tgt: ai[i].Tgt, Prob: sum})
			}
			i++
			j++
		}
	}
	out.items = append(out.items, ai[i:]...)
	out.items = append(out.items, bi[j:]...)
}

// Equal reports whether two entries have identical items in the same
// order, used by tests and the combiner/reducer associativity checks.
func Equal(a, b *Entry) bool {
	if a.Size() != b.Size() {
		return false
	}
	for i, it := range a.items {
		if b.items[i] != it {
			return false
		}
	}
	return true
}
