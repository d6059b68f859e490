package diag

import (
	"cmp"
	"slices"
)

// Bag keeps diagnostics up to a limit and counts the overflow.
type Bag struct {
	items   []Diagnostic
	limit   int
	dropped int
}

// NewBag returns a bag holding at most limit diagnostics, at least one.
func NewBag(limit int) *Bag {
	limit = max(limit, 1)
	return &Bag{items: make([]Diagnostic, 0, min(limit, 64)), limit: limit}
}

// Add stores d and reports whether it fit.
func (b *Bag) Add(d Diagnostic) bool {
	if len(b.items) >= b.limit {
		b.dropped++
		return false
	}
	b.items = append(b.items, d)
	return true
}

func (b *Bag) Dropped() int { return b.dropped }

func (b *Bag) HasErrors() bool {
	return slices.ContainsFunc(b.items, Diagnostic.IsError)
}

func (b *Bag) Len() int { return len(b.items) }

// Items is the bag's own slice. Do not modify it.
func (b *Bag) Items() []Diagnostic { return b.items }

// Reset empties the bag and keeps its limit.
func (b *Bag) Reset() {
	b.items = b.items[:0]
	b.dropped = 0
}

// Sort orders by file, position, severity (errors first) and code.
func (b *Bag) Sort() {
	slices.SortStableFunc(b.items, func(x, y Diagnostic) int {
		return cmp.Or(
			cmp.Compare(x.Primary.File, y.Primary.File),
			cmp.Compare(x.Primary.Start, y.Primary.Start),
			cmp.Compare(x.Primary.End, y.Primary.End),
			cmp.Compare(y.Severity, x.Severity),
			cmp.Compare(x.Code, y.Code),
		)
	})
}
