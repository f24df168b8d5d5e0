package engine

// Budget caps how many annotations one apply call will draw. Once spent,
// further annotations are dropped silently; the apply loop keeps running so
// page copies and earlier annotations are unaffected.
type Budget struct {
	remaining int
}

// NewBudget returns a budget allowing n draws.
func NewBudget(n int) *Budget {
	if n < 0 {
		n = 0
	}
	return &Budget{remaining: n}
}

// Take reserves one draw. It returns false once the budget is spent.
func (b *Budget) Take() bool {
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

// Remaining returns the number of draws left.
func (b *Budget) Remaining() int { return b.remaining }

// Exhausted reports whether the budget is spent.
func (b *Budget) Exhausted() bool { return b.remaining <= 0 }
