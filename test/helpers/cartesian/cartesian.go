// Package cartesian iterates over the cartesian product of sets of values,
// for table tests that need every combination of a few settings.
package cartesian

// Product walks the combinations in odometer order: the last set changes
// fastest.
type Product struct {
	sets    [][]any
	idx     []int
	started bool
	done    bool
}

// New creates an iterator over the product of sets. With no sets, or with an
// empty set, there are no combinations.
func New(sets ...[]any) *Product {
	p := &Product{
		sets: sets,
		idx:  make([]int, len(sets)),
	}
	if len(sets) == 0 {
		p.done = true
	}
	for _, s := range sets {
		if len(s) == 0 {
			p.done = true
		}
	}
	return p
}

// Next advances to the next combination and reports whether there is one.
func (p *Product) Next() bool {
	if p.done {
		return false
	}
	if !p.started {
		p.started = true
		return true
	}

	for i := len(p.idx) - 1; i >= 0; i-- {
		p.idx[i]++
		if p.idx[i] < len(p.sets[i]) {
			return true
		}
		p.idx[i] = 0
	}
	p.done = true
	return false
}

// Values returns the current combination, or nil before the first call to
// Next and after the last one.
func (p *Product) Values() []any {
	if !p.started || p.done {
		return nil
	}
	out := make([]any, len(p.sets))
	for i, j := range p.idx {
		out[i] = p.sets[i][j]
	}
	return out
}

// All returns every combination.
func All(sets ...[]any) [][]any {
	var out [][]any
	for p := New(sets...); p.Next(); {
		out = append(out, p.Values())
	}
	return out
}
