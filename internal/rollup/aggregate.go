package rollup

// Aggregate is the running sum over a set of records: a record count plus,
// per value type, the sum of values and the sum of variances. Summing
// variances propagates uncertainty for independent contributions.
type Aggregate struct {
	Count uint64
	Sums  []float64
	Vars  []float64
}

// NewAggregate returns a zero aggregate sized for nvals value types.
func NewAggregate(nvals int) Aggregate {
	return Aggregate{
		Sums: make([]float64, nvals),
		Vars: make([]float64, nvals),
	}
}

// AddRecord accumulates one record's values.
func (a *Aggregate) AddRecord(values, variance []float64) {
	a.Count++
	for i, v := range values {
		a.Sums[i] += v
		a.Vars[i] += variance[i]
	}
}

// Add accumulates another aggregate elementwise.
func (a *Aggregate) Add(b Aggregate) {
	a.Count += b.Count
	for i, v := range b.Sums {
		a.Sums[i] += v
		a.Vars[i] += b.Vars[i]
	}
}

// Clone returns an independent copy.
func (a Aggregate) Clone() Aggregate {
	out := Aggregate{Count: a.Count}
	out.Sums = append([]float64(nil), a.Sums...)
	out.Vars = append([]float64(nil), a.Vars...)
	return out
}
