package sweep

import "math"

// Steps is the half-open arithmetic sequence start, start+step, ... < stop.
type Steps struct {
	start float64
	step  float64
	n     int
}

// Range builds a sequence with numpy arange semantics: the length is
// ceil((stop-start)/step) and the i-th value is start + i*step, computed
// directly rather than accumulated. A non-positive step or an empty interval
// yields an empty sequence; a length beyond math.MaxInt saturates.
func Range(start, stop, step float64) Steps {
	s := Steps{start: start, step: step}
	if !(step > 0 && stop > start) {
		return s
	}
	switch n := math.Ceil((stop - start) / step); {
	case math.IsNaN(n):
	case n >= math.MaxInt:
		s.n = math.MaxInt
	default:
		s.n = int(n)
	}
	return s
}

// Len returns the number of values in the sequence.
func (s Steps) Len() int { return s.n }

// At returns the i-th value.
func (s Steps) At(i int) float64 {
	return s.start + float64(i)*s.step
}

// Values materializes the sequence.
func (s Steps) Values() []float64 {
	out := make([]float64, s.n)
	for i := range out {
		out[i] = s.At(i)
	}
	return out
}
