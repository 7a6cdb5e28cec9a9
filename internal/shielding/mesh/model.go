// Package mesh evaluates single honeycomb perforation candidates against a panel.
package mesh

import (
	"math"

	"github.com/copyleftdev/hexshield/internal/shielding"
)

// couplingTier is the number of neighbouring apertures added per packing tier.
const couplingTier = 6

// Model computes the geometry and shielding effectiveness of one candidate.
// It holds no state beyond the panel it was built for.
type Model struct {
	panel *shielding.Panel
}

// NewModel creates a geometry model for panel.
func NewModel(panel *shielding.Panel) *Model {
	return &Model{panel: panel}
}

// Panel returns the panel the model evaluates against.
func (m *Model) Panel() *shielding.Panel {
	return m.panel
}

// Height returns the vertical extent of one hexagon, rounded up at the fourth decimal.
func Height(lineLength float64) float64 {
	return shielding.RoundUp((lineLength / 2) * math.Sqrt(3))
}

// IntervalY derives the row spacing from the column spacing.
func IntervalY(intervalX, lineLength float64) float64 {
	return shielding.RoundUp(intervalX*math.Sqrt(3)/2 - lineLength/4)
}

// ApertureArea is the open area of one hexagon with edge lineLength/2.
func ApertureArea(lineLength float64) float64 {
	half := lineLength / 2
	return 3.0 / 2 * (half * half) * math.Sqrt(3)
}

// CouplingApertures returns how many neighbouring apertures couple with
// each aperture: 0 when the interval exceeds the area interval, otherwise
// 6, 12 or 18 depending on how tightly the mesh packs.
func (m *Model) CouplingApertures(lineLength, height, intervalX float64) int {
	area := m.panel.AreaInterval()
	if intervalX > area {
		return 0
	}
	n := couplingTier
	if intervalX*math.Sqrt(3)+lineLength/2 <= area {
		n += couplingTier
		if 2*intervalX+height <= area {
			n += couplingTier
		}
	}
	return n
}

// BaseEffectiveness is the waveguide-below-cutoff SE of a single aperture.
func (m *Model) BaseEffectiveness(lineLength float64) (float64, error) {
	if lineLength <= 0 || math.IsNaN(lineLength) {
		return 0, shielding.DomainErrorf("line length must be positive, got %v", lineLength).
			WithOperation("BaseEffectiveness")
	}
	return 20 * math.Log10(m.panel.Wavelength()/(2*lineLength)), nil
}

// Effectiveness is the base SE reduced by the coupling of n neighbouring apertures.
func (m *Model) Effectiveness(lineLength float64, n int) (float64, error) {
	base, err := m.BaseEffectiveness(lineLength)
	if err != nil {
		return 0, err
	}
	return base - 20*math.Log10(math.Sqrt(float64(n+1))), nil
}

// Layout is the row structure of a mesh on the panel.
type Layout struct {
	Rows      []int
	Apertures int
}

// Layout tiles the usable panel area with hexagons. Odd rows are offset by
// half an aperture and may hold one aperture fewer.
func (m *Model) Layout(height, intervalX, intervalY float64) (Layout, error) {
	rowPitch := height + intervalY
	colPitch := height + intervalX
	if rowPitch == 0 || colPitch == 0 {
		return Layout{}, shielding.DomainErrorf("zero pitch (row %v, column %v)", rowPitch, colPitch).
			WithOperation("Layout")
	}

	usableX := m.panel.FieldX() - 2*m.panel.MinInterval()
	usableY := m.panel.FieldY() - 2*m.panel.MinInterval()

	numRows := int(math.Floor((usableY + intervalY) / rowPitch))
	l := Layout{Rows: make([]int, 0, max(numRows, 0))}
	for row := 0; row < numRows; row++ {
		var n int
		if row%2 == 0 {
			n = int(math.Floor((usableX + intervalX) / colPitch))
		} else {
			n = int(math.Floor((usableX - height/2 - intervalX/2 + intervalX) / colPitch))
		}
		l.Rows = append(l.Rows, n)
		l.Apertures += n
	}
	return l, nil
}

// Evaluate computes the full result for c. In fast mode the interval is
// pinned to the area interval and SE is the base formula alone.
func (m *Model) Evaluate(c shielding.Candidate) (shielding.CandidateResult, error) {
	if c.LineLength <= 0 || math.IsNaN(c.LineLength) {
		return shielding.CandidateResult{}, shielding.DomainErrorf("line length must be positive, got %v", c.LineLength).
			WithOperation("Evaluate")
	}

	intervalX := c.IntervalX
	if m.panel.Fast() {
		intervalX = m.panel.AreaInterval()
	}
	if intervalX <= 0 || math.IsNaN(intervalX) {
		return shielding.CandidateResult{}, shielding.DomainErrorf("interval must be positive, got %v", intervalX).
			WithOperation("Evaluate")
	}

	height := Height(c.LineLength)
	intervalY := IntervalY(intervalX, c.LineLength)

	layout, err := m.Layout(height, intervalX, intervalY)
	if err != nil {
		return shielding.CandidateResult{}, err
	}

	var (
		se       float64
		coupling int
	)
	if m.panel.Fast() {
		se, err = m.BaseEffectiveness(c.LineLength)
	} else {
		coupling = m.CouplingApertures(c.LineLength, height, intervalX)
		se, err = m.Effectiveness(c.LineLength, coupling)
	}
	if err != nil {
		return shielding.CandidateResult{}, err
	}
	if math.IsNaN(se) || math.IsInf(se, 0) {
		return shielding.CandidateResult{}, shielding.DomainErrorf("non-finite effectiveness for line length %v", c.LineLength).
			WithOperation("Evaluate")
	}

	return shielding.CandidateResult{
		LineLength:        c.LineLength,
		Field:             float64(layout.Apertures) * ApertureArea(c.LineLength),
		Apertures:         layout.Apertures,
		Height:            height,
		IntervalX:         intervalX,
		IntervalY:         intervalY,
		Effectiveness:     se,
		CouplingApertures: coupling,
		Rows:              layout.Rows,
	}, nil
}
