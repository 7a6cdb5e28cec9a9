package mesh

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/hexshield/internal/shielding"
)

func testPanel(t *testing.T, fast bool) *shielding.Panel {
	t.Helper()
	panel, err := shielding.NewPanel(shielding.PanelParams{
		FrequencyGHz: 2.45,
		TargetSE:     16,
		FieldX:       20,
		FieldY:       20,
		Precision:    0.1,
		Fast:         fast,
	})
	require.NoError(t, err)
	return panel
}

func TestHeight(t *testing.T) {
	assert.InDelta(t, 0.4842, Height(0.5591), 1e-12)
	assert.InDelta(t, 0.8661, Height(1.0), 1e-12)

	// non-decreasing in line length
	prev := Height(0.001)
	for l := 0.002; l < 6.2; l += 0.001 {
		h := Height(l)
		require.GreaterOrEqual(t, h, prev, "height decreased at line length %v", l)
		prev = h
	}
}

func TestIntervalY(t *testing.T) {
	assert.InDelta(t, 5.1588, IntervalY(6.1182, 0.5591), 1e-12)
}

func TestApertureArea(t *testing.T) {
	// regular hexagon with edge a has area 3*sqrt(3)/2 * a^2
	assert.InDelta(t, 3*math.Sqrt(3)/2, ApertureArea(2), 1e-12)
}

func TestCouplingApertures(t *testing.T) {
	m := NewModel(testPanel(t, false))
	area := m.Panel().AreaInterval()

	tests := []struct {
		name      string
		line      float64
		intervalX float64
		want      int
	}{
		{"interval beyond area interval", 0.5, area + 0.01, 0},
		{"interval equal to area interval", 0.5, area, 6},
		{"second tier", 0.5, 3.0, 12},
		{"third tier", 0.5, 1.5, 18},
		{"wide hexagon stays in second tier", 2.0, 2.5, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.CouplingApertures(tt.line, Height(tt.line), tt.intervalX)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEffectiveness(t *testing.T) {
	m := NewModel(testPanel(t, false))
	wavelength := m.Panel().Wavelength()

	base, err := m.BaseEffectiveness(0.5591)
	require.NoError(t, err)
	assert.InDelta(t, 20*math.Log10(wavelength/(2*0.5591)), base, 1e-12)
	assert.InDelta(t, 20.7827, base, 1e-4)

	// no coupling reduces to the base formula
	se0, err := m.Effectiveness(0.5591, 0)
	require.NoError(t, err)
	assert.Equal(t, base, se0)

	se6, err := m.Effectiveness(0.5591, 6)
	require.NoError(t, err)
	assert.InDelta(t, base-20*math.Log10(math.Sqrt(7)), se6, 1e-12)

	_, err = m.BaseEffectiveness(0)
	assert.True(t, shielding.IsDomainError(err))
	_, err = m.Effectiveness(-1, 6)
	assert.True(t, shielding.IsDomainError(err))
}

func TestLayout(t *testing.T) {
	m := NewModel(testPanel(t, true))

	l, err := m.Layout(0.4842, 6.1182, 5.1588)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 3, 3}, l.Rows)
	assert.Equal(t, 12, l.Apertures)

	_, err = m.Layout(0, 0, 1)
	assert.True(t, shielding.IsDomainError(err), "zero column pitch must be a domain error")
	_, err = m.Layout(0.5, 1, -0.5)
	assert.True(t, shielding.IsDomainError(err), "zero row pitch must be a domain error")
}

func TestLayoutOffsetRowsHoldFewerApertures(t *testing.T) {
	m := NewModel(testPanel(t, false))

	// dense mesh: 0.3591 cm hexagons at a 5.5237 cm interval
	height := Height(0.3591)
	l, err := m.Layout(height, 5.5237, IntervalY(5.5237, 0.3591))
	require.NoError(t, err)
	require.NotEmpty(t, l.Rows)

	sum := 0
	for i, n := range l.Rows {
		sum += n
		if i%2 == 1 {
			assert.LessOrEqual(t, n, l.Rows[0])
		}
	}
	assert.Equal(t, sum, l.Apertures)
	assert.Equal(t, 12, l.Apertures)
}

func TestEvaluateFastMode(t *testing.T) {
	m := NewModel(testPanel(t, true))
	wavelength := m.Panel().Wavelength()

	// the interval passed in is ignored: fast mode pins it to lambda/2
	r, err := m.Evaluate(shielding.Candidate{LineLength: 0.5591, IntervalX: 1})
	require.NoError(t, err)

	assert.Equal(t, m.Panel().AreaInterval(), r.IntervalX)
	assert.InDelta(t, 5.1588, r.IntervalY, 1e-12)
	assert.InDelta(t, 0.4842, r.Height, 1e-12)
	assert.Equal(t, 12, r.Apertures)
	assert.Equal(t, []int{3, 3, 3, 3}, r.Rows)
	assert.InDelta(t, 12*ApertureArea(0.5591), r.Field, 1e-12)
	assert.Zero(t, r.CouplingApertures)
	assert.InDelta(t, 20*math.Log10(wavelength/(2*0.5591)), r.Effectiveness, 1e-12)
}

func TestEvaluateFullModeAppliesCoupling(t *testing.T) {
	fast := NewModel(testPanel(t, true))
	full := NewModel(testPanel(t, false))
	area := full.Panel().AreaInterval()

	// at the area interval with no coupling tier the two modes agree
	rFast, err := fast.Evaluate(shielding.Candidate{LineLength: 0.9591})
	require.NoError(t, err)
	rFull, err := full.Evaluate(shielding.Candidate{LineLength: 0.9591, IntervalX: area + 0.0055})
	require.NoError(t, err)
	assert.Zero(t, rFull.CouplingApertures)
	assert.Equal(t, rFast.Effectiveness, rFull.Effectiveness)

	rDense, err := full.Evaluate(shielding.Candidate{LineLength: 0.3591, IntervalX: 3.5237})
	require.NoError(t, err)
	assert.Equal(t, 6, rDense.CouplingApertures)
	base, err := full.BaseEffectiveness(0.3591)
	require.NoError(t, err)
	assert.InDelta(t, base-20*math.Log10(math.Sqrt(7)), rDense.Effectiveness, 1e-12)
	assert.Equal(t, 27, rDense.Apertures)
}

func TestEvaluateDomainErrors(t *testing.T) {
	full := NewModel(testPanel(t, false))

	tests := []struct {
		name string
		c    shielding.Candidate
	}{
		{"zero line length", shielding.Candidate{LineLength: 0, IntervalX: 2}},
		{"negative line length", shielding.Candidate{LineLength: -0.5, IntervalX: 2}},
		{"NaN line length", shielding.Candidate{LineLength: math.NaN(), IntervalX: 2}},
		{"zero interval", shielding.Candidate{LineLength: 0.5, IntervalX: 0}},
		{"negative interval", shielding.Candidate{LineLength: 0.5, IntervalX: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := full.Evaluate(tt.c)
			require.Error(t, err)
			assert.True(t, shielding.IsDomainError(err))
		})
	}
}
