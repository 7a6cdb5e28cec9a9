package shielding

import (
	"math"
)

const (
	// SpeedOfLight in metres per second.
	SpeedOfLight = 299792458.0

	// AcceptanceBand is the width, in dB, of the window above the target SE
	// in which a candidate is accepted.
	AcceptanceBand = 0.3

	// FieldFloor is the fraction of the best field seen so far below which a
	// candidate is rejected even if it adds apertures.
	FieldFloor = 0.01

	// MaxSweepSteps bounds the number of steps along either sweep axis.
	MaxSweepSteps = 100_000_000

	roundingScale = 10000.0
)

// RoundUp rounds x up at the fourth decimal place.
func RoundUp(x float64) float64 {
	return math.Ceil(x*roundingScale) / roundingScale
}

// RoundDown rounds x down at the fourth decimal place.
func RoundDown(x float64) float64 {
	return math.Floor(x*roundingScale) / roundingScale
}

// PanelParams are the caller-supplied inputs of a search.
type PanelParams struct {
	// FrequencyGHz is the frequency to shield against, in GHz.
	FrequencyGHz float64 `json:"frequency_ghz" yaml:"frequency_ghz"`
	// TargetSE is the requested shielding effectiveness in dB.
	TargetSE float64 `json:"shielding_effectiveness" yaml:"shielding_effectiveness"`
	// FieldX and FieldY are the panel dimensions in cm.
	FieldX float64 `json:"x_field" yaml:"x_field"`
	FieldY float64 `json:"y_field" yaml:"y_field"`
	// Precision is the sweep step in cm.
	Precision float64 `json:"precision" yaml:"precision"`
	// Fast pins the aperture interval to lambda/2 and sweeps line length only.
	Fast bool `json:"fast" yaml:"fast"`
}

// Panel is a validated, immutable panel configuration together with the
// constants derived from its frequency.
type Panel struct {
	params PanelParams

	frequencyHz   float64
	wavelength    float64
	maxLineLength float64
	minInterval   float64
	areaInterval  float64
}

// NewPanel validates params and derives the wavelength constants.
// Non-positive or non-finite frequency, dimensions or precision fail with an
// ErrConfiguration error.
func NewPanel(params PanelParams) (*Panel, error) {
	checks := []struct {
		name  string
		value float64
	}{
		{"frequency", params.FrequencyGHz},
		{"x field", params.FieldX},
		{"y field", params.FieldY},
		{"precision", params.Precision},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) || c.value <= 0 {
			return nil, ConfigurationErrorf("%s must be a positive number, got %v", c.name, c.value).
				WithOperation("NewPanel")
		}
	}
	if math.IsNaN(params.TargetSE) || math.IsInf(params.TargetSE, 0) {
		return nil, ConfigurationErrorf("shielding effectiveness must be finite, got %v", params.TargetSE).
			WithOperation("NewPanel")
	}

	freq := params.FrequencyGHz * math.Pow10(9)
	wavelength := (SpeedOfLight / freq) * 100

	p := &Panel{
		params:        params,
		frequencyHz:   freq,
		wavelength:    wavelength,
		maxLineLength: RoundDown(wavelength / 2),
		minInterval:   RoundUp(wavelength / 10),
		areaInterval:  RoundDown(wavelength / 2),
	}
	if err := p.checkSteps(); err != nil {
		return nil, err
	}
	return p, nil
}

// checkSteps rejects a precision so fine that a sweep axis would exceed
// MaxSweepSteps or overflow its index.
func (p *Panel) checkSteps() error {
	type axis struct {
		name string
		span float64
	}
	axes := []axis{{"line length", p.maxLineLength / 2}}
	if !p.params.Fast {
		axes = append(axes, axis{"interval", p.MaxInterval() - p.minInterval})
	}
	for _, a := range axes {
		steps := a.span / p.params.Precision
		if math.IsNaN(steps) || steps > MaxSweepSteps {
			return ConfigurationErrorf("precision %v gives %.3g %s steps, more than %d",
				p.params.Precision, steps, a.name, MaxSweepSteps).WithOperation("NewPanel")
		}
	}
	return nil
}

// Params returns the inputs the panel was built from.
func (p *Panel) Params() PanelParams { return p.params }

// FrequencyHz returns the frequency in Hz.
func (p *Panel) FrequencyHz() float64 { return p.frequencyHz }

// TargetSE returns the requested shielding effectiveness in dB.
func (p *Panel) TargetSE() float64 { return p.params.TargetSE }

// FieldX returns the panel width in cm.
func (p *Panel) FieldX() float64 { return p.params.FieldX }

// FieldY returns the panel height in cm.
func (p *Panel) FieldY() float64 { return p.params.FieldY }

// Step returns the sweep precision in cm.
func (p *Panel) Step() float64 { return p.params.Precision }

// Fast reports whether the panel is searched in fixed-interval mode.
func (p *Panel) Fast() bool { return p.params.Fast }

// Mode returns "fast" or "full".
func (p *Panel) Mode() string {
	if p.params.Fast {
		return ModeFast
	}
	return ModeFull
}

// Wavelength returns the free-space wavelength in cm.
func (p *Panel) Wavelength() float64 { return p.wavelength }

// MaxLineLength is the largest admissible hexagon line length (lambda/2 rounded down).
func (p *Panel) MaxLineLength() float64 { return p.maxLineLength }

// MinInterval is the smallest admissible aperture interval (lambda/10 rounded up).
func (p *Panel) MinInterval() float64 { return p.minInterval }

// AreaInterval is the coupling threshold (lambda/2 rounded down).
func (p *Panel) AreaInterval() float64 { return p.areaInterval }

// MaxInterval is the upper bound of the full-mode interval sweep.
func (p *Panel) MaxInterval() float64 {
	return math.Min(p.params.FieldX, p.params.FieldY) / 3
}

// InBand reports whether se lies in [target, target+AcceptanceBand].
func (p *Panel) InBand(se float64) bool {
	return se >= p.params.TargetSE && se <= p.params.TargetSE+AcceptanceBand
}
