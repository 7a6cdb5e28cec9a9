package shielding

import (
	"context"
	"time"
)

// Search modes.
const (
	ModeFast = "fast"
	ModeFull = "full"
)

// Searcher defines the interface for perforation pattern searches
type Searcher interface {
	// Search runs the sweep and returns the sorted accepted candidates
	Search(ctx context.Context) (*SearchResult, error)

	// Best returns the frontier reached so far
	Best() Frontier

	// Stop gracefully stops a running search
	Stop()
}

// Candidate is one point of the sweep grid.
type Candidate struct {
	LineLength float64 `json:"line_length"`
	IntervalX  float64 `json:"interval_x"`
}

// CandidateResult holds the derived quantities of one evaluated candidate.
type CandidateResult struct {
	// LineLength is the full span of one hexagonal aperture in cm.
	LineLength float64 `json:"line_length"`
	// Field is the total open area in cm^2.
	Field float64 `json:"field"`
	// Apertures is the total number of apertures on the panel.
	Apertures int `json:"apertures"`
	// Height is the hexagon height in cm.
	Height float64 `json:"height"`
	// IntervalX and IntervalY are the aperture spacings in cm.
	IntervalX float64 `json:"interval_x"`
	IntervalY float64 `json:"interval_y"`
	// Effectiveness is the shielding effectiveness in dB.
	Effectiveness float64 `json:"shielding_effectiveness"`
	// CouplingApertures is the number of neighbours (0, 6, 12 or 18)
	// assumed to couple with each aperture.
	CouplingApertures int `json:"coupling_apertures"`
	// Rows holds the aperture count of every mesh row, top to bottom.
	Rows []int `json:"rows"`
}

// Frontier is the running best-so-far pair used as the acceptance gate.
type Frontier struct {
	Apertures int     `json:"apertures"`
	Field     float64 `json:"field"`
}

// Admits reports whether r adds apertures over the frontier without its
// field collapsing below FieldFloor of the best field.
func (f Frontier) Admits(r CandidateResult) bool {
	return r.Apertures > f.Apertures && r.Field >= FieldFloor*f.Field
}

// Advance moves the frontier to r when r improves both apertures and field.
// It reports whether the frontier moved.
func (f *Frontier) Advance(r CandidateResult) bool {
	if r.Apertures > f.Apertures && r.Field > f.Field {
		f.Apertures = r.Apertures
		f.Field = r.Field
		return true
	}
	return false
}

// SearchResult contains the result of a search run
type SearchResult struct {
	Results []CandidateResult `json:"results"`
	Best    Frontier          `json:"best"`

	// Evaluated counts candidates passed to the geometry model.
	Evaluated int `json:"evaluated"`
	// Pruned counts full-mode intervals rejected by the feasibility pre-filter.
	Pruned int `json:"pruned"`
	// Skipped counts candidates that failed with ErrDomain.
	Skipped int `json:"skipped"`
	// Rejected counts evaluated candidates that failed an acceptance filter.
	Rejected int `json:"rejected"`

	Duration time.Duration `json:"duration"`
}

// Observer receives the progress of a search. Implementations used by
// concurrent searches must be safe for concurrent use.
type Observer interface {
	// Started is called once, before the first candidate.
	Started(panel *Panel)
	// Accepted is called for every candidate appended to the result list.
	Accepted(r CandidateResult)
	// Skipped is called for every candidate that failed with ErrDomain.
	Skipped(c Candidate, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) Started(*Panel) {}
func (NopObserver) Accepted(CandidateResult) {}
func (NopObserver) Skipped(Candidate, error) {}

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) Started(panel *Panel) {
	for _, o := range m {
		o.Started(panel)
	}
}

func (m MultiObserver) Accepted(r CandidateResult) {
	for _, o := range m {
		o.Accepted(r)
	}
}

func (m MultiObserver) Skipped(c Candidate, err error) {
	for _, o := range m {
		o.Skipped(c, err)
	}
}
