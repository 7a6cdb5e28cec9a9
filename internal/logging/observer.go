package logging

import (
	"go.uber.org/zap"

	"github.com/copyleftdev/hexshield/internal/shielding"
)

// SearchObserver logs search progress: the wavelength constants when a
// search starts, each accepted candidate and each skipped candidate.
type SearchObserver struct {
	log *zap.Logger
}

// NewSearchObserver returns an observer writing to log.
func NewSearchObserver(log *zap.Logger) *SearchObserver {
	return &SearchObserver{log: log}
}

// Started implements shielding.Observer.
func (o *SearchObserver) Started(panel *shielding.Panel) {
	o.log.Info("search started",
		zap.String("mode", panel.Mode()),
		zap.Float64("wavelength_cm", panel.Wavelength()),
		zap.Float64("lambda_2_cm", panel.AreaInterval()),
		zap.Float64("lambda_10_cm", panel.MinInterval()),
		zap.Float64("target_se_db", panel.TargetSE()),
	)
}

// Accepted implements shielding.Observer.
func (o *SearchObserver) Accepted(r shielding.CandidateResult) {
	o.log.Info("candidate accepted",
		zap.Float64("line_length", r.LineLength),
		zap.Float64("field", r.Field),
		zap.Int("apertures", r.Apertures),
		zap.Float64("height", r.Height),
		zap.Float64("interval_x", r.IntervalX),
		zap.Float64("interval_y", r.IntervalY),
		zap.Float64("se_db", r.Effectiveness),
		zap.Ints("rows", r.Rows),
	)
}

// Skipped implements shielding.Observer.
func (o *SearchObserver) Skipped(c shielding.Candidate, err error) {
	o.log.Warn("candidate skipped",
		zap.Float64("line_length", c.LineLength),
		zap.Float64("interval_x", c.IntervalX),
		zap.Error(err),
	)
}
