package shielding

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates a result list.
type Summary struct {
	Count               int     `json:"count"`
	MinField            float64 `json:"min_field"`
	MaxField            float64 `json:"max_field"`
	MeanField           float64 `json:"mean_field"`
	MaxApertures        int     `json:"max_apertures"`
	MeanEffectiveness   float64 `json:"mean_effectiveness"`
	StdDevEffectiveness float64 `json:"stddev_effectiveness"`
}

// Summarize computes field, aperture and SE statistics over results.
// An empty list yields the zero Summary.
func Summarize(results []CandidateResult) Summary {
	if len(results) == 0 {
		return Summary{}
	}

	fields := make([]float64, len(results))
	se := make([]float64, len(results))
	apertures := make([]float64, len(results))
	for i, r := range results {
		fields[i] = r.Field
		se[i] = r.Effectiveness
		apertures[i] = float64(r.Apertures)
	}

	s := Summary{
		Count:        len(results),
		MinField:     floats.Min(fields),
		MaxField:     floats.Max(fields),
		MeanField:    stat.Mean(fields, nil),
		MaxApertures: int(floats.Max(apertures)),
	}
	if len(se) > 1 {
		s.MeanEffectiveness, s.StdDevEffectiveness = stat.MeanStdDev(se, nil)
	} else {
		s.MeanEffectiveness = se[0]
	}
	return s
}
