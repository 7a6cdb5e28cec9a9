package export

import (
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/copyleftdev/hexshield/internal/shielding"
)

// Sheet names of the XLSX workbook.
const (
	SummarySheet = "Summary"
	ResultsSheet = "Results"
)

// buildWorkbook lays out a Summary sheet with the panel parameters and
// result statistics, and a Results sheet with one row per result.
func buildWorkbook(params shielding.PanelParams, results []shielding.CandidateResult) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		f.Close()
		return nil, err
	}

	s := shielding.Summarize(results)
	mode := shielding.ModeFull
	if params.Fast {
		mode = shielding.ModeFast
	}
	summary := [][]interface{}{
		{"Parameter", "Value"},
		{"frequency_ghz", params.FrequencyGHz},
		{"shielding_effectiveness", params.TargetSE},
		{"x_field", params.FieldX},
		{"y_field", params.FieldY},
		{"precision", params.Precision},
		{"mode", mode},
		{"results", s.Count},
		{"min_field", s.MinField},
		{"max_field", s.MaxField},
		{"mean_field", s.MeanField},
		{"max_apertures", s.MaxApertures},
		{"mean_effectiveness", s.MeanEffectiveness},
		{"stddev_effectiveness", s.StdDevEffectiveness},
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			f.Close()
			return nil, err
		}
	}

	if _, err := f.NewSheet(ResultsSheet); err != nil {
		f.Close()
		return nil, err
	}

	header := make([]interface{}, 0, len(Columns)+1)
	header = append(header, "no")
	for _, c := range Columns {
		header = append(header, c)
	}
	if err := f.SetSheetRow(ResultsSheet, "A1", &header); err != nil {
		f.Close()
		return nil, err
	}

	for i, r := range results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		row := []interface{}{
			i + 1,
			r.LineLength,
			r.Field,
			r.Apertures,
			r.Height,
			r.IntervalX,
			r.IntervalY,
			r.Effectiveness,
			r.CouplingApertures,
			record(r)[len(Columns)-1],
		}
		if err := f.SetSheetRow(ResultsSheet, cell, &row); err != nil {
			f.Close()
			return nil, err
		}
	}

	return f, nil
}

// WriteXLSX writes the workbook to w.
func WriteXLSX(w io.Writer, params shielding.PanelParams, results []shielding.CandidateResult) error {
	f, err := buildWorkbook(params, results)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// SaveXLSX writes the workbook to filename. An empty filename is a no-op.
func SaveXLSX(filename string, params shielding.PanelParams, results []shielding.CandidateResult) error {
	if filename == "" {
		return nil
	}
	f, err := buildWorkbook(params, results)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(filename)
}
