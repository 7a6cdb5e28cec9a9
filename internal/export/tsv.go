package export

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/copyleftdev/hexshield/internal/shielding"
)

// Columns is the header shared by the TSV and XLSX exports.
var Columns = []string{
	"line_length",
	"field",
	"apertures",
	"height",
	"interval_x",
	"interval_y",
	"shielding_effectiveness",
	"coupling_apertures",
	"rows",
}

func record(r shielding.CandidateResult) []string {
	rows := make([]string, len(r.Rows))
	for i, n := range r.Rows {
		rows[i] = strconv.Itoa(n)
	}
	return []string{
		formatFloat(r.LineLength),
		formatFloat(r.Field),
		strconv.Itoa(r.Apertures),
		formatFloat(r.Height),
		formatFloat(r.IntervalX),
		formatFloat(r.IntervalY),
		formatFloat(r.Effectiveness),
		strconv.Itoa(r.CouplingApertures),
		strings.Join(rows, ","),
	}
}

// WriteTSV writes results as tab separated values with a header row.
func WriteTSV(w io.Writer, results []shielding.CandidateResult) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range results {
		if err := cw.Write(record(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveTSV writes results to filename. An empty filename is a no-op.
func SaveTSV(filename string, results []shielding.CandidateResult) error {
	if filename == "" {
		return nil
	}

	fp, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := WriteTSV(fp, results); err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}
