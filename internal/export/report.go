// Package export renders search results as a console report, TSV or XLSX.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/copyleftdev/hexshield/internal/shielding"
)

// Options control which columns are rendered.
type Options struct {
	// ShowHeight adds the hexagon height. Fast searches leave it out.
	ShowHeight bool
}

// OptionsFor returns the rendering options matching a panel's mode.
func OptionsFor(panel *shielding.Panel) Options {
	return Options{ShowHeight: !panel.Fast()}
}

// WriteText prints one block per result followed by a summary line.
func WriteText(w io.Writer, results []shielding.CandidateResult, opts Options) error {
	bw := bufio.NewWriter(w)

	for _, r := range results {
		fmt.Fprintf(bw, "Line length    [cm]: %s\n", formatFloat(r.LineLength))
		fmt.Fprintf(bw, "Field        [cm^2]: %s\n", formatFloat(r.Field))
		fmt.Fprintf(bw, "Apertures          : %s\n", humanize.Comma(int64(r.Apertures)))
		if opts.ShowHeight {
			fmt.Fprintf(bw, "Height         [cm]: %s\n", formatFloat(r.Height))
		}
		fmt.Fprintf(bw, "Interval x     [cm]: %s\n", formatFloat(r.IntervalX))
		fmt.Fprintf(bw, "Interval y     [cm]: %s\n", formatFloat(r.IntervalY))
		fmt.Fprintf(bw, "Shielding eff. [dB]: %s\n", formatFloat(r.Effectiveness))
		fmt.Fprintf(bw, "Apertures per row  : %v\n", r.Rows)
		fmt.Fprintln(bw)
	}

	s := shielding.Summarize(results)
	if s.Count == 0 {
		fmt.Fprintln(bw, "No perforation pattern reaches the target shielding effectiveness.")
		return bw.Flush()
	}
	fmt.Fprintf(bw, "%s %s, field %s..%s cm^2, up to %s apertures, mean SE %.2f dB\n",
		humanize.Comma(int64(s.Count)),
		plural(s.Count, "pattern", "patterns"),
		formatFloat(s.MinField),
		formatFloat(s.MaxField),
		humanize.Comma(int64(s.MaxApertures)),
		s.MeanEffectiveness,
	)
	return bw.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
