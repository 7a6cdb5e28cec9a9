// Command hexmesh searches honeycomb perforation patterns for a shielding
// panel and prints every pattern meeting the requested effectiveness.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/copyleftdev/hexshield/internal/config"
	"github.com/copyleftdev/hexshield/internal/export"
	"github.com/copyleftdev/hexshield/internal/logging"
	"github.com/copyleftdev/hexshield/internal/shielding"
	"github.com/copyleftdev/hexshield/internal/shielding/sweep"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	params    shielding.PanelParams
	tsv       string
	xlsx      string
	batch     string
	logLevel  string
	logFormat string
	progress  bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("hexmesh", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.Float64Var(&o.params.FrequencyGHz, "f", 0, "frequency in GHz")
	fs.Float64Var(&o.params.FrequencyGHz, "frequency", 0, "frequency in GHz")
	fs.Float64Var(&o.params.TargetSE, "s", 0, "target shielding effectiveness in dB")
	fs.Float64Var(&o.params.TargetSE, "shielding-eff", 0, "target shielding effectiveness in dB")
	fs.Float64Var(&o.params.TargetSE, "shielding_eff", 0, "alias of -shielding-eff")
	fs.Float64Var(&o.params.FieldX, "x", 0, "panel width in cm")
	fs.Float64Var(&o.params.FieldX, "xaxis", 0, "panel width in cm")
	fs.Float64Var(&o.params.FieldY, "y", 0, "panel height in cm")
	fs.Float64Var(&o.params.FieldY, "yaxis", 0, "panel height in cm")
	fs.Float64Var(&o.params.Precision, "p", 0.01, "sweep step in cm")
	fs.Float64Var(&o.params.Precision, "precision", 0.01, "sweep step in cm")
	fs.BoolVar(&o.params.Fast, "fast", false, "pin the aperture interval to lambda/2 and sweep line length only")
	fs.StringVar(&o.tsv, "tsv", "", "write results as TSV to `file`")
	fs.StringVar(&o.xlsx, "xlsx", "", "write results as XLSX to `file`")
	fs.StringVar(&o.batch, "batch", "", "run every panel of a YAML batch `file`")
	fs.StringVar(&o.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	fs.StringVar(&o.logFormat, "log-format", "auto", "log format (auto, text, json); auto picks text on a terminal")
	fs.BoolVar(&o.progress, "progress", isTerminal(stderr), "show sweep progress on stderr")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if o.batch != "" {
		return o, nil
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	var missing []string
	for _, pair := range [][2]string{{"f", "frequency"}, {"s", "shielding-eff"}, {"x", "xaxis"}, {"y", "yaxis"}} {
		if !set[pair[0]] && !set[pair[1]] && !set[strings.ReplaceAll(pair[1], "-", "_")] {
			missing = append(missing, "-"+pair[0])
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if err != flag.ErrHelp {
			fmt.Fprintf(stderr, "hexmesh: %v\n", err)
		}
		return 2
	}

	logger := logging.NewWithFormat(logging.ParseLevel(opts.logLevel), logFormat(opts.logFormat, stderr), stderr)
	engineOpts := []sweep.Option{sweep.WithObserver(logging.NewSearchObserver(logging.NewZapLogger(logger)))}
	if opts.progress {
		engineOpts = append(engineOpts, sweep.WithProgress(progressPrinter(stderr)))
	}

	panels := []shielding.PanelParams{opts.params}
	if opts.batch != "" {
		panels, err = config.LoadBatch(opts.batch, opts.params.Precision)
		if err != nil {
			logger.Error("Failed to load batch", map[string]interface{}{"error": err.Error()})
			return 1
		}
	}

	for i, params := range panels {
		if len(panels) > 1 {
			fmt.Fprintf(stdout, "== Panel %d/%d: %g GHz, %g dB, %gx%g cm ==\n\n",
				i+1, len(panels), params.FrequencyGHz, params.TargetSE, params.FieldX, params.FieldY)
		}
		if err := searchPanel(ctx, params, engineOpts, stdout, outputName(opts.tsv, i, len(panels)), outputName(opts.xlsx, i, len(panels))); err != nil {
			logger.Error("Search failed", map[string]interface{}{"panel": i + 1, "error": err.Error()})
			return 1
		}
	}
	return 0
}

func searchPanel(ctx context.Context, params shielding.PanelParams, engineOpts []sweep.Option, stdout io.Writer, tsv, xlsx string) error {
	panel, err := shielding.NewPanel(params)
	if err != nil {
		return err
	}

	res, err := sweep.NewEngine(panel, engineOpts...).Search(ctx)
	if err != nil {
		return err
	}

	if err := export.WriteText(stdout, res.Results, export.OptionsFor(panel)); err != nil {
		return err
	}
	if err := export.SaveTSV(tsv, res.Results); err != nil {
		return fmt.Errorf("write tsv: %w", err)
	}
	if err := export.SaveXLSX(xlsx, params, res.Results); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// logFormat resolves "auto" to text when w is a terminal and JSON otherwise.
func logFormat(name string, w io.Writer) logging.Format {
	switch strings.ToLower(name) {
	case "text", "console":
		return logging.TextFormat
	case "json":
		return logging.JSONFormat
	}
	if isTerminal(w) {
		return logging.TextFormat
	}
	return logging.JSONFormat
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// progressPrinter redraws a single line with the share of line lengths swept,
// writing only when the whole percentage changes.
func progressPrinter(w io.Writer) func(done, total int) {
	last := -1
	return func(done, total int) {
		if total <= 0 {
			return
		}
		pct := done * 100 / total
		if pct == last {
			return
		}
		last = pct
		fmt.Fprintf(w, "\rsweeping line lengths %s/%s (%d%%)", humanize.Comma(int64(done)), humanize.Comma(int64(total)), pct)
		if done == total {
			fmt.Fprintln(w)
			last = -1
		}
	}
}

// outputName numbers export files when a batch holds more than one panel:
// results.tsv becomes results-1.tsv, results-2.tsv, ...
func outputName(name string, i, n int) string {
	if name == "" || n <= 1 {
		return name
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), i+1, ext)
}
