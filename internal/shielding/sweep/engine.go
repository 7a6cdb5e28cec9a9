package sweep

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/copyleftdev/hexshield/internal/shielding"
	"github.com/copyleftdev/hexshield/internal/shielding/mesh"
)

// Engine sweeps line length, and in full mode the aperture interval, over a
// panel and collects every candidate that meets the target SE.
type Engine struct {
	panel     *shielding.Panel
	evaluator Evaluator
	observer  shielding.Observer
	progress  func(done, total int)

	mu     sync.Mutex
	best   shielding.Frontier
	cancel context.CancelFunc
}

// Evaluator computes the result of one candidate. *mesh.Model is the
// production implementation.
type Evaluator interface {
	Evaluate(c shielding.Candidate) (shielding.CandidateResult, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithEvaluator replaces the geometry model used to evaluate candidates.
func WithEvaluator(ev Evaluator) Option {
	return func(e *Engine) {
		if ev != nil {
			e.evaluator = ev
		}
	}
}

// WithObserver registers an observer for search progress.
func WithObserver(o shielding.Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithProgress registers fn to be called after each line length with the
// number of line lengths done and the total.
func WithProgress(fn func(done, total int)) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// cancelCheckInterval is how many inner candidates are visited between
// context checks.
const cancelCheckInterval = 1024

// NewEngine creates a search engine for panel.
func NewEngine(panel *shielding.Panel, opts ...Option) *Engine {
	e := &Engine{
		panel:     panel,
		evaluator: mesh.NewModel(panel),
		observer:  shielding.NopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search runs the sweep. Results are sorted ascending by field, then by
// aperture count. A cancelled search returns the context error.
func (e *Engine) Search(ctx context.Context) (*shielding.SearchResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.best = shielding.Frontier{}
	e.mu.Unlock()
	defer cancel()

	start := time.Now()
	res := &shielding.SearchResult{}
	e.observer.Started(e.panel)

	var (
		best shielding.Frontier
		prev *shielding.CandidateResult
	)

	consider := func(c shielding.Candidate) {
		r, err := e.evaluator.Evaluate(c)
		if err != nil {
			res.Skipped++
			e.observer.Skipped(c, err)
			return
		}
		res.Evaluated++

		if !e.panel.InBand(r.Effectiveness) || !best.Admits(r) {
			res.Rejected++
			return
		}
		if prev != nil && r.LineLength == prev.LineLength && r.Field == prev.Field {
			res.Rejected++
			return
		}
		if best.Advance(r) {
			e.mu.Lock()
			e.best = best
			e.mu.Unlock()
		}

		res.Results = append(res.Results, r)
		accepted := r
		prev = &accepted
		e.observer.Accepted(r)
	}

	maxLine := e.panel.MaxLineLength()
	step := e.panel.Step()
	outer := Range(maxLine/2, maxLine-step, step)
	inner := Range(e.panel.MinInterval(), e.panel.MaxInterval(), step)
	for i := 0; i < outer.Len(); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		lineLength := maxLine - outer.At(i)
		if e.panel.Fast() {
			consider(shielding.Candidate{LineLength: lineLength, IntervalX: e.panel.AreaInterval()})
		} else {
			// Intervals too narrow to fit the hexagon around the area
			// interval are pruned before evaluation.
			height := mesh.Height(lineLength)
			for j := 0; j < inner.Len(); j++ {
				if j%cancelCheckInterval == 0 && ctx.Err() != nil {
					return nil, ctx.Err()
				}
				interval := inner.At(j)
				if e.panel.AreaInterval() > 2*interval+height {
					res.Pruned++
					continue
				}
				consider(shielding.Candidate{LineLength: lineLength, IntervalX: interval})
			}
		}

		if e.progress != nil {
			e.progress(i+1, outer.Len())
		}
	}

	SortResults(res.Results)
	res.Best = best
	res.Duration = time.Since(start)
	return res, nil
}

// Best returns the frontier reached so far
func (e *Engine) Best() shielding.Frontier {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.best
}

// Stop stops the search process
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// SortResults orders results ascending by field, then aperture count.
// Equal keys keep their discovery order.
func SortResults(results []shielding.CandidateResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Field != results[j].Field {
			return results[i].Field < results[j].Field
		}
		return results[i].Apertures < results[j].Apertures
	})
}

// GridSize returns the number of candidates a search of panel visits before
// pruning.
func GridSize(panel *shielding.Panel) int {
	outer := Range(panel.MaxLineLength()/2, panel.MaxLineLength()-panel.Step(), panel.Step()).Len()
	if panel.Fast() {
		return outer
	}
	inner := Range(panel.MinInterval(), panel.MaxInterval(), panel.Step()).Len()
	if inner > 0 && outer > math.MaxInt/inner {
		return math.MaxInt
	}
	return outer * inner
}
