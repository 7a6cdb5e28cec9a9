package sweep

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/hexshield/internal/shielding"
	"github.com/copyleftdev/hexshield/internal/shielding/mesh"
)

func newPanel(t testing.TB, target, precision float64, fast bool) *shielding.Panel {
	t.Helper()
	panel, err := shielding.NewPanel(shielding.PanelParams{
		FrequencyGHz: 2.45,
		TargetSE:     target,
		FieldX:       20,
		FieldY:       20,
		Precision:    precision,
		Fast:         fast,
	})
	require.NoError(t, err)
	return panel
}

// recorder keeps every observer event in arrival order.
type recorder struct {
	mu       sync.Mutex
	started  int
	accepted []shielding.CandidateResult
	skipped  []shielding.Candidate
	onAccept func()
}

func (r *recorder) Started(*shielding.Panel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *recorder) Accepted(c shielding.CandidateResult) {
	r.mu.Lock()
	r.accepted = append(r.accepted, c)
	hook := r.onAccept
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (r *recorder) Skipped(c shielding.Candidate, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped = append(r.skipped, c)
}

// assertResultInvariants checks the properties every returned list must hold.
func assertResultInvariants(t *testing.T, panel *shielding.Panel, results []shielding.CandidateResult) {
	t.Helper()
	for i, r := range results {
		assert.GreaterOrEqual(t, r.Effectiveness, panel.TargetSE(), "result %d below target", i)
		assert.LessOrEqual(t, r.Effectiveness, panel.TargetSE()+shielding.AcceptanceBand, "result %d above band", i)

		sum := 0
		for _, n := range r.Rows {
			sum += n
		}
		assert.Equal(t, r.Apertures, sum, "result %d aperture count differs from row sum", i)

		if i > 0 {
			prev := results[i-1]
			ordered := prev.Field < r.Field || (prev.Field == r.Field && prev.Apertures <= r.Apertures)
			assert.True(t, ordered, "results %d and %d out of order", i-1, i)
		}
	}
}

func TestSearchFastModeUnreachableTarget(t *testing.T) {
	// the smallest line length swept at a 0.5 cm step gives about 20.8 dB,
	// so a 60 dB target yields no candidates
	panel := newPanel(t, 60, 0.5, true)

	res, err := NewEngine(panel).Search(context.Background())
	require.NoError(t, err)

	assert.Empty(t, res.Results)
	assert.Equal(t, 6, res.Evaluated)
	assert.Equal(t, 6, res.Rejected)
	assert.Equal(t, shielding.Frontier{}, res.Best)
	assertResultInvariants(t, panel, res.Results)
}

func TestSearchFastModeReachableTarget(t *testing.T) {
	panel := newPanel(t, 20.7, 0.5, true)
	rec := &recorder{}

	res, err := NewEngine(panel, WithObserver(rec)).Search(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assertResultInvariants(t, panel, res.Results)

	r := res.Results[0]
	assert.InDelta(t, 0.5591, r.LineLength, 1e-9)
	assert.Equal(t, 12, r.Apertures)
	assert.Equal(t, []int{3, 3, 3, 3}, r.Rows)
	assert.Equal(t, panel.AreaInterval(), r.IntervalX)
	assert.InDelta(t, 20*math.Log10(panel.Wavelength()/(2*r.LineLength)), r.Effectiveness, 1e-12)

	assert.Equal(t, 1, rec.started)
	assert.Equal(t, res.Results, rec.accepted)
	assert.Equal(t, shielding.Frontier{Apertures: 12, Field: r.Field}, res.Best)
}

func TestSearchFastModeEffectivenessIsBaseFormula(t *testing.T) {
	panel := newPanel(t, 15, 0.1, true)

	res, err := NewEngine(panel).Search(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, res.Results)

	for _, r := range res.Results {
		assert.Equal(t, 20*math.Log10(panel.Wavelength()/(2*r.LineLength)), r.Effectiveness)
		assert.Zero(t, r.CouplingApertures)
	}
}

func TestSearchFullMode(t *testing.T) {
	panel := newPanel(t, 16, 0.1, false)

	res, err := NewEngine(panel).Search(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Results, 7)
	assertResultInvariants(t, panel, res.Results)

	wantApertures := []int{12, 14, 18, 20, 23, 27, 8}
	for i, r := range res.Results {
		assert.Equal(t, wantApertures[i], r.Apertures, "result %d", i)
	}

	last := res.Results[len(res.Results)-1]
	assert.InDelta(t, 0.9591, last.LineLength, 1e-9)
	assert.Zero(t, last.CouplingApertures)
	assert.Equal(t, 6, res.Results[0].CouplingApertures)

	// the frontier only advances when both apertures and field improve
	assert.Equal(t, 8, res.Best.Apertures)
	assert.InDelta(t, 4.7798, res.Best.Field, 1e-4)

	assert.Equal(t, GridSize(panel), res.Evaluated+res.Pruned)
	assert.Equal(t, 1650, GridSize(panel))
	assert.Equal(t, 357, res.Pruned)
	assert.Equal(t, res.Evaluated-len(res.Results), res.Rejected)
	assert.Zero(t, res.Skipped)
}

func TestSearchIsIdempotent(t *testing.T) {
	for _, fast := range []bool{true, false} {
		panel := newPanel(t, 16, 0.1, fast)

		first, err := NewEngine(panel).Search(context.Background())
		require.NoError(t, err)
		second, err := NewEngine(panel).Search(context.Background())
		require.NoError(t, err)

		assert.Equal(t, first.Results, second.Results)
		assert.Equal(t, first.Best, second.Best)
		assert.Equal(t, first.Evaluated, second.Evaluated)
	}
}

func TestSearchAcceptanceReplay(t *testing.T) {
	// replaying the discovery order against a fresh frontier must admit
	// every accepted candidate and never repeat an adjacent duplicate
	panel := newPanel(t, 16, 0.1, false)
	rec := &recorder{}

	_, err := NewEngine(panel, WithObserver(rec)).Search(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, rec.accepted)

	var best shielding.Frontier
	for i, r := range rec.accepted {
		require.True(t, best.Admits(r), "candidate %d accepted although the frontier %+v rejects it", i, best)
		if i > 0 {
			prev := rec.accepted[i-1]
			assert.False(t, prev.LineLength == r.LineLength && prev.Field == r.Field, "adjacent duplicate at %d", i)
		}
		best.Advance(r)
	}
}

func TestSearchRejectsCandidatesBelowFrontier(t *testing.T) {
	panel := newPanel(t, 16, 0.1, false)

	res, err := NewEngine(panel).Search(context.Background())
	require.NoError(t, err)

	// 32 in-band candidates exist on this grid; the other 25 either repeat
	// the aperture count of the frontier or duplicate the previous result
	for _, r := range res.Results {
		if r.LineLength > 0.9 {
			assert.Equal(t, 8, r.Apertures)
		}
	}
	count := 0
	for _, r := range res.Results {
		if math.Abs(r.LineLength-0.9591) < 1e-9 {
			count++
		}
	}
	assert.Equal(t, 1, count, "only the first 8-aperture candidate may pass the frontier")
}

type failingEvaluator struct {
	inner Evaluator
	above float64
}

func (f failingEvaluator) Evaluate(c shielding.Candidate) (shielding.CandidateResult, error) {
	if c.LineLength > f.above {
		return shielding.CandidateResult{}, shielding.DomainErrorf("line length %v rejected", c.LineLength)
	}
	return f.inner.Evaluate(c)
}

func TestSearchSkipsDomainErrors(t *testing.T) {
	panel := newPanel(t, 20.7, 0.5, true)
	rec := &recorder{}
	ev := failingEvaluator{inner: mesh.NewModel(panel), above: 3}

	res, err := NewEngine(panel, WithEvaluator(ev), WithObserver(rec)).Search(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 5, res.Evaluated)
	require.Len(t, rec.skipped, 1)
	assert.InDelta(t, 3.0591, rec.skipped[0].LineLength, 1e-9)
	assert.Len(t, res.Results, 1)
}

func TestSearchCancelledContext(t *testing.T) {
	panel := newPanel(t, 16, 0.1, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewEngine(panel).Search(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestSearchStop(t *testing.T) {
	panel := newPanel(t, 16, 0.1, false)
	rec := &recorder{}
	engine := NewEngine(panel, WithObserver(rec))
	rec.onAccept = engine.Stop

	res, err := engine.Search(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
	assert.Len(t, rec.accepted, 1)
	assert.Equal(t, 8, engine.Best().Apertures)
}

func TestSortResultsIsStable(t *testing.T) {
	results := []shielding.CandidateResult{
		{LineLength: 1, Field: 2, Apertures: 5},
		{LineLength: 2, Field: 1, Apertures: 9},
		{LineLength: 3, Field: 2, Apertures: 5},
		{LineLength: 4, Field: 2, Apertures: 3},
	}
	SortResults(results)

	var lines []float64
	for _, r := range results {
		lines = append(lines, r.LineLength)
	}
	assert.Equal(t, []float64{2, 4, 1, 3}, lines)
}

func TestGridSizeFastMode(t *testing.T) {
	assert.Equal(t, 6, GridSize(newPanel(t, 60, 0.5, true)))
	assert.Equal(t, 30, GridSize(newPanel(t, 60, 0.1, true)))
}

func TestSearchReportsProgress(t *testing.T) {
	panel := newPanel(t, 16, 0.1, false)

	var calls [][2]int
	res, err := NewEngine(panel, WithProgress(func(done, total int) {
		calls = append(calls, [2]int{done, total})
	})).Search(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Results, 7)

	require.Len(t, calls, 30)
	assert.Equal(t, [2]int{1, 30}, calls[0])
	assert.Equal(t, [2]int{30, 30}, calls[len(calls)-1])
}

func TestSearchCancelledInsideIntervalSweep(t *testing.T) {
	// Evaluating the first candidate cancels the search; the interval sweep
	// must notice before it finishes the line length.
	panel := newPanel(t, 16, 0.0001, false)
	ctx, cancel := context.WithCancel(context.Background())

	ev := &countingEvaluator{model: mesh.NewModel(panel), onFirst: cancel}
	res, err := NewEngine(panel, WithEvaluator(ev)).Search(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
	assert.LessOrEqual(t, ev.calls, cancelCheckInterval)
}

func TestGridSizeNeverNegative(t *testing.T) {
	for _, precision := range []float64{0.5, 0.01, 0.0001} {
		for _, fast := range []bool{true, false} {
			assert.Positive(t, GridSize(newPanel(t, 16, precision, fast)))
		}
	}
}

type countingEvaluator struct {
	model   *mesh.Model
	onFirst func()
	calls   int
}

func (c *countingEvaluator) Evaluate(cand shielding.Candidate) (shielding.CandidateResult, error) {
	c.calls++
	if c.calls == 1 {
		c.onFirst()
	}
	return c.model.Evaluate(cand)
}

func BenchmarkSearchFull(b *testing.B) {
	panel := newPanel(b, 16, 0.05, false)
	engine := NewEngine(panel)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Search(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}
