package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/copyleftdev/hexshield/internal/errors"
	"github.com/copyleftdev/hexshield/internal/logging"
	"github.com/copyleftdev/hexshield/internal/metrics"
	"github.com/copyleftdev/hexshield/internal/shielding"
	"github.com/copyleftdev/hexshield/internal/shielding/sweep"
)

// Search statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// SearchState represents the state of a search job.
// It is guarded by Server.searchesMu.
type SearchState struct {
	ID          string
	Status      string
	Params      shielding.PanelParams
	Mode        string
	GridSize    int
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time
	Accepted    int
	Skipped     int
	Result      *shielding.SearchResult
	Err         string

	engine     *sweep.Engine
	cancelFunc context.CancelFunc
}

func (st *SearchState) terminal() bool {
	switch st.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// SearchView is the JSON representation of a search.
type SearchView struct {
	ID          string                  `json:"search_id"`
	Status      string                  `json:"status"`
	Mode        string                  `json:"mode"`
	Params      shielding.PanelParams   `json:"params"`
	GridSize    int                     `json:"grid_size"`
	StartTime   time.Time               `json:"start_time"`
	EndTime     *time.Time              `json:"end_time,omitempty"`
	LastUpdated time.Time               `json:"last_update"`
	Accepted    int                     `json:"accepted"`
	Skipped     int                     `json:"skipped"`
	Best        shielding.Frontier      `json:"best"`
	Error       string                  `json:"error,omitempty"`
	Summary     *shielding.Summary      `json:"summary,omitempty"`
	Result      *shielding.SearchResult `json:"result,omitempty"`
}

func (st *SearchState) view() SearchView {
	v := SearchView{
		ID:          st.ID,
		Status:      st.Status,
		Mode:        st.Mode,
		Params:      st.Params,
		GridSize:    st.GridSize,
		StartTime:   st.StartTime,
		EndTime:     st.EndTime,
		LastUpdated: st.LastUpdated,
		Accepted:    st.Accepted,
		Skipped:     st.Skipped,
		Best:        st.engine.Best(),
		Error:       st.Err,
	}
	if st.Result != nil {
		summary := shielding.Summarize(st.Result.Results)
		v.Summary = &summary
		v.Result = st.Result
		v.Best = st.Result.Best
	}
	return v
}

var searchSeq atomic.Uint64

func newSearchID(now time.Time) string {
	return fmt.Sprintf("srch_%d_%d", now.UnixNano(), searchSeq.Add(1))
}

// StartSearch validates params and queues a search. Missing precision
// defaults to the configured search precision.
func (s *Server) StartSearch(params shielding.PanelParams) (SearchView, error) {
	if params.Precision == 0 {
		params.Precision = s.cfg.Search.DefaultPrecision
	}
	panel, err := shielding.NewPanel(params)
	if err != nil {
		return SearchView{}, err
	}

	gridSize := sweep.GridSize(panel)
	if limit := s.cfg.Search.MaxGrid; limit > 0 && gridSize > limit {
		return SearchView{}, fmt.Errorf("search visits %d candidates, limit is %d; use a coarser precision: %w",
			gridSize, limit, apperrors.ErrBadRequest)
	}

	s.reapExpired()

	now := s.now()
	state := &SearchState{
		ID:          newSearchID(now),
		Status:      StatusPending,
		Params:      params,
		Mode:        panel.Mode(),
		GridSize:    gridSize,
		StartTime:   now,
		LastUpdated: now,
	}

	ctx, cancel := context.WithCancel(context.Background())
	state.cancelFunc = cancel
	state.engine = sweep.NewEngine(panel, sweep.WithObserver(shielding.MultiObserver{
		&progressObserver{s: s, state: state},
		s.metrics.Observer(panel.Mode()),
		logging.NewSearchObserver(s.zlog.With(zap.String("search_id", state.ID))),
	}))

	s.searchesMu.Lock()
	s.searches[state.ID] = state
	v := state.view()
	s.searchesMu.Unlock()

	s.logger.Info("Search queued", map[string]interface{}{
		"search_id": state.ID,
		"mode":      state.Mode,
		"grid_size": state.GridSize,
	})

	s.wg.Add(1)
	go s.runSearch(ctx, state)

	return v, nil
}

// runSearch waits for a worker slot and executes the search.
func (s *Server) runSearch(ctx context.Context, state *SearchState) {
	defer s.wg.Done()

	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-s.slots }()

	s.searchesMu.Lock()
	if state.Status != StatusPending {
		s.searchesMu.Unlock()
		return
	}
	state.Status = StatusRunning
	state.LastUpdated = s.now()
	s.searchesMu.Unlock()

	s.metrics.SearchStarted()
	start := time.Now()
	res, err := state.engine.Search(ctx)
	elapsed := time.Since(start)
	state.cancelFunc()

	s.searchesMu.Lock()
	defer s.searchesMu.Unlock()

	outcome := metrics.OutcomeCompleted
	switch {
	case err == nil:
		if state.Status == StatusRunning {
			state.Status = StatusCompleted
			state.Result = res
		} else {
			outcome = metrics.OutcomeCancelled
		}
	case stderrors.Is(err, context.Canceled):
		outcome = metrics.OutcomeCancelled
		state.Status = StatusCancelled
	default:
		outcome = metrics.OutcomeFailed
		state.Status = StatusFailed
		state.Err = apperrors.Wrap(err, "search failed").WithOperation("run").WithComponent("server").Error()
		s.logger.Error("Search failed", map[string]interface{}{
			"search_id": state.ID,
			"error":     err.Error(),
		})
	}
	s.metrics.SearchFinished(state.Mode, outcome, res, elapsed)

	if state.EndTime == nil {
		now := s.now()
		state.EndTime = &now
	}
	state.LastUpdated = s.now()

	fields := map[string]interface{}{
		"search_id": state.ID,
		"status":    state.Status,
		"elapsed":   elapsed.String(),
	}
	if res != nil {
		fields["results"] = len(res.Results)
		fields["evaluated"] = res.Evaluated
	}
	s.logger.Info("Search finished", fields)
}

// SearchStatus returns a snapshot of the search with the given ID.
func (s *Server) SearchStatus(id string) (SearchView, error) {
	s.searchesMu.RLock()
	defer s.searchesMu.RUnlock()

	state, ok := s.searches[id]
	if !ok {
		return SearchView{}, fmt.Errorf("search %q: %w", id, apperrors.ErrNotFound)
	}
	return state.view(), nil
}

// CompletedResults returns the result of a completed search together with
// its parameters.
func (s *Server) CompletedResults(id string) (shielding.PanelParams, *shielding.SearchResult, error) {
	s.searchesMu.RLock()
	defer s.searchesMu.RUnlock()

	state, ok := s.searches[id]
	if !ok {
		return shielding.PanelParams{}, nil, fmt.Errorf("search %q: %w", id, apperrors.ErrNotFound)
	}
	if state.Status != StatusCompleted {
		return shielding.PanelParams{}, nil, fmt.Errorf("search %q is %s: %w", id, state.Status, apperrors.ErrConflict)
	}
	return state.Params, state.Result, nil
}

// CancelSearch cancels a pending or running search.
func (s *Server) CancelSearch(id string) error {
	s.searchesMu.Lock()
	defer s.searchesMu.Unlock()

	state, ok := s.searches[id]
	if !ok {
		return fmt.Errorf("search %q: %w", id, apperrors.ErrNotFound)
	}
	if state.terminal() {
		return fmt.Errorf("cannot cancel search with status %s: %w", state.Status, apperrors.ErrConflict)
	}

	if state.cancelFunc != nil {
		state.cancelFunc()
	}

	state.Status = StatusCancelled
	now := s.now()
	state.EndTime = &now
	state.LastUpdated = now

	s.logger.Info("Search cancelled", map[string]interface{}{
		"search_id": id,
	})
	return nil
}

// reapExpired drops finished searches older than the configured TTL.
func (s *Server) reapExpired() {
	ttl := s.cfg.Search.JobTTL
	if ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-ttl)

	s.searchesMu.Lock()
	defer s.searchesMu.Unlock()
	for id, state := range s.searches {
		if state.terminal() && state.EndTime != nil && state.EndTime.Before(cutoff) {
			delete(s.searches, id)
			s.logger.Debug("Search expired", map[string]interface{}{"search_id": id})
		}
	}
}

// progressObserver mirrors accepted and skipped counts into the search state.
type progressObserver struct {
	s     *Server
	state *SearchState
}

func (o *progressObserver) Started(*shielding.Panel) {}

func (o *progressObserver) Accepted(shielding.CandidateResult) {
	o.s.searchesMu.Lock()
	o.state.Accepted++
	o.state.LastUpdated = o.s.now()
	o.s.searchesMu.Unlock()
}

func (o *progressObserver) Skipped(shielding.Candidate, error) {
	o.s.searchesMu.Lock()
	o.state.Skipped++
	o.state.LastUpdated = o.s.now()
	o.s.searchesMu.Unlock()
}
