package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/copyleftdev/hexshield/internal/config"
	apperrors "github.com/copyleftdev/hexshield/internal/errors"
	"github.com/copyleftdev/hexshield/internal/export"
	"github.com/copyleftdev/hexshield/internal/logging"
	"github.com/copyleftdev/hexshield/internal/metrics"
	"github.com/copyleftdev/hexshield/internal/shielding"
	"github.com/copyleftdev/hexshield/internal/shielding/mesh"
)

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Server implements the HTTP and JSON-RPC server for the search service.
// It manages search jobs and provides endpoints to start, monitor, export and cancel them.
type Server struct {
	cfg     *config.Config
	logger  Logger
	zlog    *zap.Logger
	metrics *metrics.Collector
	now     func() time.Time

	// slots bounds the number of concurrently sweeping searches
	slots chan struct{}
	wg    sync.WaitGroup

	searches   map[string]*SearchState
	searchesMu sync.RWMutex // Protects the searches map and every SearchState
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records search metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) {
		s.metrics = c
	}
}

// WithZapLogger sets the logger used for per-candidate search progress.
func WithZapLogger(z *zap.Logger) Option {
	return func(s *Server) {
		if z != nil {
			s.zlog = z
		}
	}
}

// NewServer creates a new server instance with the given config and logger
// The logger parameter accepts any type that implements the Logger interface
func NewServer(cfg *config.Config, logger Logger, opts ...Option) *Server {
	workers := cfg.Search.Workers
	if workers < 1 {
		workers = 1
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		zlog:     zap.NewNop(),
		now:      time.Now,
		slots:    make(chan struct{}, workers),
		searches: make(map[string]*SearchState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/searches", s.handleStartSearch)
		r.Get("/searches/{id}", s.handleStatus)
		r.Delete("/searches/{id}", s.handleCancel)
		r.Get("/searches/{id}/export.tsv", s.handleExportTSV)
		r.Get("/searches/{id}/export.xlsx", s.handleExportXLSX)
		r.Post("/evaluate", s.handleEvaluate)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// Close cancels all searches and waits for their goroutines to return.
func (s *Server) Close() error {
	s.searchesMu.Lock()
	for _, st := range s.searches {
		if st.cancelFunc != nil {
			st.cancelFunc()
		}
	}
	s.searchesMu.Unlock()

	s.wg.Wait()
	return nil
}

// EvaluateRequest asks for the geometry of one candidate on a panel.
type EvaluateRequest struct {
	Panel      shielding.PanelParams `json:"panel"`
	LineLength float64               `json:"line_length"`
	IntervalX  float64               `json:"interval_x"`
}

// Evaluate runs the geometry model for a single candidate.
func (s *Server) Evaluate(req EvaluateRequest) (shielding.CandidateResult, error) {
	if req.Panel.Precision == 0 {
		req.Panel.Precision = s.cfg.Search.DefaultPrecision
	}
	panel, err := shielding.NewPanel(req.Panel)
	if err != nil {
		return shielding.CandidateResult{}, err
	}
	return mesh.NewModel(panel).Evaluate(shielding.Candidate{
		LineLength: req.LineLength,
		IntervalX:  req.IntervalX,
	})
}

// handleStartSearch handles POST /api/v1/searches
func (s *Server) handleStartSearch(w http.ResponseWriter, r *http.Request) {
	var params shielding.PanelParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.writeError(w, apperrors.Wrapf(apperrors.ErrBadRequest, "invalid request body: %v", err))
		return
	}

	v, err := s.StartSearch(params)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"search_id": v.ID,
		"status":    v.Status,
		"grid_size": v.GridSize,
	})
}

// handleStatus handles GET /api/v1/searches/{id}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	v, err := s.SearchStatus(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

// handleCancel handles DELETE /api/v1/searches/{id}
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.CancelSearch(id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"search_id": id,
		"status":    StatusCancelled,
	})
}

// handleExportTSV handles GET /api/v1/searches/{id}/export.tsv
func (s *Server) handleExportTSV(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	_, res, err := s.CompletedResults(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/tab-separated-values; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".tsv"))
	if err := export.WriteTSV(w, res.Results); err != nil {
		s.logger.Error("TSV export failed", map[string]interface{}{"search_id": id, "error": err.Error()})
	}
}

// handleExportXLSX handles GET /api/v1/searches/{id}/export.xlsx
func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	params, res, err := s.CompletedResults(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".xlsx"))
	if err := export.WriteXLSX(w, params, res.Results); err != nil {
		s.logger.Error("XLSX export failed", map[string]interface{}{"search_id": id, "error": err.Error()})
	}
}

// handleEvaluate handles POST /api/v1/evaluate
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.Wrapf(apperrors.ErrBadRequest, "invalid request body: %v", err))
		return
	}

	res, err := s.Evaluate(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, apperrors.StatusCode(err), map[string]interface{}{
		"error": err.Error(),
	})
}
