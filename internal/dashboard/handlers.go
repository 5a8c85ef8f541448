package dashboard

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"rtsched/internal/analysis"
	"rtsched/internal/sched"
)

const defaultHistoryLimit = 100

type healthResponse struct {
	Status      string `json:"status"`
	GoVersion   string `json:"go_version"`
	Uptime      string `json:"uptime"`
	Policy      string `json:"policy"`
	Subscribers int    `json:"subscribers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	src, _ := s.current()
	respondOK(w, RequestIDFromContext(r.Context()), healthResponse{
		Status:      "healthy",
		GoVersion:   runtime.Version(),
		Uptime:      time.Since(s.startTime).Round(time.Second).String(),
		Policy:      string(src.Policy()),
		Subscribers: s.hub.Subscribers(),
	})
}

type statusResponse struct {
	Status      string                 `json:"status"`
	Environment string                 `json:"environment"`
	Policy      sched.PolicyKind       `json:"policy"`
	Tick        int                    `json:"tick"`
	CurrentTask string                 `json:"currentTask,omitempty"`
	Tasks       []sched.TaskStatus     `json:"tasks"`
	Resources   []sched.ResourceStatus `json:"resources"`
	Statistics  sched.Statistics       `json:"statistics"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	src, cfg := s.current()
	snap := src.Snapshot(1)
	resp := statusResponse{
		Status:      "running",
		Policy:      snap.Policy,
		Tick:        snap.Tick,
		CurrentTask: snap.CurrentTask,
		Tasks:       snap.Tasks,
		Resources:   snap.Resources,
		Statistics:  snap.Statistics,
	}
	if cfg != nil {
		resp.Environment = cfg.Environment
	}
	respondOK(w, RequestIDFromContext(r.Context()), resp)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	_, cfg := s.current()
	if cfg == nil {
		respondError(w, reqID, http.StatusNotFound, "NOT_FOUND", "no configuration loaded")
		return
	}
	respondOK(w, reqID, cfg)
}

type historyResponse struct {
	Limit   int                             `json:"limit"`
	History map[string][]sched.HistoryEntry `json:"history"`
}

// handleHistory returns the most recent records grouped by task.
// GET /api/history?limit=N
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, reqID, http.StatusBadRequest, sched.KindValidation.Code(),
				"limit must be a positive integer")
			return
		}
		limit = n
	}

	src, _ := s.current()
	grouped := make(map[string][]sched.HistoryEntry)
	for _, h := range src.HistoryWindow(limit) {
		grouped[h.TaskID] = append(grouped[h.TaskID], h)
	}
	respondOK(w, reqID, historyResponse{Limit: limit, History: grouped})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	src, _ := s.current()
	respondOK(w, RequestIDFromContext(r.Context()), map[string]any{"alerts": src.Alerts()})
}

type analysisResponse struct {
	Static   *analysis.Report     `json:"static,omitempty"`
	Observed analysis.Observation `json:"observed"`
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	src, cfg := s.current()
	resp := analysisResponse{Observed: analysis.Observe(src.Report())}
	if cfg != nil {
		rep := analysis.Analyze(src.Policy(), cfg.Descriptors())
		resp.Static = &rep
	}
	respondOK(w, RequestIDFromContext(r.Context()), resp)
}
