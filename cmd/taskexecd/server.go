package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	taskexec "github.com/linkflow-ai/taskexec"
	"github.com/linkflow-ai/taskexec/internal/platform/health"
	"github.com/linkflow-ai/taskexec/internal/platform/logger"
	"github.com/linkflow-ai/taskexec/internal/platform/metrics"
	"github.com/linkflow-ai/taskexec/pkg/middleware"
)

// Server exposes a Group's submission API over HTTP. It holds no task
// state the Group doesn't already hold — the registry below exists only
// so a later GET can look a task handle back up by ID; losing it on
// restart loses nothing the Group itself would have kept either.
type Server struct {
	group   *taskexec.Group
	hub     *Hub
	log     logger.Logger
	metrics *metrics.Metrics
	health  *health.Handler

	tasks sync.Map // string -> *taskexec.ProducerTask[any]
}

func NewServer(group *taskexec.Group, hub *Hub, log logger.Logger, m *metrics.Metrics, h *health.Handler) *Server {
	return &Server{group: group, hub: hub, log: log, metrics: m, health: h}
}

func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/tasks", s.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/tasks/{id}", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/executors/{band}/suspend", s.handleSuspend).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/executors/{band}/resume", s.handleResume).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/executors/{band}/wait", s.handleWait).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/events", s.hub.ServeWS)
	r.HandleFunc("/health", s.health.LivenessHandler()).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.health.ReadinessHandler()).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	var handler http.Handler = r
	handler = middleware.Recovery(&middleware.RecoveryConfig{Logger: s.log, StackTrace: true})(handler)
	handler = middleware.Logging(&middleware.LoggingConfig{
		Logger: s.log,
		// /api/v1/events is skipped too: Logging wraps the ResponseWriter to
		// capture status/size, which hides the http.Hijacker the websocket
		// upgrade needs.
		SkipPaths: []string{"/health", "/ready", "/metrics", "/api/v1/events"},
	})(handler)
	handler = middleware.RequestID(handler)

	return s.metrics.HTTPMetricsMiddleware()(handler)
}

func bandFromPath(name string) (taskexec.Band, bool) {
	switch name {
	case "low":
		return taskexec.BandLow, true
	case "normal":
		return taskexec.BandNormal, true
	case "high":
		return taskexec.BandHigh, true
	default:
		return 0, false
	}
}

func priorityFor(b taskexec.Band) int {
	switch b {
	case taskexec.BandHigh:
		return taskexec.PriorityHigh
	case taskexec.BandLow:
		return taskexec.PriorityLow
	default:
		return taskexec.PriorityNormal
	}
}

type submitRequest struct {
	Band      string          `json:"band"`
	Async     bool            `json:"async"`
	Priority  *int            `json:"priority,omitempty"`
	RunOnceID string          `json:"runOnceId,omitempty"`
	WorkMS    int             `json:"workMs"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type submitResponse struct {
	ID   string `json:"id"`
	Band string `json:"band"`
	Mode string `json:"mode"`
}

// handleSubmit enqueues a producer task whose body simulates WorkMS of
// work and echoes Payload back as its result — there being no real
// workload behind a reference HTTP front door, this is the closest
// faithful stand-in for "the caller's actual callable".
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	band, ok := bandFromPath(req.Band)
	if !ok {
		band = taskexec.BandNormal
	}
	priority := priorityFor(band)
	if req.Priority != nil {
		priority = *req.Priority
	}

	work := time.Duration(req.WorkMS) * time.Millisecond
	payload := req.Payload

	fn := func(ctx context.Context) (any, error) {
		if work > 0 {
			select {
			case <-time.After(work):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		var v any
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &v); err != nil {
				return nil, err
			}
		}
		return v, nil
	}

	p := taskexec.NewProducer(s.group.Band(band), fn, priority)
	if req.Async {
		p.Async()
	}
	if req.RunOnceID != "" {
		p.RunOnlyOnce(req.RunOnceID, nil)
	}

	s.hub.Emit(TaskEvent{Type: EventSubmitted, TaskID: p.ID(), Band: band.String(), Mode: p.Mode().String(), Timestamp: time.Now()})
	p = p.Submit()
	s.tasks.Store(p.ID(), p)

	go func() {
		p.Join(true)
		errMsg := ""
		if err := p.Error(); err != nil {
			errMsg = err.Error()
		}
		s.hub.Emit(TaskEvent{Type: EventFinished, TaskID: p.ID(), Band: band.String(), Mode: p.Mode().String(), Timestamp: time.Now(), Error: errMsg})
	}()

	writeJSON(w, http.StatusAccepted, submitResponse{ID: p.ID(), Band: band.String(), Mode: p.Mode().String()})
}

type statusResponse struct {
	ID       string `json:"id"`
	Finished bool   `json:"finished"`
	Error    string `json:"error,omitempty"`
	Result   any    `json:"result,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	v, ok := s.tasks.Load(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	p := v.(*taskexec.ProducerTask[any])

	resp := statusResponse{ID: id, Finished: p.Finished()}
	if resp.Finished {
		if err := p.Error(); err != nil {
			resp.Error = err.Error()
		} else if result, ok := p.Result(); ok {
			resp.Result = result
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSuspend(w http.ResponseWriter, r *http.Request) {
	band, ok := bandFromPath(mux.Vars(r)["band"])
	if !ok {
		http.Error(w, "unknown band", http.StatusBadRequest)
		return
	}
	immediate := r.URL.Query().Get("immediate") == "true"
	s.group.Band(band).Suspend(immediate)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	band, ok := bandFromPath(mux.Vars(r)["band"])
	if !ok {
		http.Error(w, "unknown band", http.StatusBadRequest)
		return
	}
	s.group.Band(band).Resume()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWait(w http.ResponseWriter, r *http.Request) {
	band, ok := bandFromPath(mux.Vars(r)["band"])
	if !ok {
		http.Error(w, "unknown band", http.StatusBadRequest)
		return
	}
	s.group.Band(band).WaitForAll()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
