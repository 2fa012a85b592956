// Package api serves the crew, run history and document index over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/statcrew/internal/crew"
	"github.com/nidhogg/statcrew/internal/gateway"
	"github.com/nidhogg/statcrew/internal/rag"
	"github.com/nidhogg/statcrew/internal/skill"
	"github.com/nidhogg/statcrew/internal/store"
	"go.uber.org/zap"
)

// Asker answers crew requests. *crew.Service satisfies it.
type Asker interface {
	Ask(ctx context.Context, req crew.AskRequest) (*crew.Answer, error)
}

// RunStore reads run history. *store.Store satisfies it.
type RunStore interface {
	ListRuns(ctx context.Context, limit int) ([]*store.Run, error)
	GetRun(ctx context.Context, id string) (*store.Run, error)
}

// Answerer answers questions from the document index. *rag.Index satisfies it.
type Answerer interface {
	Answer(ctx context.Context, question string, topK int) (*rag.Answer, error)
}

// Deps are the handler's collaborators. Crew and Builder are required; the
// rest switch their routes to 503 when nil.
type Deps struct {
	Crew        Asker
	Builder     *crew.Builder
	Runs        RunStore
	RAG         Answerer
	Skills      *skill.Manager
	Gateway     *gateway.Gateway
	Broadcaster *gateway.Broadcaster
	REST        *gateway.RESTAdapter
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	deps   Deps
	logger *zap.Logger
}

func NewHandler(deps Deps, logger *zap.Logger) *Handler {
	return &Handler{deps: deps, logger: logger}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		r.Post("/ask", h.ask)
		r.Get("/graphs", h.listGraphs)
		r.Get("/graphs/{name}", h.getGraph)
		r.Get("/skills", h.listSkills)

		r.Get("/runs", h.listRuns)
		r.Get("/runs/{id}", h.getRun)

		r.Post("/rag/query", h.ragQuery)

		if h.deps.REST != nil {
			r.Mount("/gateway/rest", h.deps.REST.Routes())
		}
		r.Get("/gateway/status", h.gatewayStatus)
		r.Post("/broadcast", h.sendBroadcast)
		r.Get("/broadcasts", h.listBroadcasts)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok", "service": "statcrew", "database": "disabled"}
	if p, ok := h.deps.Runs.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["database"] = err.Error()
		} else {
			body["database"] = "ok"
		}
	}
	writeJSON(w, http.StatusOK, body)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type askRequest struct {
	Request string `json:"request"`
	Date    string `json:"date,omitempty"`
	Graph   string `json:"graph,omitempty"`
}

func (h *Handler) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Request) == "" {
		writeError(w, http.StatusBadRequest, "request is required")
		return
	}

	ask := crew.AskRequest{Text: req.Request, Graph: crew.GraphName(req.Graph)}
	if req.Date != "" {
		d, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		ask.FallbackDate = d
	}
	if ask.Graph != "" {
		if _, err := h.deps.Builder.Definitions().Graph(ask.Graph); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	ans, err := h.deps.Crew.Ask(r.Context(), ask)
	if err != nil {
		h.logger.Error("ask failed", zap.Error(err))
		status := http.StatusBadGateway
		var te *crew.TaskError
		if !errors.As(err, &te) {
			status = http.StatusInternalServerError
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

type graphSummary struct {
	Name        crew.GraphName `json:"name"`
	Description string         `json:"description"`
	Tasks       []string       `json:"tasks"`
}

func (h *Handler) listGraphs(w http.ResponseWriter, r *http.Request) {
	defs := h.deps.Builder.Definitions()
	out := make([]graphSummary, 0, len(defs.Graphs))
	for _, name := range defs.GraphNames() {
		def, _ := defs.Graph(name)
		out = append(out, graphSummary{Name: name, Description: def.Description, Tasks: def.Tasks})
	}
	writeJSON(w, http.StatusOK, out)
}

type graphDetail struct {
	Name        crew.GraphName `json:"name"`
	Description string         `json:"description"`
	Tasks       []*crew.Task   `json:"tasks"`
	Agents      interface{}    `json:"agents"`
	Order       []string       `json:"order"`
	Levels      [][]string     `json:"levels"`
	DOT         string         `json:"dot"`
}

func (h *Handler) getGraph(w http.ResponseWriter, r *http.Request) {
	name := crew.GraphName(chi.URLParam(r, "name"))
	def, err := h.deps.Builder.Definitions().Graph(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	g, err := h.deps.Builder.Build(name, crew.Request{Text: r.URL.Query().Get("request")})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, graphDetail{
		Name:        name,
		Description: def.Description,
		Tasks:       g.Tasks,
		Agents:      g.Agents,
		Order:       g.Order(),
		Levels:      g.Levels(),
		DOT:         g.DOT(),
	})
}

func (h *Handler) listSkills(w http.ResponseWriter, r *http.Request) {
	if h.deps.Skills == nil {
		writeJSON(w, http.StatusOK, []*skill.Skill{})
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Skills.All())
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	if h.deps.Runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run history not configured")
		return
	}
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	runs, err := h.deps.Runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	if h.deps.Runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run history not configured")
		return
	}
	run, err := h.deps.Runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

type ragRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

func (h *Handler) ragQuery(w http.ResponseWriter, r *http.Request) {
	if h.deps.RAG == nil {
		writeError(w, http.StatusServiceUnavailable, "document index not configured")
		return
	}
	var req ragRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	ans, err := h.deps.RAG.Answer(r.Context(), req.Question, req.TopK)
	if errors.Is(err, rag.ErrNoContext) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (h *Handler) gatewayStatus(w http.ResponseWriter, r *http.Request) {
	if h.deps.Gateway == nil {
		writeJSON(w, http.StatusOK, []gateway.AdapterStatus{})
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Gateway.Statuses())
}

func (h *Handler) sendBroadcast(w http.ResponseWriter, r *http.Request) {
	if h.deps.Broadcaster == nil {
		writeError(w, http.StatusServiceUnavailable, "gateway not configured")
		return
	}
	var msg gateway.BroadcastMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg.Type == "" {
		msg.Type = gateway.BroadcastAnnouncement
	}
	if err := h.deps.Broadcaster.Send(r.Context(), &msg); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (h *Handler) listBroadcasts(w http.ResponseWriter, r *http.Request) {
	if h.deps.Broadcaster == nil {
		writeJSON(w, http.StatusOK, []gateway.BroadcastRecord{})
		return
	}
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, h.deps.Broadcaster.History(limit))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
