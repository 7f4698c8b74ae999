package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/psidex/graphmind/internal/explorer"
	"github.com/psidex/graphmind/internal/protocol"
)

// Handler returns the hub's HTTP routes.
func (h *Hub) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger(h.logger))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, protocol.MessageResponse{Message: "ok"})
	})
	router.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	router.Get("/ws", h.serveWS)

	router.Route("/knowledges", func(r chi.Router) {
		r.Get("/", h.listKnowledges)
		r.Post("/", h.createKnowledge)
		r.Get("/{name}", h.getKnowledge)
	})

	if h.cfg.StaticDir != "" {
		router.Handle("/*", http.FileServer(http.Dir(h.cfg.StaticDir)))
	}
	return router
}

func (h *Hub) listKnowledges(w http.ResponseWriter, r *http.Request) {
	topics, err := h.store.Topics(r.Context())
	if err != nil {
		h.logger.Error("listing topics", "err", err)
		writeMessage(w, http.StatusInternalServerError, "could not list knowledges")
		return
	}
	writeJSON(w, http.StatusOK, topics)
}

func (h *Hub) getKnowledge(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		writeMessage(w, http.StatusBadRequest, "invalid knowledge name")
		return
	}

	snap, found, err := h.snapshot(r.Context(), name)
	switch {
	case err != nil:
		h.logger.Error("building snapshot", "topic", name, "err", err)
		writeMessage(w, http.StatusInternalServerError, "could not load knowledge")
	case !found:
		writeMessage(w, http.StatusNotFound, fmt.Sprintf("knowledge %q not found", name))
	default:
		writeJSON(w, http.StatusOK, snap)
	}
}

func (h *Hub) createKnowledge(w http.ResponseWriter, r *http.Request) {
	var req protocol.CreateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := protocol.Validator().Struct(req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.jobs == nil {
		writeMessage(w, http.StatusServiceUnavailable, "knowledge creation is disabled")
		return
	}

	job, err := h.jobs.Submit(req.Idea, req.Depth)
	switch {
	case errors.Is(err, explorer.ErrQueueFull):
		writeMessage(w, http.StatusTooManyRequests, "too many pending explorations, try again later")
	case err != nil:
		writeMessage(w, http.StatusServiceUnavailable, err.Error())
	default:
		w.Header().Set("Location", "/knowledges/"+url.PathEscape(req.Idea))
		writeMessage(w, http.StatusAccepted, fmt.Sprintf("Exploring %s (job %s)", req.Idea, job.ID))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, protocol.MessageResponse{Message: message})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"took", time.Since(start),
			)
		})
	}
}
