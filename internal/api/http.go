// Package api exposes thoughtchain over HTTP (a message endpoint plus REST
// conveniences) and over MCP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/thoughtchain/internal/dispatch"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Dispatcher handles envelope messages.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) dispatch.Response
}

// HTTPRecorder observes served requests.
type HTTPRecorder interface {
	ObserveHTTP(method, route string, status int, d time.Duration)
}

// Deps holds the HTTP layer's dependencies.
type Deps struct {
	Dispatcher Dispatcher
	Token      string
	Recorder   HTTPRecorder // optional
	Metrics    http.Handler // optional; served at /metrics without auth
}

// NewHandler builds the router. /health and /metrics are public; everything
// else needs the bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(extensionCORS())
	if deps.Recorder != nil {
		r.Use(observe(deps.Recorder))
	}

	r.Get("/health", handleHealth)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/messages", handleMessage(deps))

		r.Route("/chains", func(r chi.Router) {
			r.Get("/", handleGetAllChains(deps))
			r.Get("/recent", handleRecentChains(deps))
			r.Get("/active", handleGetActiveChain(deps))
			r.Put("/active", handleSetActiveChain(deps))
			r.Post("/split", handleSplit(deps))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", handleGetChain(deps))
				r.Patch("/", handleRenameChain(deps))
				r.Delete("/", handleDeleteChain(deps))
				r.Post("/nodes", handleAddNode(deps))
				r.Get("/report", handleGetReport(deps))
				r.Post("/report", handleRequestReport(deps))
				r.Get("/nodes/{nodeID}", handleGetNode(deps))
				r.Patch("/nodes/{nodeID}", handlePatchNode(deps))
				r.Delete("/nodes/{nodeID}", handleRemoveNode(deps))
				r.Post("/nodes/{nodeID}/summary", handleRegenerateSummary(deps))
			})
		})

		r.Get("/nodes/recent", handleRecentNodes(deps))
		r.Post("/extract", handleExtract(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleMessage is the raw message endpoint. It always answers 200 with the
// envelope so clients handle a single shape.
func handleMessage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dispatch.Request
		if !decodeBody(w, r, &req) {
			return
		}
		writeJSON(w, http.StatusOK, deps.Dispatcher.Dispatch(r.Context(), req))
	}
}

func observe(rec HTTPRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			rec.ObserveHTTP(r.Method, route, status, time.Since(start))
		})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
