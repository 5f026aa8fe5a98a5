// Package httpapi exposes the deployment status API: registered
// codebases, artifact inventory, run progress, health, and metrics.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tongda/mmdeploy/internal/server"
	"github.com/tongda/mmdeploy/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Codebases() []types.CodebaseInfo
	Status() types.StatusResponse
	StartRun() (string, error)
	Ready() bool
}

// zlog is an optional structured logger; a Nop logger is used when
// unset.
var zlog = zerolog.Nop()

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l }

// NewMux builds the router for the status API.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	// security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(MetricsMiddleware)
	r.Use(requestLogger)

	// ListCodebases godoc
	// @Summary  List registered codebase plugins
	// @Produce  json
	// @Success  200 {object} types.CodebasesResponse
	// @Router   /codebases [get]
	r.Get("/codebases", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.CodebasesResponse{Codebases: svc.Codebases()})
	})

	// Status godoc
	// @Summary  Current run progress and artifact inventory
	// @Produce  json
	// @Success  200 {object} types.StatusResponse
	// @Router   /status [get]
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})

	// StartRun godoc
	// @Summary  Start the configured evaluation run
	// @Produce  json
	// @Success  202 {object} types.RunStartedResponse
	// @Failure  400 {object} types.ErrorResponse
	// @Failure  409 {object} types.ErrorResponse
	// @Router   /runs [post]
	r.Post("/runs", func(w http.ResponseWriter, r *http.Request) {
		runID, err := svc.StartRun()
		if err != nil {
			switch {
			case server.IsRunActive(err):
				writeJSONError(w, http.StatusConflict, err.Error())
			case server.IsRunNotConfigured(err):
				writeJSONError(w, http.StatusBadRequest, err.Error())
			default:
				writeJSONError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}
		writeJSONStatus(w, http.StatusAccepted, types.RunStartedResponse{RunID: runID})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// requestLogger emits one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)
		ev := zlog.Debug()
		if sr.status >= 500 {
			ev = zlog.Error()
		}
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			ev = ev.Str("request_id", rid)
		}
		ev.Str("method", r.Method).Str("path", r.URL.Path).Int("status", sr.status).Msg("request")
	})
}
