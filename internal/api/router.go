package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/user/devdash/internal/compose"
	"github.com/user/devdash/internal/health"
	"github.com/user/devdash/internal/hub"
	"github.com/user/devdash/internal/ports"
	"github.com/user/devdash/internal/project"
	"github.com/user/devdash/internal/runner"
	"github.com/user/devdash/internal/state"
	"github.com/user/devdash/internal/term"
)

// Deps collects everything the HTTP surface talks to.
type Deps struct {
	Projects  *project.Service
	Runner    *runner.Runner
	Allocator *ports.Allocator
	State     *state.Store
	Terminals *term.Manager
	Compose   *compose.Client
	Health    *health.Collector
	Hub       *hub.Hub
	StartPort int
}

type handler struct {
	deps Deps
}

func NewRouter(deps Deps, token string) http.Handler {
	h := &handler{deps: deps}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/projects", h.createProject)
	mux.HandleFunc("GET /api/projects", h.listProjects)
	mux.HandleFunc("GET /api/projects/{id}", h.getProject)
	mux.HandleFunc("DELETE /api/projects/{id}", h.deleteProject)

	mux.HandleFunc("POST /api/projects/{id}/start", h.startProject)
	mux.HandleFunc("POST /api/projects/{id}/stop", h.stopProject)
	mux.HandleFunc("GET /api/projects/{id}/logs", h.projectLogs)
	mux.HandleFunc("GET /api/apps", h.listApps)

	mux.HandleFunc("POST /api/ports/assign", h.assignPorts)
	mux.HandleFunc("GET /api/ports", h.listPorts)

	mux.HandleFunc("GET /api/sessions", h.listSessions)
	mux.HandleFunc("GET /api/tools/{name}", h.detectTool)

	mux.HandleFunc("GET /api/projects/{id}/compose", h.composeStatus)
	mux.HandleFunc("POST /api/projects/{id}/compose/up", h.composeUp)
	mux.HandleFunc("POST /api/projects/{id}/compose/down", h.composeDown)
	mux.HandleFunc("GET /api/projects/{id}/compose/logs", h.composeLogs)

	mux.HandleFunc("GET /api/health", h.getHealth)

	wrapped := authMiddleware(token)(jsonMiddleware(corsMiddleware(mux)))
	return wrapped
}

func authMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				if strings.TrimSpace(authHeader[7:]) == token {
					next.ServeHTTP(w, r)
					return
				}
			}

			if r.URL.Query().Get("token") == token {
				next.ServeHTTP(w, r)
				return
			}

			jsonError(w, http.StatusUnauthorized, "unauthorized")
		})
	}
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return io.ErrUnexpectedEOF
	}
	return nil
}
