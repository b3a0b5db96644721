package api

import (
	"net/http"
	"strconv"

	"github.com/user/devdash/internal/compose"
	"github.com/user/devdash/internal/db"
)

// composeProject resolves the project and checks it carries a compose
// file before any compose CLI call.
func (h *handler) composeProject(w http.ResponseWriter, r *http.Request) *db.Project {
	id := r.PathValue("id")
	proj, err := h.deps.Projects.Get(r.Context(), id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return nil
	}
	if proj == nil {
		jsonError(w, http.StatusNotFound, "project not found")
		return nil
	}
	if !compose.HasComposeFile(proj.Path) {
		jsonError(w, http.StatusBadRequest, "project has no compose file")
		return nil
	}
	return proj
}

func (h *handler) composeStatus(w http.ResponseWriter, r *http.Request) {
	proj := h.composeProject(w, r)
	if proj == nil {
		return
	}
	services, err := h.deps.Compose.Ps(r.Context(), proj.Path)
	if err != nil {
		jsonError(w, http.StatusBadGateway, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"project_id": proj.ID,
		"services":   services,
	})
}

func (h *handler) composeUp(w http.ResponseWriter, r *http.Request) {
	proj := h.composeProject(w, r)
	if proj == nil {
		return
	}
	if err := h.deps.Compose.Up(r.Context(), proj.Path); err != nil {
		jsonError(w, http.StatusBadGateway, err.Error())
		return
	}
	jsonResponse(w, http.StatusNoContent, nil)
}

func (h *handler) composeDown(w http.ResponseWriter, r *http.Request) {
	proj := h.composeProject(w, r)
	if proj == nil {
		return
	}
	if err := h.deps.Compose.Down(r.Context(), proj.Path); err != nil {
		jsonError(w, http.StatusBadGateway, err.Error())
		return
	}
	jsonResponse(w, http.StatusNoContent, nil)
}

func (h *handler) composeLogs(w http.ResponseWriter, r *http.Request) {
	proj := h.composeProject(w, r)
	if proj == nil {
		return
	}
	tail := 100
	if raw := r.URL.Query().Get("tail"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			jsonError(w, http.StatusBadRequest, "invalid tail parameter")
			return
		}
		tail = parsed
	}
	logs, err := h.deps.Compose.Logs(r.Context(), proj.Path, tail)
	if err != nil {
		jsonError(w, http.StatusBadGateway, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"project_id": proj.ID,
		"logs":       logs,
	})
}
