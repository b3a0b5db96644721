package api

import (
	"net/http"
	"strconv"

	"github.com/user/devdash/internal/db"
	"github.com/user/devdash/internal/project"
)

type registerProjectRequest struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	StartCommand string `json:"start_command"`
}

type projectDetailResponse struct {
	Project *db.Project `json:"project"`
	Running bool        `json:"running"`
	Runs    []*db.Run   `json:"runs"`
}

func (h *handler) createProject(w http.ResponseWriter, r *http.Request) {
	var req registerProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	proj, err := h.deps.Projects.Register(r.Context(), project.RegisterRequest{
		Name:         req.Name,
		Path:         req.Path,
		StartCommand: req.StartCommand,
	})
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonResponse(w, http.StatusCreated, proj)
}

func (h *handler) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.deps.Projects.List(r.Context())
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, projects)
}

func (h *handler) getProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	proj, err := h.deps.Projects.Get(r.Context(), id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if proj == nil {
		jsonError(w, http.StatusNotFound, "project not found")
		return
	}

	runs, err := h.deps.Runner.Runs(r.Context(), id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	jsonResponse(w, http.StatusOK, projectDetailResponse{
		Project: proj,
		Running: h.deps.Runner.Running(id),
		Runs:    runs,
	})
}

func (h *handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	proj, err := h.deps.Projects.Get(r.Context(), id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if proj == nil {
		jsonError(w, http.StatusNotFound, "project not found")
		return
	}
	if h.deps.Runner.Running(id) {
		jsonError(w, http.StatusConflict, "project is running; stop it first")
		return
	}

	if err := h.deps.Projects.Remove(r.Context(), id); err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusNoContent, nil)
}

func (h *handler) startProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	proj, err := h.deps.Projects.Get(r.Context(), id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if proj == nil {
		jsonError(w, http.StatusNotFound, "project not found")
		return
	}

	run, err := h.deps.Runner.Start(r.Context(), proj)
	if err != nil {
		jsonError(w, http.StatusConflict, err.Error())
		return
	}
	jsonResponse(w, http.StatusCreated, run)
}

func (h *handler) stopProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.deps.Runner.Stop(id); err != nil {
		jsonError(w, http.StatusNotFound, err.Error())
		return
	}
	jsonResponse(w, http.StatusNoContent, nil)
}

func (h *handler) projectLogs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	n := 200
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			jsonError(w, http.StatusBadRequest, "invalid n parameter")
			return
		}
		n = parsed
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"project_id": id,
		"lines":      h.deps.Runner.Logs(id, n),
	})
}

func (h *handler) listApps(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.deps.Runner.Statuses())
}
