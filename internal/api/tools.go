package api

import "net/http"

func (h *handler) detectTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	jsonResponse(w, http.StatusOK, h.deps.Terminals.DetectCommand(r.Context(), name))
}
