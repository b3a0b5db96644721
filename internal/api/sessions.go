package api

import "net/http"

func (h *handler) listSessions(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.deps.Terminals.List())
}
