package api

import "net/http"

func (h *handler) getHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.deps.Health.Get())
}
