package api

import (
	"errors"
	"net/http"

	"github.com/user/devdash/internal/ports"
)

type assignPortsRequest struct {
	// AppIDs defaults to every registered project in list order.
	AppIDs    []string `json:"app_ids"`
	StartPort int      `json:"start_port"`
	// Verify enables the bind probe on each candidate port.
	Verify bool `json:"verify"`
}

type assignPortsResponse struct {
	Assignments map[string]int `json:"assignments"`
	StartPort   int            `json:"start_port"`
}

func (h *handler) assignPorts(w http.ResponseWriter, r *http.Request) {
	var req assignPortsRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	appIDs := req.AppIDs
	if len(appIDs) == 0 {
		ids, err := h.deps.Projects.AppIDs(r.Context())
		if err != nil {
			jsonError(w, http.StatusInternalServerError, err.Error())
			return
		}
		appIDs = ids
	}

	startPort := req.StartPort
	if startPort == 0 {
		startPort = h.deps.State.DefaultStartPort()
	}
	if startPort == 0 {
		startPort = h.deps.StartPort
	}

	var oracle ports.Oracle
	if req.Verify {
		oracle = ports.ListenOracle
	}

	assignments, err := h.deps.Allocator.Assign(ports.Request{
		AppIDs:    appIDs,
		StartPort: startPort,
		Oracle:    oracle,
		OnProgress: func(current, total, percent int) {
			if h.deps.Hub != nil {
				h.deps.Hub.BroadcastProgress(current, total, percent)
			}
		},
	})
	if err != nil {
		var exhausted *ports.ExhaustedError
		if errors.As(err, &exhausted) {
			jsonError(w, http.StatusConflict, exhausted.Error())
			return
		}
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.deps.Projects.ApplyPorts(r.Context(), assignments); err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	jsonResponse(w, http.StatusOK, assignPortsResponse{
		Assignments: assignments,
		StartPort:   startPort,
	})
}

func (h *handler) listPorts(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"ports":              h.deps.State.Ports(),
		"default_start_port": h.deps.State.DefaultStartPort(),
	})
}
