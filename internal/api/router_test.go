package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/user/devdash/internal/compose"
	"github.com/user/devdash/internal/db"
	"github.com/user/devdash/internal/health"
	"github.com/user/devdash/internal/ports"
	"github.com/user/devdash/internal/project"
	"github.com/user/devdash/internal/runner"
	"github.com/user/devdash/internal/state"
	"github.com/user/devdash/internal/term"
)

func openAPI(t *testing.T) http.Handler {
	t.Helper()
	database, err := db.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	store, err := state.Open(filepath.Join(t.TempDir(), "state.yaml"))
	if err != nil {
		t.Fatalf("open state: %v", err)
	}

	projectRepo := db.NewProjectRepo(database.SQL())
	runRepo := db.NewRunRepo(database.SQL())
	appRunner := runner.New(projectRepo, runRepo)
	t.Cleanup(appRunner.Close)
	terminals := term.NewManager()
	t.Cleanup(terminals.Close)

	return NewRouter(Deps{
		Projects:  project.NewService(projectRepo),
		Runner:    appRunner,
		Allocator: ports.NewAllocator(store),
		State:     store,
		Terminals: terminals,
		Compose:   compose.NewClient(),
		Health:    health.NewCollector(0),
		StartPort: 3001,
	}, "test-token")
}

func apiRequest(t *testing.T, h http.Handler, method, path string, body any, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer test-token")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if rr.Body.Len() == 0 {
		return
	}
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode body: %v body=%s", err, rr.Body.String())
	}
}

func TestAuthMiddleware(t *testing.T) {
	h := openAPI(t)
	unauth := apiRequest(t, h, http.MethodGet, "/api/projects", nil, false)
	if unauth.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d want %d", unauth.Code, http.StatusUnauthorized)
	}
	wrong := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	wrong.Header.Set("Authorization", "Bearer wrong-token")
	wrongRR := httptest.NewRecorder()
	h.ServeHTTP(wrongRR, wrong)
	if wrongRR.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status=%d want %d", wrongRR.Code, http.StatusUnauthorized)
	}
	auth := apiRequest(t, h, http.MethodGet, "/api/projects", nil, true)
	if auth.Code != http.StatusOK {
		t.Fatalf("status=%d want %d", auth.Code, http.StatusOK)
	}
}

func TestProjectLifecycle(t *testing.T) {
	h := openAPI(t)

	bad := apiRequest(t, h, http.MethodPost, "/api/projects", map[string]any{"path": t.TempDir()}, true)
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("bad create status=%d want %d", bad.Code, http.StatusBadRequest)
	}

	create := apiRequest(t, h, http.MethodPost, "/api/projects", map[string]any{
		"name": "P1", "path": t.TempDir(), "start_command": "sleep 60",
	}, true)
	if create.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", create.Code, create.Body.String())
	}
	var created map[string]any
	decodeBody(t, create, &created)
	projectID := created["id"].(string)

	get := apiRequest(t, h, http.MethodGet, "/api/projects/"+projectID, nil, true)
	if get.Code != http.StatusOK {
		t.Fatalf("get status=%d", get.Code)
	}
	var detail map[string]any
	decodeBody(t, get, &detail)
	if detail["running"] != false {
		t.Fatalf("running=%v want false", detail["running"])
	}

	del := apiRequest(t, h, http.MethodDelete, "/api/projects/"+projectID, nil, true)
	if del.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", del.Code)
	}
	if got := apiRequest(t, h, http.MethodGet, "/api/projects/"+projectID, nil, true).Code; got != http.StatusNotFound {
		t.Fatalf("get after delete status=%d want %d", got, http.StatusNotFound)
	}
}

func TestAssignPortsEndpoint(t *testing.T) {
	h := openAPI(t)

	var ids []string
	for _, name := range []string{"app-a", "app-b"} {
		create := apiRequest(t, h, http.MethodPost, "/api/projects", map[string]any{
			"name": name, "path": t.TempDir(), "start_command": "true",
		}, true)
		if create.Code != http.StatusCreated {
			t.Fatalf("create %s status=%d", name, create.Code)
		}
		var created map[string]any
		decodeBody(t, create, &created)
		ids = append(ids, created["id"].(string))
	}

	assign := apiRequest(t, h, http.MethodPost, "/api/ports/assign", map[string]any{
		"start_port": 4000,
	}, true)
	if assign.Code != http.StatusOK {
		t.Fatalf("assign status=%d body=%s", assign.Code, assign.Body.String())
	}
	var resp assignPortsResponse
	decodeBody(t, assign, &resp)
	if len(resp.Assignments) != 2 {
		t.Fatalf("assignments=%v want 2 entries", resp.Assignments)
	}
	seen := map[int]bool{}
	for _, id := range ids {
		port, ok := resp.Assignments[id]
		if !ok || port < 4000 || seen[port] {
			t.Fatalf("bad assignment for %s: %v", id, resp.Assignments)
		}
		seen[port] = true
	}

	// assignments land on the project rows and in persistent state
	get := apiRequest(t, h, http.MethodGet, "/api/projects/"+ids[0], nil, true)
	var detail map[string]any
	decodeBody(t, get, &detail)
	proj := detail["project"].(map[string]any)
	if int(proj["port"].(float64)) != resp.Assignments[ids[0]] {
		t.Fatalf("project port=%v want %d", proj["port"], resp.Assignments[ids[0]])
	}

	list := apiRequest(t, h, http.MethodGet, "/api/ports", nil, true)
	if list.Code != http.StatusOK {
		t.Fatalf("list ports status=%d", list.Code)
	}
	var listed struct {
		Ports map[string]int `json:"ports"`
	}
	decodeBody(t, list, &listed)
	if len(listed.Ports) != 2 {
		t.Fatalf("persisted ports=%v want 2 entries", listed.Ports)
	}
}

func TestAssignPortsExhaustion(t *testing.T) {
	h := openAPI(t)

	for _, name := range []string{"app-a", "app-b"} {
		create := apiRequest(t, h, http.MethodPost, "/api/projects", map[string]any{
			"name": name, "path": t.TempDir(), "start_command": "true",
		}, true)
		if create.Code != http.StatusCreated {
			t.Fatalf("create %s status=%d", name, create.Code)
		}
	}

	assign := apiRequest(t, h, http.MethodPost, "/api/ports/assign", map[string]any{
		"start_port": 65535,
	}, true)
	if assign.Code != http.StatusConflict {
		t.Fatalf("assign status=%d want %d", assign.Code, http.StatusConflict)
	}

	list := apiRequest(t, h, http.MethodGet, "/api/ports", nil, true)
	var listed struct {
		Ports map[string]int `json:"ports"`
	}
	decodeBody(t, list, &listed)
	if len(listed.Ports) != 0 {
		t.Fatalf("expected nothing persisted after exhaustion, got %v", listed.Ports)
	}
}

func TestRunEndpointsUnknownProject(t *testing.T) {
	h := openAPI(t)
	if got := apiRequest(t, h, http.MethodPost, "/api/projects/missing/start", nil, true).Code; got != http.StatusNotFound {
		t.Fatalf("start status=%d want %d", got, http.StatusNotFound)
	}
	if got := apiRequest(t, h, http.MethodPost, "/api/projects/missing/stop", nil, true).Code; got != http.StatusNotFound {
		t.Fatalf("stop status=%d want %d", got, http.StatusNotFound)
	}
}

func TestSessionsEndpointEmpty(t *testing.T) {
	h := openAPI(t)
	rr := apiRequest(t, h, http.MethodGet, "/api/sessions", nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var sessions []map[string]any
	decodeBody(t, rr, &sessions)
	if len(sessions) != 0 {
		t.Fatalf("sessions=%v want empty", sessions)
	}
}

func TestDetectToolEndpoint(t *testing.T) {
	h := openAPI(t)
	rr := apiRequest(t, h, http.MethodGet, "/api/tools/sh", nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var result map[string]any
	decodeBody(t, rr, &result)
	if result["installed"] != true {
		t.Fatalf("expected sh to be installed: %v", result)
	}
}

func TestComposeRequiresComposeFile(t *testing.T) {
	h := openAPI(t)
	create := apiRequest(t, h, http.MethodPost, "/api/projects", map[string]any{
		"name": "plain", "path": t.TempDir(), "start_command": "true",
	}, true)
	var created map[string]any
	decodeBody(t, create, &created)
	projectID := created["id"].(string)

	rr := apiRequest(t, h, http.MethodGet, "/api/projects/"+projectID+"/compose", nil, true)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := openAPI(t)
	rr := apiRequest(t, h, http.MethodGet, "/api/health", nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
}
