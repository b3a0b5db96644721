package compose

import (
	"os"
	"path/filepath"
	"testing"
)

// TestParseServicesLineDelimited covers the newline-delimited JSON shape
// newer compose versions emit.
func TestParseServicesLineDelimited(t *testing.T) {
	out := []byte(`{"Name":"web-db-1","Image":"postgres:16","Service":"db","State":"running","Status":"Up 2 hours"}
{"Name":"web-cache-1","Image":"redis:7","Service":"cache","State":"exited","Status":"Exited (0)"}`)

	services, err := parseServices(out)
	if err != nil {
		t.Fatalf("parseServices: %v", err)
	}
	if len(services) != 2 {
		t.Fatalf("got %d services, want 2", len(services))
	}
	if services[0].Service != "db" || services[0].State != "running" {
		t.Errorf("first service = %+v", services[0])
	}
	if services[1].Service != "cache" || services[1].State != "exited" {
		t.Errorf("second service = %+v", services[1])
	}
}

// TestParseServicesArray covers the single-array shape of older compose.
func TestParseServicesArray(t *testing.T) {
	out := []byte(`[{"Name":"web-db-1","Image":"postgres:16","Service":"db","State":"running","Status":"Up"}]`)

	services, err := parseServices(out)
	if err != nil {
		t.Fatalf("parseServices: %v", err)
	}
	if len(services) != 1 || services[0].Name != "web-db-1" {
		t.Fatalf("services = %+v", services)
	}
}

// TestParseServicesEmpty verifies empty output yields an empty list.
func TestParseServicesEmpty(t *testing.T) {
	services, err := parseServices([]byte("  \n"))
	if err != nil {
		t.Fatalf("parseServices: %v", err)
	}
	if len(services) != 0 {
		t.Fatalf("services = %+v, want empty", services)
	}
}

// TestParseServicesGarbage verifies malformed output errors.
func TestParseServicesGarbage(t *testing.T) {
	if _, err := parseServices([]byte("not json")); err == nil {
		t.Fatal("parseServices accepted garbage")
	}
}

// TestHasComposeFile checks detection across the accepted file names.
func TestHasComposeFile(t *testing.T) {
	dir := t.TempDir()
	if HasComposeFile(dir) {
		t.Error("empty dir reported a compose file")
	}

	if err := os.WriteFile(filepath.Join(dir, "docker-compose.yml"), []byte("services: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !HasComposeFile(dir) {
		t.Error("docker-compose.yml not detected")
	}
}
