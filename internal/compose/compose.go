// Package compose shells out to the Docker Compose CLI for projects that
// carry a compose file. The daemon never talks to the Docker API
// directly; compose owns service orchestration semantics.
package compose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const commandTimeout = 60 * time.Second

// Service is one row of `docker compose ps`.
type Service struct {
	Name    string `json:"Name"`
	Image   string `json:"Image"`
	Service string `json:"Service"`
	State   string `json:"State"`
	Status  string `json:"Status"`
}

type Client struct {
	bin string
}

func NewClient() *Client {
	return &Client{bin: "docker"}
}

// Available reports whether the compose plugin responds on this host.
func (c *Client) Available(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if _, err := exec.CommandContext(ctx, c.bin, "compose", "version").Output(); err != nil {
		return fmt.Errorf("docker compose is not available: %w", err)
	}
	return nil
}

// Up starts the project's compose services detached.
func (c *Client) Up(ctx context.Context, dir string) error {
	return c.run(ctx, dir, "up", "-d")
}

// Down stops and removes the project's compose services.
func (c *Client) Down(ctx context.Context, dir string) error {
	return c.run(ctx, dir, "down")
}

// Ps lists the project's compose services.
func (c *Client) Ps(ctx context.Context, dir string) ([]Service, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.bin, "compose", "ps", "--all", "--format", "json")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("docker compose ps: %w", err)
	}
	return parseServices(out)
}

// Logs returns the tail of the project's combined service logs.
func (c *Client) Logs(ctx context.Context, dir string, tail int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if tail <= 0 {
		tail = 100
	}
	cmd := exec.CommandContext(ctx, c.bin, "compose", "logs", "--no-color", "--tail", strconv.Itoa(tail))
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("docker compose logs: %w", err)
	}
	return string(out), nil
}

func (c *Client) run(ctx context.Context, dir string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.bin, append([]string{"compose"}, args...)...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("docker compose %s: %w: %s", strings.Join(args, " "), err, bytes.TrimSpace(out))
	}
	return nil
}

// parseServices handles both output shapes compose has shipped: one JSON
// object per line, and a single JSON array.
func parseServices(out []byte) ([]Service, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return []Service{}, nil
	}

	if trimmed[0] == '[' {
		var services []Service
		if err := json.Unmarshal(trimmed, &services); err != nil {
			return nil, fmt.Errorf("parse compose ps output: %w", err)
		}
		return services, nil
	}

	services := make([]Service, 0)
	for _, line := range bytes.Split(trimmed, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var svc Service
		if err := json.Unmarshal(line, &svc); err != nil {
			return nil, fmt.Errorf("parse compose ps line %q: %w", line, err)
		}
		services = append(services, svc)
	}
	return services, nil
}

// HasComposeFile reports whether dir carries a compose file the CLI
// would pick up.
func HasComposeFile(dir string) bool {
	for _, name := range []string{
		"compose.yaml", "compose.yml",
		"docker-compose.yaml", "docker-compose.yml",
	} {
		if fileExists(dir, name) {
			return true
		}
	}
	return false
}
