// Package project manages the set of registered applications shown on
// the dashboard. Registration is explicit: callers point at a directory,
// and the service validates it and classifies Node projects by the
// presence of a package.json in that directory (no recursive scanning).
package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/devdash/internal/db"
)

type Service struct {
	repo *db.ProjectRepo
}

func NewService(repo *db.ProjectRepo) *Service {
	return &Service{repo: repo}
}

type RegisterRequest struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	StartCommand string `json:"start_command"`
}

// Register validates and stores a new project. When no start command is
// given for a Node project, one is derived from its package.json scripts.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*db.Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.New("project name is required")
	}

	path, err := filepath.Abs(strings.TrimSpace(req.Path))
	if err != nil {
		return nil, fmt.Errorf("resolve project path: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("project path %q is not an existing directory", path)
	}

	startCommand := strings.TrimSpace(req.StartCommand)
	if startCommand == "" {
		startCommand = defaultStartCommand(path)
	}

	p := &db.Project{
		Name:         name,
		Path:         path,
		StartCommand: startCommand,
		Status:       "stopped",
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*db.Project, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*db.Project, error) {
	return s.repo.List(ctx)
}

func (s *Service) Remove(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// AppIDs returns the ordered id list used as input for bulk port
// assignment. Order follows the repo's stable listing order.
func (s *Service) AppIDs(ctx context.Context) ([]string, error) {
	projects, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// ApplyPorts writes a completed bulk assignment onto the project rows.
func (s *Service) ApplyPorts(ctx context.Context, assignments map[string]int) error {
	for id, port := range assignments {
		if err := s.repo.SetPort(ctx, id, port); err != nil {
			return err
		}
	}
	return nil
}

// IsNodeProject reports whether dir directly contains a package.json.
func IsNodeProject(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, "package.json"))
	return err == nil && info.Mode().IsRegular()
}

// defaultStartCommand derives a start command from package.json scripts,
// preferring dev over start. Non-Node projects get no default.
func defaultStartCommand(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return ""
	}
	var pkg struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return ""
	}
	if _, ok := pkg.Scripts["dev"]; ok {
		return "npm run dev"
	}
	if _, ok := pkg.Scripts["start"]; ok {
		return "npm start"
	}
	return ""
}
