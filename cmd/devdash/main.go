package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/user/devdash/internal/api"
	"github.com/user/devdash/internal/compose"
	"github.com/user/devdash/internal/config"
	"github.com/user/devdash/internal/db"
	"github.com/user/devdash/internal/health"
	"github.com/user/devdash/internal/hub"
	"github.com/user/devdash/internal/ports"
	"github.com/user/devdash/internal/project"
	"github.com/user/devdash/internal/runner"
	"github.com/user/devdash/internal/server"
	"github.com/user/devdash/internal/state"
	"github.com/user/devdash/internal/term"
)

const healthInterval = 5 * time.Second

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.PrintToken {
		fmt.Println(cfg.Token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	store, err := state.Open(cfg.StatePath)
	if err != nil {
		slog.Error("failed to open state file", "error", err)
		os.Exit(1)
	}

	projectRepo := db.NewProjectRepo(database.SQL())
	runRepo := db.NewRunRepo(database.SQL())
	projects := project.NewService(projectRepo)

	terminals := term.NewManager()
	defer terminals.Close()

	appRunner := runner.New(projectRepo, runRepo)
	defer appRunner.Close()

	collector := health.NewCollector(healthInterval)
	collector.Start()
	defer collector.Stop()

	wsHub := hub.New(cfg.Token, terminals)
	go wsHub.Run(ctx)
	go wsHub.ForwardTerminalEvents(terminals.Subscribe())

	statusEvents := appRunner.Subscribe()
	go func() {
		for ev := range statusEvents {
			wsHub.BroadcastAppStatus(ev.ProjectID, ev.RunID, string(ev.Status), ev.PID, ev.ExitCode)
		}
	}()

	go func() {
		ticker := time.NewTicker(healthInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if wsHub.ClientCount() > 0 {
					wsHub.BroadcastHealth(collector.Get())
				}
			}
		}
	}()

	apiHandler := api.NewRouter(api.Deps{
		Projects:  projects,
		Runner:    appRunner,
		Allocator: ports.NewAllocator(store),
		State:     store,
		Terminals: terminals,
		Compose:   compose.NewClient(),
		Health:    collector,
		Hub:       wsHub,
		StartPort: cfg.StartPort,
	}, cfg.Token)

	fmt.Printf("\ndevdash running at http://localhost:%d?token=%s\n\n", cfg.Port, cfg.Token)

	srv := server.New(cfg, wsHub, apiHandler)
	if err := srv.Start(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
