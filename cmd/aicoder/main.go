// Command aicoder runs one AI-assisted coding task end to end: clone the
// repository, derive and apply changes for the task intent, validate, commit,
// and push, reporting status over the configured webhook. The final result is
// printed to stdout as pretty-printed JSON; logs go to stderr.
//
// The task is read from a JSON argument when present, otherwise from the
// environment (TASK_ID, REPO_URL, TASK_INTENT, REPO_BRANCH, GIT_USERNAME,
// GIT_PASSWORD, GITLAB_API_TOKEN).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aicoder/pkg/config"
	"aicoder/pkg/controller"
	"aicoder/pkg/logx"
	"aicoder/pkg/status"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		logx.Errorf("Fatal: %v", err)
		os.Exit(1)
	}
}

func run(argv []string) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	task, err := loadTask(argv)
	if err != nil {
		return err
	}

	store := status.NewStore()
	if cfg.StatusServer.Enabled {
		server := status.NewServer(store, cfg.StatusServer.Host, cfg.StatusServer.Port)
		if err := server.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Stop(shutdownCtx); err != nil {
				logx.Warnf("Status server shutdown: %v", err)
			}
		}()
	}

	orchestrator, err := controller.New(cfg, store)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := orchestrator.Execute(ctx, task)

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}

// loadTask reads the task from a JSON CLI argument, falling back to
// environment variables.
func loadTask(argv []string) (controller.Task, error) {
	if len(argv) > 0 {
		var task controller.Task
		if err := json.Unmarshal([]byte(argv[0]), &task); err != nil {
			return controller.Task{}, fmt.Errorf("failed to parse task JSON: %w", err)
		}
		return task, nil
	}
	return controller.Task{
		TaskID:         envDefault("TASK_ID", "task_001"),
		RepoURL:        os.Getenv("REPO_URL"),
		Intent:         os.Getenv("TASK_INTENT"),
		Branch:         envDefault("REPO_BRANCH", "main"),
		FeatureBranch:  os.Getenv("FEATURE_BRANCH"),
		GitlabAPIToken: os.Getenv("GITLAB_API_TOKEN"),
		GitUsername:    os.Getenv("GIT_USERNAME"),
		GitPassword:    os.Getenv("GIT_PASSWORD"),
	}, nil
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
