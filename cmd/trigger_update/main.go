package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/stravadash/internal/config"
	"github.com/2beens/stravadash/internal/logging"
	"github.com/2beens/stravadash/internal/workflow"
)

func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	dotEnvPath := flag.String("dotenv", ".env", "optional .env file with secrets")
	wait := flag.Bool("wait", true, "wait for the triggered run to complete")
	flag.Parse()

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}
	if err := config.LoadDotEnv(*dotEnvPath); err != nil {
		log.Fatalf("load dotenv: %s", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	secrets, err := config.LoadSecrets(ctx)
	if err != nil {
		log.Fatalf("load secrets: %s", err)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogToStdout: true,
		LogLevel:    cfg.LogLevel,
		Environment: cfg.Environment,
	})

	if cfg.WorkflowRepo == "" || cfg.WorkflowFile == "" {
		log.Fatalln("workflow_repo and workflow_file must be set in config")
	}
	if secrets.GithubToken == "" {
		log.Fatalln("GITHUB_TOKEN not set")
	}

	client := workflow.NewClient(workflow.Params{
		Repo:         cfg.WorkflowRepo,
		WorkflowFile: cfg.WorkflowFile,
		Token:        secrets.GithubToken,
		HTTPClient:   &http.Client{Timeout: cfg.HTTPTimeout()},
	})
	client.NewBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), cfg.MaxRetries)
	}

	if err := client.Trigger(ctx, cfg.WorkflowRef); err != nil {
		log.Fatalf("trigger workflow: %s", err)
	}
	runID, err := client.LatestRunID(ctx)
	if err != nil {
		log.Fatalf("find triggered run: %s", err)
	}
	fmt.Printf("workflow run %d triggered\n", runID)

	if !*wait {
		return
	}

	run, err := client.WaitForCompletion(ctx, runID, cfg.WorkflowPollInterval(), cfg.WorkflowTimeout())
	if err != nil {
		log.Fatalf("wait for run %d: %s", runID, err)
	}
	fmt.Printf("workflow run %d %s: %s\n", run.ID, run.Status, run.Conclusion)
	if run.Conclusion != "success" {
		os.Exit(1)
	}
}
