package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kernox/agent/internal/agent"
	"github.com/kernox/agent/internal/config"
	"github.com/kernox/agent/internal/logging"
	"github.com/kernox/agent/internal/pidfile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)
	logger.LogSystemEvent("agent_started")
	logger.LogSystemEvent("config_loaded",
		"endpoint_id", cfg.EndpointID,
		"output_mode", string(cfg.OutputMode),
		"backend_url", cfg.BackendURL,
		"heartbeat_interval", cfg.HeartbeatInterval,
		"rules_dir", cfg.RulesDir)

	lock, err := pidfile.Acquire(cfg.PIDFile)
	if err != nil {
		logger.Error("Failed to acquire PID file", "error", err, "path", cfg.PIDFile)
		os.Exit(1)
	}
	defer lock.Release()

	agentInstance, err := agent.New(cfg, logger)
	if err != nil {
		logger.Error("Failed to create agent", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.LogSystemEvent("shutdown_signal", "signal", sig.String())
		cancel()
	}()

	logger.Info("Starting agent main loop")
	if err := agentInstance.Run(ctx); err != nil {
		logger.Error("Agent run failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Agent shutdown complete")
}
