package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/szaher/infraagent/internal/cloud"
	"github.com/szaher/infraagent/internal/llm"
	"github.com/szaher/infraagent/internal/loop"
	"github.com/szaher/infraagent/internal/policy"
	"github.com/szaher/infraagent/internal/runtime"
	"github.com/szaher/infraagent/internal/telemetry"
	"github.com/szaher/infraagent/internal/tools"
)

// app is the wired agent shared by every command.
type app struct {
	cfg     *runtime.Config
	logger  *slog.Logger
	metrics *telemetry.Metrics
	agent   *loop.Agent
}

// newApp loads configuration and wires the gateway, cloud tools, policy
// guards and loop. defaultFormat applies when neither flag nor config set one.
func newApp(ctx context.Context, defaultFormat telemetry.Format) (*app, error) {
	if err := runtime.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := runtime.LoadConfig(ctx, configPath)
	if err != nil {
		return nil, err
	}
	if maxIterations != 0 {
		cfg.Agent.MaxIterations = maxIterations
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	level, err := telemetry.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	name := logFormat
	if name == "" {
		name = cfg.Log.Format
	}
	format, err := telemetry.ParseFormat(name, defaultFormat)
	if err != nil {
		return nil, err
	}
	logger := telemetry.NewLogger(os.Stderr, level, format, cfg.Secrets()...)
	if cfg.Source != "" {
		logger.Debug("configuration loaded", "path", cfg.Source)
	}

	metrics := telemetry.NewMetrics()

	clientCfg, err := cfg.ClientConfig()
	if err != nil {
		return nil, err
	}
	completer, err := llm.NewCompleter(clientCfg)
	if err != nil {
		return nil, err
	}
	gateway := llm.NewGateway(completer,
		llm.WithTimeout(cfg.LLM.Timeout),
		llm.WithLogger(logger),
		llm.WithFailureRecorder(metrics),
	)

	toolkit, err := cloud.Connect(ctx, cfg.Cloud, cloud.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if !cfg.Cloud.HasCredentials() {
		logger.Warn("Alibaba Cloud credentials are not configured; provisioning calls will fail",
			"hint", "set ALIYUN_ACCESS_KEY_ID and ALIYUN_ACCESS_KEY_SECRET")
	}

	guard, err := policy.NewGuard(cfg.Policies, logger)
	if err != nil {
		return nil, fmt.Errorf("compiling policies: %w", err)
	}
	registry, err := tools.NewRegistry(guard.WrapAll(toolkit.Descriptors())...)
	if err != nil {
		return nil, err
	}

	agent := loop.New(gateway, registry,
		loop.WithLogger(logger),
		loop.WithMetrics(metrics),
		loop.WithMaxIterations(cfg.Agent.MaxIterations),
	)
	logger.Debug("agent ready",
		"provider", completer.Provider(),
		"model", cfg.LLM.Model,
		"tools", registry.Names(),
		"policies", guard.Len(),
		"max_iterations", agent.MaxIterations(),
	)

	return &app{cfg: cfg, logger: logger, metrics: metrics, agent: agent}, nil
}
