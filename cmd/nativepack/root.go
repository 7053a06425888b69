package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/animus-labs/nativepack/internal/config"
	"github.com/animus-labs/nativepack/internal/events"
	"github.com/animus-labs/nativepack/internal/ledger"
	"github.com/animus-labs/nativepack/internal/pipeline"
	"github.com/animus-labs/nativepack/internal/platform/env"
	"github.com/animus-labs/nativepack/internal/platform/postgres"
)

type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	logFormat  string
	logLevel   string

	logger *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:   "nativepack",
		Short: "Build, package, and publish prebuilt native libraries",
		Long: `nativepack cross-compiles a native library for a fixed set of target
architectures, packages exactly one binary per architecture together with an
immutable publication descriptor, and publishes the result to independent
repository endpoints.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setupLogger()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return configError(err)
	})

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", env.String("NATIVEPACK_CONFIG", config.DefaultPath), "project file")
	flags.StringVar(&a.logFormat, "log-format", env.String("NATIVEPACK_LOG_FORMAT", "text"), "log format: text or json")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (default $NATIVEPACK_LOG_LEVEL or info)")

	root.AddCommand(
		newInitCmd(a),
		newRunCmd(a),
		newBuildCmd(a),
		newAssembleCmd(a),
		newDescriptorCmd(a),
		newCredentialsCmd(a),
		newEndpointsCmd(a),
	)
	return root
}

func (a *app) setupLogger() error {
	level, err := env.Level("NATIVEPACK_LOG_LEVEL", slog.LevelInfo)
	if err != nil {
		return configError(err)
	}
	if v := strings.TrimSpace(a.logLevel); v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			return configError(fmt.Errorf("invalid log level %q", a.logLevel))
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(strings.TrimSpace(a.logFormat)) {
	case "json":
		a.logger = slog.New(slog.NewJSONHandler(a.stderr, opts))
	case "", "text":
		a.logger = slog.New(slog.NewTextHandler(a.stderr, opts))
	default:
		return configError(fmt.Errorf("invalid log format %q", a.logFormat))
	}
	return nil
}

func (a *app) loadProject() (config.Project, error) {
	project, err := config.Load(a.configPath)
	if err != nil {
		return config.Project{}, configError(err)
	}
	return project, nil
}

// newPipeline wires the optional postgres ledger and Kafka notifier from the
// environment. Neither is allowed to block a release: when one is configured but
// unreachable the run falls back to the in-memory/discarding implementation.
func (a *app) newPipeline(ctx context.Context, project config.Project) (*pipeline.Pipeline, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var ldg ledger.Ledger = ledger.NewMemory()
	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		return nil, cleanup, configError(fmt.Errorf("invalid database config: %w", err))
	}
	if dbCfg.Enabled() {
		db, err := postgres.Open(ctx, dbCfg)
		if err != nil {
			a.logger.Warn("ledger database unavailable", "error", err)
		} else {
			closers = append(closers, func() { _ = db.Close() })
			store := ledger.NewPostgres(db)
			if err := store.EnsureSchema(ctx); err != nil {
				a.logger.Warn("ledger schema unavailable", "error", err)
			} else {
				ldg = store
			}
		}
	}

	notifier, err := events.FromEnv()
	if err != nil {
		a.logger.Warn("event notifier unavailable", "error", err)
		notifier = events.Discard{}
	}
	closers = append(closers, func() { _ = notifier.Close() })

	p, err := pipeline.New(project,
		pipeline.WithLogger(a.logger),
		pipeline.WithLedger(ldg),
		pipeline.WithNotifier(notifier),
	)
	if err != nil {
		return nil, cleanup, configError(err)
	}
	return p, cleanup, nil
}
