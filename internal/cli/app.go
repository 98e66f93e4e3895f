package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/profilesync/internal/config"
	"github.com/roach88/profilesync/internal/identity"
	"github.com/roach88/profilesync/internal/people"
	"github.com/roach88/profilesync/internal/store"
	"github.com/roach88/profilesync/internal/transport"
)

// shutdownGrace is added to the HTTP timeout when waiting for in-flight
// requests before exit.
const shutdownGrace = 2 * time.Second

// app wires one CLI invocation: config, pending store, transport and client.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	out       *OutputFormatter
	store     *store.Store
	transport *transport.HTTPTransport
	client    *people.Client

	cancelRun context.CancelFunc
	runDone   chan error
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
}

// loadConfig loads and validates the config, reporting failures.
func loadConfig(out *OutputFormatter, opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		_ = out.Error(ErrCodeConfig, err.Error(), nil)
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// openBackend opens the pending store backend selected by cfg.
func openBackend(cfg config.Config, logger *slog.Logger) (store.Backend, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return store.NewMemoryBackend(), nil
	case config.BackendSQLite:
		return store.OpenSQLite(cfg.Store.Path)
	case config.BackendBadger:
		bc := store.DefaultBadgerConfig(cfg.Store.Path)
		bc.Logger = logger.With("component", "badger")
		return store.OpenBadger(bc)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// openStore opens the pending store for cfg's token.
func openStore(ctx context.Context, cfg config.Config, out *OutputFormatter, logger *slog.Logger) (*store.Store, error) {
	backend, err := openBackend(cfg, logger)
	if err != nil {
		_ = out.Error(ErrCodeStore, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open pending store", err)
	}
	st, err := store.Open(ctx, backend, cfg.Token, store.WithLogger(logger))
	if err != nil {
		backend.Close()
		_ = out.Error(ErrCodeStore, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to load pending store", err)
	}
	return st, nil
}

// openApp builds the client and starts the transport. When identifyAs is
// true and --as is set, the session is identified (and flushed) first.
func openApp(cmd *cobra.Command, opts *RootOptions, identifyAs bool) (*app, error) {
	ctx := cmd.Context()
	out := newFormatter(cmd, opts)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	cfg, err := loadConfig(out, opts)
	if err != nil {
		return nil, err
	}
	st, err := openStore(ctx, cfg, out, logger)
	if err != nil {
		return nil, err
	}

	tr := transport.NewHTTP(
		transport.WithTimeout(cfg.HTTPTimeout),
		transport.WithLogger(logger),
	)
	client, err := people.New(people.Options{
		Settings:  people.SettingsFrom(cfg),
		Session:   identity.NewSession(nil),
		Store:     st,
		Transport: tr,
		Logger:    logger,
	})
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to create client", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	a := &app{
		cfg:       cfg,
		logger:    logger,
		out:       out,
		store:     st,
		transport: tr,
		client:    client,
		cancelRun: cancel,
		runDone:   make(chan error, 1),
	}
	go func() { a.runDone <- tr.Run(runCtx) }()

	if identifyAs && opts.As != "" {
		if err := client.Identify(ctx, opts.As, nil); err != nil {
			a.Close()
			return nil, a.reportError(err)
		}
	}
	return a, nil
}

// Close waits for queued requests, stops the transport and closes the
// store. Requests still queued after the grace period are failed.
func (a *app) Close() error {
	waitCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTPTimeout+shutdownGrace)
	defer cancel()

	if err := a.transport.Wait(waitCtx); err != nil {
		a.logger.Warn("requests still pending at exit", "pending", a.transport.Pending())
		a.cancelRun()
	}
	a.transport.Close()
	<-a.runDone
	a.cancelRun()

	if err := a.store.Close(); err != nil {
		return fmt.Errorf("close pending store: %w", err)
	}
	return nil
}

// reportError prints err and maps it to an exit code.
func (a *app) reportError(err error) error {
	return reportError(a.out, err)
}

func reportError(out *OutputFormatter, err error) error {
	switch {
	case people.IsUsageError(err):
		_ = out.Error(ErrCodeUsage, err.Error(), nil)
		return WrapExitError(ExitCommandError, "operation not allowed", err)
	case people.IsValidationError(err):
		_ = out.Error(ErrCodeValidation, err.Error(), nil)
		return WrapExitError(ExitFailure, "invalid properties", err)
	default:
		_ = out.Error(ErrCodeSend, err.Error(), nil)
		return WrapExitError(ExitFailure, "operation failed", err)
	}
}
