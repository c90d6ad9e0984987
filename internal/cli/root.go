// Package cli implements the sandboxctl command tree on top of the
// Settings Manager.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/dshills/sandboxctl/internal/config/registry"
	"github.com/dshills/sandboxctl/internal/config/store"
	"github.com/dshills/sandboxctl/internal/metrics"
	"github.com/dshills/sandboxctl/internal/platform"
	"github.com/dshills/sandboxctl/internal/settings"
)

// options holds the persistent flags.
type options struct {
	store       string
	scope       string
	logLevel    string
	metricsFile string
}

// env is the state shared by one command invocation.
type env struct {
	version string
	opts    options

	in         io.Reader
	out        io.Writer
	errOut     io.Writer
	isTerminal func() bool

	// detector overrides host detection when set.
	detector *platform.Detector

	logger   *zap.Logger
	registry *prometheus.Registry
	store    closableStore
	manager  *settings.Manager
}

func newEnv(version string) *env {
	return &env{
		version:    version,
		in:         os.Stdin,
		out:        os.Stdout,
		errOut:     os.Stderr,
		isTerminal: func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
	}
}

// Execute runs the command line and returns the process exit code.
func Execute(version string, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := newEnv(version)
	if err := e.run(ctx, args); err != nil {
		fmt.Fprintf(e.errOut, "Error: %v\n", err)
		return 1
	}
	return 0
}

// run executes args and releases everything setup acquired, whatever the
// outcome of the command.
func (e *env) run(ctx context.Context, args []string) error {
	root := e.rootCommand()
	root.SetArgs(args)
	root.SetIn(e.in)
	root.SetOut(e.out)
	root.SetErr(e.errOut)

	err := root.ExecuteContext(ctx)
	return errors.Join(err, e.teardown())
}

func (e *env) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "sandboxctl",
		Short:         "Manage process sandbox security settings",
		Long:          `Generate, validate, export, import and preset the security configuration handed to the process server.`,
		Version:       e.version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.setup(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&e.opts.store, "store", "", "Settings store: a .json/.toml/.yaml file, sqlite://path or postgres://dsn (default: user config dir)")
	flags.StringVar(&e.opts.scope, "scope", "global", "Scope written by import and preset apply (global or workspace)")
	flags.StringVar(&e.opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flags.StringVar(&e.opts.metricsFile, "metrics-file", "", "Write Prometheus counters to this file on exit")

	root.AddCommand(
		e.validateCommand(),
		e.generateCommand(),
		e.exportCommand(),
		e.importCommand(),
		e.presetsCommand(),
		e.capabilitiesCommand(),
		e.settingsCommand(),
		e.watchCommand(),
	)
	return root
}

// setup builds the logger, opens the store and creates the Manager.
func (e *env) setup(ctx context.Context) error {
	if e.manager != nil {
		return nil
	}

	if e.logger == nil {
		logger, err := newLogger(e.opts.logLevel)
		if err != nil {
			return err
		}
		e.logger = logger
	}

	scope, err := store.ParseScope(e.opts.scope)
	if err != nil {
		return err
	}

	base, err := openStore(ctx, e.opts.store, e.logger)
	if err != nil {
		return err
	}
	st, err := withEnvironment(base, registry.Builtin())
	if err != nil {
		return errors.Join(err, base.Close())
	}
	e.store = st

	e.registry = prometheus.NewRegistry()
	met, err := metrics.New(e.registry)
	if err != nil {
		return err
	}

	opts := []settings.Option{
		settings.WithLogger(e.logger),
		settings.WithScope(scope),
		settings.WithVersion(e.version),
		settings.WithMetrics(met),
		settings.WithConfirmer(&promptConfirmer{in: e.in, out: e.errOut, isTerminal: e.isTerminal}),
	}
	if e.detector != nil {
		opts = append(opts, settings.WithDetector(e.detector))
	}
	e.manager, err = settings.New(st, opts...)
	return err
}

// teardown disposes the Manager, closes the store and writes metrics.
func (e *env) teardown() error {
	var errs []error
	if e.manager != nil {
		e.manager.Dispose()
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing store: %w", err))
		}
	}
	if e.opts.metricsFile != "" && e.registry != nil {
		if err := prometheus.WriteToTextfile(e.opts.metricsFile, e.registry); err != nil {
			errs = append(errs, fmt.Errorf("writing metrics: %w", err))
		}
	}
	if e.logger != nil {
		_ = e.logger.Sync()
	}
	return errors.Join(errs...)
}

// newLogger builds a production JSON logger on stderr at level.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Sampling = nil
	return cfg.Build()
}
