// Package cli implements nio, a command line client for nimbus.io and the
// object stores it can copy between.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/beanbocchi/nimbus/config"
	"github.com/beanbocchi/nimbus/pkg/sdk"
)

// Process exit codes.
const (
	ExitOK         = 0
	ExitConnection = 1
	ExitUsage      = 2
	ExitCommand    = 3
)

// usageError marks failures to parse the command line.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{err: fmt.Errorf(format, args...)}
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usagef("%s expects %d argument(s), got %d", cmd.Name(), n, len(args))
		}
		return nil
	}
}

func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > n {
			return usagef("%s expects at most %d argument(s), got %d", cmd.Name(), n, len(args))
		}
		return nil
	}
}

// App holds what every subcommand shares: streams, configuration and the
// lazily built service client.
type App struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	configPath string
	verbose    bool

	cfg    *config.Config
	client *sdk.Client
	log    *slog.Logger
}

// NewRootCommand builds the nio command tree.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "nio",
		Short:         "Command line client for nimbus.io",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ArbitraryArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			app.setupLogger()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usagef("unknown command %q", args[0])
			}
			return cmd.Help()
		},
	}
	root.SetIn(app.Stdin)
	root.SetOut(app.Stdout)
	root.SetErr(app.Stderr)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err: err}
	})

	root.PersistentFlags().StringVarP(&app.configPath, "config", "c", os.Getenv(config.EnvConfigFile), "path to the configuration file")
	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "log requests as they are made")

	root.AddCommand(
		newListCommand(app),
		newMakeBucketCommand(app),
		newRemoveCommand(app),
		newCopyCommand(app),
		newMoveCommand(app),
	)
	return root
}

func (app *App) setupLogger() {
	level := log.WarnLevel
	if app.verbose {
		level = log.InfoLevel
	}
	handler := log.NewWithOptions(app.Stderr, log.Options{
		Level:           level,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: app.verbose,
	})
	app.log = slog.New(handler)
	slog.SetDefault(app.log)
}

// config loads the configuration on first use.
func (app *App) config() (*config.Config, error) {
	if app.cfg != nil {
		return app.cfg, nil
	}
	cfg, err := config.Load(app.configPath)
	if err != nil {
		return nil, err
	}
	app.cfg = cfg
	return cfg, nil
}

// Client returns the nimbus.io client built from the configuration.
func (app *App) Client() (*sdk.Client, error) {
	if app.client != nil {
		return app.client, nil
	}
	cfg, err := app.config()
	if err != nil {
		return nil, err
	}
	if !cfg.Identity.Complete() {
		return nil, config.ErrNoIdentity
	}

	client, err := sdk.NewClient(sdk.Config{
		Endpoint: cfg.Service.Endpoint,
		Domain:   cfg.Service.Domain,
		Identity: cfg.Identity,
		Timeout:  cfg.Service.Timeout,
	}, sdk.WithLogger(app.log))
	if err != nil {
		return nil, err
	}
	app.client = client
	return client, nil
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	var (
		usage  usageError
		urlErr *url.Error
		netErr net.Error
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &usage):
		return ExitUsage
	case errors.As(err, &urlErr), errors.As(err, &netErr):
		return ExitConnection
	default:
		return ExitCommand
	}
}

// Run executes nio with args and returns the exit code.
func Run(ctx context.Context, app *App, args []string) int {
	root := NewRootCommand(app)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	code := ExitCode(err)
	if err != nil {
		logger := app.log
		if logger == nil {
			app.setupLogger()
			logger = app.log
		}
		logger.Error("command failed", "error", err, "exit", code)
	}
	return code
}
