package internal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/beanbocchi/nimbus/config"
	"github.com/beanbocchi/nimbus/internal/db"
	"github.com/beanbocchi/nimbus/internal/service"
	"github.com/beanbocchi/nimbus/internal/transport"
)

// NewConfig provides the application configuration
func NewConfig() *config.Config {
	return config.GetConfig()
}

func SetupLogger(cfg config.Log) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// App is a fully wired emulator: catalog, blob store, service and routes.
type App struct {
	Echo    *echo.Echo
	Service *service.Service
	conn    *sql.DB
}

func NewApp(ctx context.Context, cfg *config.Config, opts ...service.Option) (*App, error) {
	if err := os.MkdirAll(cfg.Emulator.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := cfg.Emulator.Database
	if dbPath == "" {
		dbPath = filepath.Join(cfg.Emulator.DataDir, "catalog.db")
	}
	conn, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}

	svc, err := service.NewService(ctx, cfg, conn, opts...)
	if err != nil {
		conn.Close()
		return nil, err
	}

	for _, user := range cfg.Emulator.Users {
		if _, err := svc.EnsureCollection(ctx, user.UserName, service.DefaultCollection(user.UserName)); err != nil {
			svc.Close()
			conn.Close()
			return nil, fmt.Errorf("default collection for %s: %w", user.UserName, err)
		}
	}

	e, err := transport.NewEcho(svc, transport.Options{
		Domain:    cfg.Emulator.Domain,
		Users:     cfg.Emulator.Users,
		ClockSkew: cfg.Emulator.ClockSkew,
	})
	if err != nil {
		svc.Close()
		conn.Close()
		return nil, err
	}

	return &App{Echo: e, Service: svc, conn: conn}, nil
}

func (a *App) Close() error {
	return errors.Join(a.Service.Close(), a.conn.Close())
}

// Start serves the emulator until ctx is cancelled.
func Start(ctx context.Context, cfg *config.Config) error {
	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	server := &http.Server{
		Addr:              cfg.Emulator.Listen,
		Handler:           app.Echo,
		ReadHeaderTimeout: 20 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	eg.Go(func() error {
		slog.Info("emulator listening", "addr", cfg.Emulator.Listen, "domain", cfg.Emulator.Domain)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return eg.Wait()
}
