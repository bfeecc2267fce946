// Package cli holds the start-up steps shared by cmd/concesionario and
// cmd/concesionario-worker.
package cli

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"concesionario/internal/config"
	applog "concesionario/internal/log"
	"concesionario/internal/storage"
)

// LoadEnvFile loads .env (or the given files) for local development. A
// missing file is not an error; a malformed one is.
func LoadEnvFile(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// SetupLogger installs a text logger at the level named by LOG_LEVEL as the
// slog default and returns it tagged with component.
func SetupLogger(level, component string) *applog.Logger {
	lvl := applog.ParseLevel(level)
	base := applog.New(applog.Config{
		Level:   lvl,
		Handler: slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}),
	})
	applog.SetDefault(base)
	return base.WithComponent(component)
}

// LoadAndValidateConfig reads the environment and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenSQLite opens the repository at dbPath, migrating it first.
func OpenSQLite(logger *applog.Logger, dbPath string) (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", dbPath)
		return nil, err
	}
	return repo, nil
}

// ShutdownContext returns a context cancelled on SIGINT or SIGTERM or when
// stop is called.
func ShutdownContext(logger *applog.Logger) (ctx context.Context, stop context.CancelFunc) {
	ctx, stop = signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down", applog.FieldOperation, applog.OpShutdown)
	}()
	return ctx, stop
}

// Fatal logs err and exits with status 1.
func Fatal(logger *applog.Logger, msg string, err error) {
	logger.Error(msg, applog.FieldError, err)
	os.Exit(1)
}
