package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cityshare/cityshare/internal/api"
	"github.com/cityshare/cityshare/internal/blob"
	"github.com/cityshare/cityshare/internal/catalog"
	"github.com/cityshare/cityshare/internal/config"
	"github.com/cityshare/cityshare/internal/db"
	"github.com/cityshare/cityshare/internal/identity"
	"github.com/cityshare/cityshare/internal/metrics"
	"github.com/cityshare/cityshare/internal/model"
	"github.com/cityshare/cityshare/internal/store"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger installs the default logger and returns it along with a
// cleanup function that closes the log file, if one was opened.
func setupLogger(logPath string) (*slog.Logger, func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	cleanup := func() {}
	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	logger := slog.New(&levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	})
	slog.SetDefault(logger)
	return logger, cleanup, nil
}

func main() {
	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 && (args[0] == "serve" || args[0] == "init") {
		command, args = args[0], args[1:]
	}

	cfg, err := config.Load(args, os.Stdout)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := setupLogger(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	switch command {
	case "init":
		err = cmdInit(cfg)
	default:
		err = cmdServe(cfg, logger)
	}
	if err != nil {
		slog.Error("fatal", "command", command, "error", err)
		closeLog()
		os.Exit(1)
	}
}

// cmdInit creates a new database. It refuses to touch an existing file.
func cmdInit(cfg *config.Config) error {
	if _, err := os.Stat(cfg.DBPath); err == nil {
		return fmt.Errorf("database file %s already exists", cfg.DBPath)
	}

	database, err := initDatabase(cfg.DBPath, cfg.ListingBase)
	if err != nil {
		return err
	}
	database.Close()

	fmt.Printf("Database created: %s\n", cfg.DBPath)
	fmt.Printf("Seeded %d categories.\n", len(store.DefaultCategories))
	return nil
}

func cmdServe(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// Auto-init if the database does not exist yet.
	if _, err := os.Stat(cfg.DBPath); errors.Is(err, os.ErrNotExist) {
		database, err := initDatabase(cfg.DBPath, cfg.ListingBase)
		if err != nil {
			return err
		}
		database.Close()
		slog.Info("database created", "path", cfg.DBPath)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	// Idempotent; picks up migrations added since the database was created.
	if err := db.Migrate(database); err != nil {
		return err
	}
	slog.Info("database ready", "path", cfg.DBPath)

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret, err = store.GetJWTSecret(ctx, database)
		if err != nil {
			return fmt.Errorf("loading JWT secret: %w", err)
		}
	}

	if n, err := store.PurgeExpiredTokens(ctx, database, time.Now()); err != nil {
		slog.Error("failed to purge revoked tokens", "error", err)
	} else if n > 0 {
		slog.Info("purged expired token revocations", "count", n)
	}

	blobs, uploadDir, err := openBlobStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	m := metrics.New()

	catalogService := catalog.NewService(database, logger)
	catalogService.Blobs = blobs
	catalogService.OnCreate = func(l *model.Listing) {
		m.ListingsCreated.WithLabelValues(l.Kind).Inc()
	}

	resolver := identity.NewResolver(database, logger)
	resolver.OnProvision = func(*model.User) {
		m.UsersProvisioned.Inc()
	}

	router := api.NewRouter(api.Deps{
		DB:        database,
		JWTSecret: jwtSecret,
		Catalog:   catalogService,
		Resolver:  resolver,
		Blobs:     blobs,
		UploadDir: uploadDir,
		Metrics:   m,
		Limiter:   api.NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LoggingMiddleware(logger, m)(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr, "storage", cfg.Storage)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

// openBlobStore returns the configured upload backend. The returned
// directory is non-empty only for disk storage, which the API serves itself.
func openBlobStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (blob.Store, string, error) {
	if cfg.Storage == config.StorageMinIO {
		s, err := blob.NewMinIOStore(ctx, cfg.MinIO, logger)
		if err != nil {
			return nil, "", err
		}
		return s, "", nil
	}

	s, err := blob.NewDiskStore(cfg.UploadDir, "/uploads")
	if err != nil {
		return nil, "", err
	}
	return s, cfg.UploadDir, nil
}

// initDatabase creates the schema and the default categories, and sets the
// listing number base if listingBase is positive. The file is removed again
// if anything fails.
func initDatabase(path string, listingBase int64) (*sql.DB, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	fail := func(err error) (*sql.DB, error) {
		database.Close()
		os.Remove(path)
		return nil, err
	}

	if err := db.Migrate(database); err != nil {
		return fail(fmt.Errorf("creating schema: %w", err))
	}
	ctx := context.Background()
	if err := store.SeedCategories(ctx, database, store.DefaultCategories); err != nil {
		return fail(fmt.Errorf("seeding categories: %w", err))
	}
	if listingBase > 0 {
		value := strconv.FormatInt(listingBase, 10)
		if err := store.SetSetting(ctx, database, store.SettingListingNumberBase, value); err != nil {
			return fail(err)
		}
	}

	return database, nil
}
