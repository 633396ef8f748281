package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/poyrazK/dnsdiff/internal/adapters/api"
	"github.com/poyrazK/dnsdiff/internal/adapters/container"
	"github.com/poyrazK/dnsdiff/internal/adapters/coordination"
	"github.com/poyrazK/dnsdiff/internal/adapters/repository"
	"github.com/poyrazK/dnsdiff/internal/core/ports"
	"github.com/poyrazK/dnsdiff/internal/core/services"
	"github.com/poyrazK/dnsdiff/internal/dns/querier"
)

const (
	modeTranslate = "translate"
	modeTest      = "test"
	modeCluster   = "cluster"
	modeServe     = "serve"
	modeWatch     = "watch"
	maxRunID      = 5
)

type config struct {
	mode     string
	path     string
	runID    int
	start    int
	end      int
	disable  []string
	latest   bool
	timeout  time.Duration
	addr     string
	lockTTL  time.Duration
	logLevel slog.Level

	databaseURL   string
	redisAddr     string
	redisPassword string
	host          string
	apiToken      string
}

func parseConfig(args []string, getenv func(string) string) (*config, error) {
	fs := flag.NewFlagSet("dnsdiff", flag.ContinueOnError)
	cfg := &config{}
	var disable, level string
	fs.StringVar(&cfg.mode, "mode", modeTest, "Mode: translate, test, cluster, serve or watch")
	fs.StringVar(&cfg.path, "path", "", "Corpus directory")
	fs.IntVar(&cfg.runID, "id", 1, "Run identifier (1-5); scales host ports and names containers")
	fs.IntVar(&cfg.start, "start", 0, "Index of the first test to check")
	fs.IntVar(&cfg.end, "end", 0, "Index after the last test to check (0 = all)")
	fs.StringVar(&disable, "disable", "", "Comma separated implementations to leave out")
	fs.BoolVar(&cfg.latest, "latest", false, "Use the latest image tag instead of the pinned one")
	fs.DurationVar(&cfg.timeout, "timeout", querier.DefaultTimeout, "Per-query timeout")
	fs.StringVar(&cfg.addr, "addr", ":8080", "Listen address of the triage API")
	fs.DurationVar(&cfg.lockTTL, "lockttl", coordination.DefaultLockTTL, "Expiry of the Redis run lock")
	fs.StringVar(&level, "loglevel", "info", "Log level: debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch cfg.mode {
	case modeTranslate, modeTest, modeCluster, modeServe, modeWatch:
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.mode)
	}
	if cfg.path == "" && cfg.mode != modeWatch {
		return nil, errors.New("-path is required")
	}
	if cfg.runID < 1 || cfg.runID > maxRunID {
		return nil, fmt.Errorf("-id must be between 1 and %d", maxRunID)
	}
	if cfg.start < 0 || cfg.end < 0 {
		return nil, errors.New("-start and -end must not be negative")
	}
	if err := cfg.logLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid -loglevel: %w", err)
	}
	for _, name := range strings.Split(disable, ",") {
		if name = strings.TrimSpace(name); name != "" {
			cfg.disable = append(cfg.disable, strings.ToLower(name))
		}
	}

	cfg.databaseURL = getenv("DATABASE_URL")
	cfg.redisAddr = getenv("REDIS_ADDR")
	cfg.redisPassword = getenv("REDIS_PASSWORD")
	cfg.apiToken = getenv("DNSDIFF_API_TOKEN")
	cfg.host = getenv("DNSDIFF_HOST")
	if cfg.host == "" {
		cfg.host = "127.0.0.1"
	}
	if cfg.mode == modeWatch && cfg.redisAddr == "" {
		return nil, errors.New("watch mode requires REDIS_ADDR")
	}
	return cfg, nil
}

// implementations returns every supported implementation not disabled.
func (c *config) implementations() ([]string, error) {
	disabled := make(map[string]bool, len(c.disable))
	for _, name := range c.disable {
		if _, err := container.HostPort(name, 1); err != nil {
			return nil, err
		}
		disabled[name] = true
	}
	var names []string
	for _, name := range container.Implementations() {
		if !disabled[name] {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, errors.New("every implementation is disabled")
	}
	return names, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Getenv, os.Stdout); err != nil {
		log.Fatalf("dnsdiff: %v", err)
	}
}

func run(ctx context.Context, args []string, getenv func(string) string, stdout io.Writer) error {
	cfg, err := parseConfig(args, getenv)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{Level: cfg.logLevel}))
	slog.SetDefault(logger)

	var rc *coordination.RedisCoordinator
	if cfg.redisAddr != "" {
		rc = coordination.NewRedisCoordinator(cfg.redisAddr, cfg.redisPassword, 0, logger)
		defer func() {
			if errClose := rc.Close(); errClose != nil {
				logger.Warn("failed to close redis client", "error", errClose)
			}
		}()
		if errTTL := rc.SetLockTTL(cfg.lockTTL); errTTL != nil {
			return errTTL
		}
	}
	if cfg.mode == modeWatch {
		return watch(ctx, rc, logger)
	}

	store := repository.NewFileStore(cfg.path)
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("corpus directory: %w", err)
	}

	var repo ports.DifferenceRepository = store
	if cfg.databaseURL != "" && cfg.mode != modeTranslate {
		db, errDB := sql.Open("pgx", cfg.databaseURL)
		if errDB != nil {
			return fmt.Errorf("open database: %w", errDB)
		}
		defer db.Close()
		pg := repository.NewPostgresRepository(db)
		if errMigrate := pg.Migrate(ctx); errMigrate != nil {
			return fmt.Errorf("migrate database: %w", errMigrate)
		}
		repo = pg
	}

	var coord ports.Coordinator = coordination.NopCoordinator{}
	if rc != nil {
		coord = rc
	}

	switch cfg.mode {
	case modeTranslate:
		svc := services.NewCorpusService(store, repo, coord, nil, services.CorpusConfig{RunID: cfg.runID}, logger)
		sum, errRun := svc.TranslateCorpus(ctx)
		if errRun != nil {
			return errRun
		}
		logger.Info("translation finished", "translated", sum.Processed, "skipped", len(sum.Skipped))
		return nil

	case modeTest:
		return runTests(ctx, cfg, store, repo, coord, logger)

	case modeCluster:
		svc := services.NewCorpusService(store, repo, coord, nil, services.CorpusConfig{RunID: cfg.runID}, logger)
		report, errRun := svc.ClusterCorpus(ctx)
		if errRun != nil {
			return errRun
		}
		logger.Info("clustering finished", "fingerprints", len(report.Summary))
		for _, line := range report.Summary {
			logger.Info("fingerprint", "summary", line)
		}
		return nil

	case modeServe:
		svc := services.NewCorpusService(store, repo, coord, nil, services.CorpusConfig{RunID: cfg.runID}, logger)
		return serve(ctx, cfg, svc, repo, coord, logger)
	}
	return nil
}

func runTests(ctx context.Context, cfg *config, store *repository.FileStore, repo ports.DifferenceRepository,
	coord ports.Coordinator, logger *slog.Logger) error {
	names, err := cfg.implementations()
	if err != nil {
		return err
	}

	runtime, err := container.NewDockerRuntime()
	if err != nil {
		return fmt.Errorf("docker: %w", err)
	}
	defer func() {
		if errClose := runtime.Close(); errClose != nil {
			logger.Warn("failed to close docker client", "error", errClose)
		}
	}()

	registry := container.NewRegistry(runtime, cfg.runID, cfg.latest, logger)
	targets, err := registry.Targets(names)
	if err != nil {
		return err
	}
	defer func() {
		if errStop := registry.Stop(context.WithoutCancel(ctx)); errStop != nil {
			logger.Warn("failed to remove containers", "error", errStop)
		}
	}()

	recorder := services.NewRecorder(querier.New(cfg.host, cfg.timeout, logger), logger)
	svc := services.NewCorpusService(store, repo, coord, recorder, services.CorpusConfig{RunID: cfg.runID, Targets: targets}, logger)

	logger.Info("starting difference run", "run_id", cfg.runID, "corpus", store.Root(), "implementations", names)
	sum, err := svc.RunCorpus(ctx, cfg.start, cfg.end)
	if err != nil {
		return err
	}
	logger.Info("difference run finished",
		"checked", sum.Processed,
		"with_differences", sum.Differences,
		"skipped", len(sum.Skipped))
	return nil
}

func serve(ctx context.Context, cfg *config, clusters api.ClusterSource, repo ports.DifferenceRepository,
	coord ports.Coordinator, logger *slog.Logger) error {
	mux := http.NewServeMux()
	api.NewAPIHandler(clusters, repo, coord).RegisterRoutes(mux, cfg.apiToken)

	srv := &http.Server{
		Addr:              cfg.addr,
		Handler:           api.LoggingMiddleware(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("triage API listening", "addr", cfg.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// watch logs the difference events published by running tests until ctx is
// done.
func watch(ctx context.Context, rc *coordination.RedisCoordinator, logger *slog.Logger) error {
	logger.Info("watching differences", "channel", coordination.DifferencesChannel)
	for ev := range rc.Subscribe(ctx) {
		queries := make([]string, 0, len(ev.Differences))
		for _, d := range ev.Differences {
			queries = append(queries, d.QueryName+" "+d.QueryType)
		}
		logger.Info("differences recorded", "test", ev.TestID, "count", len(ev.Differences), "queries", queries)
	}
	return nil
}
