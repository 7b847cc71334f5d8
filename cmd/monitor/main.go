package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/rawblock/safe-monitor/internal/assessment"
	"github.com/rawblock/safe-monitor/internal/engine"
	"github.com/rawblock/safe-monitor/internal/notify"
	"github.com/rawblock/safe-monitor/internal/registry"
	"github.com/rawblock/safe-monitor/internal/safeapi"
	"github.com/rawblock/safe-monitor/internal/store"
	"github.com/rawblock/safe-monitor/internal/worker"
)

// unconfiguredSafeAPI satisfies safeapi.SafeAPIClient so this binary
// links and starts without a concrete indexer client wired in — Safe
// Transaction Service access is a deployment-time integration, not
// something this repo ships a client for (see internal/safeapi).
// Every poll cycle fails fast with a clear error until an operator
// replaces this with a real client.
type unconfiguredSafeAPI struct{}

func (unconfiguredSafeAPI) FetchTransactions(ctx context.Context, safeAddress, network string, limit int) ([]safeapi.SafeTransaction, error) {
	return nil, fmt.Errorf("cmd/monitor: no SafeAPIClient configured — wire a Safe Transaction Service client before running")
}

func (unconfiguredSafeAPI) FetchSafeInfo(ctx context.Context, safeAddress, network string) (safeapi.SafeInfo, error) {
	return safeapi.SafeInfo{}, fmt.Errorf("cmd/monitor: no SafeAPIClient configured")
}

func (unconfiguredSafeAPI) FetchChainID(ctx context.Context, network string) (*big.Int, error) {
	return nil, fmt.Errorf("cmd/monitor: no SafeAPIClient configured")
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, reading configuration from the environment")
	}

	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(getEnvOrDefault("LOG_LEVEL", "info")); err == nil {
		log.SetLevel(lvl)
	}

	log.Info("starting Safe monitor")

	// ─── Required Environment Variables ─────────────────────────────────
	// All credentials MUST come from environment variables. No fallback
	// defaults for security-sensitive values. A local .env file, if
	// present, has already been loaded by godotenv.Load above.
	// ──────────────────────────────────────────────────────────────────
	dbURL := requireEnv(log, "DATABASE_URL")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Connect(ctx, dbURL, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer st.Close()

	schemaPath := getEnvOrDefault("SCHEMA_PATH", filepath.Join("internal", "store", "schema.sql"))
	if err := st.InitSchema(ctx, schemaPath); err != nil {
		log.WithError(err).Warn("schema init failed, continuing — tables may already exist")
	}

	templateDir := os.Getenv("TEMPLATE_DIR")
	var templates []engine.Template
	if templateDir != "" {
		templates, err = engine.LoadTransactionTemplatesFromDir(templateDir)
	} else {
		templates, err = engine.LoadEmbeddedTransactionTemplates()
	}
	if err != nil {
		log.WithError(err).Fatal("failed to load template catalogue")
	}
	log.WithField("count", len(templates)).Info("loaded transaction templates")

	builtins := engine.NewBuiltinRegistry()
	ruleEngine := engine.New(templates, builtins)

	resolver := registry.NewResolver(os.Getenv("REGISTRY_OVERRIDE_DIR"))

	assessmentSvc := assessment.NewService(resolver, log)

	notifier := notify.NewService(os.Getenv("TELEGRAM_BOT_TOKEN"), log)

	// SafeAPI has no concrete implementation in this repo (see
	// internal/safeapi and SPEC_FULL.md §7 Non-goals) — an operator
	// wires a real Safe Transaction Service / sanctions client here.
	var safeAPI safeapi.SafeAPIClient = unconfiguredSafeAPI{}

	concurrency, err := strconv.Atoi(getEnvOrDefault("WORKER_CONCURRENCY", "5"))
	if err != nil || concurrency <= 0 {
		concurrency = 5
	}
	pollInterval, err := time.ParseDuration(getEnvOrDefault("POLL_INTERVAL", "30s"))
	if err != nil {
		pollInterval = 30 * time.Second
	}

	mon := worker.New(st, safeAPI, notifier, ruleEngine, assessmentSvc, resolver, concurrency, pollInterval, log)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"pollInterval": pollInterval,
		"concurrency":  concurrency,
	}).Info("monitor worker configured")

	mon.Run(sigCtx)
	log.Info("monitor shut down cleanly")
}

// requireEnv reads a required environment variable and exits if it is
// not set, preventing the binary from starting with missing critical
// configuration.
func requireEnv(log *logrus.Logger, key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("required environment variable %s is not set; set it in the environment or in a local .env file", key)
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default for
// non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
