// Command server runs the ldapgate LDAP Basic-Auth gateway.
//
// Process settings come from a YAML file (see -config) overridden by
// environment variables such as PORT, CACHE_EXPIRATION and AUDIT_TYPE.
// Directory settings are resolved per request from LDAP_* environment
// variables, overridable by Ldap-* request headers (Ldap-Endpoint,
// Ldap-Search-Base and so on).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rhuss/ldapgate/pkg/audit"
	auditpg "github.com/rhuss/ldapgate/pkg/audit/postgres"
	"github.com/rhuss/ldapgate/pkg/auth"
	"github.com/rhuss/ldapgate/pkg/auth/basic"
	"github.com/rhuss/ldapgate/pkg/cache"
	"github.com/rhuss/ldapgate/pkg/config"
	"github.com/rhuss/ldapgate/pkg/debug"
	"github.com/rhuss/ldapgate/pkg/decision"
	"github.com/rhuss/ldapgate/pkg/directory/ldap"
	transporthttp "github.com/rhuss/ldapgate/pkg/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Credential cache.
	credCache := cache.New(cache.Options{
		TTL:        cfg.Cache.TTL(),
		MaxEntries: cfg.Cache.MaxEntries,
	})
	if cfg.Cache.SweepInterval > 0 {
		go credCache.Run(ctx, cfg.Cache.SweepInterval)
	}
	slog.Info("credential cache configured",
		"ttl", cfg.Cache.TTL(),
		"max_entries", cfg.Cache.MaxEntries,
	)

	// Directory capability.
	groupMatch, err := ldap.ParseGroupMatch(cfg.LDAP.GroupMatch)
	if err != nil {
		return fmt.Errorf("ldap.group_match: %w", err)
	}
	factory := ldap.NewFactory(ldap.Options{
		Timeout:            cfg.LDAP.Timeout,
		GroupMatch:         groupMatch,
		InsecureSkipVerify: cfg.LDAP.InsecureSkipVerify,
	})

	// Audit sink.
	readiness := map[string]transporthttp.ReadinessCheck{}
	var recorder audit.Recorder = audit.Nop{}
	if cfg.Audit.Type == "postgres" {
		store, err := auditpg.New(ctx, auditpg.Config{
			DSN:            cfg.Audit.Postgres.DSN,
			MaxConns:       cfg.Audit.Postgres.MaxConns,
			MigrateOnStart: cfg.Audit.Postgres.MigrateOnStart,
		})
		if err != nil {
			return fmt.Errorf("creating audit store: %w", err)
		}
		defer store.Close()
		recorder = store
		readiness["audit"] = store.HealthCheck
		slog.Info("decision audit enabled", "type", "postgres")
	}

	engine := decision.New(credCache, factory, os.LookupEnv,
		decision.WithAuditor(recorder),
		decision.WithLogger(logger),
	)

	// Authentication chain.
	chain := &auth.AuthChain{
		Authenticators:  []auth.Authenticator{basic.New(engine)},
		DefaultDecision: auth.No,
	}

	var limiter auth.RateLimiter
	if cfg.RateLimit.RequestsPerMinute > 0 {
		l := auth.NewInProcessLimiter(cfg.RateLimit.RequestsPerMinute)
		go l.Run(ctx, time.Minute)
		limiter = l
		slog.Info("rate limiting enabled", "rpm", cfg.RateLimit.RequestsPerMinute)
	}

	metricsPath := ""
	bypass := []string{"/healthz", "/readyz"}
	if cfg.Observability.Metrics.Enabled {
		metricsPath = cfg.Observability.Metrics.Path
		bypass = append(bypass, metricsPath)
	}

	handler := transporthttp.NewRouter(transporthttp.RouterConfig{
		Auth:            auth.Middleware(chain, limiter, bypass, cfg.Server.Realm),
		ReadinessChecks: readiness,
		MetricsPath:     metricsPath,
		Logger:          logger,
	})

	srv := transporthttp.NewServer(handler,
		transporthttp.WithAddr(cfg.Server.Addr()),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(logger),
	)

	slog.Info("ldapgate starting",
		"addr", cfg.Server.Addr(),
		"realm", cfg.Server.Realm,
		"group_match", groupMatch,
		"audit", cfg.Audit.Type,
	)
	return srv.Run(ctx)
}
