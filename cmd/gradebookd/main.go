// Command gradebookd serves the course info pages behind passwordless
// email login.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/icza/linkauthn"
	"github.com/icza/linkauthn/internal/config"
	"github.com/icza/linkauthn/internal/gradebook"
	"github.com/icza/linkauthn/internal/logging"
	"github.com/icza/linkauthn/internal/metrics"
	"github.com/icza/linkauthn/internal/smtpmail"
	"github.com/icza/linkauthn/internal/web"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	// MongoDB
	mongoClient, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI).SetTimeout(cfg.Mongo.Timeout))
	if err != nil {
		return fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.WithError(err).Warn("Failed to disconnect from mongodb")
		}
	}()

	accounts := linkauthn.NewMongoStore(mongoClient, cfg.Mongo.MongoConfig)
	if err := accounts.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping mongodb: %w", err)
	}
	if err := accounts.EnsureIndexes(ctx); err != nil {
		return err
	}
	courses := gradebook.NewMongoStore(mongoClient.Database(cfg.Mongo.DBName), cfg.Mongo.CoursesCollectionName)
	if err := courses.EnsureIndexes(ctx); err != nil {
		return err
	}
	checks := []web.Check{{Name: "mongodb", Ping: accounts.Ping}}

	// Sessions
	var sessionStore linkauthn.SessionStore
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()

		rs := linkauthn.NewRedisSessionStore(rdb, cfg.Redis.KeyPrefix)
		if err := rs.Ping(ctx); err != nil {
			return fmt.Errorf("failed to ping redis: %w", err)
		}
		sessionStore = rs
		checks = append(checks, web.Check{Name: "redis", Ping: rs.Ping})
	} else {
		logger.Warn("No redis URL configured, keeping sessions in memory")
		sessionStore = linkauthn.NewMemorySessionStore()
	}

	auth := linkauthn.NewAuthenticator(accounts, smtpmail.New(cfg.SMTP, logger), cfg.Auth)
	sessions := linkauthn.NewSessionManager(sessionStore, cfg.Session)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	opts := web.Options{
		Auth:         auth,
		Sessions:     sessions,
		Courses:      courses,
		Logger:       logger,
		Metrics:      m,
		Checks:       checks,
		SecureCookie: cfg.Server.Production,
	}
	if cfg.Server.MetricsAddr == "" {
		opts.Gatherer = reg
	}

	servers := []*http.Server{{
		Addr:         cfg.Server.Addr,
		Handler:      web.NewServer(opts),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}}
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		servers = append(servers, &http.Server{
			Addr:        cfg.Server.MetricsAddr,
			Handler:     mux,
			ReadTimeout: cfg.Server.ReadTimeout,
		})
	}

	logger.WithFields(logrus.Fields{
		"base_url":    auth.Config().BaseURL,
		"token_ttl":   auth.Config().TokenTTL.String(),
		"session_ttl": sessions.Config().TTL.String(),
		"production":  cfg.Server.Production,
	}).Info("Starting gradebook server")

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv // per-iteration copy; go directive is 1.21 (pre-1.22 loop semantics)
		g.Go(func() error {
			logger.WithField("addr", srv.Addr).Info("Listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server at %s failed: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("failed to shut down %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
