package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campuskit/schoolhub/internal/config"
	"github.com/campuskit/schoolhub/internal/db"
	httpx "github.com/campuskit/schoolhub/internal/http"
	mailx "github.com/campuskit/schoolhub/internal/mail"
	"github.com/campuskit/schoolhub/internal/observability"
	"github.com/campuskit/schoolhub/internal/redisclient"
	"github.com/campuskit/schoolhub/internal/security"
	"github.com/campuskit/schoolhub/migrations"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if cfg.JWTSecret == "" {
		log.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	// tracing (no-op when no endpoint is configured)
	if cfg.OTELEndpoint != "" {
		shutdown, err := observability.InitTracer(context.Background(), "schoolhub-api", cfg.OTELEndpoint)
		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}

		defer func() {
			ctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
	}

	// database
	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := migrations.Run(cfg.DBURL); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	hasher := security.NewHasher(cfg.BcryptCost)

	{
		ctx, cancel := config.WithTimeout(5 * time.Second)
		err := db.EnsureAdminUser(ctx, pool, cfg, hasher)
		cancel()

		if err != nil {
			log.Error("admin seed failed", "err", err)
			os.Exit(1)
		}
	}

	// metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	// redis is optional; rate limiting falls back to per-process windows
	var rdb *redisclient.Client

	if cfg.RedisAddr != "" {
		rdb = redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		ctx, cancel := config.WithTimeout(3 * time.Second)
		err := rdb.Ping(ctx)
		cancel()

		if err != nil {
			log.Warn("redis unreachable, using in-memory rate limiting", "err", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	mailer := buildMailer(cfg, prom)

	router := httpx.NewRouter(cfg, log, pool, mailer, rdb, prom, reg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
			return
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

// buildMailer picks the delivery backend. Without SMTP settings mail is
// logged, which keeps local development working end to end.
func buildMailer(cfg config.Config, prom *observability.Prom) mailx.Mailer {
	var m mailx.Mailer

	if cfg.SMTPHost == "" {
		m = mailx.NewLogMailer()
	} else {
		m = mailx.NewProtectedMailer(
			mailx.NewSMTPMailer(mailx.SMTPConfig{
				Host: cfg.SMTPHost,
				Port: cfg.SMTPPort,
				User: cfg.SMTPUser,
				Pass: cfg.SMTPPass,
				From: cfg.MailFrom,
			}),
			mailx.ProtectedMailerConfig{
				Timeout:          8 * time.Second,
				FailureThreshold: 5,
				Cooldown:         30 * time.Second,
				HalfOpenMaxCalls: 2,
			},
		)
	}

	return mailx.NewMeteredMailer(m, prom.ObserveMail)
}
