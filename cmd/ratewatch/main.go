package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"ratewatch/internal/config"
	"ratewatch/internal/httpx"
	"ratewatch/internal/logging"
	"ratewatch/internal/metrics"
	"ratewatch/internal/notify"
	"ratewatch/internal/rates/optimalblue"
	"ratewatch/internal/rates/ratelimit"
	"ratewatch/internal/runner"
	"ratewatch/internal/snapshot"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet("ratewatch", flag.ContinueOnError)
	var configPath, envFile, schedule string
	flags.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json or config.yaml (optional)")
	flags.StringVar(&envFile, "env-file", getenv("ENV_FILE", ".env"), "dotenv file loaded before reading the environment")
	flags.StringVar(&schedule, "schedule", "", "cron spec; run repeatedly instead of once")
	if err := flags.Parse(args); err != nil {
		return runner.ExitFatal
	}

	if err := loadEnv(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "env: %v\n", err)
		return runner.ExitFatal
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return runner.ExitFatal
	}
	if schedule != "" {
		cfg.Schedule = schedule
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		return runner.ExitFatal
	}

	r, closeFn, err := build(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("startup failed")
		return runner.ExitFatal
	}
	defer closeFn()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Schedule == "" {
		return once(ctx, r, cfg, logger)
	}
	return scheduled(ctx, r, cfg, logger)
}

// loadEnv reads path into the environment without overriding variables that
// are already set. A missing file is fine.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// build wires the runner from cfg. The returned func releases the store.
func build(cfg config.Config, logger *logrus.Logger) (*runner.Runner, func(), error) {
	httpClient := httpx.New(time.Duration(cfg.HTTP.RequestTimeoutSec) * time.Second)
	if cfg.HTTP.UserAgent != "" {
		httpClient.UserAgent = cfg.HTTP.UserAgent
	}

	obClient, err := optimalblue.NewClient(
		optimalblue.Widget{ClientID: cfg.API.ClientID, UserID: cfg.API.UserID, FormID: cfg.API.FormID},
		optimalblue.WithHTTPClient(httpClient),
		optimalblue.WithBaseURL(cfg.API.BaseURL),
		optimalblue.WithHeader(http.Header{"Accept-Language": []string{"en-US"}}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("optimalblue client: %w", err)
	}
	source := ratelimit.MinInterval(
		optimalblue.NewSource(obClient),
		time.Duration(cfg.HTTP.MinRequestIntervalMs)*time.Millisecond,
	)

	var store snapshot.Store
	closeFn := func() {}
	if cfg.Snapshot.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Snapshot.RedisAddr,
			Password: cfg.Snapshot.RedisPassword,
			DB:       cfg.Snapshot.RedisDB,
		})
		store = snapshot.NewRedisStore(rdb, cfg.Snapshot.RedisKey)
		closeFn = func() { _ = rdb.Close() }
		logger.WithField("addr", cfg.Snapshot.RedisAddr).Info("using redis snapshot store")
	} else {
		store = snapshot.NewFileStore(cfg.Snapshot.Path)
		logger.WithField("path", cfg.Snapshot.Path).Debug("using file snapshot store")
	}

	if !cfg.Mail.Configured() {
		logger.Warn("email credentials not configured; changes will only be logged")
	}
	mailer := notify.NewMailer(cfg.Mail, &notify.SMTPTransport{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		StartTLS: cfg.Mail.StartTLS,
		Timeout:  time.Duration(cfg.HTTP.RequestTimeoutSec) * time.Second,
	})

	return &runner.Runner{
		Products: cfg.Products,
		Loan:     cfg.Loan,
		Source:   source,
		Store:    store,
		Notifier: mailer,
		Metrics:  metrics.New(),
		Log:      logger,
	}, closeFn, nil
}

func once(ctx context.Context, r *runner.Runner, cfg config.Config, logger *logrus.Logger) int {
	_, err := r.Run(ctx)
	pushMetrics(r, cfg, logger)
	code := runner.ExitCode(err)
	if code != runner.ExitOK {
		logger.WithError(err).WithField("exit_code", code).Error("check finished with errors")
	}
	return code
}

func scheduled(ctx context.Context, r *runner.Runner, cfg config.Config, logger *logrus.Logger) int {
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		logger.WithError(err).WithField("schedule", cfg.Schedule).Error("invalid schedule")
		return runner.ExitFatal
	}
	cl := cron.PrintfLogger(logger)
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	_, err := c.AddFunc(cfg.Schedule, func() {
		if _, err := r.Run(ctx); err != nil {
			logger.WithError(err).WithField("exit_code", runner.ExitCode(err)).Error("check finished with errors")
		}
		pushMetrics(r, cfg, logger)
	})
	if err != nil {
		logger.WithError(err).Error("cannot schedule check")
		return runner.ExitFatal
	}

	logger.WithField("schedule", cfg.Schedule).Info("scheduler started")
	c.Start()
	<-ctx.Done()
	logger.Info("shutting down, waiting for running check")
	<-c.Stop().Done()
	return runner.ExitOK
}

func pushMetrics(r *runner.Runner, cfg config.Config, logger *logrus.Logger) {
	if err := r.Metrics.Push(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
		logger.WithError(err).Warn("metrics push failed")
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
