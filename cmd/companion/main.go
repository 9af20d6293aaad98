package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/studvik/companion/internal/api"
	"github.com/studvik/companion/internal/credential"
	"github.com/studvik/companion/internal/digest"
	"github.com/studvik/companion/internal/healing"
	"github.com/studvik/companion/internal/model"
	"github.com/studvik/companion/internal/notify"
	"github.com/studvik/companion/internal/source"
	"github.com/studvik/companion/internal/source/blackboard"
	"github.com/studvik/companion/internal/source/canvas"
	"github.com/studvik/companion/internal/source/github"
	"github.com/studvik/companion/internal/source/teams"
	"github.com/studvik/companion/internal/source/timeedit"
	"github.com/studvik/companion/internal/source/tp"
	"github.com/studvik/companion/internal/store"
	syncsvc "github.com/studvik/companion/internal/sync"
)

// defaultUserID is the account used when requests carry no user header.
// Additional users get their own sync bundles lazily through the registry.
const defaultUserID = "local"

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to config file")
	flag.Parse()

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting companion",
		zap.String("config", *configPath),
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level))

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		logger.Fatal("opening store", zap.Error(err))
	}
	defer s.Close()

	fanout := notify.NewFanout(s, logger)
	if cfg.Notify.Email.Enabled {
		fanout.AddChannel("email", cfg.Notify.Email.To, notify.NewEmailPusher(
			cfg.Notify.Email.Host, cfg.Notify.Email.Port,
			cfg.Notify.Email.Username, cfg.Notify.Email.Password,
			cfg.Notify.Email.From))
	}
	if cfg.Notify.Telegram.Enabled {
		fanout.AddChannel("telegram", cfg.Notify.Telegram.ChatID,
			notify.NewTelegramPusher(cfg.Notify.Telegram.BotToken))
	}

	registry := syncsvc.NewRegistry(bundleFactory(cfg, s, fanout, logger), logger)
	defer registry.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := digest.NewDispatcher(s, fanout,
		cfg.Digest.MorningHour, cfg.Digest.EveningHour, logger)
	go dispatcher.Run(ctx, time.Duration(cfg.Digest.TickIntervalSec)*time.Second)

	go pruneLoop(ctx, s, cfg.Retention.SyncAttemptDays, logger)

	// Build the default user's bundle up front so polling starts with
	// the process instead of on the first request.
	if _, err := registry.Bundle(defaultUserID); err != nil {
		logger.Error("building sync bundle", zap.Error(err))
	}

	engine := api.NewRouter(api.RouterConfig{
		Store:         s,
		Registry:      registry,
		Log:           logger,
		DefaultUserID: defaultUserID,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutting down", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
}

// newLogger builds the process logger from config.
func newLogger(cfg model.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	switch cfg.Format {
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// bundleFactory returns the registry callback that assembles one user's
// sync services from the configured integrations. Services start polling
// as soon as they are built.
func bundleFactory(cfg *model.AppConfig, s store.Store, deliverer digest.Deliverer, log *zap.Logger) syncsvc.BundleFactory {
	policy := healing.PolicyConfig{
		BackoffBase:      time.Duration(cfg.Healing.BackoffBaseSec) * time.Second,
		BackoffMax:       time.Duration(cfg.Healing.BackoffMaxSec) * time.Second,
		CircuitThreshold: cfg.Healing.CircuitThreshold,
		CircuitOpenFor:   time.Duration(cfg.Healing.CircuitOpenSec) * time.Second,
	}
	trackerCfg := healing.TrackerConfig{
		PromptThreshold: cfg.Recovery.PromptThreshold,
		PromptCooldown:  time.Duration(cfg.Recovery.PromptCooldownMin) * time.Minute,
	}

	return func(userID string) (*syncsvc.Bundle, error) {
		tracker := healing.NewTracker(trackerCfg, log)
		b := syncsvc.NewBundle(tracker)

		for _, ic := range cfg.Integrations {
			if !ic.Enabled {
				continue
			}

			src, err := buildSource(ic)
			if err != nil {
				log.Warn("skipping integration",
					zap.String("id", ic.ID),
					zap.String("type", ic.Type),
					zap.Error(err))
				continue
			}
			if !src.Configured() {
				log.Info("integration not configured, skipping",
					zap.String("id", ic.ID),
					zap.String("type", ic.Type))
				continue
			}

			svc := syncsvc.NewService(syncsvc.ServiceConfig{
				UserID:    userID,
				Source:    src,
				Store:     s,
				Log:       log,
				Policy:    policy,
				Tracker:   tracker,
				Deliverer: deliverer,

				MorningHour:          cfg.Digest.MorningHour,
				EveningHour:          cfg.Digest.EveningHour,
				FallbackEventMinutes: configInt(ic.Config, "fallback_minutes"),
			})
			b.Add(svc)
			svc.Start(time.Duration(ic.PollIntervalSec) * time.Second)
		}

		return b, nil
	}
}

// buildSource constructs the adapter for one integration entry. Token
// based integrations read their access token from the system keyring.
func buildSource(ic model.IntegrationConfig) (source.Source, error) {
	switch ic.Type {
	case "timeedit":
		return timeedit.NewAdapter(ic.Config["feed_url"]), nil
	case "tp":
		return tp.NewAdapter(ic.BaseURL, splitList(ic.Config["courses"])), nil
	}

	token, err := credential.Get(credential.TokenKey(ic.Type, ic.ID))
	if err != nil {
		return nil, fmt.Errorf("reading token: %w", err)
	}

	switch ic.Type {
	case "canvas":
		return canvas.NewAdapter(ic.BaseURL, token), nil
	case "blackboard":
		return blackboard.NewAdapter(ic.BaseURL, token), nil
	case "teams":
		return teams.NewAdapter(ic.BaseURL, token), nil
	case "github":
		return github.NewAdapter(ic.BaseURL, token), nil
	default:
		return nil, fmt.Errorf("unknown integration type %q", ic.Type)
	}
}

// pruneLoop trims old health-log rows once a day.
func pruneLoop(ctx context.Context, s store.Store, keepDays int, log *zap.Logger) {
	if keepDays <= 0 {
		return
	}

	prune := func() {
		cutoff := time.Now().Add(-time.Duration(keepDays) * 24 * time.Hour)
		n, err := s.PruneSyncAttempts(ctx, cutoff)
		if err != nil {
			log.Error("pruning health log", zap.Error(err))
			return
		}
		if n > 0 {
			log.Info("pruned health log", zap.Int64("rows", n))
		}
	}

	prune()
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func configInt(m map[string]string, key string) int {
	n, _ := strconv.Atoi(m[key])
	return n
}
