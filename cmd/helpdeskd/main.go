package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"helpdesk/internal/bridge"
	"helpdesk/internal/config"
	"helpdesk/internal/console"
	"helpdesk/internal/domain"
	"helpdesk/internal/metrics"
	"helpdesk/internal/roster"
	"helpdesk/internal/store"
	"helpdesk/internal/transport"

	"github.com/spf13/cobra"
)

var (
	version    = "0.3.1"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "helpdeskd",
		Short: "helpdeskd: live-chat session daemon for the storefront gateway",
		Long:  "helpdeskd connects to the storefront chat gateway as an agent, keeps the session directory live, and bridges Discord/Telegram customers in.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ~/.helpdeskd/config.yaml)")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(restoreCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(config.DefaultConfigDir(), 0o755); err != nil {
				return err
			}
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the gateway and run until interrupted",
		RunE:  runDaemon,
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = buildLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cache *store.Store
	if cfg.Cache.Enabled {
		cache, err = store.Open(cfg.Cache.DBPath, logger)
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		defer cache.Close()
	}

	id := domain.Identity{UserID: cfg.Identity.UserID, Role: cfg.Identity.Role}
	loader := roster.NewLoader(roster.LoaderConfig{
		APIBase:   cfg.Gateway.APIBase,
		AuthToken: cfg.Gateway.AuthToken,
		Cookie:    cfg.Gateway.Cookie,
		Logger:    logger,
	})

	cons := console.New(console.Options{
		Identity: id,
		Loader:   loader,
		Cache:    cache,
		Logger:   logger,
	})

	tr := transport.New(transport.Config{
		URL:       cfg.Gateway.WSURL,
		AuthToken: cfg.Gateway.AuthToken,
		Cookie:    cfg.Gateway.Cookie,
		Logger:    logger,
	}, cons)
	cons.Attach(tr)

	startBridges(ctx, cfg, cons)

	if cfg.Metrics.Enabled {
		go serveMetrics(ctx, cfg.Metrics)
	}

	if cache != nil {
		go sweepLoop(ctx, cache, cfg.Cache.RetentionDays)
	}

	if err := cons.Start(ctx); err != nil {
		return fmt.Errorf("start console: %w", err)
	}
	logger.Info("helpdeskd started", "gateway", cfg.Gateway.WSURL, "role", cfg.Identity.Role)

	<-ctx.Done()
	logger.Info("shutting down...")
	if err := cons.Close(); err != nil {
		logger.Warn("close", "err", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// startBridges launches enabled platform bridges and routes agent replies
// back out to them.
func startBridges(ctx context.Context, cfg *config.Config, cons *console.Console) {
	ingressBase := cfg.Bridges.Ingress.BaseURL
	if ingressBase == "" {
		ingressBase = cfg.Gateway.APIBase
	}
	ingressToken := cfg.Bridges.Ingress.AuthToken
	if ingressToken == "" {
		ingressToken = cfg.Gateway.AuthToken
	}

	var discord *bridge.Discord
	var telegram *bridge.Telegram

	if cfg.Bridges.Discord.Enabled {
		discord = bridge.NewDiscord(bridge.DiscordConfig{
			Token:   cfg.Bridges.Discord.Token,
			GuildID: cfg.Bridges.Discord.GuildID,
			Ingress: bridge.NewIngress(ingressBase, ingressToken, logger),
			Logger:  logger,
		})
		go func() {
			if err := discord.Start(ctx); err != nil {
				logger.Error("discord bridge error", "err", err)
			}
		}()
		logger.Info("discord bridge enabled")
	}

	if cfg.Bridges.Telegram.Enabled {
		telegram = bridge.NewTelegram(bridge.TelegramConfig{
			Token:     cfg.Bridges.Telegram.Token,
			AllowFrom: cfg.Bridges.Telegram.AllowFrom,
			Ingress:   bridge.NewIngress(ingressBase, ingressToken, logger),
			Logger:    logger,
		})
		go func() {
			if err := telegram.Start(ctx); err != nil {
				logger.Error("telegram bridge error", "err", err)
			}
		}()
		logger.Info("telegram bridge enabled")
	}

	if discord == nil && telegram == nil {
		return
	}

	cons.SetNotify(func(msg domain.Message, sess domain.Session) {
		// Only agent replies travel outward; customer messages already
		// live on the platform.
		if msg.Role != domain.RoleAssistant && msg.Role != domain.RoleBot {
			return
		}
		switch sess.Channel {
		case domain.ChannelDiscord:
			if discord != nil {
				discord.Deliver(sess.ID, msg.Content)
			}
		case domain.ChannelTelegram:
			if telegram != nil {
				telegram.Deliver(sess.ID, msg.Content)
			}
		}
	})
}

func serveMetrics(ctx context.Context, cfg config.MetricsConfig) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Collector.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server error", "err", err)
	}
}

func sweepLoop(ctx context.Context, cache *store.Store, retentionDays int) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := cache.Sweep(ctx, retentionDays); err != nil {
				logger.Warn("cache sweep failed", "err", err)
			}
		}
	}
}

func buildLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot open log file %s: %v\n", cfg.File, err)
		} else {
			w = io.MultiWriter(os.Stderr, f)
		}
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
