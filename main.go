package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"embed-bot/bot"
	"embed-bot/cache"
	"embed-bot/command"
	"embed-bot/config"
	"embed-bot/database"
	"embed-bot/delivery"
	"embed-bot/downloader"
	"embed-bot/handlers"
	"embed-bot/metrics"
	"embed-bot/models"
	"embed-bot/service"
	"embed-bot/utils"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const httpTimeout = 2 * time.Minute

func main() {
	root := &cobra.Command{
		Use:           "embed-bot",
		Short:         "Embeds Instagram, TikTok and YouTube Shorts media into chat",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(runCommand(), migrateCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and start embedding posts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			logger, err := utils.NewLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, logger)
		},
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			db, err := database.InitDB(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Printf("Database schema is up to date at %s\n", cfg.Database.Path)
			return nil
		},
	}
}

func newCacheBackend(ctx context.Context, cfg models.CacheConfig) (cache.Backend, error) {
	if cfg.Backend == "redis" {
		return cache.NewRedisBackend(ctx, &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	return cache.NewMemoryBackend(cfg.MemorySize)
}

func run(ctx context.Context, cfg *models.Config, logger *zap.Logger) error {
	session, err := bot.NewSession(cfg.Bot)
	if err != nil {
		return err
	}
	// Every component logger derives from this one so warnings reach the admin channel.
	logger = utils.WithAdminChannel(logger, session, cfg.Bot.AdminChannelID)

	backend, err := newCacheBackend(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	c := cache.New(backend, cfg.Cache.DefaultTTL)
	defer c.Close()

	db, err := database.InitDB(cfg.Database.Path)
	if err != nil {
		return err
	}
	repo := database.NewRepository(db, cfg.Database.Path, c, cfg.Cache.CounterTTL, logger.Named("database"))
	defer repo.Close()

	httpClient := downloader.NewHTTPClient(httpTimeout)
	fetcher := downloader.NewPageFetcher(httpClient, cfg.Limits.FetchRPS, logger.Named("downloader"))
	dispatcher := downloader.NewDispatcher(
		downloader.NewInstagramClient(fetcher),
		downloader.NewTikTokClient(fetcher),
		downloader.NewYouTubeClient(httpClient),
	)

	svc := service.New(repo, dispatcher, cfg.Limits, logger.Named("service"))
	engine := delivery.NewEngine(
		delivery.NewFFmpeg(cfg.Delivery.FFmpegPath, logger.Named("ffmpeg")),
		cfg.Delivery,
		utils.RandomEmoji,
		logger.Named("delivery"),
	)
	health := bot.NewHealthServer(logger.Named("health"))

	b := bot.NewBot(session, bot.Deps{
		Service:   svc,
		Delivery:  engine,
		Auth:      utils.NewAuth(cfg.Commands),
		Scheduler: bot.NewScheduler(repo, cfg.Retention.ServerPosts, logger.Named("scheduler")),
		Health:    health,
	}, logger.Named("bot"))

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, logger.Named("metrics")); err != nil {
				logger.Error("Metrics server stopped", zap.Error(err))
			}
		}()
	}
	if cfg.Health.Addr != "" {
		go func() {
			if err := health.ListenAndServe(cfg.Health.Addr); err != nil {
				logger.Error("Health server stopped", zap.Error(err))
			}
		}()
		defer health.Stop()
	}

	if err := b.Run(ctx, handlers.Register, command.AllCommands); err != nil {
		return err
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		logger.Info("Shutdown signal received")
	}
	return nil
}
