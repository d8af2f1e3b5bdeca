package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fixaro/marketplace-core/internal/config"
	"github.com/fixaro/marketplace-core/internal/db"
	"github.com/fixaro/marketplace-core/internal/model"
	"github.com/fixaro/marketplace-core/internal/ratelimit"
	"github.com/fixaro/marketplace-core/internal/repository"
	"github.com/fixaro/marketplace-core/internal/server"
	"github.com/fixaro/marketplace-core/internal/service"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "marketcore",
		Short: "Service-marketplace scheduling core",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().Timestamp().Str("service", "marketcore").Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Str("service", "marketcore").Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			// 1. Загружаем конфиг из env.
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			log := newLogger(cfg.Env)

			// 2. Подключаемся к БД через GORM.
			gormDB, err := db.NewGormDB(cfg)
			if err != nil {
				log.Fatal().Err(err).Msg("init db")
			}

			sqlDB, err := gormDB.DB()
			if err != nil {
				log.Fatal().Err(err).Msg("sql DB")
			}
			defer sqlDB.Close()

			// 3. Репозитории (реализации на GORM).
			slotRepo := repository.NewGormAvailabilityRepository(gormDB)
			apptRepo := repository.NewGormAppointmentRepository(gormDB)
			ratingRepo := repository.NewGormRatingRepository(gormDB)
			providerRepo := repository.NewGormProviderRepository(gormDB)
			customerRepo := repository.NewGormCustomerRepository(gormDB)
			serviceRepo := repository.NewGormServiceRepository(gormDB)

			// 4. Сервисы ядра.
			notifier := service.NewLogNotifier(log)
			events := service.NewEventRecorder(gormDB, log)
			availabilitySvc := service.NewAvailabilityService(gormDB, slotRepo, apptRepo)
			schedulingSvc := service.NewSchedulingService(
				gormDB, slotRepo, apptRepo, providerRepo, customerRepo, serviceRepo,
				notifier, events, log,
			)
			lifecycleSvc := service.NewLifecycleService(
				gormDB, apptRepo, ratingRepo, providerRepo, schedulingSvc, notifier, events, log,
			)
			catalogSvc := service.NewCatalogService(providerRepo, customerRepo, serviceRepo)

			// 5. Лимитер бронирований (опционально, по конфигу).
			var limiter ratelimit.Limiter
			if cfg.RateLimitEnabled && cfg.RedisURL != "" {
				opts, err := redis.ParseURL(cfg.RedisURL)
				if err != nil {
					log.Fatal().Err(err).Msg("parse redis url")
				}
				rdb := redis.NewClient(opts)
				if err := rdb.Ping(cmd.Context()).Err(); err != nil {
					log.Fatal().Err(err).Msg("redis ping")
				}
				defer rdb.Close()
				limiter = ratelimit.NewRedisLimiter(
					rdb,
					cfg.RateLimitRequests,
					time.Duration(cfg.RateLimitWindowSec)*time.Second,
				)
			}

			// 6. HTTP-сервер.
			srv := server.New(gormDB, availabilitySvc, schedulingSvc, lifecycleSvc, catalogSvc, limiter, log)

			go func() {
				if err := srv.Start(":" + cfg.Port); err != nil {
					log.Info().Err(err).Msg("http server stopped")
				}
			}()

			// 7. Грейсфул-шатдаун по сигналу.
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop

			log.Info().Msg("shutting down http server...")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			log := newLogger(cfg.Env)

			gormDB, err := db.NewGormDB(cfg)
			if err != nil {
				return err
			}

			if err := model.AutoMigrate(gormDB); err != nil {
				return err
			}

			log.Info().Msg("migrations applied")
			return nil
		},
	}
}
