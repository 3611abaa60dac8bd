package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meter-backend/internal/config"
	"meter-backend/internal/db"
	"meter-backend/internal/events"
	"meter-backend/internal/handlers"
	"meter-backend/internal/imaging"
	"meter-backend/internal/logging"
	"meter-backend/internal/media"
	"meter-backend/internal/repository"
	"meter-backend/internal/services"
	"meter-backend/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const (
	startTimeout = 30 * time.Second
	stopTimeout  = 30 * time.Second
)

// Module provides every component of the service.
var Module = fx.Options(
	fx.Provide(
		config.Load,
		newLogger,
		newPool,
		newRepository,
		newUploader,
		handlers.NewFeedHub,
		newPublisher,
		newIngestService,
		newMeterService,
		newTokenService,
		newServer,
	),
)

// Run starts the service and blocks until SIGINT or SIGTERM.
func Run() {
	if !utils.LoadEnv(".env", "../../.env") {
		fmt.Println("No .env file found, using environment variables")
	}

	app := fx.New(
		Module,
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),
		fx.Invoke(func(*fiber.App) {}),
	)

	startCtx, cancelStart := context.WithTimeout(context.Background(), startTimeout)
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), stopTimeout)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "error stopping app: %v\n", err)
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
}

func newPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(lc, logger, cfg.Database.URL)
}

func newRepository(pool *pgxpool.Pool) services.MeterStore {
	return repository.NewMeterRepository(pool)
}

func newUploader(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (media.Uploader, error) {
	mc := cfg.Media
	if mc.Endpoint == "" {
		logger.Info("no media endpoint configured, remote mirroring disabled")
		return media.Noop{}, nil
	}

	storage, err := media.NewObjectStorage(mc.Endpoint, mc.AccessKey, mc.SecretKey, mc.Bucket, mc.UseSSL, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := storage.EnsureBucket(ctx); err != nil {
				if mc.UploadRequired {
					return err
				}
				logger.Warn("media host unreachable, images will only be stored locally", zap.Error(err))
				return nil
			}
			logger.Info("media host ready", zap.String("endpoint", mc.Endpoint), zap.String("bucket", mc.Bucket))
			return nil
		},
	})
	return storage, nil
}

func newPublisher(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger, hub *handlers.FeedHub) (events.Publisher, error) {
	fanout := events.Fanout{hub}
	if cfg.RabbitMQ.URL == "" {
		return fanout, nil
	}

	amqpPublisher, err := events.NewAMQPPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return amqpPublisher.Close()
		},
	})
	logger.Info("publishing meter events", zap.String("exchange", cfg.RabbitMQ.Exchange))

	return append(fanout, amqpPublisher), nil
}

func newIngestService(cfg *config.Config, uploader media.Uploader, logger *zap.Logger) *services.IngestService {
	return services.NewIngestService(services.IngestOptions{
		UploadDir:      cfg.Images.UploadDir,
		Size:           imaging.Size{Height: cfg.Images.Height, Width: cfg.Images.Width},
		Crop:           cfg.Images.Crop,
		MaxPixels:      cfg.Images.MaxPixels,
		UploadRequired: cfg.Media.UploadRequired,
	}, uploader, logger)
}

func newMeterService(cfg *config.Config, store services.MeterStore, ingest *services.IngestService, publisher events.Publisher, logger *zap.Logger) *services.MeterService {
	return services.NewMeterService(store, ingest, publisher, services.MeterServiceOptions{
		Images:  cfg.Images,
		BaseURL: cfg.BaseURL,
	}, logger)
}

func newTokenService(cfg *config.Config) *services.TokenService {
	return services.NewTokenService(cfg.JWTSecret)
}

func newServer(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger, meterService *services.MeterService, tokens *services.TokenService, hub *handlers.FeedHub) (*fiber.App, error) {
	app, err := NewServer(cfg, logger, meterService, tokens, hub)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := app.Listen(":" + cfg.Port); err != nil {
					logger.Error("server stopped", zap.Error(err))
				}
			}()
			logger.Info("listening", zap.String("port", cfg.Port))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("gracefully shutting down...")
			return app.ShutdownWithContext(ctx)
		},
	})
	return app, nil
}
