package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blocmark/notifier/internal/api"
	"github.com/blocmark/notifier/internal/event"
	"github.com/blocmark/notifier/internal/mailer"
	"github.com/blocmark/notifier/internal/notifier"
	"github.com/blocmark/notifier/internal/preference"
	"github.com/blocmark/notifier/internal/queue"
	"github.com/blocmark/notifier/internal/suppression"
	"github.com/blocmark/notifier/pkg/config"
	"github.com/blocmark/notifier/pkg/httpserver"
	"github.com/blocmark/notifier/pkg/logger"
	"github.com/blocmark/notifier/pkg/pg"
	"github.com/blocmark/notifier/pkg/redis"
)

type appConfig struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	Notifier notifier.Config
	Mailer   mailer.Config
	Queue    queue.Config
	PG       pg.Config
	Redis    redis.Config
	HTTP     httpserver.Config
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(logger.WithEnvironment(cfg.Env, "notifier"))
	logger.SetAsDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("service exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg appConfig, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.PG, log); err != nil {
		return err
	}

	// Redis is an optional read-through cache for suppression checks; the
	// service runs fine without it.
	suppressionOpts := []suppression.Option{suppression.WithLogger(log)}
	if cfg.Redis.ConnectionURL != "" {
		redisClient, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, suppression cache disabled", logger.Error(err))
		} else {
			defer redisClient.Close() //nolint:errcheck
			suppressionOpts = append(suppressionOpts,
				suppression.WithCache(suppression.NewRedisCache(redisClient, 30*time.Second)))
		}
	}

	suppressions, err := suppression.NewService(suppression.NewPGStorage(pool), suppressionOpts...)
	if err != nil {
		return err
	}
	events, err := event.NewService(event.NewPGStorage(pool), log)
	if err != nil {
		return err
	}
	prefs, err := preference.NewService(preference.NewPGStorage(pool), log)
	if err != nil {
		return err
	}

	sender, err := buildSender(cfg, log)
	if err != nil {
		return err
	}

	deliverer, err := notifier.NewDeliverer(sender, suppressions, events, log)
	if err != nil {
		return err
	}

	queueStorage, err := queue.NewPGStorage(pool)
	if err != nil {
		return err
	}
	queueSvc, err := queue.NewService(queueStorage, cfg.Queue, queue.WithWorkerLogger(log))
	if err != nil {
		return err
	}

	backend, err := notifier.SelectBackend(ctx, queueSvc, deliverer, log)
	if err != nil {
		return err
	}
	_, queued := backend.(*notifier.QueuedBackend)
	if !queued {
		// Degraded mode: sends happen inline without retries, and the
		// internal enqueue API dispatches synchronously.
		queueSvc = nil
	}

	directory, err := notifier.NewPGDirectory(pool)
	if err != nil {
		return err
	}

	notifications, err := notifier.NewService(notifier.ServiceParams{
		Directory:    directory.Directory(),
		Preferences:  prefs,
		Suppressions: suppressions,
		Events:       events,
		Renderer:     notifier.NewHTMLRenderer(),
		Backend:      backend,
		Sender:       sender,
		Queue:        queueSvc,
		Config:       cfg.Notifier,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	if queueSvc != nil {
		queueSvc.RegisterHandlers(
			notifier.NewDeliveryHandler(deliverer),
			notifier.NewRequestHandler(notifications),
		)
		if err := queueSvc.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := queueSvc.Stop(); err != nil {
				log.Error("queue shutdown failed", logger.Error(err))
			}
		}()
	}

	apiHandler, err := api.New(api.Dependencies{
		Notifications: notifications,
		Suppressions:  suppressions,
		Preferences:   prefs,
		Events:        events,
		Queue:         queueSvc,
		Logger:        log,
	})
	if err != nil {
		return err
	}

	server := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
	return server.Run(ctx, apiHandler.Router())
}

// buildSender picks the provider client, or the filesystem dev sender when no
// provider token is configured.
func buildSender(cfg appConfig, log *slog.Logger) (mailer.EmailSender, error) {
	if cfg.Mailer.PostmarkServerToken == "" {
		if cfg.Env != "development" {
			log.Warn("no provider token configured, emails will be written to disk",
				slog.String("dir", cfg.Mailer.DevOutputDir))
		}
		return mailer.NewDevSender(cfg.Mailer.DevOutputDir), nil
	}
	return mailer.NewPostmarkClient(cfg.Mailer)
}
