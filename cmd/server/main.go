package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"retailpos/backend/internal/cache"
	"retailpos/backend/internal/config"
	"retailpos/backend/internal/events"
	"retailpos/backend/internal/httpapi"
	"retailpos/backend/internal/invoice"
	"retailpos/backend/internal/jobs"
	"retailpos/backend/internal/logging"
	"retailpos/backend/internal/mailer"
	"retailpos/backend/internal/media"
	"retailpos/backend/internal/service"
	"retailpos/backend/internal/store"
	"retailpos/backend/internal/store/memory"
	pgstore "retailpos/backend/internal/store/postgres"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Error("invalid security configuration", "error", err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	location, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := map[string]gfshutdown.Operation{}

	var repo store.Repository
	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		repo = pg
		closers["postgres"] = func(context.Context) error { return pg.Close() }
		logger.Info("repository ready", "driver", "postgres")
	} else {
		repo = memory.NewSeeded()
		logger.Info("repository ready", "driver", "memory")
	}

	bus := events.NewBus()
	responseCache, closeCache := newResponseCache(ctx, cfg, logger)
	if closeCache != nil {
		closers["redis"] = func(context.Context) error { return closeCache() }
	}
	cache.NewInvalidator(responseCache, logger).Register(bus)

	images := media.NewDiskStore(cfg.UploadDir, "/uploads")
	var renderer invoice.Renderer
	if cfg.GotenbergURL != "" {
		renderer = invoice.NewGotenbergClient(cfg.GotenbergURL)
	}
	invoices, err := invoice.NewGenerator(invoice.Options{
		Dir:      cfg.InvoiceDir,
		Shop:     invoice.Shop{Name: cfg.ShopName, Address: cfg.ShopAddress, Phone: cfg.ShopPhone},
		Language: cfg.InvoiceLanguage,
		Currency: cfg.InvoiceCurrency,
		Location: location,
		Renderer: renderer,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("invoice generator: %w", err)
	}

	mail, closeMail, err := newDispatcher(cfg, logger)
	if err != nil {
		return err
	}
	if closeMail != nil {
		closers["email-queue"] = func(context.Context) error { return closeMail() }
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL, cfg.BcryptCost)
	svc := service.New(service.Deps{
		Repo:      repo,
		Bus:       bus,
		Media:     images,
		Invoices:  invoices,
		Mail:      mail,
		Passwords: auth,
		Tokens:    auth,
		Logger:    logger,
	}, service.Options{
		Location:      location,
		LoginTokenTTL: cfg.LoginTokenTTL,
		PublicBaseURL: cfg.PublicBaseURL,
		FrontendURL:   cfg.FrontendURL,
	})

	if cfg.SeedAdminPassword != "" {
		created, err := svc.BootstrapAdmin(ctx, cfg.SeedAdminUsername, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		if created {
			logger.Info("admin account created", "username", cfg.SeedAdminUsername)
		}
	}

	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin:  cfg.AllowedOrigin,
		Cache:          responseCache,
		CacheTTL:       cfg.CacheTTL,
		UploadDir:      cfg.UploadDir,
		LoginRateLimit: cfg.LoginRateLimit,
		Production:     cfg.Production,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("POS backend listening", "addr", cfg.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	shutdownCtx, forceShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer forceShutdown()

	// The HTTP server drains before the stores it depends on are closed.
	operations := map[string]gfshutdown.Operation{
		"http-server": func(ctx context.Context) error {
			if err := server.Shutdown(ctx); err != nil {
				return err
			}
			for name, closeFn := range closers {
				if err := closeFn(ctx); err != nil {
					logger.Warn("close failed", "resource", name, "error", err)
				}
			}
			return nil
		},
	}
	if code := <-gfshutdown.GracefulShutdown(shutdownCtx, shutdownTimeout, operations); code != 0 {
		return fmt.Errorf("shutdown finished with exit code %d", code)
	}
	logger.Info("server stopped")
	return nil
}

// newResponseCache keeps the Redis client when the startup ping fails. Cached
// reads then answer 500 until Redis recovers.
func newResponseCache(ctx context.Context, cfg config.Config, logger *slog.Logger) (cache.ResponseCache, func() error) {
	if cfg.RedisAddr == "" {
		logger.Info("cache ready", "driver", "none")
		return cache.NoopCache{}, nil
	}
	redisCache := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisCache.Ping(ctx); err != nil {
		logger.Error("redis unreachable, cached reads will fail until it recovers", "addr", cfg.RedisAddr, "error", err)
	} else {
		logger.Info("cache ready", "driver", "redis")
	}
	return redisCache, redisCache.Close
}

// newDispatcher picks the email transport. With EMAIL_QUEUE the envelopes are
// enqueued for cmd/worker, otherwise they are delivered inline.
func newDispatcher(cfg config.Config, logger *slog.Logger) (mailer.Dispatcher, func() error, error) {
	if cfg.EmailQueue {
		if cfg.RedisAddr == "" {
			return nil, nil, errors.New("EMAIL_QUEUE requires REDIS_ADDR")
		}
		client := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		logger.Info("email delivery", "mode", "queue")
		return client, client.Close, nil
	}
	logger.Info("email delivery", "mode", "direct")
	return mailer.NewDirect(mailer.NewSender(cfg.BrevoBaseURL, cfg.BrevoAPIKey, cfg.EmailSender, cfg.EmailSenderName, logger)), nil, nil
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.SeedAdminPassword != "" && len(cfg.SeedAdminPassword) < 8 {
		return fmt.Errorf("SEED_ADMIN_PASSWORD must be at least 8 characters")
	}
	return nil
}
