package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"shortly/internal/cache"
	"shortly/internal/config"
	"shortly/internal/controllers"
	"shortly/internal/database"
	"shortly/internal/jwt"
	"shortly/internal/logger"
	"shortly/internal/models"
	"shortly/internal/ratelimit"
	"shortly/internal/repository"
	"shortly/internal/safety"
	"shortly/internal/server"
	"shortly/internal/service"
	"shortly/internal/workers"
)

const (
	shutdownTimeout = 15 * time.Second
	cleanupInterval = time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the click workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(ctx, cfg)
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config) error {
	httpLogger := logger.New(cfg.Env, os.Stdout)
	log := httpLogger.Logger

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := models.RegisterValidators(); err != nil {
		return err
	}

	db, err := database.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, "up"); err != nil {
		return err
	}
	log.Info("database ready")

	c, store, closeCache := newCacheLayer(ctx, cfg.Redis, log)
	defer closeCache()

	urlRepo := repository.NewURLRepository(db)
	userRepo := repository.NewUserRepository(db)
	clickRepo := repository.NewClickRepository(db)

	tokens := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.TTL())
	pipeline := newPipeline(cfg.Safety, log)

	invalidator := service.NewCacheInvalidator(c, log)
	directory := service.NewUserDirectory(userRepo, c, log)
	resolver := service.NewAccessResolver(urlRepo, c, log)
	urlService := service.NewURLService(urlRepo, pipeline, c, invalidator, log)
	moderation := service.NewModerationService(urlRepo, userRepo, invalidator, log)
	auth := service.NewAuthService(userRepo, tokens)

	pool := workers.NewClickPool(clickRepo, cfg.Analytics.BufferSize, cfg.Analytics.WorkerCount, log)
	clicks := service.NewClickRecorder(urlRepo, pool, log)

	limiter := ratelimit.New(store, cfg.RateLimit.Policies(), log, ratelimit.WithBypass(cfg.RateLimit.Disabled))

	handler := server.NewRouter(httpLogger, tokens, directory, limiter, server.Handlers{
		Shortener:  controllers.NewShortenerController(urlService, resolver, clicks, cfg.Server.BaseURL, cfg.Server.FrontendURL, log),
		Auth:       controllers.NewAuthController(auth),
		QRCode:     controllers.NewQRCodeController(resolver, cfg.Server.BaseURL),
		Moderation: controllers.NewModerationController(moderation, cfg.Server.BaseURL),
	})

	// In-flight requests finish during shutdown, so they must not see the signal
	srv := server.New(context.WithoutCancel(ctx), cfg.Server, handler)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return pool.Run(gctx)
	})

	g.Go(func() error {
		log.Info("server starting", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Stop taking requests first so no click is enqueued after the drain starts
		srvErr := srv.Shutdown(shutdownCtx)
		poolErr := pool.Shutdown(shutdownCtx)
		if n := pool.Pending(); n > 0 {
			log.Warn("click events dropped at shutdown", slog.Int("pending", n))
		}
		return errors.Join(srvErr, poolErr)
	})

	return g.Wait()
}

// newCacheLayer connects to Redis when configured. Without Redis, or when it
// cannot be reached, the cache and the rate limiter counters live in process.
func newCacheLayer(ctx context.Context, cfg config.RedisConfig, log *slog.Logger) (cache.Cache, ratelimit.Store, func()) {
	if cfg.URL != "" {
		client, err := cache.Connect(ctx, cfg.URL)
		if err == nil {
			log.Info("connected to redis")
			return cache.NewRedisCache(client), ratelimit.NewRedisStore(client), func() { client.Close() }
		}
		log.Warn("redis unavailable, using in-process cache", slog.Any("error", err))
	}
	return cache.NewMemoryCache(cleanupInterval), ratelimit.NewMemoryStore(cleanupInterval), func() {}
}

// newPipeline enables each provider that has credentials
func newPipeline(cfg config.SafetyConfig, log *slog.Logger) *safety.Pipeline {
	var (
		threats    safety.ThreatListChecker
		classifier safety.ContentClassifier
	)

	if cfg.SafeBrowsingKey != "" {
		threats = safety.NewSafeBrowsingChecker(cfg.SafeBrowsingKey, cfg.ThreatRPS)
	} else {
		log.Warn("safe browsing key not set, threat list checks are skipped")
	}

	if cfg.ClassifierKey != "" {
		classifier = safety.NewChatClassifier(cfg.ClassifierKey, cfg.ClassifierURL, cfg.ClassifierModel)
	} else {
		log.Warn("classifier key not set, content classification is skipped")
	}

	return safety.NewPipeline(threats, classifier, cfg.Timeout, log)
}
