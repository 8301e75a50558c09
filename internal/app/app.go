package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/httplog/v2"
	"github.com/shootlink/shortener/internal/config"
	"github.com/shootlink/shortener/internal/database/redis"
	"github.com/shootlink/shortener/internal/ratelimit"
	"github.com/shootlink/shortener/internal/safety"
	"github.com/shootlink/shortener/internal/service"
	"github.com/shootlink/shortener/internal/stats"
	"golang.org/x/sync/errgroup"

	myhttp "github.com/shootlink/shortener/internal/api/http"
)

func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	rdb, err := redis.New(
		ctx,
		cfg.Redis.Addr(),
		redis.WithPassword(cfg.Redis.Password),
		redis.WithDB(cfg.Redis.DB),
		redis.WithDialTimeout(cfg.Redis.DialTimeout),
		redis.WithReadTimeout(cfg.Redis.ReadTimeout),
		redis.WithWriteTimeout(cfg.Redis.WriteTimeout),
		redis.WithPoolSize(cfg.Redis.PoolSize),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to redis: %w", op, err)
	}

	logger := httplog.NewLogger("shortener", httplog.Options{
		LogLevel: slog.LevelInfo,
		Concise:  cfg.Env != config.EnvProd,
	})

	store := redis.NewStore(rdb)
	linkRepo := redis.NewLinkRepository(store)

	sbClient := safety.NewClient(
		cfg.SafeBrowsing.Endpoint,
		cfg.SafeBrowsing.APIKey,
		safety.WithTimeout(cfg.SafeBrowsing.Timeout),
		safety.WithClientInfo(cfg.SafeBrowsing.ClientID, cfg.SafeBrowsing.ClientVersion),
	)
	verdictCache := safety.NewVerdictCache(store, cfg.SafeBrowsing.CacheTTL)
	validator := safety.NewValidator(verdictCache, sbClient, logger.Logger)

	limiter := ratelimit.New(store, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window, logger.Logger)
	aggregator := stats.NewAggregator(store, logger.Logger)
	linkSvc := service.NewLinkService(linkRepo, validator, aggregator, cfg.SlugLength)

	r := myhttp.NewRouter(logger, linkSvc, limiter, cfg.BaseURL)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        r,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return rdb.Close()
	})

	return g.Wait()
}
