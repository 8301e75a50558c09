package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	"github.com/shootlink/shortener/internal/models"
	"github.com/shootlink/shortener/internal/ratelimit"
)

type LinkService interface {
	ShortenURL(ctx context.Context, originalURL string) (*models.Link, error)
	ResolveAndRecord(ctx context.Context, slug string, info models.ReferrerInfo) (*models.Link, error)
	RecordClickBeacon(ctx context.Context, slug, rawReferrer string) error
	GetLinkStats(ctx context.Context, slug string) (*models.LinkStats, error)
	GetReferrerDetails(ctx context.Context, slug string) (map[string]models.ReferrerDetail, error)
}

func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

func NewRouter(logger *httplog.Logger, linkSvc LinkService, limiter ratelimit.Admitter, baseURL string) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	// Redirects live outside the JSON API surface.
	r.Get("/r/{slug}", handleRedirect(linkSvc, logger.Logger))

	r.Route("/api/v1", func(r chi.Router) {
		validate := getValidate()

		r.Get("/ping", handlePing)

		r.Route("/links", func(r chi.Router) {
			r.With(ratelimit.Middleware(limiter, logger.Logger)).
				Post("/", handleCreateLink(linkSvc, validate, baseURL, logger.Logger))

			r.Route("/{slug}", func(r chi.Router) {
				r.Get("/stats", handleGetLinkStats(linkSvc))
				r.Get("/referrers", handleGetReferrerDetails(linkSvc))
			})
		})

		r.Post("/click", handleClickBeacon(linkSvc, validate))
	})

	return r
}
