package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/shootlink/shortener/internal/database"
	"github.com/shootlink/shortener/internal/models"
	"github.com/shootlink/shortener/internal/referrer"
	"github.com/shootlink/shortener/internal/service"
	"github.com/shootlink/shortener/pkg/response"
	"github.com/shootlink/shortener/pkg/seclog"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

type createLinkRequest struct {
	URL string `json:"url" validate:"required"`
}

type linkResponse struct {
	Slug      string    `json:"slug"`
	ShortURL  string    `json:"short_url"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

func toLinkResponse(link *models.Link, baseURL string) linkResponse {
	return linkResponse{
		Slug:      link.Slug,
		ShortURL:  strings.TrimSuffix(baseURL, "/") + "/r/" + link.Slug,
		URL:       link.OriginalURL,
		CreatedAt: link.CreatedAt,
	}
}

func handleCreateLink(svc LinkService, validate *validator.Validate, baseURL string, logger *slog.Logger) http.HandlerFunc {
	const op = "api.http.handleCreateLink"
	const successMsg = "The link has been created successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req createLinkRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		link, err := svc.ShortenURL(r.Context(), req.URL)
		if err != nil {
			var rejectedErr *service.URLRejectedError
			if errors.As(err, &rejectedErr) {
				seclog.Log(logger, r, seclog.Event{
					Event:  "url_validation",
					Result: seclog.ResultBlocked,
					Reason: rejectedErr.Reason,
					URL:    req.URL,
				})

				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.RejectedURLResponse(rejectedErr.Reason))
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		seclog.Log(logger, r, seclog.Event{
			Event:  "link_created",
			Result: seclog.ResultSuccess,
			URL:    req.URL,
		})

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, toLinkResponse(link, baseURL)))
	}
}

func handleRedirect(svc LinkService, logger *slog.Logger) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		info := referrer.Analyze(r)

		link, err := svc.ResolveAndRecord(r.Context(), slug, info)
		if err != nil {
			if errors.Is(err, database.ErrLinkNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		http.Redirect(w, r, link.OriginalURL, http.StatusFound)
	}
}

type clickBeaconRequest struct {
	Slug     string `json:"slug" validate:"required"`
	Referrer string `json:"referrer"`
}

func handleClickBeacon(svc LinkService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleClickBeacon"
	const successMsg = "The click has been recorded."

	return func(w http.ResponseWriter, r *http.Request) {
		var req clickBeaconRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		if err := svc.RecordClickBeacon(r.Context(), req.Slug, req.Referrer); err != nil {
			if errors.Is(err, database.ErrLinkNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg))
	}
}

type statsResponse struct {
	TotalClicks  int64                   `json:"total_clicks"`
	Last7Days    map[string]int64        `json:"last_7_days"`
	TopReferrers []referrerCountResponse `json:"top_referrers"`
	CreatedAt    time.Time               `json:"created_at"`
}

type referrerCountResponse struct {
	Referrer string `json:"referrer"`
	Count    int64  `json:"count"`
}

func toStatsResponse(stats *models.LinkStats) statsResponse {
	top := make([]referrerCountResponse, 0, len(stats.TopReferrers))
	for _, rc := range stats.TopReferrers {
		top = append(top, referrerCountResponse{Referrer: rc.Referrer, Count: rc.Count})
	}

	return statsResponse{
		TotalClicks:  stats.TotalClicks,
		Last7Days:    stats.Last7Days,
		TopReferrers: top,
		CreatedAt:    stats.CreatedAt,
	}
}

func handleGetLinkStats(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleGetLinkStats"
	const successMsg = "The link statistics retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		stats, err := svc.GetLinkStats(r.Context(), slug)
		if err != nil {
			if errors.Is(err, database.ErrLinkNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toStatsResponse(stats)))
	}
}

type referrerDetailResponse struct {
	Display   string    `json:"display"`
	Source    string    `json:"source"`
	Medium    string    `json:"medium"`
	Campaign  string    `json:"campaign,omitempty"`
	IsMobile  bool      `json:"is_mobile"`
	IsApp     bool      `json:"is_app"`
	Timestamp time.Time `json:"timestamp"`
}

func handleGetReferrerDetails(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleGetReferrerDetails"
	const successMsg = "The referrer details retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		details, err := svc.GetReferrerDetails(r.Context(), slug)
		if err != nil {
			if errors.Is(err, database.ErrLinkNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		data := make(map[string]referrerDetailResponse, len(details))
		for key, d := range details {
			data[key] = referrerDetailResponse{
				Display:   d.Display,
				Source:    d.Source,
				Medium:    d.Medium,
				Campaign:  d.Campaign,
				IsMobile:  d.IsMobile,
				IsApp:     d.IsApp,
				Timestamp: d.Timestamp,
			}
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, data))
	}
}
