package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shootlink/shortener/internal/database"
	"github.com/shootlink/shortener/internal/models"
	"github.com/shootlink/shortener/internal/safety"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ErrMaxRetriesExceeded is returned when the maximum number of retries for generating a slug is exceeded.
var ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating slug")

// URLRejectedError is returned when a destination URL fails one of the
// validation gates. Reason is safe to show to the caller.
type URLRejectedError struct {
	Reason string
}

func (e *URLRejectedError) Error() string {
	return "url rejected: " + e.Reason
}

// LinkRepository defines the interface for working with link records at the business logic layer.
type LinkRepository interface {
	// Create inserts a new link record. Returns database.ErrSlugExists
	// when the slug is already taken.
	Create(ctx context.Context, slug, originalURL string) (*models.Link, error)

	// GetBySlug retrieves a link record by its slug. Returns
	// database.ErrLinkNotFound when no record exists.
	GetBySlug(ctx context.Context, slug string) (*models.Link, error)
}

// URLValidator decides whether a destination URL may be shortened.
type URLValidator interface {
	Validate(ctx context.Context, rawURL string) safety.Result
}

// ClickRecorder records and reads click statistics for a link.
type ClickRecorder interface {
	RecordClick(ctx context.Context, slug string, info models.ReferrerInfo)
	RecordBeacon(ctx context.Context, slug, rawReferrer string)
	Stats(ctx context.Context, slug string) (*models.LinkStats, error)
	ReferrerDetails(ctx context.Context, slug string) (map[string]models.ReferrerDetail, error)
}

// LinkService orchestrates link creation, redirect resolution and
// statistics retrieval.
type LinkService struct {
	repo       LinkRepository
	validator  URLValidator
	recorder   ClickRecorder
	slugLength int
}

func NewLinkService(repo LinkRepository, validator URLValidator, recorder ClickRecorder, slugLength int) *LinkService {
	return &LinkService{
		repo:       repo,
		validator:  validator,
		recorder:   recorder,
		slugLength: slugLength,
	}
}

// ShortenURL validates the destination URL and persists a new link
// record under a freshly generated slug. Slug collisions are retried a
// bounded number of times.
func (s *LinkService) ShortenURL(ctx context.Context, originalURL string) (*models.Link, error) {
	const op = "service.LinkService.ShortenURL"
	const maxRetries = 5

	if res := s.validator.Validate(ctx, originalURL); !res.Valid {
		return nil, fmt.Errorf("%s: %w", op, &URLRejectedError{Reason: res.Reason})
	}

	for i := 0; i < maxRetries; i++ {
		slug, err := gonanoid.New(s.slugLength)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate slug: %w", op, err)
		}

		link, err := s.repo.Create(ctx, slug, originalURL)
		if err != nil {
			if errors.Is(err, database.ErrSlugExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to create link: %w", op, err)
		}

		return link, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

// ResolveAndRecord looks up the link for slug and, when it exists,
// records the click attribution. Recording is best effort and never
// prevents the redirect: a missing link performs no statistics writes.
func (s *LinkService) ResolveAndRecord(ctx context.Context, slug string, info models.ReferrerInfo) (*models.Link, error) {
	const op = "service.LinkService.ResolveAndRecord"

	link, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve slug: %w", op, err)
	}

	s.recorder.RecordClick(ctx, slug, info)

	return link, nil
}

// RecordClickBeacon registers a click reported out-of-band by the stats
// page, after confirming the link exists.
func (s *LinkService) RecordClickBeacon(ctx context.Context, slug, rawReferrer string) error {
	const op = "service.LinkService.RecordClickBeacon"

	if _, err := s.repo.GetBySlug(ctx, slug); err != nil {
		return fmt.Errorf("%s: failed to resolve slug: %w", op, err)
	}

	s.recorder.RecordBeacon(ctx, slug, rawReferrer)

	return nil
}

// GetLinkStats returns the aggregated statistics for a link.
func (s *LinkService) GetLinkStats(ctx context.Context, slug string) (*models.LinkStats, error) {
	const op = "service.LinkService.GetLinkStats"

	link, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve slug: %w", op, err)
	}

	stats, err := s.recorder.Stats(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get link stats: %w", op, err)
	}

	stats.CreatedAt = link.CreatedAt

	return stats, nil
}

// GetReferrerDetails returns the latest referrer snapshot per bucket.
func (s *LinkService) GetReferrerDetails(ctx context.Context, slug string) (map[string]models.ReferrerDetail, error) {
	const op = "service.LinkService.GetReferrerDetails"

	if _, err := s.repo.GetBySlug(ctx, slug); err != nil {
		return nil, fmt.Errorf("%s: failed to resolve slug: %w", op, err)
	}

	details, err := s.recorder.ReferrerDetails(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get referrer details: %w", op, err)
	}

	return details, nil
}
