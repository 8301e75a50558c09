package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shootlink/shortener/internal/database"
	"github.com/shootlink/shortener/internal/models"
)

const linkKeyPrefix = "link:"

type linkRecord struct {
	OriginalURL string    `json:"original_url"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r *linkRecord) ToLink(slug string) *models.Link {
	return &models.Link{
		Slug:        slug,
		OriginalURL: r.OriginalURL,
		CreatedAt:   r.CreatedAt,
	}
}

// LinkRepository persists link records as JSON values keyed by slug.
// Records are created once and never mutated afterwards.
type LinkRepository struct {
	store *Store
}

func NewLinkRepository(store *Store) *LinkRepository {
	return &LinkRepository{
		store: store,
	}
}

func linkKey(slug string) string {
	return linkKeyPrefix + slug
}

func (r *LinkRepository) Create(ctx context.Context, slug, originalURL string) (*models.Link, error) {
	const op = "database.redis.LinkRepository.Create"

	rec := linkRecord{
		OriginalURL: originalURL,
		CreatedAt:   time.Now().UTC(),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to marshal link record: %w", op, err)
	}

	ok, err := r.store.SetNX(ctx, linkKey(slug), string(data), 0)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create link record: %w", op, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, database.ErrSlugExists)
	}

	return rec.ToLink(slug), nil
}

func (r *LinkRepository) GetBySlug(ctx context.Context, slug string) (*models.Link, error) {
	const op = "database.redis.LinkRepository.GetBySlug"

	val, err := r.store.Get(ctx, linkKey(slug))
	if err != nil {
		if errors.Is(err, database.ErrKeyNotFound) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get link record: %w", op, err)
	}

	rec := new(linkRecord)
	if err := json.Unmarshal([]byte(val), rec); err != nil {
		return nil, fmt.Errorf("%s: malformed link record: %w", op, err)
	}
	if rec.OriginalURL == "" {
		return nil, fmt.Errorf("%s: malformed link record: empty original url", op)
	}

	return rec.ToLink(slug), nil
}
