package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"filmforge/media-library/internal/model"
	"filmforge/media-library/pkg/medialib"

	"gorm.io/gorm"
)

// S3 refuses presigned URLs that live longer than a week
const maxURLLifetime = 7 * 24 * time.Hour

// URLs exchanges object keys for short-lived download URLs. Only keys of
// files the caller owns are exchanged.
type URLs struct {
	db       *gorm.DB
	store    ObjectStore
	lifetime time.Duration
}

func NewURLs(db *gorm.DB, store ObjectStore, lifetime time.Duration) *URLs {
	return &URLs{
		db:       db,
		store:    store,
		lifetime: lifetime,
	}
}

func (u *URLs) clamp(lifetime time.Duration) time.Duration {
	if lifetime <= 0 {
		return u.lifetime
	}

	return min(lifetime, maxURLLifetime)
}

func (u *URLs) Exchange(ctx context.Context, userID, key string, lifetime time.Duration) (*medialib.SignedURL, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: key is required", ErrInvalidRequest)
	}

	var n int64
	err := u.db.WithContext(ctx).
		Model(model.File{}).
		Where("user_id = ? AND object_key = ?", userID, key).
		Count(&n).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to check key owner, %w", err)
	}

	if n == 0 {
		return nil, ErrNotFound
	}

	url, expires, err := u.store.PresignGet(ctx, key, u.clamp(lifetime))
	if err != nil {
		return nil, err
	}

	urlsIssued.Inc()

	return &medialib.SignedURL{URL: url, ExpiresAt: expires.UTC()}, nil
}

// ExchangeMany exchanges every owned key with a single catalog lookup.
// Unknown keys and keys that failed to presign are reported as missing.
func (u *URLs) ExchangeMany(ctx context.Context, userID string, keys []string, lifetime time.Duration) (*medialib.BulkExchangeResponse, error) {
	resp := &medialib.BulkExchangeResponse{URLs: map[string]medialib.SignedURL{}}

	keys = slices.Compact(slices.Sorted(slices.Values(keys)))
	if len(keys) == 0 {
		return resp, nil
	}

	var owned []string
	err := u.db.WithContext(ctx).
		Model(model.File{}).
		Where("user_id = ? AND object_key IN ?", userID, keys).
		Pluck("object_key", &owned).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to check key owners, %w", err)
	}

	lifetime = u.clamp(lifetime)

	for _, key := range keys {
		if !slices.Contains(owned, key) {
			resp.Missing = append(resp.Missing, key)
			continue
		}

		url, expires, err := u.store.PresignGet(ctx, key, lifetime)
		if err != nil {
			resp.Missing = append(resp.Missing, key)
			continue
		}

		resp.URLs[key] = medialib.SignedURL{URL: url, ExpiresAt: expires.UTC()}
		urlsIssued.Inc()
	}

	return resp, nil
}
