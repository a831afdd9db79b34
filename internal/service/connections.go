package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"filmforge/media-library/internal/cloud"
	"filmforge/media-library/internal/model"
	"filmforge/media-library/pkg/medialib"
	"filmforge/media-library/pkg/util"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	providerCacheSize = 256
	providerCacheTTL  = 10 * time.Minute
)

// Connections stores the provider accounts users linked and opens clients
// for them. Opened clients are reused for a short while.
type Connections struct {
	db       *gorm.DB
	registry *cloud.Registry
	open     *expirable.LRU[string, cloud.Provider]
}

func NewConnections(db *gorm.DB, registry *cloud.Registry) *Connections {
	return &Connections{
		db:       db,
		registry: registry,
		open:     expirable.NewLRU[string, cloud.Provider](providerCacheSize, nil, providerCacheTTL),
	}
}

func cacheKey(userID string, p medialib.Provider) string {
	return userID + "/" + string(p)
}

// List reports every known provider and whether the user linked it.
func (c *Connections) List(ctx context.Context, userID string) ([]medialib.CloudConnection, error) {
	var linked []string
	err := c.db.WithContext(ctx).
		Model(model.CloudConnection{}).
		Where("user_id = ?", userID).
		Pluck("provider", &linked).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to list cloud connections, %w", err)
	}

	out := make([]medialib.CloudConnection, 0, len(medialib.Providers))
	for _, p := range medialib.Providers {
		conn := medialib.CloudConnection{Provider: p}
		for _, l := range linked {
			if l == string(p) {
				conn.Connected = true
			}
		}

		out = append(out, conn)
	}

	return out, nil
}

// Connect verifies the credentials by opening the provider and stores them,
// replacing an earlier connection to the same provider.
func (c *Connections) Connect(ctx context.Context, userID string, p medialib.Provider, creds map[string]string) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %s", cloud.ErrUnknownProvider, p)
	}

	provider, err := c.registry.Open(ctx, p, creds)
	if err != nil {
		return err
	}

	id, err := util.NewID()
	if err != nil {
		return fmt.Errorf("failed to generate connection id, %w", err)
	}

	err = c.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}},
			DoUpdates: clause.AssignmentColumns([]string{"credentials", "connected_at"}),
		}).
		Create(&model.CloudConnection{
			ID:          id,
			UserID:      userID,
			Provider:    string(p),
			Credentials: creds,
			ConnectedAt: time.Now().Unix(),
		}).
		Error
	if err != nil {
		return fmt.Errorf("failed to save cloud connection, %w", err)
	}

	c.open.Add(cacheKey(userID, p), provider)

	zap.L().Info("Cloud provider connected", zap.String("userID", userID), zap.String("provider", string(p)))

	return nil
}

func (c *Connections) Disconnect(ctx context.Context, userID string, p medialib.Provider) error {
	c.open.Remove(cacheKey(userID, p))

	res := c.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, string(p)).
		Delete(model.CloudConnection{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete cloud connection, %w", res.Error)
	}

	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Open returns a client for the user's connection to p, or
// ErrNoCloudConnection when there is none.
func (c *Connections) Open(ctx context.Context, userID string, p medialib.Provider) (cloud.Provider, error) {
	if provider, ok := c.open.Get(cacheKey(userID, p)); ok {
		return provider, nil
	}

	var conn model.CloudConnection
	err := c.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, string(p)).
		First(&conn).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoCloudConnection
		}

		return nil, fmt.Errorf("failed to get cloud connection, %w", err)
	}

	provider, err := c.registry.Open(ctx, p, conn.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s, %w", p, err)
	}

	c.open.Add(cacheKey(userID, p), provider)

	return provider, nil
}
