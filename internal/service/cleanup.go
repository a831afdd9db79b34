package service

import (
	"context"
	"fmt"
	"time"

	"filmforge/media-library/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StartCleanup periodically removes expired upload grants with the objects
// that were never registered, and files that reached their expiry.
func StartCleanup(ctx context.Context, t time.Duration, db *gorm.DB, store ObjectStore) {
	ticker := time.NewTicker(t)

	zap.L().Debug("Cleanup attached", zap.Duration("tick_every", t))

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if err := cleanupGrants(ctx, db, store, now); err != nil {
					zap.L().Error("Failed to clean up upload grants", zap.Error(err))
				}

				if err := cleanupFiles(ctx, db, store, now); err != nil {
					zap.L().Error("Failed to clean up expired files", zap.Error(err))
				}
			}
		}
	}()
}

func cleanupGrants(ctx context.Context, db *gorm.DB, store ObjectStore, now time.Time) error {
	db = db.WithContext(ctx)

	var keys []string
	err := db.
		Model(model.UploadGrant{}).
		Where("expires_at < ?", now.Unix()).
		Pluck("object_key", &keys).
		Error
	if err != nil {
		return fmt.Errorf("failed to query expired grants, %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	// Objects that were uploaded but never registered
	if err := store.Delete(ctx, keys...); err != nil {
		return err
	}

	if err := db.Where("object_key IN ?", keys).Delete(model.UploadGrant{}).Error; err != nil {
		return fmt.Errorf("failed to delete expired grants, %w", err)
	}

	zap.L().Debug("Expired upload grants cleaned up", zap.Int("count", len(keys)))

	return nil
}

func cleanupFiles(ctx context.Context, db *gorm.DB, store ObjectStore, now time.Time) error {
	db = db.WithContext(ctx)

	var files []model.File
	err := db.
		Where("expires_at IS NOT NULL AND expires_at < ?", now.Unix()).
		Find(&files).
		Error
	if err != nil {
		return fmt.Errorf("failed to query expired files, %w", err)
	}

	if len(files) == 0 {
		return nil
	}

	type usage struct {
		size  int64
		files int
	}

	keys := make([]string, len(files))
	ids := make([]string, len(files))
	perUser := map[string]usage{}

	for i, f := range files {
		keys[i] = f.ObjectKey
		ids[i] = f.ID

		u := perUser[f.UserID]
		u.size += f.Size
		u.files++
		perUser[f.UserID] = u
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id IN ?", ids).Delete(model.File{}).Error; err != nil {
			return fmt.Errorf("failed to delete expired files, %w", err)
		}

		for userID, u := range perUser {
			if err := releaseStorage(tx, userID, u.size, u.files); err != nil {
				return err
			}
		}

		if err := store.Delete(ctx, keys...); err != nil {
			return err
		}

		zap.L().Debug("Expired files cleaned up", zap.Int("count", len(files)))

		return nil
	})
}
