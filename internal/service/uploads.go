package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	a "filmforge/media-library/aws"
	"filmforge/media-library/internal/model"
	"filmforge/media-library/pkg/medialib"
	"filmforge/media-library/pkg/util"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Types the sniffer falls back to when it can't tell, the declared type wins then
var genericTypes = []string{"application/octet-stream", "text/plain"}

type UploadLimits struct {
	MaxSize       int64
	AllowedTypes  []string
	GrantLifetime time.Duration
}

// Uploads issues direct-to-store upload grants and turns stored objects
// into catalog entries. The bytes never pass through the service.
type Uploads struct {
	db      *gorm.DB
	store   ObjectStore
	catalog *Catalog
	limits  UploadLimits
	now     func() time.Time
}

func NewUploads(db *gorm.DB, store ObjectStore, catalog *Catalog, limits UploadLimits) *Uploads {
	return &Uploads{
		db:      db,
		store:   store,
		catalog: catalog,
		limits:  limits,
		now:     time.Now,
	}
}

// Allowed reports whether mime matches one of the allowed patterns, such as
// "image/*" or "application/pdf". An empty list allows everything.
func (u *Uploads) Allowed(mime string) bool {
	if len(u.limits.AllowedTypes) == 0 {
		return true
	}

	mime = strings.ToLower(strings.TrimSpace(strings.SplitN(mime, ";", 2)[0]))

	for _, p := range u.limits.AllowedTypes {
		p = strings.ToLower(p)

		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(mime, prefix) {
				return true
			}
		} else if mime == p {
			return true
		}
	}

	return false
}

func (u *Uploads) checkQuota(db *gorm.DB, userID string, size int64) error {
	stats, err := ensureStats(db, userID, u.catalog.maxStorage)
	if err != nil {
		return err
	}

	if stats.UsedStorage+size > stats.MaxStorage {
		return ErrQuotaExceeded
	}

	return nil
}

// Grant validates the declared upload and presigns a PUT for a fresh key.
func (u *Uploads) Grant(ctx context.Context, userID, project string, req medialib.UploadRequest) (*medialib.UploadGrant, error) {
	if err := validFileName(req.Name); err != nil {
		return nil, err
	}

	if req.Size < 0 {
		return nil, fmt.Errorf("%w: size can't be negative", ErrInvalidRequest)
	}

	if req.Size > u.limits.MaxSize {
		return nil, fmt.Errorf("%w: file is bigger than the %d MiB limit", ErrInvalidRequest, u.limits.MaxSize>>20)
	}

	if !u.Allowed(req.MIME) {
		return nil, fmt.Errorf("%w: file type %q is not allowed", ErrInvalidRequest, req.MIME)
	}

	db := u.db.WithContext(ctx)

	if err := u.checkQuota(db, userID, req.Size); err != nil {
		return nil, err
	}

	if req.FolderID != nil {
		if _, err := u.catalog.getFolder(db, userID, project, *req.FolderID); err != nil {
			return nil, err
		}
	}

	key, err := util.ObjectKey(project, req.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to generate object key, %w", err)
	}

	url, headers, err := u.store.PresignPut(ctx, key, req.MIME, u.limits.GrantLifetime)
	if err != nil {
		return nil, err
	}

	expires := u.now().Add(u.limits.GrantLifetime)

	err = db.Create(&model.UploadGrant{
		ObjectKey: key,
		UserID:    userID,
		ProjectID: project,
		FolderID:  req.FolderID,
		Name:      req.Name,
		MIME:      req.MIME,
		Size:      req.Size,
		ExpiresAt: expires.Unix(),
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save upload grant, %w", err)
	}

	grantsIssued.Inc()

	return &medialib.UploadGrant{
		UploadURL: url,
		Method:    "PUT",
		Headers:   headers,
		ObjectKey: key,
		ExpiresAt: expires.UTC(),
	}, nil
}

// Register creates the catalog entry for a granted key once its object is
// visible in the store. Registering a key twice returns the existing entry.
func (u *Uploads) Register(ctx context.Context, userID, project string, req medialib.RegisterRequest) (*model.File, error) {
	f, err := u.register(ctx, userID, project, req)

	result := "ok"
	switch {
	case errors.Is(err, ErrObjectNotVisible):
		result = "not_visible"
	case err != nil:
		result = "error"
	}
	uploadsRegistered.WithLabelValues(result).Inc()

	return f, err
}

func (u *Uploads) register(ctx context.Context, userID, project string, req medialib.RegisterRequest) (*model.File, error) {
	if req.ObjectKey == "" {
		return nil, fmt.Errorf("%w: object_key is required", ErrInvalidRequest)
	}

	db := u.db.WithContext(ctx)

	existing, err := u.registered(db, userID, req.ObjectKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	var grant model.UploadGrant
	err = db.Where("user_id = ? AND project_id = ? AND object_key = ?", userID, project, req.ObjectKey).First(&grant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no upload grant for %s", ErrNotFound, req.ObjectKey)
		}

		return nil, fmt.Errorf("failed to get upload grant, %w", err)
	}

	if u.now().Unix() > grant.ExpiresAt {
		return nil, ErrGrantExpired
	}

	size, err := u.store.Head(ctx, req.ObjectKey)
	if err != nil {
		if errors.Is(err, a.ErrObjectNotFound) {
			return nil, ErrObjectNotVisible
		}

		return nil, err
	}

	mime, err := u.store.Sniff(ctx, req.ObjectKey)
	if err != nil {
		if errors.Is(err, a.ErrObjectNotFound) {
			return nil, ErrObjectNotVisible
		}

		return nil, err
	}

	if slices.Contains(genericTypes, strings.SplitN(mime, ";", 2)[0]) && grant.MIME != "" {
		mime = grant.MIME
	}

	if !u.Allowed(mime) || size > u.limits.MaxSize {
		u.discard(grant.ObjectKey)
		return nil, fmt.Errorf("%w: stored object is %s of %d bytes, which is not allowed", ErrInvalidRequest, mime, size)
	}

	name := cmp.Or(req.Name, grant.Name)
	if err := validFileName(name); err != nil {
		return nil, err
	}

	id, err := util.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate file id, %w", err)
	}

	f := &model.File{
		ID:        id,
		UserID:    userID,
		ProjectID: project,
		FolderID:  grant.FolderID,
		Name:      name,
		ObjectKey: grant.ObjectKey,
		Format:    mime,
		Type:      string(medialib.MediaTypeFromMIME(mime)),
		Size:      size,
		CreatedAt: u.now().Unix(),
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := u.checkQuota(tx, userID, size); err != nil {
			return err
		}

		if err := tx.Create(f).Error; err != nil {
			return fmt.Errorf("failed to create file entry, %w", err)
		}

		err := tx.
			Model(model.Stats{}).
			Where("user_id = ?", userID).
			Updates(map[string]any{
				"used_storage":   gorm.Expr("used_storage + ?", size),
				"uploaded_files": gorm.Expr("uploaded_files + ?", 1),
			}).
			Error
		if err != nil {
			return fmt.Errorf("failed to increment used storage, %w", err)
		}

		if err := tx.Delete(&grant).Error; err != nil {
			return fmt.Errorf("failed to delete upload grant, %w", err)
		}

		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// A concurrent registration of the same key won
		existing, rerr := u.registered(db, userID, req.ObjectKey)
		if rerr != nil {
			return nil, rerr
		}
		if existing != nil {
			return existing, nil
		}
	}
	if err != nil {
		return nil, err
	}

	zap.L().Debug("Upload registered", zap.String("key", f.ObjectKey), zap.Int64("size", size))

	return f, nil
}

// registered returns the catalog entry of key, or nil when it has none yet.
func (u *Uploads) registered(db *gorm.DB, userID, key string) (*model.File, error) {
	var f model.File
	err := db.Where("user_id = ? AND object_key = ?", userID, key).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing file, %w", err)
	}

	return &f, nil
}

// discard removes a stored object that will never be registered.
func (u *Uploads) discard(key string) {
	err := u.db.Where("object_key = ?", key).Delete(model.UploadGrant{}).Error
	if err != nil {
		zap.L().Error("Failed to delete rejected upload grant", zap.String("key", key), zap.Error(err))
	}

	if err := u.store.Delete(context.Background(), key); err != nil {
		zap.L().Error("Failed to delete rejected upload", zap.String("key", key), zap.Error(err))
	}
}
