package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"filmforge/media-library/internal/model"
	"filmforge/media-library/pkg/medialib"
	"filmforge/media-library/pkg/util"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxFileName   = 245
	maxFolderName = 128
)

// Catalog is the metadata store of files and folders. Every method is
// scoped to the user that owns the rows.
type Catalog struct {
	db         *gorm.DB
	store      ObjectStore
	maxStorage int64
	now        func() time.Time
}

func NewCatalog(db *gorm.DB, store ObjectStore, maxStorage int64) *Catalog {
	return &Catalog{
		db:         db,
		store:      store,
		maxStorage: maxStorage,
		now:        time.Now,
	}
}

func byParent(col string, id *string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if id == nil {
			return db.Where(col + " IS NULL")
		}

		return db.Where(col+" = ?", *id)
	}
}

func validFileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name can't be empty", ErrInvalidRequest)
	}

	if len(name) > maxFileName {
		return fmt.Errorf("%w: name can't be longer than %d characters", ErrInvalidRequest, maxFileName)
	}

	return nil
}

func validFolderName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: folder name can't be empty", ErrInvalidRequest)
	}

	if len(name) > maxFolderName {
		return fmt.Errorf("%w: folder name can't be longer than %d characters", ErrInvalidRequest, maxFolderName)
	}

	if strings.Contains(name, "/") {
		return fmt.Errorf("%w: folder name can't contain '/'", ErrInvalidRequest)
	}

	return nil
}

// ListFiles returns the files of a project, newest first. A nil folder
// lists the whole project.
func (c *Catalog) ListFiles(ctx context.Context, userID, project string, folderID *string) ([]model.File, error) {
	q := c.db.WithContext(ctx).
		Where("user_id = ? AND project_id = ?", userID, project)

	if folderID != nil {
		q = q.Where("folder_id = ?", *folderID)
	}

	var files []model.File
	if err := q.Order("created_at DESC, id").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("failed to list files, %w", err)
	}

	return files, nil
}

func (c *Catalog) GetFile(ctx context.Context, userID, id string) (*model.File, error) {
	var f model.File

	err := c.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		First(&f).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to get file, %w", err)
	}

	return &f, nil
}

func (c *Catalog) getFolder(db *gorm.DB, userID, project, id string) (*model.Folder, error) {
	var f model.Folder

	err := db.
		Where("user_id = ? AND project_id = ? AND id = ?", userID, project, id).
		First(&f).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: folder %s", ErrNotFound, id)
		}

		return nil, fmt.Errorf("failed to get folder, %w", err)
	}

	return &f, nil
}

// UpdateFile renames a file and/or moves it to another folder of the same
// project.
func (c *Catalog) UpdateFile(ctx context.Context, userID, id string, req medialib.FileUpdate) (*model.File, error) {
	f, err := c.GetFile(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}

	if req.Name != nil {
		if err := validFileName(*req.Name); err != nil {
			return nil, err
		}

		updates["name"] = *req.Name
	}

	switch {
	case req.ToRoot:
		updates["folder_id"] = nil
	case req.FolderID != nil:
		if _, err := c.getFolder(c.db.WithContext(ctx), userID, f.ProjectID, *req.FolderID); err != nil {
			return nil, err
		}

		updates["folder_id"] = *req.FolderID
	}

	if len(updates) == 0 {
		return f, nil
	}

	if err := c.db.WithContext(ctx).Model(f).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update file, %w", err)
	}

	return c.GetFile(ctx, userID, id)
}

// DeleteFile removes the catalog entry and the stored object. The row is
// only gone once the object is.
func (c *Catalog) DeleteFile(ctx context.Context, userID, id string) (*model.File, error) {
	f, err := c.GetFile(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(f).Error; err != nil {
			return fmt.Errorf("failed to delete file row, %w", err)
		}

		if err := releaseStorage(tx, userID, f.Size, 1); err != nil {
			return err
		}

		return c.store.Delete(ctx, f.ObjectKey)
	})
	if err != nil {
		return nil, err
	}

	return f, nil
}

func releaseStorage(tx *gorm.DB, userID string, size int64, files int) error {
	err := tx.
		Model(model.Stats{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"used_storage":   gorm.Expr("used_storage - ?", size),
			"uploaded_files": gorm.Expr("uploaded_files - ?", files),
		}).
		Error
	if err != nil {
		return fmt.Errorf("failed to decrement used storage, %w", err)
	}

	return nil
}

type folderCount struct {
	FolderID string
	N        int
}

// FolderTree returns the root folders of a project with their descendants,
// each level sorted by name. Paths and file counts are computed on read.
func (c *Catalog) FolderTree(ctx context.Context, userID, project string) ([]*medialib.MediaFolder, error) {
	db := c.db.WithContext(ctx)

	var folders []model.Folder
	err := db.
		Where("user_id = ? AND project_id = ?", userID, project).
		Find(&folders).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to list folders, %w", err)
	}

	var counts []folderCount
	err = db.
		Model(model.File{}).
		Select("folder_id, count(*) AS n").
		Where("user_id = ? AND project_id = ? AND folder_id IS NOT NULL", userID, project).
		Group("folder_id").
		Scan(&counts).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to count folder files, %w", err)
	}

	n := make(map[string]int, len(counts))
	for _, fc := range counts {
		n[fc.FolderID] = fc.N
	}

	return buildTree(folders, n), nil
}

func buildTree(folders []model.Folder, counts map[string]int) []*medialib.MediaFolder {
	nodes := make(map[string]*medialib.MediaFolder, len(folders))
	for _, f := range folders {
		nodes[f.ID] = &medialib.MediaFolder{
			ID:        f.ID,
			Name:      f.Name,
			ParentID:  f.ParentID,
			Children:  []*medialib.MediaFolder{},
			FileCount: counts[f.ID],
		}
	}

	roots := []*medialib.MediaFolder{}
	for _, f := range folders {
		node := nodes[f.ID]

		var parent *medialib.MediaFolder
		if f.ParentID != nil {
			parent = nodes[*f.ParentID]
		}

		if parent != nil {
			parent.Children = append(parent.Children, node)
		} else {
			node.ParentID = nil
			roots = append(roots, node)
		}
	}

	var walk func(level []*medialib.MediaFolder, path []string)
	walk = func(level []*medialib.MediaFolder, path []string) {
		slices.SortFunc(level, func(a, b *medialib.MediaFolder) int {
			return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
		})

		for _, n := range level {
			n.Path = path
			walk(n.Children, append(slices.Clone(path), n.Name))
		}
	}
	walk(roots, []string{})

	return roots
}

func (c *Catalog) nameTaken(db *gorm.DB, userID, project string, parentID *string, name, except string) (bool, error) {
	var n int64

	err := db.
		Model(model.Folder{}).
		Scopes(byParent("parent_id", parentID)).
		Where("user_id = ? AND project_id = ? AND name = ? AND id <> ?", userID, project, name, except).
		Count(&n).
		Error
	if err != nil {
		return false, fmt.Errorf("failed to check folder name, %w", err)
	}

	return n > 0, nil
}

func (c *Catalog) CreateFolder(ctx context.Context, userID, project string, req medialib.FolderRequest) (*medialib.MediaFolder, error) {
	if err := validFolderName(req.Name); err != nil {
		return nil, err
	}

	db := c.db.WithContext(ctx)

	path := []string{}
	if req.ParentID != nil {
		var err error
		if path, err = c.pathOf(db, userID, project, *req.ParentID); err != nil {
			return nil, err
		}
	}

	taken, err := c.nameTaken(db, userID, project, req.ParentID, req.Name, "")
	if err != nil {
		return nil, err
	}

	if taken {
		return nil, ErrDuplicateName
	}

	id, err := util.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate folder id, %w", err)
	}

	f := model.Folder{
		ID:        id,
		UserID:    userID,
		ProjectID: project,
		ParentID:  req.ParentID,
		Name:      req.Name,
		CreatedAt: c.now().Unix(),
	}

	if err := db.Create(&f).Error; err != nil {
		return nil, fmt.Errorf("failed to create folder, %w", err)
	}

	zap.L().Debug("Folder created", zap.String("id", id), zap.String("project", project))

	return &medialib.MediaFolder{
		ID:       f.ID,
		Name:     f.Name,
		Path:     path,
		ParentID: f.ParentID,
		Children: []*medialib.MediaFolder{},
	}, nil
}

// pathOf returns the names from the root down to and including folder id.
func (c *Catalog) pathOf(db *gorm.DB, userID, project, id string) ([]string, error) {
	var path []string

	seen := map[string]bool{}
	for cur := &id; cur != nil; {
		if seen[*cur] {
			return nil, fmt.Errorf("folder %s has a parent cycle", id)
		}
		seen[*cur] = true

		f, err := c.getFolder(db, userID, project, *cur)
		if err != nil {
			return nil, err
		}

		path = append(path, f.Name)
		cur = f.ParentID
	}

	slices.Reverse(path)
	return path, nil
}

// RenameFolder changes only the folder's own name. Descendant paths follow
// because they are computed from the parent chain.
func (c *Catalog) RenameFolder(ctx context.Context, userID, project, id, name string) (*medialib.MediaFolder, error) {
	if err := validFolderName(name); err != nil {
		return nil, err
	}

	db := c.db.WithContext(ctx)

	f, err := c.getFolder(db, userID, project, id)
	if err != nil {
		return nil, err
	}

	taken, err := c.nameTaken(db, userID, project, f.ParentID, name, f.ID)
	if err != nil {
		return nil, err
	}

	if taken {
		return nil, ErrDuplicateName
	}

	if err := db.Model(f).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("failed to rename folder, %w", err)
	}

	path, err := c.pathOf(db, userID, project, id)
	if err != nil {
		return nil, err
	}

	return &medialib.MediaFolder{
		ID:       f.ID,
		Name:     name,
		Path:     path[:len(path)-1],
		ParentID: f.ParentID,
		Children: []*medialib.MediaFolder{},
	}, nil
}

// DeleteFolder removes a folder without subfolders. Its files are either
// moved to the parent folder or deleted with their objects. The object keys
// of deleted files are returned.
func (c *Catalog) DeleteFolder(ctx context.Context, userID, project, id string, moveToParent bool) ([]string, error) {
	var keys []string

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		f, err := c.getFolder(tx, userID, project, id)
		if err != nil {
			return err
		}

		var children int64
		if err := tx.Model(model.Folder{}).Where("user_id = ? AND parent_id = ?", userID, id).Count(&children).Error; err != nil {
			return fmt.Errorf("failed to count subfolders, %w", err)
		}

		if children > 0 {
			return ErrFolderNotEmpty
		}

		files := tx.Model(model.File{}).Where("user_id = ? AND folder_id = ?", userID, id)

		if moveToParent {
			if err := files.Update("folder_id", f.ParentID).Error; err != nil {
				return fmt.Errorf("failed to move files to parent, %w", err)
			}
		} else {
			var contained []model.File
			if err := tx.Where("user_id = ? AND folder_id = ?", userID, id).Find(&contained).Error; err != nil {
				return fmt.Errorf("failed to list folder files, %w", err)
			}

			if len(contained) > 0 {
				var size int64
				for _, cf := range contained {
					keys = append(keys, cf.ObjectKey)
					size += cf.Size
				}

				if err := tx.Where("user_id = ? AND folder_id = ?", userID, id).Delete(model.File{}).Error; err != nil {
					return fmt.Errorf("failed to delete folder files, %w", err)
				}

				if err := releaseStorage(tx, userID, size, len(contained)); err != nil {
					return err
				}
			}
		}

		if err := tx.Delete(f).Error; err != nil {
			return fmt.Errorf("failed to delete folder, %w", err)
		}

		if len(keys) > 0 {
			return c.store.Delete(ctx, keys...)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return keys, nil
}

// Quota returns the usage of a user, creating the stats row on first use.
func (c *Catalog) Quota(ctx context.Context, userID string) (*model.Stats, error) {
	return ensureStats(c.db.WithContext(ctx), userID, c.maxStorage)
}

func ensureStats(db *gorm.DB, userID string, maxStorage int64) (*model.Stats, error) {
	var s model.Stats

	err := db.
		Where(model.Stats{UserID: userID}).
		Attrs(model.Stats{MaxStorage: maxStorage}).
		FirstOrCreate(&s).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to get storage stats, %w", err)
	}

	return &s, nil
}

// FilesForSync resolves a sync target to files. A folder target includes
// the files of every descendant folder.
func (c *Catalog) FilesForSync(ctx context.Context, userID, project string, fileID, folderID *string) ([]model.File, error) {
	switch {
	case fileID != nil:
		f, err := c.GetFile(ctx, userID, *fileID)
		if err != nil {
			return nil, err
		}

		if f.ProjectID != project {
			return nil, ErrNotFound
		}

		return []model.File{*f}, nil
	case folderID != nil:
		tree, err := c.FolderTree(ctx, userID, project)
		if err != nil {
			return nil, err
		}

		root := medialib.FindFolder(tree, *folderID)
		if root == nil {
			return nil, fmt.Errorf("%w: folder %s", ErrNotFound, *folderID)
		}

		ids := []string{}
		for _, f := range medialib.PostOrder(root) {
			ids = append(ids, f.ID)
		}

		var files []model.File
		err = c.db.WithContext(ctx).
			Where("user_id = ? AND project_id = ? AND folder_id IN ?", userID, project, ids).
			Order("created_at, id").
			Find(&files).
			Error
		if err != nil {
			return nil, fmt.Errorf("failed to list files to sync, %w", err)
		}

		return files, nil
	default:
		return nil, fmt.Errorf("%w: either file_id or folder_id is required", ErrInvalidRequest)
	}
}
