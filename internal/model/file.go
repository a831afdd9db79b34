// Package model defines database models
package model

import (
	"time"

	"filmforge/media-library/pkg/medialib"
)

type File struct {
	ID        string  `gorm:"primaryKey" json:"id"`
	UserID    string  `gorm:"index;not null" json:"-"`
	ProjectID string  `gorm:"index;not null" json:"project_id"`
	FolderID  *string `gorm:"index" json:"folder_id,omitempty"`
	Name      string  `gorm:"not null" json:"name"`
	ObjectKey string  `gorm:"uniqueIndex;not null" json:"object_key"` // Never a URL, those are exchanged on demand
	Format    string  `json:"format"`                                 // Sniffed MIME type
	Type      string  `json:"type"`
	Size      int64   `json:"size"`
	CreatedAt int64   `gorm:"not null" json:"created_at"` // All are unix second timestamps
	ExpiresAt *int64  `json:"expires_at,omitzero"`
}

// ToMedia converts the row into the shape served to clients.
func (f *File) ToMedia() medialib.MediaFile {
	m := medialib.MediaFile{
		ID:        f.ID,
		Name:      f.Name,
		Type:      medialib.MediaType(f.Type),
		MIME:      f.Format,
		Size:      f.Size,
		Location:  medialib.Authoritative(),
		ObjectKey: f.ObjectKey,
		FolderID:  f.FolderID,
		ProjectID: f.ProjectID,
		CreatedAt: time.Unix(f.CreatedAt, 0).UTC(),
	}

	if f.ExpiresAt != nil {
		t := time.Unix(*f.ExpiresAt, 0).UTC()
		m.ExpiresAt = &t
	}

	return m
}
