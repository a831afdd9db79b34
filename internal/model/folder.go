package model

// Folder only stores its parent. Paths are recomputed from the parent chain
// whenever the tree is read, so renames never have to touch descendants.
type Folder struct {
	ID        string  `gorm:"primaryKey"`
	UserID    string  `gorm:"index;not null"`
	ProjectID string  `gorm:"index;not null"`
	ParentID  *string `gorm:"index"`
	Name      string  `gorm:"not null"`
	CreatedAt int64   `gorm:"not null"`
}
