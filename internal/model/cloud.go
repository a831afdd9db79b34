package model

// CloudConnection links a user to one third-party provider. A user has at
// most one connection per provider.
type CloudConnection struct {
	ID          string      `gorm:"primaryKey"`
	UserID      string      `gorm:"uniqueIndex:idx_user_provider;not null"`
	Provider    string      `gorm:"uniqueIndex:idx_user_provider;not null"`
	Credentials Credentials `gorm:"type:text"`
	ConnectedAt int64       `gorm:"not null"`
}

// UploadGrant remembers an issued object key until the client registers it
// or the grant expires.
type UploadGrant struct {
	ObjectKey string  `gorm:"primaryKey"`
	UserID    string  `gorm:"index;not null"`
	ProjectID string  `gorm:"not null"`
	FolderID  *string
	Name      string
	MIME      string
	Size      int64
	ExpiresAt int64 `gorm:"index;not null"`
}
