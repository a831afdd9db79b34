package model

// Stats tracks the authoritative store usage of a user, in bytes.
type Stats struct {
	UserID        string `gorm:"primaryKey" json:"-"`
	MaxStorage    int64  `json:"maxStorage"`
	UsedStorage   int64  `json:"usedStorage"`
	UploadedFiles int    `json:"uploadedFiles"`
}
