package internal

import (
	"filmforge/media-library/internal/cloud"
	"filmforge/media-library/internal/service"

	"gorm.io/gorm"
)

type Deps struct {
	DB          *gorm.DB
	Store       service.ObjectStore
	Catalog     *service.Catalog
	Uploads     *service.Uploads
	URLs        *service.URLs
	Connections *service.Connections
	Registry    *cloud.Registry
	Sync        *service.Sync
	JobQueue    *service.JobQueue
}
