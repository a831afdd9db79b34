// Package app builds the HTTP API of the media library
package app

import (
	"context"
	"fmt"
	"time"

	"filmforge/media-library/app/cloud"
	"filmforge/media-library/app/file"
	"filmforge/media-library/app/folder"
	"filmforge/media-library/app/root"
	"filmforge/media-library/app/storage"
	"filmforge/media-library/app/upload"
	"filmforge/media-library/aws"
	"filmforge/media-library/cloudflare"
	"filmforge/media-library/db"
	"filmforge/media-library/internal"
	providers "filmforge/media-library/internal/cloud"
	"filmforge/media-library/internal/service"
	"filmforge/media-library/pkg/medialib"
	"filmforge/media-library/pkg/middleware"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	v "github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
)

// API bodies are small JSON documents, media goes straight to the bucket
const maxBodySize = 1 << 20

var store = persist.NewMemoryStore(time.Minute)

// NewRouter connects to the database and the bucket configured through
// viper, starts the background workers and returns the engine.
func NewRouter(ctx context.Context) (*gin.Engine, error) {
	database, err := db.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}

	s3, err := aws.NewS3(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 client, %w", err)
	}

	registry := providers.NewRegistry()
	registry.Register(medialib.ProviderR2, cloudflare.NewR2)
	registry.Register(medialib.ProviderGoogleDrive, providers.NewDriveFactory(
		v.GetString("cloud.google_drive.client_id"),
		v.GetString("cloud.google_drive.client_secret"),
	))

	d := NewDeps(database, s3, registry)

	d.JobQueue.StartWorkerPool()
	go func() {
		<-ctx.Done()
		d.JobQueue.Close()
	}()

	service.StartCleanup(ctx, v.GetDuration("cleanup.interval"), database, s3)

	return Routes(ctx, d, []byte(v.GetString("jwt.secret")), v.GetStringSlice("host.cors")), nil
}

// NewDeps wires the services on top of a database, a bucket and the
// registered cloud providers. The job queue is not started.
func NewDeps(database *gorm.DB, objects service.ObjectStore, registry *providers.Registry) *internal.Deps {
	catalog := service.NewCatalog(database, objects, v.GetInt64("storage.max_usage"))
	conns := service.NewConnections(database, registry)
	queue := service.NewJobQueue(v.GetInt("sync.workers"), v.GetInt("sync.queue_size"))

	return &internal.Deps{
		DB:      database,
		Store:   objects,
		Catalog: catalog,
		Uploads: service.NewUploads(database, objects, catalog, service.UploadLimits{
			MaxSize:       v.GetInt64("upload.max_size"),
			AllowedTypes:  v.GetStringSlice("upload.allowed_types"),
			GrantLifetime: v.GetDuration("upload.grant_lifetime"),
		}),
		URLs:        service.NewURLs(database, objects, v.GetDuration("storage.url_lifetime")),
		Connections: conns,
		Registry:    registry,
		Sync:        service.NewSync(catalog, objects, conns, queue),
		JobQueue:    queue,
	}
}

// Routes registers every endpoint on a new engine. Authenticated routes are
// rate limited per user when host.rate_limit is set.
func Routes(ctx context.Context, d *internal.Deps, secret []byte, origins []string) *gin.Engine {
	router := gin.New()

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true
	// Cloud file ids may contain escaped slashes
	router.UseRawPath = true

	jwt := middleware.NewJWTMiddleware(secret)

	// GET /metrics		-> Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	m := router.Group("/api")
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		m.HEAD("/heartbeat", root.Heartbeat)
	}

	api := m.Group("", middleware.BodySizeLimiter(maxBodySize), jwt)
	if rps := v.GetFloat64("host.rate_limit"); rps > 0 {
		limiter := middleware.NewRateLimiter(ctx, middleware.RateLimiterConfig{
			RequestsPerSecond: rps,
			Burst:             v.GetInt("host.rate_burst"),
		})
		api.Use(limiter.Middleware())
	}

	p := api.Group("/projects/:project")
	{
		// GET /api/projects/:project/files		-> Lists files, optionally of one folder
		p.GET("/files", func(c *gin.Context) { file.FileList(c, d) })

		// POST /api/projects/:project/files		-> Registers an uploaded object
		p.POST("/files", func(c *gin.Context) { file.FileRegister(c, d) })

		// POST /api/projects/:project/uploads		-> Issues an upload grant
		p.POST("/uploads", func(c *gin.Context) { upload.UploadGrant(c, d) })

		// GET /api/projects/:project/folders		-> Returns the folder tree
		p.GET("/folders", func(c *gin.Context) { folder.FolderTree(c, d) })

		// POST /api/projects/:project/folders		-> Creates a folder
		p.POST("/folders", func(c *gin.Context) { folder.FolderCreate(c, d) })

		// PATCH /api/projects/:project/folders/:id	-> Renames a folder
		p.PATCH("/folders/:id", func(c *gin.Context) { folder.FolderRename(c, d) })

		// DELETE /api/projects/:project/folders/:id	-> Deletes an empty folder
		p.DELETE("/folders/:id", func(c *gin.Context) { folder.FolderDelete(c, d) })

		// POST /api/projects/:project/sync		-> Pushes files to a cloud provider
		p.POST("/sync", func(c *gin.Context) { cloud.Sync(c, d) })
	}

	f := api.Group("/files")
	{
		// PATCH /api/files/:id		-> Renames or moves a file
		f.PATCH("/:id", func(c *gin.Context) { file.FileEdit(c, d) })

		// DELETE /api/files/:id	-> Deletes a file and its object
		f.DELETE("/:id", func(c *gin.Context) { file.FileDelete(c, d) })
	}

	s := api.Group("/storage")
	{
		// POST /api/storage/urls	-> Exchanges a key for an access URL
		s.POST("/urls", func(c *gin.Context) { storage.URLExchange(c, d) })

		// POST /api/storage/urls/bulk	-> Exchanges many keys at once
		s.POST("/urls/bulk", func(c *gin.Context) { storage.URLExchangeBulk(c, d) })

		// GET /api/storage/quota	-> Returns used and total storage
		s.GET("/quota", func(c *gin.Context) { storage.Quota(c, d) })
	}

	cl := api.Group("/cloud")
	{
		// GET /api/cloud/providers			-> Lists providers that can be linked
		cl.GET("/providers", cacheFor(5*60), func(c *gin.Context) { cloud.Providers(c, d) })

		// GET /api/cloud/connections			-> Lists linked providers
		cl.GET("/connections", func(c *gin.Context) { cloud.Connections(c, d) })

		// PUT /api/cloud/connections/:provider		-> Links a provider
		cl.PUT("/connections/:provider", func(c *gin.Context) { cloud.Connect(c, d) })

		// DELETE /api/cloud/connections/:provider	-> Unlinks a provider
		cl.DELETE("/connections/:provider", func(c *gin.Context) { cloud.Disconnect(c, d) })

		// GET /api/cloud/:provider/files		-> Lists a provider folder
		cl.GET("/:provider/files", func(c *gin.Context) { cloud.Files(c, d) })

		// GET /api/cloud/:provider/files/:id/url	-> Returns a fresh link to a cloud file
		cl.GET("/:provider/files/:id/url", func(c *gin.Context) { cloud.FileURL(c, d) })
	}

	return router
}

func cacheFor(sec int) gin.HandlerFunc {
	return cache.CacheByRequestURI(store, time.Second*time.Duration(sec))
}
