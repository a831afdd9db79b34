package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	urlsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_library_urls_issued_total",
		Help: "Access URLs exchanged for object keys",
	})

	grantsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_library_upload_grants_total",
		Help: "Upload grants issued",
	})

	uploadsRegistered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "media_library_uploads_registered_total",
		Help: "Upload registrations by result",
	}, []string{"result"})

	syncedItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "media_library_synced_items_total",
		Help: "Files pushed to cloud providers by provider and result",
	}, []string{"provider", "result"})
)
