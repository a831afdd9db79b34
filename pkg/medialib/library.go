package medialib

import "time"

type Options struct {
	URLLifetime time.Duration
	ListingTTL  time.Duration
	Notifier    Notifier
	PrefsPath   string
	Clock       func() time.Time
	Upload      []UploaderOption
}

// Library wires the storage components around one Backend.
type Library struct {
	Backend     Backend
	Resolver    *Resolver
	Catalog     *Catalog
	Connections *Connections
	Tree        *TreeBuilder
	Uploads     *Uploader
	Bulk        *BulkExecutor
	Sync        *SyncCoordinator
	Prefs       *Preferences
}

func New(backend Backend, o Options) (*Library, error) {
	notifier := o.Notifier
	if notifier == nil {
		notifier = Discard
	}

	prefs, err := LoadPreferences(o.PrefsPath)
	if err != nil {
		return nil, err
	}

	var ropts []ResolverOption
	if o.URLLifetime > 0 {
		ropts = append(ropts, WithURLLifetime(o.URLLifetime))
	}
	if o.Clock != nil {
		ropts = append(ropts, WithClock(o.Clock))
	}

	resolver := NewResolver(backend, ropts...)
	catalog := NewCatalog(backend, o.ListingTTL)
	conns := NewConnections(backend)

	uopts := append([]UploaderOption{WithUploadNotifier(notifier)}, o.Upload...)

	return &Library{
		Backend:     backend,
		Resolver:    resolver,
		Catalog:     catalog,
		Connections: conns,
		Tree:        NewTreeBuilder(catalog, conns),
		Uploads:     NewUploader(backend, catalog, resolver, uopts...),
		Bulk:        NewBulkExecutor(backend, catalog, resolver, notifier),
		Sync:        NewSyncCoordinator(backend, conns, notifier),
		Prefs:       prefs,
	}, nil
}

func (l *Library) Close() error {
	return l.Resolver.Close()
}
