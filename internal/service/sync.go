package service

import (
	"context"
	"fmt"

	"filmforge/media-library/internal/cloud"
	"filmforge/media-library/internal/model"
	"filmforge/media-library/pkg/medialib"

	"go.uber.org/zap"
)

// Sync pushes authoritative files into a linked provider. Each file is
// streamed from the bucket straight into the provider on a queue worker
// and lands in the well-known folder of its media type.
type Sync struct {
	catalog *Catalog
	store   ObjectStore
	conns   *Connections
	queue   *JobQueue
}

func NewSync(catalog *Catalog, store ObjectStore, conns *Connections, queue *JobQueue) *Sync {
	return &Sync{
		catalog: catalog,
		store:   store,
		conns:   conns,
		queue:   queue,
	}
}

func (s *Sync) Run(ctx context.Context, userID, project string, req medialib.SyncRequest) (*medialib.SyncReport, error) {
	if !req.Provider.Valid() {
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidRequest, req.Provider)
	}

	provider, err := s.conns.Open(ctx, userID, req.Provider)
	if err != nil {
		return nil, err
	}

	files, err := s.catalog.FilesForSync(ctx, userID, project, req.FileID, req.FolderID)
	if err != nil {
		return nil, err
	}

	report := &medialib.SyncReport{Provider: req.Provider}

	fail := func(f model.File, err error) {
		report.Failed++
		if report.FirstError == "" {
			report.FirstError = fmt.Sprintf("%s: %v", f.Name, err)
		}
		syncedItems.WithLabelValues(string(req.Provider), "error").Inc()
	}

	jobs := make([]*Job, len(files))
	for i, f := range files {
		job := NewJob(ctx, f.ID, userID, func(ctx context.Context) error {
			return s.push(ctx, provider, f)
		})

		if err := s.queue.Enqueue(ctx, job); err != nil {
			// Every later file would fail the same way
			for _, rest := range files[i:] {
				fail(rest, err)
			}
			files = files[:i]
			break
		}

		jobs[i] = job
	}

	for i, f := range files {
		select {
		case err := <-jobs[i].Done:
			if err != nil {
				fail(f, err)
				continue
			}

			report.Succeeded++
			syncedItems.WithLabelValues(string(req.Provider), "ok").Inc()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	zap.L().Info("Sync finished",
		zap.String("userID", userID),
		zap.String("provider", string(req.Provider)),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed))

	return report, nil
}

func (s *Sync) push(ctx context.Context, provider cloud.Provider, f model.File) error {
	body, size, err := s.store.Open(ctx, f.ObjectKey)
	if err != nil {
		return err
	}
	defer body.Close()

	_, err = provider.Upload(ctx, medialib.WellKnownFolder(medialib.MediaType(f.Type)), cloud.Object{
		Name: f.Name,
		MIME: f.Format,
		Size: size,
		Body: body,
	})

	return err
}
