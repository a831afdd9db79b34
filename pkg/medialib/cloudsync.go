package medialib

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// SyncCoordinator copies authoritative files to the connected cloud
// provider. The authoritative copy is left untouched.
type SyncCoordinator struct {
	backend  Backend
	conns    *Connections
	notifier Notifier
}

func NewSyncCoordinator(backend Backend, conns *Connections, notifier Notifier) *SyncCoordinator {
	if notifier == nil {
		notifier = Discard
	}

	return &SyncCoordinator{backend: backend, conns: conns, notifier: notifier}
}

// SyncFile pushes one file to the active provider.
func (s *SyncCoordinator) SyncFile(ctx context.Context, project, fileID string) (*SyncReport, error) {
	return s.sync(ctx, project, func(p Provider) SyncRequest {
		return SyncRequest{Provider: p, FileID: &fileID}
	})
}

// SyncFolder pushes every file of a folder to the active provider.
func (s *SyncCoordinator) SyncFolder(ctx context.Context, project, folderID string) (*SyncReport, error) {
	return s.sync(ctx, project, func(p Provider) SyncRequest {
		return SyncRequest{Provider: p, FolderID: &folderID}
	})
}

// sync checks the connection snapshot before talking to the service. With
// no connected provider it fails with ErrNoCloudConnection and sends
// nothing.
func (s *SyncCoordinator) sync(ctx context.Context, project string, build func(Provider) SyncRequest) (*SyncReport, error) {
	provider, ok := s.conns.Active()
	if !ok {
		s.notifier.Notify(Notification{Level: LevelWarning, Message: ErrNoCloudConnection.Error(), Err: ErrNoCloudConnection})
		return nil, ErrNoCloudConnection
	}

	report, err := s.backend.Sync(ctx, project, build(provider))
	if err != nil {
		zap.L().Debug("Sync request failed", zap.String("provider", string(provider)), zap.Error(err))

		err = fmt.Errorf("failed to sync to %s, %w", provider, err)
		s.notifier.Notify(Notification{Level: LevelError, Message: "Sync failed", Err: err})
		return nil, err
	}

	level := LevelInfo
	if report.Failed > 0 {
		level = LevelWarning
	}

	s.notifier.Notify(Notification{Level: level, Message: report.Message()})
	return report, nil
}

// Message summarizes the report with the first error as a sample.
func (r SyncReport) Message() string {
	total := r.Succeeded + r.Failed

	switch {
	case total == 0:
		return fmt.Sprintf("Nothing to sync to %s", r.Provider)
	case r.Failed == 0:
		return fmt.Sprintf("Synced %s to %s", plural(r.Succeeded, "file"), r.Provider)
	case r.Succeeded == 0:
		return fmt.Sprintf("Failed to sync %s to %s: %s", plural(r.Failed, "file"), r.Provider, r.FirstError)
	default:
		return fmt.Sprintf("Synced %d of %s to %s, first error: %s", r.Succeeded, plural(total, "file"), r.Provider, r.FirstError)
	}
}
