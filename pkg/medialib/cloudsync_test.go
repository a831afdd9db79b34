package medialib

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncWithoutConnectionMakesNoCall(t *testing.T) {
	b := newFakeBackend()
	conns := NewConnections(b)
	conns.Update([]CloudConnection{
		{Provider: ProviderGoogleDrive, Connected: false},
		{Provider: ProviderR2, Connected: false},
	})
	rec := &recorder{}
	s := NewSyncCoordinator(b, conns, rec)

	_, err := s.SyncFolder(context.Background(), "p1", "shots")
	assert.ErrorIs(t, err, ErrNoCloudConnection)

	_, err = s.SyncFile(context.Background(), "p1", "f1")
	assert.ErrorIs(t, err, ErrNoCloudConnection)

	assert.Empty(t, b.Calls())

	got := rec.All()
	require.Len(t, got, 2)
	assert.Equal(t, LevelWarning, got[0].Level)
	assert.Contains(t, got[0].Message, "connect a provider first")
}

func TestSyncTargetsFirstConnectedProvider(t *testing.T) {
	b := newFakeBackend()
	b.syncReport = &SyncReport{Provider: ProviderR2, Succeeded: 4, Failed: 1, FirstError: "quota exceeded on provider"}
	conns := NewConnections(b)
	conns.Update([]CloudConnection{
		{Provider: ProviderGoogleDrive, Connected: false},
		{Provider: ProviderR2, Connected: true},
	})
	rec := &recorder{}
	s := NewSyncCoordinator(b, conns, rec)

	report, err := s.SyncFolder(context.Background(), "p1", "shots")
	require.NoError(t, err)
	assert.Equal(t, 4, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	require.Len(t, b.syncReqs, 1)
	req := b.syncReqs[0]
	assert.Equal(t, ProviderR2, req.Provider)
	require.NotNil(t, req.FolderID)
	assert.Equal(t, "shots", *req.FolderID)
	assert.Nil(t, req.FileID)

	got := rec.All()
	require.Len(t, got, 1)
	assert.Equal(t, LevelWarning, got[0].Level)
	assert.Equal(t, "Synced 4 of 5 files to r2, first error: quota exceeded on provider", got[0].Message)
}

func TestSyncFileSendsFileID(t *testing.T) {
	b := newFakeBackend()
	b.conns = []CloudConnection{{Provider: ProviderGoogleDrive, Connected: true}}
	conns := NewConnections(b)
	_, err := conns.Refresh(context.Background())
	require.NoError(t, err)

	s := NewSyncCoordinator(b, conns, nil)

	report, err := s.SyncFile(context.Background(), "p1", "f1")
	require.NoError(t, err)
	assert.Equal(t, "Synced 1 file to google_drive", report.Message())

	require.Len(t, b.syncReqs, 1)
	assert.Equal(t, "f1", *b.syncReqs[0].FileID)
}

func TestSyncReportMessage(t *testing.T) {
	assert.Equal(t, "Nothing to sync to r2", SyncReport{Provider: ProviderR2}.Message())
	assert.Equal(t, "Failed to sync 2 files to r2: denied",
		SyncReport{Provider: ProviderR2, Failed: 2, FirstError: "denied"}.Message())
}
