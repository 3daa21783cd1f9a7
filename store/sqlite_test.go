package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteSaveAndRecent(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	events := []*Event{
		{ID: "1", Kind: KindIssue, Outcome: OutcomeAllowed, Identity: "alice", ClientIP: "10.0.0.7", DeviceType: "desktop", CreatedAt: base},
		{ID: "2", Kind: KindValidate, Outcome: OutcomeAllowed, Identity: "alice", ClientIP: "10.0.0.7", CreatedAt: base.Add(time.Minute)},
		{ID: "3", Kind: KindValidate, Outcome: OutcomeDenied, Reason: "expired", Identity: "alice", ClientIP: "10.0.0.7", Country: "Norway", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "4", Kind: KindIssue, Outcome: OutcomeDenied, Reason: "ip_denied", Identity: "bob", ClientIP: "192.168.0.1", CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, e := range events {
		require.NoError(t, s.Save(ctx, e))
	}

	alice, err := s.Recent(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, alice, 3)
	assert.Equal(t, "3", alice[0].ID)
	assert.Equal(t, "expired", alice[0].Reason)
	assert.Equal(t, "Norway", alice[0].Country)
	assert.True(t, alice[0].CreatedAt.Equal(base.Add(2*time.Minute)))
	assert.Equal(t, "1", alice[2].ID)
	assert.Equal(t, "desktop", alice[2].DeviceType)

	limited, err := s.Recent(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "4", limited[0].ID)

	all, err := s.Recent(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestSQLiteRejectsDuplicateID(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	e := &Event{ID: "dup", Kind: KindIssue, Outcome: OutcomeAllowed, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.Save(ctx, e))
	assert.Error(t, s.Save(ctx, e))
}

func TestOpenEventStore(t *testing.T) {
	s, err := OpenEventStore("")
	assert.NoError(t, err)
	assert.Nil(t, s)

	s, err = OpenEventStore("sqlite:" + filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.NoError(t, s.Close())

	_, err = OpenEventStore("cassandra:somewhere")
	assert.Error(t, err)

	_, err = OpenEventStore("sqlite")
	assert.Error(t, err)
}
