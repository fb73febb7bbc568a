package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAppendAndList(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "history"))
	require.NoError(t, err)

	older := NewReport()
	older.StartedAt = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	older.Files = []FileOutcome{
		{FileName: "a.pdf", State: "completed_success", Message: "decisions submitted"},
		{FileName: "b.pdf", State: "completed_error", Message: "upload failed"},
	}
	require.NoError(t, store.Append(older))

	newer := NewReport()
	newer.StartedAt = time.Date(2026, 2, 20, 14, 30, 0, 0, time.UTC)
	newer.Files = []FileOutcome{
		{FileName: "c.pdf", State: "completed_success", Message: "processed with no courses to review"},
	}
	require.NoError(t, store.Append(newer))

	reports, err := store.List()
	require.NoError(t, err)
	require.Len(t, reports, 2)

	// Most recent first.
	assert.Equal(t, newer.ID, reports[0].ID)
	assert.Equal(t, older.ID, reports[1].ID)

	assert.Equal(t, 1, reports[1].Succeeded())
	require.Len(t, reports[1].Files, 2)
	assert.Equal(t, "upload failed", reports[1].Files[1].Message)
}

func TestStoreLatest(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, ok, err := store.Latest()
	require.NoError(t, err)
	assert.False(t, ok)

	r := NewReport()
	r.Files = []FileOutcome{{FileName: "a.pdf", State: "completed_success"}}
	require.NoError(t, store.Append(r))

	latest, ok, err := store.Latest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, r.ID, latest.ID)
}

func TestStoreListSkipsCorruptReports(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	r := NewReport()
	require.NoError(t, store.Append(r))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0-corrupt.batch"), []byte("not msgpack"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	reports, err := store.List()
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, r.ID, reports[0].ID)
}

func TestAppendFillsMissingFields(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Append(BatchReport{StartedAt: time.Now().UTC()}))

	reports, err := store.List()
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.NotEmpty(t, reports[0].ID)
	assert.False(t, reports[0].FinishedAt.IsZero())
}
