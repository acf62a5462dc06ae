package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSweep(id, fp string, finished time.Time) Sweep {
	return Sweep{
		ID:             id,
		Fingerprint:    fp,
		StartedAt:      finished.Add(-time.Second),
		FinishedAt:     finished,
		Runs:           2,
		Thresholds:     []float64{0.25, 0.5},
		SeedBase:       1000,
		Workers:        4,
		OutDir:         "/tmp/_out",
		OverviewSHA256: "abc",
		Digests: []RunDigest{
			{RunID: 1, Artifact: "multi.csv", SHA256: "h1"},
			{RunID: 2, Artifact: "multi.csv", SHA256: "h2"},
		},
	}
}

func TestOpen_CreatesSchema(t *testing.T) {
	s := openTestStore(t)

	version, err := getSchemaVersion(context.Background(), s.db)
	require.NoError(t, err)
	require.Equal(t, SchemaVersion, version)
	require.NoError(t, ValidateIntegrity(context.Background(), s.db))
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, sampleSweep("a", "fp", now)))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "fp", got.Fingerprint)
}

func TestInitSchema_RejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec(`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`, SchemaVersion+1)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	require.Error(t, InitSchema(context.Background(), db))
}

func TestRecordGet_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	in := sampleSweep("sweep-1", "fp1", now)
	in.ArchivePath = "/tmp/_out.zip"
	require.NoError(t, s.Record(ctx, in))

	got, err := s.Get(ctx, "sweep-1")
	require.NoError(t, err)
	require.Equal(t, in.Thresholds, got.Thresholds)
	require.Equal(t, in.Digests, got.Digests)
	require.Equal(t, in.ArchivePath, got.ArchivePath)
	require.True(t, in.FinishedAt.Equal(got.FinishedAt))
	require.Equal(t, in.SeedBase, got.SeedBase)
}

func TestRecord_RequiresID(t *testing.T) {
	s := openTestStore(t)
	require.Error(t, s.Record(context.Background(), Sweep{}))
}

func TestRecord_EmptyThresholds(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sw := sampleSweep("empty", "fp", time.Now())
	sw.Thresholds = nil
	sw.Digests = nil
	require.NoError(t, s.Record(ctx, sw))

	got, err := s.Get(ctx, "empty")
	require.NoError(t, err)
	require.Empty(t, got.Thresholds)
	require.Empty(t, got.Digests)
	require.Empty(t, got.ArchivePath)
}

func TestGet_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestList_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, s.Record(ctx, sampleSweep(id, "fp", base.Add(time.Duration(i)*time.Hour))))
	}

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, []string{"new", "mid", "old"}, []string{all[0].ID, all[1].ID, all[2].ID})
	require.Empty(t, all[0].Digests, "List does not load digests")

	limited, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
}

func TestLatestByFingerprint(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	got, err := s.LatestByFingerprint(ctx, "fp")
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, s.Record(ctx, sampleSweep("a", "fp", base)))
	require.NoError(t, s.Record(ctx, sampleSweep("b", "fp", base.Add(time.Minute))))
	require.NoError(t, s.Record(ctx, sampleSweep("c", "other", base.Add(time.Hour))))

	got, err = s.LatestByFingerprint(ctx, "fp")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "b", got.ID)
	require.Len(t, got.Digests, 2)
}

func TestLatestByFingerprint_SubSecondOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 0, 0, 5, 0, time.UTC)

	// Recorded out of order; the whole-second timestamp is the older one.
	require.NoError(t, s.Record(ctx, sampleSweep("newer", "fp", base.Add(500*time.Millisecond))))
	require.NoError(t, s.Record(ctx, sampleSweep("older", "fp", base)))
	require.NoError(t, s.Record(ctx, sampleSweep("middle", "fp", base.Add(120*time.Millisecond))))
	require.NoError(t, s.Record(ctx, sampleSweep("early", "fp", base.Add(100*time.Millisecond))))

	got, err := s.LatestByFingerprint(ctx, "fp")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "newer", got.ID)
	require.True(t, got.FinishedAt.Equal(base.Add(500*time.Millisecond)))

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	ids := make([]string, len(all))
	for i, sw := range all {
		ids[i] = sw.ID
	}
	require.Equal(t, []string{"newer", "middle", "early", "older"}, ids)
}

func TestDrift(t *testing.T) {
	prev := &Sweep{Digests: []RunDigest{
		{RunID: 1, Artifact: "multi.csv", SHA256: "a"},
		{RunID: 2, Artifact: "multi.csv", SHA256: "b"},
		{RunID: 3, Artifact: "multi.csv", SHA256: "c"},
	}}
	cur := &Sweep{Digests: []RunDigest{
		{RunID: 1, Artifact: "multi.csv", SHA256: "a"},
		{RunID: 2, Artifact: "multi.csv", SHA256: "changed"},
		{RunID: 3, Artifact: "multi.csv", SHA256: "also-changed"},
		{RunID: 4, Artifact: "multi.csv", SHA256: "new"},
	}}

	require.Equal(t, []int{2, 3}, Drift(prev, cur))
	require.Empty(t, Drift(prev, prev))
	require.Nil(t, Drift(nil, cur))
}
