// Package history keeps a SQLite ledger of completed sweeps: their
// parameters, overview digest and per-run dataset digests. The ledger lets a
// later sweep with identical parameters detect reproducibility drift.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// ErrNotFound is returned when a sweep id is not in the ledger.
var ErrNotFound = errors.New("sweep not found")

// timeLayout is fixed width so timestamps sort correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Sweep is one ledger row plus its run digests.
type Sweep struct {
	ID             string      `json:"id"`
	Fingerprint    string      `json:"fingerprint"`
	StartedAt      time.Time   `json:"started_at"`
	FinishedAt     time.Time   `json:"finished_at"`
	Runs           int         `json:"runs"`
	Thresholds     []float64   `json:"thresholds"`
	SeedBase       int64       `json:"seed_base"`
	Workers        int         `json:"workers"`
	OutDir         string      `json:"out_dir"`
	OverviewSHA256 string      `json:"overview_sha256"`
	ArchivePath    string      `json:"archive_path,omitempty"`
	Digests        []RunDigest `json:"digests,omitempty"`
}

// RunDigest is the digest of one artifact of one run.
type RunDigest struct {
	RunID    int    `json:"run_id"`
	Artifact string `json:"artifact"`
	SHA256   string `json:"sha256"`
}

// Store is a SQLite-backed sweep ledger. It is safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open opens or creates the ledger at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a sweep and its digests in one transaction.
func (s *Store) Record(ctx context.Context, sw Sweep) error {
	if sw.ID == "" {
		return fmt.Errorf("sweep ID is required")
	}

	thresholds := sw.Thresholds
	if thresholds == nil {
		thresholds = []float64{}
	}
	thrJSON, err := json.Marshal(thresholds)
	if err != nil {
		return fmt.Errorf("failed to encode thresholds: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sweeps (id, fingerprint, started_at, finished_at, runs, thresholds,
			seed_base, workers, out_dir, overview_sha256, archive_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sw.ID, sw.Fingerprint,
		sw.StartedAt.UTC().Format(timeLayout), sw.FinishedAt.UTC().Format(timeLayout),
		sw.Runs, string(thrJSON), sw.SeedBase, sw.Workers, sw.OutDir, sw.OverviewSHA256,
		nullString(sw.ArchivePath))
	if err != nil {
		return fmt.Errorf("failed to insert sweep %s: %w", sw.ID, err)
	}

	for _, d := range sw.Digests {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_digests (sweep_id, run_id, artifact, sha256) VALUES (?, ?, ?, ?)`,
			sw.ID, d.RunID, d.Artifact, d.SHA256); err != nil {
			return fmt.Errorf("failed to insert digest for run %d: %w", d.RunID, err)
		}
	}

	return tx.Commit()
}

// Get returns a sweep with its digests.
func (s *Store) Get(ctx context.Context, id string) (*Sweep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, selectSweep+` WHERE id = ?`, id)
	sw, err := scanSweep(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadDigests(ctx, sw); err != nil {
		return nil, err
	}
	return sw, nil
}

// List returns the most recent sweeps, newest first, without digests.
// A non-positive limit returns all sweeps.
func (s *Store) List(ctx context.Context, limit int) ([]Sweep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := selectSweep + ` ORDER BY finished_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sweeps: %w", err)
	}
	defer rows.Close()

	var sweeps []Sweep
	for rows.Next() {
		sw, err := scanSweep(rows)
		if err != nil {
			return nil, err
		}
		sweeps = append(sweeps, *sw)
	}
	return sweeps, rows.Err()
}

// LatestByFingerprint returns the most recent sweep with the given
// fingerprint, or nil if none exists.
func (s *Store) LatestByFingerprint(ctx context.Context, fingerprint string) (*Sweep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		selectSweep+` WHERE fingerprint = ? ORDER BY finished_at DESC LIMIT 1`, fingerprint)
	sw, err := scanSweep(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadDigests(ctx, sw); err != nil {
		return nil, err
	}
	return sw, nil
}

// Drift returns the run ids whose artifact digests differ between prev and
// cur, in ascending order. Runs present in only one sweep are not compared.
func Drift(prev, cur *Sweep) []int {
	if prev == nil || cur == nil {
		return nil
	}

	type key struct {
		run      int
		artifact string
	}
	before := make(map[key]string, len(prev.Digests))
	for _, d := range prev.Digests {
		before[key{d.RunID, d.Artifact}] = d.SHA256
	}

	seen := make(map[int]bool)
	for _, d := range cur.Digests {
		old, ok := before[key{d.RunID, d.Artifact}]
		if ok && old != d.SHA256 {
			seen[d.RunID] = true
		}
	}

	runs := make([]int, 0, len(seen))
	for id := range seen {
		runs = append(runs, id)
	}
	sort.Ints(runs)
	return runs
}

const selectSweep = `SELECT id, fingerprint, started_at, finished_at, runs, thresholds,
	seed_base, workers, out_dir, overview_sha256, archive_path FROM sweeps`

type scanner interface {
	Scan(dest ...any) error
}

func scanSweep(sc scanner) (*Sweep, error) {
	var (
		sw                Sweep
		started, finished string
		thrJSON           string
		archivePath       sql.NullString
	)
	err := sc.Scan(&sw.ID, &sw.Fingerprint, &started, &finished, &sw.Runs, &thrJSON,
		&sw.SeedBase, &sw.Workers, &sw.OutDir, &sw.OverviewSHA256, &archivePath)
	if err != nil {
		return nil, err
	}

	if sw.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}
	if sw.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return nil, fmt.Errorf("failed to parse finished_at: %w", err)
	}
	if err := json.Unmarshal([]byte(thrJSON), &sw.Thresholds); err != nil {
		return nil, fmt.Errorf("failed to decode thresholds: %w", err)
	}
	sw.ArchivePath = archivePath.String
	return &sw, nil
}

func (s *Store) loadDigests(ctx context.Context, sw *Sweep) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, artifact, sha256 FROM run_digests WHERE sweep_id = ? ORDER BY run_id, artifact`, sw.ID)
	if err != nil {
		return fmt.Errorf("failed to query digests: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d RunDigest
		if err := rows.Scan(&d.RunID, &d.Artifact, &d.SHA256); err != nil {
			return fmt.Errorf("failed to scan digest: %w", err)
		}
		sw.Digests = append(sw.Digests, d)
	}
	return rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
