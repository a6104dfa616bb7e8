package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Schema creates the snapshots table. Field names are a durable contract:
// other tooling reads the rows directly.
const Schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id              TEXT PRIMARY KEY,
	request_id      TEXT NOT NULL,
	state           TEXT NOT NULL DEFAULT 'empty',
	encoded_commits BLOB,
	encoded_diffs   BLOB,
	real_size       TEXT,
	base_commit_sha TEXT,
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_request ON snapshots (request_id, created_at);
`

// Store persists snapshot rows. It provides no serialization of concurrent
// collect runs for the same owner; that is the calling layer's concern.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over db. Call Init once at startup.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Init creates the snapshots table if it doesn't exist.
func (st *Store) Init(ctx context.Context) error {
	_, err := st.db.ExecContext(ctx, Schema)
	return err
}

// Insert writes a freshly created snapshot row.
func (st *Store) Insert(ctx context.Context, s *Snapshot) error {
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	_, err := st.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, request_id, state, encoded_commits, encoded_diffs,
			real_size, base_commit_sha, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		s.ID, s.RequestID, string(s.State), s.EncodedCommits, s.EncodedDiffs,
		nullable(s.RealSize), nullable(s.BaseCommitSHA), now.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("snapshot: insert %s: %w", s.ID, err)
	}
	return nil
}

// SaveCommits persists the phase-A fields only.
func (st *Store) SaveCommits(ctx context.Context, s *Snapshot) error {
	s.UpdatedAt = time.Now().UTC()
	_, err := st.db.ExecContext(ctx,
		`UPDATE snapshots SET encoded_commits = ?, updated_at = ? WHERE id = ?`,
		s.EncodedCommits, s.UpdatedAt.Unix(), s.ID)
	if err != nil {
		return fmt.Errorf("snapshot: save commits %s: %w", s.ID, err)
	}
	return nil
}

// SaveDiffs persists the phase-B fields only.
func (st *Store) SaveDiffs(ctx context.Context, s *Snapshot) error {
	s.UpdatedAt = time.Now().UTC()
	_, err := st.db.ExecContext(ctx, `
		UPDATE snapshots
		SET state = ?, encoded_diffs = ?, real_size = ?, base_commit_sha = ?, updated_at = ?
		WHERE id = ?`,
		string(s.State), s.EncodedDiffs, nullable(s.RealSize), nullable(s.BaseCommitSHA),
		s.UpdatedAt.Unix(), s.ID)
	if err != nil {
		return fmt.Errorf("snapshot: save diffs %s: %w", s.ID, err)
	}
	return nil
}

// Get loads a snapshot by ID, or nil when no row exists. The returned
// snapshot is unbound; call Bind before Collect or the live views.
func (st *Store) Get(ctx context.Context, id string) (*Snapshot, error) {
	row := st.db.QueryRowContext(ctx, `
		SELECT id, request_id, state, encoded_commits, encoded_diffs,
			real_size, base_commit_sha, created_at, updated_at
		FROM snapshots WHERE id = ?`, id)
	return scanSnapshot(row)
}

// Latest loads the newest snapshot for a request, or nil when none exists.
func (st *Store) Latest(ctx context.Context, requestID string) (*Snapshot, error) {
	row := st.db.QueryRowContext(ctx, `
		SELECT id, request_id, state, encoded_commits, encoded_diffs,
			real_size, base_commit_sha, created_at, updated_at
		FROM snapshots WHERE request_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, requestID)
	return scanSnapshot(row)
}

// DeleteByRequest removes every snapshot owned by a request. Used when the
// owning comparison request is destroyed or superseded.
func (st *Store) DeleteByRequest(ctx context.Context, requestID string) error {
	_, err := st.db.ExecContext(ctx, `DELETE FROM snapshots WHERE request_id = ?`, requestID)
	if err != nil {
		return fmt.Errorf("snapshot: delete by request %s: %w", requestID, err)
	}
	return nil
}

func scanSnapshot(row *sql.Row) (*Snapshot, error) {
	var (
		s                  Snapshot
		state              string
		realSize, baseSHA  sql.NullString
		createdAt, updated int64
	)
	err := row.Scan(&s.ID, &s.RequestID, &state, &s.EncodedCommits, &s.EncodedDiffs,
		&realSize, &baseSHA, &createdAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: scan: %w", err)
	}
	s.State, err = ParseState(state)
	if err != nil {
		return nil, err
	}
	s.RealSize = realSize.String
	s.BaseCommitSHA = baseSHA.String
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	s.UpdatedAt = time.Unix(updated, 0).UTC()
	return &s, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
