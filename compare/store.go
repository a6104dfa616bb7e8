package compare

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Schema creates the comparison_requests table.
const Schema = `
CREATE TABLE IF NOT EXISTS comparison_requests (
	id            TEXT PRIMARY KEY,
	source_repo   TEXT NOT NULL,
	target_repo   TEXT NOT NULL,
	source_branch TEXT NOT NULL,
	target_branch TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);
`

// Request is a persisted comparison request: the owner every snapshot
// belongs to. Repo paths are relative to the service's repo root.
type Request struct {
	ID           string    `json:"id"`
	SourceRepo   string    `json:"source_repo"`
	TargetRepo   string    `json:"target_repo"`
	SourceBranch string    `json:"source_branch"`
	TargetBranch string    `json:"target_branch"`
	CreatedAt    time.Time `json:"created_at"`
}

type requestStore struct {
	db *sql.DB
}

func (st *requestStore) init(ctx context.Context) error {
	_, err := st.db.ExecContext(ctx, Schema)
	return err
}

func (st *requestStore) insert(ctx context.Context, r *Request) error {
	r.CreatedAt = time.Now().UTC()
	_, err := st.db.ExecContext(ctx, `
		INSERT INTO comparison_requests (id, source_repo, target_repo, source_branch, target_branch, created_at)
		VALUES (?,?,?,?,?,?)`,
		r.ID, r.SourceRepo, r.TargetRepo, r.SourceBranch, r.TargetBranch, r.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("compare: insert request: %w", err)
	}
	return nil
}

func (st *requestStore) get(ctx context.Context, id string) (*Request, error) {
	row := st.db.QueryRowContext(ctx, `
		SELECT id, source_repo, target_repo, source_branch, target_branch, created_at
		FROM comparison_requests WHERE id = ?`, id)

	var (
		r       Request
		created int64
	)
	err := row.Scan(&r.ID, &r.SourceRepo, &r.TargetRepo, &r.SourceBranch, &r.TargetBranch, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("compare: get request: %w", err)
	}
	r.CreatedAt = time.Unix(created, 0).UTC()
	return &r, nil
}

func (st *requestStore) list(ctx context.Context) ([]Request, error) {
	rows, err := st.db.QueryContext(ctx, `
		SELECT id, source_repo, target_repo, source_branch, target_branch, created_at
		FROM comparison_requests ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("compare: list requests: %w", err)
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		var (
			r       Request
			created int64
		)
		if err := rows.Scan(&r.ID, &r.SourceRepo, &r.TargetRepo, &r.SourceBranch, &r.TargetBranch, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (st *requestStore) delete(ctx context.Context, id string) (bool, error) {
	res, err := st.db.ExecContext(ctx, `DELETE FROM comparison_requests WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("compare: delete request: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
