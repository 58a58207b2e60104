package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/docflow/internal/core/domain"
)

// StateRepository stores each DocumentState as one JSONB row guarded by a
// version column.
type StateRepository struct {
	db *sql.DB
}

func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *StateRepository) Create(ctx context.Context, state *domain.DocumentState) error {
	state.Version = 1
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO document_states (
	id, workflow_id, version, status, document_type, filename, review_due_at, state, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		state.DocumentID, state.WorkflowID, state.Version, string(state.Status), nullableString(state.DocumentType),
		state.Source.Filename, reviewDueAt(state), raw, state.CreatedAt, state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document state: %w", err)
	}
	return nil
}

func (r *StateRepository) Get(ctx context.Context, documentID string) (*domain.DocumentState, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT state, version
FROM document_states
WHERE id = $1
`, documentID)

	var (
		raw     []byte
		version int64
	)
	if err := row.Scan(&raw, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document state", fmt.Errorf("id=%s", documentID))
		}
		return nil, fmt.Errorf("scan document state: %w", err)
	}
	state, err := decodeState(raw)
	if err != nil {
		return nil, err
	}
	state.Version = version
	return state, nil
}

// Save writes state only while the row is still at expectedVersion and not
// terminal. A lost race is reported as ErrVersionConflict.
func (r *StateRepository) Save(ctx context.Context, state *domain.DocumentState, expectedVersion int64) error {
	next := expectedVersion + 1
	snapshot := *state
	snapshot.Version = next
	raw, err := json.Marshal(&snapshot)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE document_states
SET version = $3, status = $4, document_type = $5, review_due_at = $6, state = $7, updated_at = $8
WHERE id = $1 AND version = $2 AND status NOT IN ('completed', 'failed')
`,
		state.DocumentID, expectedVersion, next, string(state.Status), nullableString(state.DocumentType),
		reviewDueAt(state), raw, state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update document state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document state rows affected: %w", err)
	}
	if affected == 0 {
		return r.explainMissedWrite(ctx, state.DocumentID, expectedVersion)
	}
	state.Version = next
	return nil
}

func (r *StateRepository) explainMissedWrite(ctx context.Context, documentID string, expectedVersion int64) error {
	row := r.db.QueryRowContext(ctx, `
SELECT version, status
FROM document_states
WHERE id = $1
`, documentID)

	var (
		version int64
		status  string
	)
	if err := row.Scan(&version, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.WrapError(domain.ErrDocumentNotFound, "save document state", fmt.Errorf("id=%s", documentID))
		}
		return fmt.Errorf("scan document version: %w", err)
	}
	if version != expectedVersion {
		return domain.WrapError(domain.ErrVersionConflict, "save document state",
			fmt.Errorf("id=%s stored=%d expected=%d", documentID, version, expectedVersion))
	}
	return domain.WrapError(domain.ErrTerminalState, "save document state", fmt.Errorf("id=%s status=%s", documentID, status))
}

func (r *StateRepository) ListByStatus(ctx context.Context, status domain.DocumentStatus, limit int) ([]domain.DocumentSummary, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT state, version
FROM document_states
WHERE status = $1
ORDER BY updated_at ASC
LIMIT $2
`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list document states: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DocumentSummary, 0, limit)
	for rows.Next() {
		var (
			raw     []byte
			version int64
		)
		if err := rows.Scan(&raw, &version); err != nil {
			return nil, fmt.Errorf("scan document state: %w", err)
		}
		state, err := decodeState(raw)
		if err != nil {
			return nil, err
		}
		state.Version = version
		out = append(out, state.Summary())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document states: %w", err)
	}
	return out, nil
}

func (r *StateRepository) ListStale(ctx context.Context, statuses []domain.DocumentStatus, updatedBefore time.Time, limit int) ([]string, error) {
	if limit <= 0 || len(statuses) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id
FROM document_states
WHERE status = ANY(string_to_array($1, ',')) AND updated_at < $2
ORDER BY updated_at ASC
LIMIT $3
`, strings.Join(names, ","), updatedBefore.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list stale documents: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stale document: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale documents: %w", err)
	}
	return ids, nil
}

func decodeState(raw []byte) (*domain.DocumentState, error) {
	var state domain.DocumentState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("unmarshal document state: %w", err)
	}
	return &state, nil
}

func reviewDueAt(state *domain.DocumentState) interface{} {
	if state.HumanReview == nil || state.HumanReview.Resolved() {
		return nil
	}
	return state.HumanReview.DueDate
}

func nullableString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
