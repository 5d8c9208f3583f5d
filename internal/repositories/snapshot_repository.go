package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"reliefboard/internal/models"
)

const DefaultSnapshotTable = "task_snapshots"

// SnapshotRepository keeps the last good task list in Postgres so a restarted
// gateway has something to show before the task API answers.
type SnapshotRepository interface {
	EnsureSchema(ctx context.Context) error
	Save(ctx context.Context, list models.TaskList) error
	Latest(ctx context.Context) (models.TaskList, time.Time, bool, error)
	Trim(ctx context.Context, keep int) (int64, error)
}

type snapshotRepository struct {
	db    *sql.DB
	table string
}

func NewSnapshotRepository(db *sql.DB, table string) SnapshotRepository {
	if table == "" {
		table = DefaultSnapshotTable
	}
	return &snapshotRepository{db: db, table: pq.QuoteIdentifier(table)}
}

func (r *snapshotRepository) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         BIGSERIAL PRIMARY KEY,
			payload    JSONB       NOT NULL,
			task_count INTEGER     NOT NULL,
			saved_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, r.table)
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", r.table, err)
	}
	return nil
}

func (r *snapshotRepository) Save(ctx context.Context, list models.TaskList) error {
	payload, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (payload, task_count, saved_at) VALUES ($1, $2, $3)`, r.table)
	_, err = r.db.ExecContext(ctx, query, payload, len(list.Tasks), time.Now().UTC())
	return wrapPQ("save snapshot", err)
}

func (r *snapshotRepository) Latest(ctx context.Context) (models.TaskList, time.Time, bool, error) {
	query := fmt.Sprintf(`SELECT payload, saved_at FROM %s ORDER BY saved_at DESC, id DESC LIMIT 1`, r.table)
	var (
		payload []byte
		savedAt time.Time
	)
	err := r.db.QueryRowContext(ctx, query).Scan(&payload, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TaskList{}, time.Time{}, false, nil
	}
	if err != nil {
		// таблицы ещё нет: считаем, что снимков нет
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "42P01" {
			return models.TaskList{}, time.Time{}, false, nil
		}
		return models.TaskList{}, time.Time{}, false, wrapPQ("load snapshot", err)
	}
	var list models.TaskList
	if err := json.Unmarshal(payload, &list); err != nil {
		return models.TaskList{}, time.Time{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return list, savedAt, true, nil
}

// Trim deletes all but the newest keep snapshots.
func (r *snapshotRepository) Trim(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}
	query := fmt.Sprintf(`
		DELETE FROM %[1]s WHERE id NOT IN (
			SELECT id FROM %[1]s ORDER BY saved_at DESC, id DESC LIMIT $1
		)`, r.table)
	res, err := r.db.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, wrapPQ("trim snapshots", err)
	}
	return res.RowsAffected()
}

func wrapPQ(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%s: %s (%s): %w", op, pqErr.Message, pqErr.Code, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
