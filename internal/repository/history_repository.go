package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/domain"
)

// PostgresHistoryStore reads the append-only import history.
type PostgresHistoryStore struct {
	pool *pgxpool.Pool
}

// NewPostgresHistoryStore creates a new PostgresHistoryStore.
func NewPostgresHistoryStore(pool *pgxpool.Pool) *PostgresHistoryStore {
	return &PostgresHistoryStore{pool: pool}
}

// ListHistory returns history records newest first, narrowed by the
// filter's set fields.
func (r *PostgresHistoryStore) ListHistory(ctx context.Context, filter HistoryFilter) ([]domain.ImportHistory, error) {
	q := sq.Select("id", "job_id", "source_kind", "format",
		"COALESCE(collection_id, '')", "collection_name", "status",
		"endpoints_imported", "folders_created", "implementations_generated",
		"metadata", "created_at").
		From("import_history").
		OrderBy("created_at DESC").
		PlaceholderFormat(sq.Dollar)

	if filter.JobID != "" {
		q = q.Where(sq.Eq{"job_id": filter.JobID})
	}
	if filter.CollectionID != "" {
		q = q.Where(sq.Eq{"collection_id": filter.CollectionID})
	}
	if filter.EndpointID != "" {
		q = q.Where("collection_id IN (SELECT collection_id FROM endpoints WHERE id = ?)", filter.EndpointID)
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, &domain.StoreFailureError{Op: "list import history", Err: err}
	}
	defer rows.Close()

	var records []domain.ImportHistory
	for rows.Next() {
		var rec domain.ImportHistory
		var metadata []byte
		var createdAt time.Time
		if err := rows.Scan(&rec.ID, &rec.JobID, &rec.SourceKind, &rec.Format,
			&rec.CollectionID, &rec.CollectionName, &rec.Status,
			&rec.EndpointsImported, &rec.FoldersCreated, &rec.ImplementationsGenerated,
			&metadata, &createdAt); err != nil {
			return nil, &domain.StoreFailureError{Op: "scan import history", Err: err}
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal history metadata: %w", err)
			}
		}
		rec.CreatedAt = createdAt
		records = append(records, rec)
	}
	return records, rows.Err()
}
