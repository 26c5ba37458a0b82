package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/domain"
)

// PostgresJobStore implements JobStore using PostgreSQL.
type PostgresJobStore struct {
	pool *pgxpool.Pool
}

// NewPostgresJobStore creates a new PostgresJobStore.
func NewPostgresJobStore(pool *pgxpool.Pool) *PostgresJobStore {
	return &PostgresJobStore{pool: pool}
}

// Create persists a new pending job at version 1.
func (r *PostgresJobStore) Create(ctx context.Context, job *domain.ImportJob) error {
	report, err := marshalReport(job.Report)
	if err != nil {
		return err
	}

	job.Version = 1
	_, err = r.pool.Exec(ctx, `
		INSERT INTO import_jobs (id, source_kind, format, status, principal, payload,
			collection_id, collection_name, endpoints_imported, folders_created,
			implementations_generated, filename, size_bytes, error_message, report,
			retry_count, version, created_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`, job.ID, job.SourceKind, job.Format, job.Status, job.Principal, job.Payload,
		nullable(job.CollectionID), job.CollectionName, job.EndpointsImported, job.FoldersCreated,
		job.ImplementationsGenerated, job.Filename, job.SizeBytes, job.ErrorMessage, report,
		job.RetryCount, job.Version, job.CreatedAt, job.StartedAt, job.CompletedAt)

	if err != nil {
		return &domain.StoreFailureError{Op: "insert import job", Err: err}
	}
	return nil
}

// Get retrieves a job by ID. Returns nil when the id is unknown.
func (r *PostgresJobStore) Get(ctx context.Context, id string) (*domain.ImportJob, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, source_kind, format, status, principal, payload,
			collection_id, collection_name, endpoints_imported, folders_created,
			implementations_generated, filename, size_bytes, error_message, report,
			retry_count, version, created_at, started_at, completed_at
		FROM import_jobs
		WHERE id = $1
	`, id)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.StoreFailureError{Op: "get import job", Err: err}
	}
	return job, nil
}

// CompareAndSwap writes job iff the stored version equals
// expectedVersion. A non-nil history record is appended and a non-empty
// publishRef flips that staged graph visible in the same transaction,
// so a terminal transition, its history, and its graph publication
// commit or roll back as one.
func (r *PostgresJobStore) CompareAndSwap(ctx context.Context, job *domain.ImportJob, expectedVersion int64, history *domain.ImportHistory, publishRef string) (bool, error) {
	report, err := marshalReport(job.Report)
	if err != nil {
		return false, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, &domain.StoreFailureError{Op: "begin job update", Err: err}
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE import_jobs
		SET status = $2, collection_id = $3, collection_name = $4,
			endpoints_imported = $5, folders_created = $6, implementations_generated = $7,
			error_message = $8, report = $9, retry_count = $10,
			started_at = $11, completed_at = $12, version = $13
		WHERE id = $1 AND version = $14
	`, job.ID, job.Status, nullable(job.CollectionID), job.CollectionName,
		job.EndpointsImported, job.FoldersCreated, job.ImplementationsGenerated,
		job.ErrorMessage, report, job.RetryCount,
		job.StartedAt, job.CompletedAt, expectedVersion+1, expectedVersion)
	if err != nil {
		return false, &domain.StoreFailureError{Op: "update import job", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if history != nil {
		if err := insertHistory(ctx, tx, history); err != nil {
			return false, err
		}
	}

	if publishRef != "" {
		tag, err := tx.Exec(ctx, `
			UPDATE collections SET published = true WHERE id = $1
		`, publishRef)
		if err != nil {
			return false, &domain.StoreFailureError{Op: "publish staged graph", Err: err}
		}
		if tag.RowsAffected() == 0 {
			return false, &domain.StoreFailureError{Op: "publish staged graph", Err: errors.New("staged collection not found")}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, &domain.StoreFailureError{Op: "commit job update", Err: err}
	}
	job.Version = expectedVersion + 1
	return true, nil
}

func insertHistory(ctx context.Context, tx pgx.Tx, rec *domain.ImportHistory) error {
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal history metadata: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO import_history (id, job_id, source_kind, format, collection_id,
			collection_name, status, endpoints_imported, folders_created,
			implementations_generated, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, rec.ID, rec.JobID, rec.SourceKind, rec.Format, nullable(rec.CollectionID),
		rec.CollectionName, rec.Status, rec.EndpointsImported, rec.FoldersCreated,
		rec.ImplementationsGenerated, metadata, rec.CreatedAt)
	if err != nil {
		return &domain.StoreFailureError{Op: "append import history", Err: err}
	}
	return nil
}

func scanJob(row pgx.Row) (*domain.ImportJob, error) {
	var job domain.ImportJob
	var collectionID *string
	var report []byte
	var startedAt, completedAt *time.Time

	err := row.Scan(&job.ID, &job.SourceKind, &job.Format, &job.Status, &job.Principal,
		&job.Payload, &collectionID, &job.CollectionName, &job.EndpointsImported,
		&job.FoldersCreated, &job.ImplementationsGenerated, &job.Filename, &job.SizeBytes,
		&job.ErrorMessage, &report, &job.RetryCount, &job.Version,
		&job.CreatedAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if collectionID != nil {
		job.CollectionID = *collectionID
	}
	if len(report) > 0 {
		var parsed domain.ValidationReport
		if err := json.Unmarshal(report, &parsed); err != nil {
			return nil, fmt.Errorf("unmarshal validation report: %w", err)
		}
		job.Report = &parsed
	}
	job.StartedAt = startedAt
	job.CompletedAt = completedAt
	return &job, nil
}

func marshalReport(report *domain.ValidationReport) ([]byte, error) {
	if report == nil {
		return nil, nil
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("marshal validation report: %w", err)
	}
	return raw, nil
}

// nullable maps an empty string to NULL so foreign keys stay clean.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
