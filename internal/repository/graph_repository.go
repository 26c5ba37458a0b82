package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/domain"
)

// PostgresGraphStore implements GraphStore using PostgreSQL. Graphs are
// written in full inside one transaction with published=false, then
// flipped visible by Publish. The staging reference is the collection
// id.
type PostgresGraphStore struct {
	pool *pgxpool.Pool
}

// NewPostgresGraphStore creates a new PostgresGraphStore.
func NewPostgresGraphStore(pool *pgxpool.Pool) *PostgresGraphStore {
	return &PostgresGraphStore{pool: pool}
}

// Stage writes the whole graph invisible to readers.
func (r *PostgresGraphStore) Stage(ctx context.Context, col *domain.Collection) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", &domain.StoreFailureError{Op: "begin graph stage", Err: err}
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO collections (id, name, published, created_at)
		VALUES ($1, $2, false, $3)
	`, col.ID, col.Name, col.CreatedAt)
	if err != nil {
		return "", &domain.StoreFailureError{Op: "stage collection", Err: err}
	}

	for _, folder := range col.Folders {
		_, err = tx.Exec(ctx, `
			INSERT INTO folders (id, collection_id, parent_id, name, position)
			VALUES ($1, $2, $3, $4, $5)
		`, folder.ID, col.ID, nullable(folder.ParentID), folder.Name, folder.Position)
		if err != nil {
			return "", &domain.StoreFailureError{Op: "stage folder", Err: err}
		}
	}

	for _, ep := range col.Endpoints {
		_, err = tx.Exec(ctx, `
			INSERT INTO endpoints (id, collection_id, folder_id, name, method, url,
				description, stub, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, ep.ID, col.ID, nullable(ep.FolderID), ep.Name, ep.Method, ep.URL,
			ep.Description, ep.Stub, ep.Position)
		if err != nil {
			return "", &domain.StoreFailureError{Op: "stage endpoint", Err: err}
		}

		for _, p := range ep.Parameters {
			_, err = tx.Exec(ctx, `
				INSERT INTO endpoint_parameters (endpoint_id, name, location, required,
					example, description, position)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, ep.ID, p.Name, p.Location, p.Required, p.Example, p.Description, p.Position)
			if err != nil {
				return "", &domain.StoreFailureError{Op: "stage parameter", Err: err}
			}
		}
		for _, h := range ep.Headers {
			_, err = tx.Exec(ctx, `
				INSERT INTO endpoint_headers (endpoint_id, name, value, description, position)
				VALUES ($1, $2, $3, $4, $5)
			`, ep.ID, h.Name, h.Value, h.Description, h.Position)
			if err != nil {
				return "", &domain.StoreFailureError{Op: "stage header", Err: err}
			}
		}
		for _, ex := range ep.Examples {
			_, err = tx.Exec(ctx, `
				INSERT INTO response_examples (endpoint_id, name, status_code, media_type,
					body, position)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, ep.ID, ex.Name, ex.StatusCode, ex.MediaType, ex.Body, ex.Position)
			if err != nil {
				return "", &domain.StoreFailureError{Op: "stage response example", Err: err}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", &domain.StoreFailureError{Op: "commit graph stage", Err: err}
	}
	return col.ID, nil
}

// Publish flips a staged graph visible.
func (r *PostgresGraphStore) Publish(ctx context.Context, ref string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE collections SET published = true WHERE id = $1
	`, ref)
	if err != nil {
		return &domain.StoreFailureError{Op: "publish graph", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &domain.StoreFailureError{Op: "publish graph", Err: errors.New("staged collection not found")}
	}
	return nil
}

// Discard deletes a staged graph. Child rows cascade.
func (r *PostgresGraphStore) Discard(ctx context.Context, ref string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM collections WHERE id = $1 AND published = false
	`, ref)
	if err != nil {
		return &domain.StoreFailureError{Op: "discard staged graph", Err: err}
	}
	return nil
}

// GetCollection loads a published collection graph. Returns nil when
// the id is unknown or the graph is still staged.
func (r *PostgresGraphStore) GetCollection(ctx context.Context, id string) (*domain.Collection, error) {
	var col domain.Collection
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, created_at FROM collections
		WHERE id = $1 AND published = true
	`, id).Scan(&col.ID, &col.Name, &col.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.StoreFailureError{Op: "get collection", Err: err}
	}

	if err := r.loadFolders(ctx, &col); err != nil {
		return nil, err
	}
	if err := r.loadEndpoints(ctx, &col); err != nil {
		return nil, err
	}
	return &col, nil
}

func (r *PostgresGraphStore) loadFolders(ctx context.Context, col *domain.Collection) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, COALESCE(parent_id, ''), name, position
		FROM folders WHERE collection_id = $1 ORDER BY position
	`, col.ID)
	if err != nil {
		return &domain.StoreFailureError{Op: "load folders", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var f domain.Folder
		if err := rows.Scan(&f.ID, &f.ParentID, &f.Name, &f.Position); err != nil {
			return &domain.StoreFailureError{Op: "scan folder", Err: err}
		}
		col.Folders = append(col.Folders, f)
	}
	return rows.Err()
}

func (r *PostgresGraphStore) loadEndpoints(ctx context.Context, col *domain.Collection) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, COALESCE(folder_id, ''), name, method, url, description, stub, position
		FROM endpoints WHERE collection_id = $1 ORDER BY position
	`, col.ID)
	if err != nil {
		return &domain.StoreFailureError{Op: "load endpoints", Err: err}
	}
	defer rows.Close()

	byID := make(map[string]int)
	for rows.Next() {
		var ep domain.Endpoint
		if err := rows.Scan(&ep.ID, &ep.FolderID, &ep.Name, &ep.Method, &ep.URL,
			&ep.Description, &ep.Stub, &ep.Position); err != nil {
			return &domain.StoreFailureError{Op: "scan endpoint", Err: err}
		}
		byID[ep.ID] = len(col.Endpoints)
		col.Endpoints = append(col.Endpoints, ep)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if err := r.loadParameters(ctx, col, byID); err != nil {
		return err
	}
	if err := r.loadHeaders(ctx, col, byID); err != nil {
		return err
	}
	return r.loadExamples(ctx, col, byID)
}

func (r *PostgresGraphStore) loadParameters(ctx context.Context, col *domain.Collection, byID map[string]int) error {
	rows, err := r.pool.Query(ctx, `
		SELECT p.endpoint_id, p.name, p.location, p.required, p.example, p.description, p.position
		FROM endpoint_parameters p
		JOIN endpoints e ON e.id = p.endpoint_id
		WHERE e.collection_id = $1 ORDER BY p.position
	`, col.ID)
	if err != nil {
		return &domain.StoreFailureError{Op: "load parameters", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var endpointID string
		var p domain.Parameter
		if err := rows.Scan(&endpointID, &p.Name, &p.Location, &p.Required,
			&p.Example, &p.Description, &p.Position); err != nil {
			return &domain.StoreFailureError{Op: "scan parameter", Err: err}
		}
		if idx, ok := byID[endpointID]; ok {
			col.Endpoints[idx].Parameters = append(col.Endpoints[idx].Parameters, p)
		}
	}
	return rows.Err()
}

func (r *PostgresGraphStore) loadHeaders(ctx context.Context, col *domain.Collection, byID map[string]int) error {
	rows, err := r.pool.Query(ctx, `
		SELECT h.endpoint_id, h.name, h.value, h.description, h.position
		FROM endpoint_headers h
		JOIN endpoints e ON e.id = h.endpoint_id
		WHERE e.collection_id = $1 ORDER BY h.position
	`, col.ID)
	if err != nil {
		return &domain.StoreFailureError{Op: "load headers", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var endpointID string
		var h domain.Header
		if err := rows.Scan(&endpointID, &h.Name, &h.Value, &h.Description, &h.Position); err != nil {
			return &domain.StoreFailureError{Op: "scan header", Err: err}
		}
		if idx, ok := byID[endpointID]; ok {
			col.Endpoints[idx].Headers = append(col.Endpoints[idx].Headers, h)
		}
	}
	return rows.Err()
}

func (r *PostgresGraphStore) loadExamples(ctx context.Context, col *domain.Collection, byID map[string]int) error {
	rows, err := r.pool.Query(ctx, `
		SELECT x.endpoint_id, x.name, x.status_code, x.media_type, x.body, x.position
		FROM response_examples x
		JOIN endpoints e ON e.id = x.endpoint_id
		WHERE e.collection_id = $1 ORDER BY x.position
	`, col.ID)
	if err != nil {
		return &domain.StoreFailureError{Op: "load response examples", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var endpointID string
		var ex domain.ResponseExample
		if err := rows.Scan(&endpointID, &ex.Name, &ex.StatusCode, &ex.MediaType,
			&ex.Body, &ex.Position); err != nil {
			return &domain.StoreFailureError{Op: "scan response example", Err: err}
		}
		if idx, ok := byID[endpointID]; ok {
			col.Endpoints[idx].Examples = append(col.Endpoints[idx].Examples, ex)
		}
	}
	return rows.Err()
}
