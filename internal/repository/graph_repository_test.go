package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/domain"
	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/repository"
)

func sampleCollection() *domain.Collection {
	folderID := uuid.New().String()
	childID := uuid.New().String()
	return &domain.Collection{
		ID:        uuid.New().String(),
		Name:      "Petstore",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		Folders: []domain.Folder{
			{ID: folderID, Name: "pets", Position: 0},
			{ID: childID, ParentID: folderID, Name: "admin", Position: 1},
		},
		Endpoints: []domain.Endpoint{
			{
				ID:       uuid.New().String(),
				FolderID: folderID,
				Name:     "List pets",
				Method:   "GET",
				URL:      "/pets",
				Stub:     "func ListPets() {}",
				Position: 0,
				Parameters: []domain.Parameter{
					{Name: "limit", Location: "query", Example: "10", Position: 0},
				},
				Headers: []domain.Header{
					{Name: "Accept", Value: "application/json", Position: 0},
				},
				Examples: []domain.ResponseExample{
					{Name: "OK", StatusCode: 200, MediaType: "application/json", Body: "[]", Position: 0},
				},
			},
			{
				ID:       uuid.New().String(),
				FolderID: childID,
				Name:     "Purge pets",
				Method:   "DELETE",
				URL:      "/pets",
				Position: 1,
			},
		},
	}
}

func TestGraphStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := SetupTestDB(t)
	defer tdb.Cleanup(t)

	store := repository.NewPostgresGraphStore(tdb.Pool)
	ctx := context.Background()

	t.Run("staged graph is invisible until published", func(t *testing.T) {
		tdb.TruncateTables(t, "collections")

		col := sampleCollection()
		ref, err := store.Stage(ctx, col)
		require.NoError(t, err)
		assert.Equal(t, col.ID, ref)

		got, err := store.GetCollection(ctx, col.ID)
		require.NoError(t, err)
		assert.Nil(t, got, "staged graph must not be readable")

		require.NoError(t, store.Publish(ctx, ref))

		got, err = store.GetCollection(ctx, col.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Petstore", got.Name)
		require.Len(t, got.Folders, 2)
		require.Len(t, got.Endpoints, 2)
	})

	t.Run("published graph keeps structure and order", func(t *testing.T) {
		tdb.TruncateTables(t, "collections")

		col := sampleCollection()
		ref, err := store.Stage(ctx, col)
		require.NoError(t, err)
		require.NoError(t, store.Publish(ctx, ref))

		got, err := store.GetCollection(ctx, col.ID)
		require.NoError(t, err)
		require.NotNil(t, got)

		assert.Equal(t, "pets", got.Folders[0].Name)
		assert.Equal(t, "admin", got.Folders[1].Name)
		assert.Equal(t, got.Folders[0].ID, got.Folders[1].ParentID)

		first := got.Endpoints[0]
		assert.Equal(t, "List pets", first.Name)
		assert.Equal(t, got.Folders[0].ID, first.FolderID)
		require.Len(t, first.Parameters, 1)
		assert.Equal(t, "limit", first.Parameters[0].Name)
		require.Len(t, first.Headers, 1)
		assert.Equal(t, "Accept", first.Headers[0].Name)
		require.Len(t, first.Examples, 1)
		assert.Equal(t, 200, first.Examples[0].StatusCode)
		assert.Equal(t, "func ListPets() {}", first.Stub)

		second := got.Endpoints[1]
		assert.Equal(t, "Purge pets", second.Name)
		assert.Empty(t, second.Parameters)
	})

	t.Run("discard removes a staged graph and its children", func(t *testing.T) {
		tdb.TruncateTables(t, "collections")

		col := sampleCollection()
		ref, err := store.Stage(ctx, col)
		require.NoError(t, err)
		require.NoError(t, store.Discard(ctx, ref))

		var count int
		require.NoError(t, tdb.Pool.QueryRow(ctx,
			"SELECT COUNT(*) FROM endpoints").Scan(&count))
		assert.Zero(t, count, "cascade should remove endpoints")

		err = store.Publish(ctx, ref)
		assert.Error(t, err, "publishing a discarded graph must fail")
	})

	t.Run("discard leaves published graphs alone", func(t *testing.T) {
		tdb.TruncateTables(t, "collections")

		col := sampleCollection()
		ref, err := store.Stage(ctx, col)
		require.NoError(t, err)
		require.NoError(t, store.Publish(ctx, ref))

		require.NoError(t, store.Discard(ctx, ref))

		got, err := store.GetCollection(ctx, col.ID)
		require.NoError(t, err)
		assert.NotNil(t, got, "published graph survives a stray discard")
	})
}

func TestHistoryStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := SetupTestDB(t)
	defer tdb.Cleanup(t)

	jobs := repository.NewPostgresJobStore(tdb.Pool)
	graphs := repository.NewPostgresGraphStore(tdb.Pool)
	history := repository.NewPostgresHistoryStore(tdb.Pool)
	ctx := context.Background()

	// Drive two jobs to completion so history has filterable rows.
	finish := func(t *testing.T) (jobID, collectionID, endpointID string) {
		t.Helper()
		job := newJob()
		require.NoError(t, jobs.Create(ctx, job))

		now := time.Now().UTC()
		validating, err := domain.BeginValidation(*job, now)
		require.NoError(t, err)
		ok, err := jobs.CompareAndSwap(ctx, &validating, 1, nil, "")
		require.NoError(t, err)
		require.True(t, ok)
		processing, err := domain.BeginProcessing(validating, domain.ValidationReport{Valid: true}, now)
		require.NoError(t, err)
		ok, err = jobs.CompareAndSwap(ctx, &processing, 2, nil, "")
		require.NoError(t, err)
		require.True(t, ok)

		col := sampleCollection()
		ref, err := graphs.Stage(ctx, col)
		require.NoError(t, err)

		completed, err := domain.Complete(processing, col.ID, domain.GraphCounters{
			EndpointsImported: len(col.Endpoints),
			FoldersCreated:    len(col.Folders),
		}, now)
		require.NoError(t, err)
		record := domain.NewHistory(uuid.New().String(), completed, now)
		ok, err = jobs.CompareAndSwap(ctx, &completed, 3, &record, ref)
		require.NoError(t, err)
		require.True(t, ok)

		return job.ID, col.ID, col.Endpoints[0].ID
	}

	jobA, colA, epA := finish(t)
	jobB, _, _ := finish(t)

	t.Run("list all newest first", func(t *testing.T) {
		records, err := history.ListHistory(ctx, repository.HistoryFilter{})
		require.NoError(t, err)
		require.Len(t, records, 2)
	})

	t.Run("filter by job id", func(t *testing.T) {
		records, err := history.ListHistory(ctx, repository.HistoryFilter{JobID: jobA})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, jobA, records[0].JobID)
	})

	t.Run("filter by collection id", func(t *testing.T) {
		records, err := history.ListHistory(ctx, repository.HistoryFilter{CollectionID: colA})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, colA, records[0].CollectionID)
	})

	t.Run("filter by endpoint id", func(t *testing.T) {
		records, err := history.ListHistory(ctx, repository.HistoryFilter{EndpointID: epA})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, jobA, records[0].JobID)
	})

	t.Run("limit caps the listing", func(t *testing.T) {
		records, err := history.ListHistory(ctx, repository.HistoryFilter{Limit: 1})
		require.NoError(t, err)
		require.Len(t, records, 1)
	})

	t.Run("no match is empty not error", func(t *testing.T) {
		records, err := history.ListHistory(ctx, repository.HistoryFilter{JobID: uuid.New().String()})
		require.NoError(t, err)
		assert.Empty(t, records)
		_ = jobB
	})
}
