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

func newJob() *domain.ImportJob {
	return &domain.ImportJob{
		ID:             uuid.New().String(),
		SourceKind:     domain.SourceKindFile,
		Format:         domain.FormatOpenAPIJSON,
		Status:         domain.JobStatusPending,
		Principal:      "alice",
		Payload:        []byte(`{"openapi": "3.0.0"}`),
		CollectionName: "Petstore",
		Filename:       "petstore.json",
		SizeBytes:      21,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestJobStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := SetupTestDB(t)
	defer tdb.Cleanup(t)

	store := repository.NewPostgresJobStore(tdb.Pool)
	ctx := context.Background()

	t.Run("create and get round trip", func(t *testing.T) {
		tdb.TruncateTables(t, "import_history", "import_jobs")

		job := newJob()
		require.NoError(t, store.Create(ctx, job))
		assert.Equal(t, int64(1), job.Version)

		got, err := store.Get(ctx, job.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, job.ID, got.ID)
		assert.Equal(t, domain.JobStatusPending, got.Status)
		assert.Equal(t, job.Payload, got.Payload)
		assert.Equal(t, "alice", got.Principal)
		assert.Equal(t, int64(1), got.Version)
		assert.Nil(t, got.Report)
		assert.Nil(t, got.StartedAt)
	})

	t.Run("get unknown id returns nil", func(t *testing.T) {
		got, err := store.Get(ctx, uuid.New().String())
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("compare and swap bumps version", func(t *testing.T) {
		tdb.TruncateTables(t, "import_history", "import_jobs")

		job := newJob()
		require.NoError(t, store.Create(ctx, job))

		now := time.Now().UTC()
		claimed, err := domain.BeginValidation(*job, now)
		require.NoError(t, err)

		ok, err := store.CompareAndSwap(ctx, &claimed, 1, nil, "")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(2), claimed.Version)

		got, err := store.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusValidating, got.Status)
		assert.Equal(t, int64(2), got.Version)
		require.NotNil(t, got.StartedAt)
	})

	t.Run("stale version loses the swap", func(t *testing.T) {
		tdb.TruncateTables(t, "import_history", "import_jobs")

		job := newJob()
		require.NoError(t, store.Create(ctx, job))

		now := time.Now().UTC()
		first, err := domain.BeginValidation(*job, now)
		require.NoError(t, err)
		second, err := domain.BeginValidation(*job, now)
		require.NoError(t, err)

		ok, err := store.CompareAndSwap(ctx, &first, 1, nil, "")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = store.CompareAndSwap(ctx, &second, 1, nil, "")
		require.NoError(t, err)
		assert.False(t, ok, "second swap against version 1 must lose")

		got, err := store.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version, "losing swap must not write")
	})

	t.Run("terminal swap commits history and graph atomically", func(t *testing.T) {
		tdb.TruncateTables(t, "import_history", "import_jobs", "collections")

		job := newJob()
		require.NoError(t, store.Create(ctx, job))

		now := time.Now().UTC()
		validating, err := domain.BeginValidation(*job, now)
		require.NoError(t, err)
		ok, err := store.CompareAndSwap(ctx, &validating, 1, nil, "")
		require.NoError(t, err)
		require.True(t, ok)

		processing, err := domain.BeginProcessing(validating, domain.ValidationReport{Valid: true}, now)
		require.NoError(t, err)
		ok, err = store.CompareAndSwap(ctx, &processing, 2, nil, "")
		require.NoError(t, err)
		require.True(t, ok)

		graphs := repository.NewPostgresGraphStore(tdb.Pool)
		col := sampleCollection()
		ref, err := graphs.Stage(ctx, col)
		require.NoError(t, err)

		completed, err := domain.Complete(processing, col.ID, domain.GraphCounters{
			EndpointsImported: 5, FoldersCreated: 2, ImplementationsGenerated: 5,
		}, now)
		require.NoError(t, err)
		record := domain.NewHistory(uuid.New().String(), completed, now)

		ok, err = store.CompareAndSwap(ctx, &completed, 3, &record, ref)
		require.NoError(t, err)
		require.True(t, ok)

		got, err := store.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusCompleted, got.Status)
		assert.Equal(t, 5, got.EndpointsImported)
		require.NotNil(t, got.Report)
		assert.True(t, got.Report.Valid)

		published, err := graphs.GetCollection(ctx, col.ID)
		require.NoError(t, err)
		require.NotNil(t, published, "the swap publishes the staged graph")

		history := repository.NewPostgresHistoryStore(tdb.Pool)
		records, err := history.ListHistory(ctx, repository.HistoryFilter{JobID: job.ID})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, domain.JobStatusCompleted, records[0].Status)
		assert.Equal(t, 5, records[0].EndpointsImported)
		assert.Equal(t, "alice", records[0].Metadata["principal"])
	})

	t.Run("terminal swap rolls back when the staged graph is missing", func(t *testing.T) {
		tdb.TruncateTables(t, "import_history", "import_jobs", "collections")

		job := newJob()
		require.NoError(t, store.Create(ctx, job))

		now := time.Now().UTC()
		validating, err := domain.BeginValidation(*job, now)
		require.NoError(t, err)
		ok, err := store.CompareAndSwap(ctx, &validating, 1, nil, "")
		require.NoError(t, err)
		require.True(t, ok)
		processing, err := domain.BeginProcessing(validating, domain.ValidationReport{Valid: true}, now)
		require.NoError(t, err)
		ok, err = store.CompareAndSwap(ctx, &processing, 2, nil, "")
		require.NoError(t, err)
		require.True(t, ok)

		completed, err := domain.Complete(processing, uuid.New().String(), domain.GraphCounters{}, now)
		require.NoError(t, err)
		record := domain.NewHistory(uuid.New().String(), completed, now)

		_, err = store.CompareAndSwap(ctx, &completed, 3, &record, completed.CollectionID)
		var storeErr *domain.StoreFailureError
		require.ErrorAs(t, err, &storeErr)

		got, err := store.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusProcessing, got.Status, "failed commit must not change the job")
		assert.Equal(t, int64(3), got.Version)

		history := repository.NewPostgresHistoryStore(tdb.Pool)
		records, err := history.ListHistory(ctx, repository.HistoryFilter{JobID: job.ID})
		require.NoError(t, err)
		assert.Empty(t, records, "failed commit must not leave history behind")
	})

	t.Run("failure report survives the round trip", func(t *testing.T) {
		tdb.TruncateTables(t, "import_history", "import_jobs")

		job := newJob()
		require.NoError(t, store.Create(ctx, job))

		now := time.Now().UTC()
		validating, err := domain.BeginValidation(*job, now)
		require.NoError(t, err)
		ok, err := store.CompareAndSwap(ctx, &validating, 1, nil, "")
		require.NoError(t, err)
		require.True(t, ok)

		report := &domain.ValidationReport{
			Valid:               false,
			Errors:              []string{"endpoint 1: duplicate endpoint GET /pets"},
			MissingDependencies: []string{"{{base_url}}"},
		}
		failed, err := domain.Fail(validating, "validation failed", report, now)
		require.NoError(t, err)
		ok, err = store.CompareAndSwap(ctx, &failed, 2, nil, "")
		require.NoError(t, err)
		require.True(t, ok)

		got, err := store.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusFailed, got.Status)
		assert.Equal(t, 1, got.RetryCount)
		require.NotNil(t, got.ErrorMessage)
		require.NotNil(t, got.Report)
		assert.Equal(t, report.Errors, got.Report.Errors)
		assert.Equal(t, report.MissingDependencies, got.Report.MissingDependencies)
	})
}
