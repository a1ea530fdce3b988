package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/knowhub/knowhub/internal/model"
	appErr "github.com/knowhub/knowhub/internal/pkg/errors"
	"github.com/knowhub/knowhub/internal/repo"
	"github.com/knowhub/knowhub/internal/service"
	"github.com/knowhub/knowhub/test/testutil"
)

func TestBatchLifecycle(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	batches := service.NewBatchService(repo.NewBatchJobRepo(db))
	userID := testutil.NewID("user")

	job, err := batches.Create(context.Background(), userID, testutil.NewID("doc"), map[string]string{"source": "create"})
	require.NoError(t, err)
	require.Equal(t, model.BatchStatusCreated, job.Status)

	require.NoError(t, batches.MarkRunning(context.Background(), job.ID))
	batches.UpdateProgress(context.Background(), job.ID, 3, 10)

	fetched, err := batches.GetStatus(context.Background(), userID, job.ID)
	require.NoError(t, err)
	require.Equal(t, model.BatchStatusRunning, fetched.Status)
	require.Equal(t, 3, fetched.Processed)
	require.Equal(t, 10, fetched.Total)

	require.NoError(t, batches.MarkSucceeded(context.Background(), job.ID, 10, 10))
	fetched, err = batches.GetStatus(context.Background(), userID, job.ID)
	require.NoError(t, err)
	require.Equal(t, model.BatchStatusSucceeded, fetched.Status)
	require.Equal(t, 10, fetched.Processed)
}

func TestBatchTerminalStateIsFinal(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	batches := service.NewBatchService(repo.NewBatchJobRepo(db))
	userID := testutil.NewID("user")

	job, err := batches.Create(context.Background(), userID, testutil.NewID("doc"), nil)
	require.NoError(t, err)
	require.NoError(t, batches.MarkRunning(context.Background(), job.ID))
	require.NoError(t, batches.MarkFailed(context.Background(), job.ID, errors.New("provider timeout")))

	// stale transitions are swallowed, status stays failed
	require.NoError(t, batches.MarkSucceeded(context.Background(), job.ID, 5, 5))
	require.NoError(t, batches.MarkRunning(context.Background(), job.ID))

	fetched, err := batches.GetStatus(context.Background(), userID, job.ID)
	require.NoError(t, err)
	require.Equal(t, model.BatchStatusFailed, fetched.Status)
	require.Equal(t, "provider timeout", fetched.Error)
}

func TestBatchProgressIgnoredWhenNotRunning(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	batches := service.NewBatchService(repo.NewBatchJobRepo(db))
	userID := testutil.NewID("user")

	job, err := batches.Create(context.Background(), userID, testutil.NewID("doc"), nil)
	require.NoError(t, err)

	batches.UpdateProgress(context.Background(), job.ID, 5, 10)
	fetched, err := batches.GetStatus(context.Background(), userID, job.ID)
	require.NoError(t, err)
	require.Equal(t, 0, fetched.Processed)
}

func TestBatchStatusOwnerScoped(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	batches := service.NewBatchService(repo.NewBatchJobRepo(db))

	job, err := batches.Create(context.Background(), testutil.NewID("user"), testutil.NewID("doc"), nil)
	require.NoError(t, err)

	_, err = batches.GetStatus(context.Background(), testutil.NewID("other"), job.ID)
	require.ErrorIs(t, err, appErr.ErrForbidden)

	_, err = batches.GetStatus(context.Background(), testutil.NewID("user"), testutil.NewID("missing"))
	require.ErrorIs(t, err, appErr.ErrNotFound)
}
