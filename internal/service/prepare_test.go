package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printforge/printforge/internal/domain/model"
	"github.com/printforge/printforge/internal/faults"
)

// objCube is a closed 20mm cube with consistent outward winding.
const objCube = `v 0 0 0
v 20 0 0
v 20 20 0
v 0 20 0
v 0 0 20
v 20 0 20
v 20 20 20
v 0 20 20
f 1 3 2
f 1 4 3
f 5 6 7
f 5 7 8
f 1 2 6
f 1 6 5
f 3 4 8
f 3 8 7
f 1 5 8
f 1 8 4
f 2 3 7
f 2 7 6
`

// objOpenQuad is a lone open quad, not watertight.
const objOpenQuad = `v 0 0 0
v 10 0 0
v 10 10 0
v 0 10 0
f 1 2 3 4
`

func newTestPreparation(t *testing.T, blobs *fakeBlobRepo, cache *fakeCacheRepo, repo *fakeJobRepo) *PreparationService {
	t.Helper()
	opts := PreparationOptions{
		Jobs:  repo,
		Blobs: blobs,
	}
	if cache != nil {
		opts.Cache = cache
	}
	svc, err := NewPreparationService(opts)
	require.NoError(t, err)
	return svc
}

func pendingOBJJob(id, objText string, blobs *fakeBlobRepo) *model.Job {
	path := "uploads/" + id + ".obj"
	blobs.objects[path] = []byte(objText)
	return &model.Job{
		ID:          id,
		UserID:      "user-1",
		Filename:    id + ".obj",
		StoragePath: path,
		Status:      model.JobStatusPending,
	}
}

func TestPreparationService_Prepare(t *testing.T) {
	blobs := newFakeBlobRepo()
	cache := newFakeCacheRepo()
	job := pendingOBJJob("job-1", objCube, blobs)
	repo := newFakeJobRepo(job)
	svc := newTestPreparation(t, blobs, cache, repo)

	result, err := svc.Prepare(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, "prepared/job-1.stl", result.STLPath)
	assert.True(t, result.Validation.Printable())
	assert.NotEmpty(t, blobs.objects["prepared/job-1.stl"])
	assert.Positive(t, result.Estimates.PrintTimeMinutes)
	assert.Equal(t, 100, result.Estimates.LayerCount)

	meta := repo.metadataUpdates["job-1"]
	require.NotNil(t, meta)
	assert.Equal(t, 8, meta.VertexCount)
	assert.Equal(t, 12, meta.FaceCount)
	assert.Equal(t, 20.0, meta.WidthMM)
	assert.Equal(t, "obj", meta.SourceFormat)
	assert.True(t, meta.Manifold)
	assert.False(t, meta.RepairApplied)

	// estimates land in the cache for repeat quote requests
	cached, err := svc.CachedEstimates(context.Background(), "job-1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, result.Estimates, *cached)
}

func TestPreparationService_Prepare_UnprintableModel(t *testing.T) {
	blobs := newFakeBlobRepo()
	job := pendingOBJJob("job-open", objOpenQuad, blobs)
	repo := newFakeJobRepo(job)
	svc := newTestPreparation(t, blobs, newFakeCacheRepo(), repo)

	_, err := svc.Prepare(context.Background(), job)
	var modelErr *faults.InvalidModelError
	require.ErrorAs(t, err, &modelErr)
	assert.NotEmpty(t, modelErr.Errors)
	assert.Len(t, modelErr.RepairSuggestions, len(modelErr.Errors))

	// no partial artifacts on failure
	_, stored := blobs.objects["prepared/job-open.stl"]
	assert.False(t, stored)
	assert.Empty(t, repo.metadataUpdates)
}

func TestPreparationService_Prepare_UnsupportedExtension(t *testing.T) {
	svc := newTestPreparation(t, newFakeBlobRepo(), nil, newFakeJobRepo())
	job := &model.Job{ID: "job-1", Filename: "scan.step", StoragePath: "uploads/scan.step"}

	_, err := svc.Prepare(context.Background(), job)
	var formatErr *faults.InvalidFormatError
	assert.ErrorAs(t, err, &formatErr)
}

func TestPreparationService_Prepare_MissingBlob(t *testing.T) {
	svc := newTestPreparation(t, newFakeBlobRepo(), nil, newFakeJobRepo())
	job := &model.Job{ID: "job-1", Filename: "cube.obj", StoragePath: "uploads/cube.obj"}

	_, err := svc.Prepare(context.Background(), job)
	var procErr *faults.ProcessingError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, "fetch model", procErr.Op)
}

func TestPreparationService_Prepare_UnknownMaterial(t *testing.T) {
	blobs := newFakeBlobRepo()
	job := pendingOBJJob("job-1", objCube, blobs)
	job.PrintSettings.Material = "vibranium"
	svc := newTestPreparation(t, blobs, nil, newFakeJobRepo(job))

	_, err := svc.Prepare(context.Background(), job)
	var procErr *faults.ProcessingError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, "resolve profiles", procErr.Op)
}

func TestPreparationService_CachedEstimates_Miss(t *testing.T) {
	svc := newTestPreparation(t, newFakeBlobRepo(), newFakeCacheRepo(), newFakeJobRepo())
	cached, err := svc.CachedEstimates(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, cached)
}
