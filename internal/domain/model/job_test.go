package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeExternalStatus_KnownValues(t *testing.T) {
	cases := map[string]JobStatus{
		"queued":      JobStatusPending,
		"pending":     JobStatusPending,
		"download":    JobStatusDownloading,
		"downloading": JobStatusDownloading,
		"slice":       JobStatusSlicing,
		"slicing":     JobStatusSlicing,
		"upload":      JobStatusUploading,
		"uploading":   JobStatusUploading,
		"print":       JobStatusPrinting,
		"printing":    JobStatusPrinting,
		"finished":    JobStatusComplete,
		"success":     JobStatusComplete,
		"complete":    JobStatusComplete,
		"completed":   JobStatusComplete,
		"done":        JobStatusComplete,
		"error":       JobStatusFailed,
		"failed":      JobStatusFailed,
		"cancelled":   JobStatusFailed,
		"canceled":    JobStatusFailed,
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeExternalStatus(raw), "raw=%q", raw)
	}
}

func TestNormalizeExternalStatus_CaseAndWhitespace(t *testing.T) {
	assert.Equal(t, JobStatusPrinting, NormalizeExternalStatus("  PRINTING "))
	assert.Equal(t, JobStatusComplete, NormalizeExternalStatus("Done"))
}

func TestNormalizeExternalStatus_UnknownMapsToFailed(t *testing.T) {
	for _, raw := range []string{"", "paused", "warming_up", "🖨", "status=42"} {
		assert.Equal(t, JobStatusFailed, NormalizeExternalStatus(raw), "raw=%q", raw)
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.True(t, JobStatusComplete.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.True(t, JobStatusCleanupPending.Terminal())

	for _, s := range []JobStatus{JobStatusPending, JobStatusDownloading, JobStatusSlicing, JobStatusUploading, JobStatusPrinting} {
		assert.False(t, s.Terminal(), "status=%s", s)
	}
}

func TestJobStatus_CanTransition(t *testing.T) {
	t.Run("forward moves from non-terminal states", func(t *testing.T) {
		assert.True(t, JobStatusPending.CanTransition(JobStatusDownloading))
		assert.True(t, JobStatusDownloading.CanTransition(JobStatusSlicing))
		// intermediate states may be skipped between polls
		assert.True(t, JobStatusDownloading.CanTransition(JobStatusPrinting))
		assert.True(t, JobStatusPrinting.CanTransition(JobStatusComplete))
		assert.True(t, JobStatusSlicing.CanTransition(JobStatusFailed))
	})

	t.Run("never back to pending", func(t *testing.T) {
		assert.False(t, JobStatusDownloading.CanTransition(JobStatusPending))
		assert.False(t, JobStatusFailed.CanTransition(JobStatusPending))
	})

	t.Run("self transition is not a transition", func(t *testing.T) {
		assert.False(t, JobStatusPrinting.CanTransition(JobStatusPrinting))
	})

	t.Run("cleanup_pending only from terminal states", func(t *testing.T) {
		assert.True(t, JobStatusComplete.CanTransition(JobStatusCleanupPending))
		assert.True(t, JobStatusFailed.CanTransition(JobStatusCleanupPending))
		assert.False(t, JobStatusPrinting.CanTransition(JobStatusCleanupPending))
		assert.False(t, JobStatusPending.CanTransition(JobStatusCleanupPending))
	})

	t.Run("cleanup_pending is a dead end", func(t *testing.T) {
		for _, next := range []JobStatus{JobStatusPending, JobStatusPrinting, JobStatusComplete, JobStatusFailed} {
			assert.False(t, JobStatusCleanupPending.CanTransition(next))
		}
	})
}

func TestJobStatus_UnmarshalText(t *testing.T) {
	var s JobStatus
	require.NoError(t, s.UnmarshalText([]byte(" Printing ")))
	assert.Equal(t, JobStatusPrinting, s)

	assert.Error(t, s.UnmarshalText([]byte("molten")))
}

func TestCreateJobRequest_Validate(t *testing.T) {
	valid := CreateJobRequest{
		UserID:        "user-1",
		Filename:      "widget.stl",
		StoragePath:   "uploads/user-1/widget.stl",
		FileSizeBytes: 1024,
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*CreateJobRequest)
	}{
		{"missing user", func(r *CreateJobRequest) { r.UserID = "" }},
		{"missing filename", func(r *CreateJobRequest) { r.Filename = "" }},
		{"missing storage path", func(r *CreateJobRequest) { r.StoragePath = "" }},
		{"zero size", func(r *CreateJobRequest) { r.FileSizeBytes = 0 }},
		{"infill over 100", func(r *CreateJobRequest) { r.PrintSettings.InfillPercent = 101 }},
		{"negative infill", func(r *CreateJobRequest) { r.PrintSettings.InfillPercent = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)
			assert.Error(t, req.Validate())
		})
	}
}
