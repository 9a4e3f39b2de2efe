package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/printforge/printforge/internal/core"
	"github.com/printforge/printforge/internal/domain/model"
	"github.com/printforge/printforge/internal/faults"
	"github.com/printforge/printforge/internal/mesh"
	"github.com/printforge/printforge/internal/observability/statsd"
	"github.com/printforge/printforge/internal/slicer"
)

// PrepareResult bundles everything the preparation pipeline produces for a
// job: the stored STL artifact path, the validation outcome, the derived
// estimates, the resolved slicer profile and the geometry summary.
type PrepareResult struct {
	STLPath    string                 `json:"stl_path"`
	Validation *mesh.ValidationResult `json:"validation"`
	Estimates  mesh.Estimates         `json:"estimates"`
	Profile    slicer.Profile         `json:"profile"`
	Metadata   model.ModelMetadata    `json:"metadata"`
}

// PreparationOptions groups dependencies for the PreparationService.
type PreparationOptions struct {
	Jobs        core.JobRepository
	Blobs       core.BlobRepository
	Cache       core.CacheRepository
	EstimateTTL time.Duration
	PrinterName string
	Logger      *slog.Logger
	Metrics     statsd.Sink
}

// PreparationService orchestrates parse, validate, repair, encode, estimate
// and profile generation into one Prepare call. Stateless aside from the
// buffers each call returns, so any number of instances may run
// concurrently.
type PreparationService struct {
	jobs        core.JobRepository
	blobs       core.BlobRepository
	cache       core.CacheRepository
	estimateTTL time.Duration
	printerName string
	registry    *mesh.Registry
	logger      *slog.Logger
	metrics     statsd.Sink
}

// NewPreparationService constructs a PreparationService.
func NewPreparationService(opts PreparationOptions) (*PreparationService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("job repository is required")
	}
	if opts.Blobs == nil {
		return nil, errors.New("blob repository is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.EstimateTTL <= 0 {
		opts.EstimateTTL = 30 * time.Minute
	}
	return &PreparationService{
		jobs:        opts.Jobs,
		blobs:       opts.Blobs,
		cache:       opts.Cache,
		estimateTTL: opts.EstimateTTL,
		printerName: opts.PrinterName,
		registry:    mesh.NewRegistry(),
		logger:      opts.Logger.With("component", "preparation"),
		metrics:     opts.Metrics,
	}, nil
}

// PreparedSTLPath is where the encoded artifact for a job is stored.
func PreparedSTLPath(jobID string) string {
	return "prepared/" + jobID + ".stl"
}

func estimateCacheKey(jobID string) string {
	return "prepare:estimates:" + jobID
}

// Prepare runs the full preparation pipeline for a job. On validation
// failure it returns an InvalidModelError carrying the paired errors and
// repair suggestions; no partial artifacts are persisted.
func (s *PreparationService) Prepare(ctx context.Context, job *model.Job) (*PrepareResult, error) {
	start := time.Now()
	result, err := s.prepare(ctx, job)
	s.emit(start, err)
	return result, err
}

func (s *PreparationService) prepare(ctx context.Context, job *model.Job) (*PrepareResult, error) {
	format, err := mesh.FormatFromFilename(job.Filename)
	if err != nil {
		return nil, err
	}

	raw, err := s.blobs.Fetch(ctx, job.StoragePath)
	if err != nil {
		return nil, &faults.ProcessingError{Op: "fetch model", Cause: err}
	}

	geo, err := s.registry.Parse(raw, format)
	if err != nil {
		return nil, err
	}

	printer, material, quality, settings, err := resolveProfiles(job.PrintSettings, s.printerName)
	if err != nil {
		return nil, &faults.ProcessingError{Op: "resolve profiles", Cause: err}
	}

	repaired, report := mesh.Repair(geo)
	validation := mesh.Validate(repaired, printer)
	if !validation.Printable() {
		return nil, &faults.InvalidModelError{
			Reason:            "model failed printability validation",
			Errors:            validation.Errors,
			RepairSuggestions: validation.RepairSuggestions,
		}
	}

	stlBytes, err := mesh.EncodeSTL(repaired)
	if err != nil {
		return nil, err
	}
	stlPath := PreparedSTLPath(job.ID)
	if err := s.blobs.Store(ctx, stlPath, stlBytes, "model/stl"); err != nil {
		return nil, &faults.ProcessingError{Op: "store prepared stl", Cause: err}
	}

	estimates := mesh.Estimate(repaired, material, settings)
	profile := slicer.Build(slicer.BuildInput{
		Geometry:   repaired,
		Printer:    printer,
		Material:   material,
		Quality:    quality,
		Settings:   settings,
		Validation: validation,
	})

	bounds := repaired.Bounds()
	metadata := model.ModelMetadata{
		VertexCount:   repaired.VertexCount(),
		FaceCount:     repaired.TriangleCount(),
		WidthMM:       bounds.Width(),
		DepthMM:       bounds.Depth(),
		HeightMM:      bounds.Height(),
		SourceFormat:  string(format),
		Manifold:      validation.IsManifold,
		RepairApplied: report.Applied,
	}
	if err := s.jobs.UpdateModelMetadata(ctx, job.ID, &metadata); err != nil {
		return nil, fmt.Errorf("persist model metadata: %w", err)
	}

	result := &PrepareResult{
		STLPath:    stlPath,
		Validation: validation,
		Estimates:  estimates,
		Profile:    profile,
		Metadata:   metadata,
	}
	s.cacheEstimates(ctx, job.ID, result)

	s.logger.InfoContext(ctx, "model prepared",
		"job_id", job.ID,
		"format", format,
		"vertices", metadata.VertexCount,
		"faces", metadata.FaceCount,
		"repaired", report.Applied,
		"layers", estimates.LayerCount,
	)
	return result, nil
}

// cacheEstimates stores the estimate document under a TTL so repeat quote
// requests skip re-parsing. Best-effort: cache failures are logged only.
func (s *PreparationService) cacheEstimates(ctx context.Context, jobID string, result *PrepareResult) {
	if s.cache == nil {
		return
	}
	encoded, err := json.Marshal(result.Estimates)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, estimateCacheKey(jobID), encoded, s.estimateTTL); err != nil {
		s.logger.WarnContext(ctx, "cache estimates failed", "job_id", jobID, "error", err)
	}
}

// CachedEstimates returns the cached estimate document for a job, or
// (nil, nil) when absent.
func (s *PreparationService) CachedEstimates(ctx context.Context, jobID string) (*mesh.Estimates, error) {
	if s.cache == nil {
		return nil, nil
	}
	raw, err := s.cache.Get(ctx, estimateCacheKey(jobID))
	if err != nil || raw == nil {
		return nil, err
	}
	var estimates mesh.Estimates
	if err := json.Unmarshal(raw, &estimates); err != nil {
		return nil, fmt.Errorf("decode cached estimates: %w", err)
	}
	return &estimates, nil
}

func (s *PreparationService) emit(start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	s.metrics.Count("prepare.run", 1, map[string]string{"result": result})
	s.metrics.Timing("prepare.duration", time.Since(start), nil)
}

// resolveProfiles looks up the printer, material and quality tables and
// applies defaults onto a copy of the job's settings.
func resolveProfiles(
	settings model.PrintSettings,
	printerName string,
) (model.PrinterProfile, model.MaterialProfile, model.QualityPreset, model.PrintSettings, error) {
	printer, err := model.LookupPrinterProfile(printerName)
	if err != nil {
		return model.PrinterProfile{}, model.MaterialProfile{}, model.QualityPreset{}, settings, err
	}
	material, err := model.LookupMaterialProfile(settings.Material)
	if err != nil {
		return model.PrinterProfile{}, model.MaterialProfile{}, model.QualityPreset{}, settings, err
	}
	quality, err := model.LookupQualityPreset(settings.Quality)
	if err != nil {
		return model.PrinterProfile{}, model.MaterialProfile{}, model.QualityPreset{}, settings, err
	}
	settings.ApplyDefaults(material, quality)
	return printer, material, quality, settings, nil
}
