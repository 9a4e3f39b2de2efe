// Package slicer derives fully-resolved slicer configuration documents from
// printer, material and quality selections plus the validated geometry.
package slicer

import (
	"math"

	"github.com/printforge/printforge/internal/domain/model"
	"github.com/printforge/printforge/internal/mesh"
)

// Profile is an immutable slicer configuration document, generated fresh per
// (job, printer, material, quality) tuple and never mutated after creation.
type Profile struct {
	Print    PrintSection    `json:"print"`
	Filament FilamentSection `json:"filament"`
	Printer  PrinterSection  `json:"printer"`
	Model    ModelSection    `json:"model"`
}

// PrintSection holds the layer and speed configuration.
type PrintSection struct {
	LayerHeightMM      float64 `json:"layer_height_mm"`
	FirstLayerHeightMM float64 `json:"first_layer_height_mm"`
	Perimeters         int     `json:"perimeters"`
	InfillPercent      int     `json:"infill_percent"`
	PrintSpeedMMS      float64 `json:"print_speed_mms"`
	TravelSpeedMMS     float64 `json:"travel_speed_mms"`
	SupportsEnabled    bool    `json:"supports_enabled"`
	BrimWidthMM        float64 `json:"brim_width_mm"`
}

// FilamentSection holds the material temperatures and cooling curve.
type FilamentSection struct {
	Material    string  `json:"material"`
	NozzleTempC int     `json:"nozzle_temp_c"`
	BedTempC    int     `json:"bed_temp_c"`
	FanPercent  int     `json:"fan_percent"`
	DensityGCM3 float64 `json:"density_g_cm3"`
}

// PrinterSection holds the machine geometry.
type PrinterSection struct {
	Name             string  `json:"name"`
	BuildVolumeXMM   float64 `json:"build_volume_x_mm"`
	BuildVolumeYMM   float64 `json:"build_volume_y_mm"`
	BuildVolumeZMM   float64 `json:"build_volume_z_mm"`
	NozzleDiameterMM float64 `json:"nozzle_diameter_mm"`
	HeatedBed        bool    `json:"heated_bed"`
}

// ModelSection holds the per-model derivations.
type ModelSection struct {
	ScaleFactor            float64 `json:"scale_factor"`
	RecommendedOrientation string  `json:"recommended_orientation"`
	BaseContactAreaMM2     float64 `json:"base_contact_area_mm2"`
}

// BuildInput groups the parameters for Build.
type BuildInput struct {
	Geometry   *mesh.Geometry
	Printer    model.PrinterProfile
	Material   model.MaterialProfile
	Quality    model.QualityPreset
	Settings   model.PrintSettings
	Validation *mesh.ValidationResult
}

const maxBrimWidthMM = 10

// Build resolves the four lookup sections into one document. Pure function
// of its input.
func Build(in BuildInput) Profile {
	bounds := in.Geometry.Bounds()

	return Profile{
		Print: PrintSection{
			LayerHeightMM:      in.Settings.LayerHeightMM,
			FirstLayerHeightMM: round2(in.Settings.LayerHeightMM * 1.25),
			Perimeters:         perimeterCount(in.Geometry, in.Material, in.Quality),
			InfillPercent:      in.Settings.InfillPercent,
			PrintSpeedMMS:      math.Min(in.Settings.PrintSpeedMMS, in.Printer.MaxPrintSpeedMMS),
			TravelSpeedMMS:     in.Printer.MaxTravelMMS,
			SupportsEnabled:    in.Settings.Supports,
			BrimWidthMM:        brimWidth(bounds, in.Validation),
		},
		Filament: FilamentSection{
			Material:    in.Material.Name,
			NozzleTempC: in.Settings.NozzleTempC,
			BedTempC:    in.Settings.BedTempC,
			FanPercent:  in.Material.FanPercent,
			DensityGCM3: in.Material.DensityGCM3,
		},
		Printer: PrinterSection{
			Name:             in.Printer.Name,
			BuildVolumeXMM:   in.Printer.BuildVolumeXMM,
			BuildVolumeYMM:   in.Printer.BuildVolumeYMM,
			BuildVolumeZMM:   in.Printer.BuildVolumeZMM,
			NozzleDiameterMM: in.Printer.NozzleDiameterMM,
			HeatedBed:        in.Printer.HeatedBed,
		},
		Model: ModelSection{
			ScaleFactor:            scaleFactor(bounds, in.Printer),
			RecommendedOrientation: recommendedOrientation(bounds),
			BaseContactAreaMM2:     round2(bounds.Width() * bounds.Depth()),
		},
	}
}

// scaleFactor is the uniform scale required to fit the build volume, capped
// at 1.0: models are never auto-upscaled.
func scaleFactor(bounds mesh.BoundingBox, printer model.PrinterProfile) float64 {
	factor := 1.0
	for _, axis := range []struct{ extent, limit float64 }{
		{bounds.Width(), printer.BuildVolumeXMM},
		{bounds.Depth(), printer.BuildVolumeYMM},
		{bounds.Height(), printer.BuildVolumeZMM},
	} {
		if axis.extent > 0 {
			factor = math.Min(factor, axis.limit/axis.extent)
		}
	}
	return round3(factor)
}

// perimeterCount scales shell count with face-count complexity and floors it
// higher for flexible materials, which need thicker walls to hold shape.
func perimeterCount(geo *mesh.Geometry, material model.MaterialProfile, quality model.QualityPreset) int {
	count := quality.Perimeters
	if geo.TriangleCount() > 50000 {
		count++
	}
	if material.Flexible && count < 3 {
		count = 3
	}
	return count
}

// brimWidth accumulates adhesion-helper contributions: a poor build-volume
// fit, a tall aspect ratio and a small base-contact area each add width,
// capped at 10mm.
func brimWidth(bounds mesh.BoundingBox, validation *mesh.ValidationResult) float64 {
	var width float64
	if validation != nil && !validation.FitsBuildVolume {
		width += 4
	}
	base := math.Max(bounds.Width(), bounds.Depth())
	if base > 0 && bounds.Height()/base > 2 {
		width += 4
	}
	if bounds.Width()*bounds.Depth() < 400 { // under a 20x20mm footprint
		width += 3
	}
	return math.Min(width, maxBrimWidthMM)
}

// recommendedOrientation picks whichever axis-pair yields the largest base
// contact area.
func recommendedOrientation(bounds mesh.BoundingBox) string {
	candidates := []struct {
		name string
		area float64
	}{
		{"xy", bounds.Width() * bounds.Depth()},
		{"xz", bounds.Width() * bounds.Height()},
		{"yz", bounds.Depth() * bounds.Height()},
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.area > best.area {
			best = c
		}
	}
	return best.name
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
