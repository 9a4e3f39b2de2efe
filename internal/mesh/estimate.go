package mesh

import (
	"math"

	"github.com/printforge/printforge/internal/domain/model"
)

// Estimates holds the derived print figures for one prepared geometry. They
// are recomputed from the job they describe and never persisted on their own.
type Estimates struct {
	PrintTimeMinutes     int     `json:"print_time_minutes"`
	MaterialUsageGrams   float64 `json:"material_usage_grams"`
	EstimatedCostUSD     float64 `json:"estimated_cost_usd"`
	LayerCount           int     `json:"layer_count"`
	SupportMaterialGrams float64 `json:"support_material_grams"`
}

// supportMaterialRatio is the share of model material added for supports.
const supportMaterialRatio = 0.15

// Estimate derives time, material and cost figures from the geometry, the
// material and the resolved print settings. Deterministic.
func Estimate(geo *Geometry, material model.MaterialProfile, settings model.PrintSettings) Estimates {
	bounds := geo.Bounds()
	volumeCM3 := geo.Volume() / 1000 // mm^3 -> cm^3

	// Shells are always solid; only the interior scales with infill.
	infill := float64(settings.InfillPercent) / 100
	effectiveVolume := volumeCM3 * (0.25 + 0.75*infill)
	grams := effectiveVolume * material.DensityGCM3

	var supportGrams float64
	if settings.Supports {
		supportGrams = grams * supportMaterialRatio
	}

	layerHeight := settings.LayerHeightMM
	if layerHeight <= 0 {
		layerHeight = 0.2
	}
	layerCount := int(math.Ceil(bounds.Height() / layerHeight))
	if layerCount < 1 && geo.TriangleCount() > 0 {
		layerCount = 1
	}

	speed := settings.PrintSpeedMMS
	if speed <= 0 {
		speed = 60
	}
	// Per-layer overhead plus an extrusion term: a 0.4mm line at the given
	// speed deposits speed*0.4*layerHeight mm^3/s of material.
	extrusionRate := speed * 0.4 * layerHeight // mm^3 per second
	extrusionSeconds := 0.0
	if extrusionRate > 0 {
		extrusionSeconds = (effectiveVolume + supportGrams/material.DensityGCM3) * 1000 / extrusionRate
	}
	layerOverheadSeconds := float64(layerCount) * 4
	minutes := int(math.Ceil((extrusionSeconds + layerOverheadSeconds) / 60))

	cost := (grams + supportGrams) * material.CostPerGramUSD

	return Estimates{
		PrintTimeMinutes:     minutes,
		MaterialUsageGrams:   round2(grams),
		EstimatedCostUSD:     round2(cost),
		LayerCount:           layerCount,
		SupportMaterialGrams: round2(supportGrams),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
