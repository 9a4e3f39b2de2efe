package mesh

import (
	"fmt"

	"github.com/printforge/printforge/internal/domain/model"
)

// ValidationResult reports the printability checks for one geometry against
// one printer profile. Errors and RepairSuggestions are paired 1:1 so a
// caller can render actionable guidance next to each failure.
type ValidationResult struct {
	IsManifold            bool     `json:"is_manifold"`
	HasHoles              bool     `json:"has_holes"`
	WallThicknessAdequate bool     `json:"wall_thickness_adequate"`
	FitsBuildVolume       bool     `json:"fits_build_volume"`
	Errors                []string `json:"errors"`
	RepairSuggestions     []string `json:"repair_suggestions"`
}

// Printable reports whether the geometry can be submitted as-is. Inadequate
// wall thickness is warning-class and does not block printing.
func (r *ValidationResult) Printable() bool {
	return r.IsManifold && !r.HasHoles && r.FitsBuildVolume
}

func (r *ValidationResult) addError(problem, suggestion string) {
	r.Errors = append(r.Errors, problem)
	r.RepairSuggestions = append(r.RepairSuggestions, suggestion)
}

// Validate inspects a geometry against a printer profile. Pure and
// deterministic, no I/O.
func Validate(geo *Geometry, printer model.PrinterProfile) *ValidationResult {
	result := &ValidationResult{WallThicknessAdequate: true}

	topo := analyzeEdges(geo)
	validateManifold(geo, topo, result)
	validateHoles(topo, result)
	validateBuildVolume(geo, printer, result)
	validateWallThickness(geo, printer, result)

	return result
}

// edgeTopology is the result of an edge-adjacency pass over the face list.
type edgeTopology struct {
	boundaryEdges    int
	nonManifoldEdges int
}

type edgeKey struct{ lo, hi uint32 }

type edgeUse struct {
	forward  int // edge traversed lo->hi
	backward int // edge traversed hi->lo
}

// analyzeEdges builds the undirected edge map with per-direction counts.
// A manifold surface uses every edge exactly twice, once in each direction
// (consistent winding); an edge used once is a boundary edge (a hole).
func analyzeEdges(geo *Geometry) edgeTopology {
	edges := make(map[edgeKey]*edgeUse, len(geo.Faces))
	record := func(a, b uint32) {
		key := edgeKey{lo: a, hi: b}
		forward := true
		if a > b {
			key = edgeKey{lo: b, hi: a}
			forward = false
		}
		use := edges[key]
		if use == nil {
			use = &edgeUse{}
			edges[key] = use
		}
		if forward {
			use.forward++
		} else {
			use.backward++
		}
	}
	for i := 0; i+2 < len(geo.Faces); i += 3 {
		a, b, c := geo.Faces[i], geo.Faces[i+1], geo.Faces[i+2]
		record(a, b)
		record(b, c)
		record(c, a)
	}

	var topo edgeTopology
	for _, use := range edges {
		total := use.forward + use.backward
		switch {
		case total == 1:
			topo.boundaryEdges++
		case total == 2 && use.forward == 1 && use.backward == 1:
			// properly shared edge with opposite winding
		default:
			topo.nonManifoldEdges++
		}
	}
	return topo
}

func validateManifold(geo *Geometry, topo edgeTopology, result *ValidationResult) {
	if geo.VertexCount() == 0 || geo.TriangleCount() == 0 {
		result.addError(
			"model has no printable surface data",
			"re-export the model with geometry included",
		)
		return
	}
	if topo.nonManifoldEdges > 0 {
		result.addError(
			fmt.Sprintf("model is not manifold: %d edges break the two-faces-per-edge rule", topo.nonManifoldEdges),
			"run a mesh repair tool to remove self-intersections and duplicate faces",
		)
		return
	}
	if topo.boundaryEdges > 0 {
		// A surface with boundary is not watertight and therefore not
		// manifold for printing purposes; the hole check reports detail.
		return
	}
	result.IsManifold = true
}

func validateHoles(topo edgeTopology, result *ValidationResult) {
	if topo.boundaryEdges == 0 {
		return
	}
	result.HasHoles = true
	result.addError(
		fmt.Sprintf("model surface has holes: %d boundary edges detected", topo.boundaryEdges),
		"close open boundaries with a hole-filling pass before printing",
	)
}

func validateBuildVolume(geo *Geometry, printer model.PrinterProfile, result *ValidationResult) {
	bounds := geo.Bounds()
	result.FitsBuildVolume = true

	axes := []struct {
		name   string
		extent float64
		limit  float64
	}{
		{"X", bounds.Width(), printer.BuildVolumeXMM},
		{"Y", bounds.Depth(), printer.BuildVolumeYMM},
		{"Z", bounds.Height(), printer.BuildVolumeZMM},
	}
	for _, axis := range axes {
		if axis.extent > axis.limit {
			result.FitsBuildVolume = false
			result.addError(
				fmt.Sprintf("model %s dimension %.1fmm exceeds build volume limit %.1fmm", axis.name, axis.extent, axis.limit),
				fmt.Sprintf("scale the model down by at least %.0f%% on the %s axis", (1-axis.limit/axis.extent)*100, axis.name),
			)
		}
	}
}

// validateWallThickness approximates the local wall thickness from the
// volume-to-surface ratio of the mesh. Inadequacy is warning-class: it is
// reported but does not fail validation.
func validateWallThickness(geo *Geometry, printer model.PrinterProfile, result *ValidationResult) {
	area := geo.SurfaceArea()
	if area == 0 {
		return
	}
	minWall := printer.MinWallThicknessMM()
	// For a thin shell, volume ~ area/2 * thickness.
	approxThickness := 2 * geo.Volume() / area
	if approxThickness < minWall {
		result.WallThicknessAdequate = false
		result.addError(
			fmt.Sprintf("estimated wall thickness %.2fmm is below the %.2fmm minimum for a %.1fmm nozzle",
				approxThickness, minWall, printer.NozzleDiameterMM),
			fmt.Sprintf("thicken walls to at least %.2fmm or print with a smaller nozzle", minWall),
		)
	}
}
