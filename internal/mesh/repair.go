package mesh

// RepairReport describes what normalization changed.
type RepairReport struct {
	Applied          bool
	WeldedVertices   int
	DegenerateFaces  int
}

// Repair normalizes a geometry for encoding: duplicate vertices are welded
// and degenerate faces (repeated indices or zero area) are dropped. The input
// is not mutated; a fresh geometry is returned. Hole filling is out of scope
// here and is surfaced through repair suggestions instead.
func Repair(geo *Geometry) (*Geometry, RepairReport) {
	var report RepairReport

	remap := make([]uint32, geo.VertexCount())
	seen := make(map[[3]float64]uint32, geo.VertexCount())
	out := &Geometry{Vertices: make([]float64, 0, len(geo.Vertices))}

	for i := 0; i < geo.VertexCount(); i++ {
		key := [3]float64{geo.Vertices[i*3], geo.Vertices[i*3+1], geo.Vertices[i*3+2]}
		if idx, ok := seen[key]; ok {
			remap[i] = idx
			report.WeldedVertices++
			continue
		}
		idx := uint32(len(out.Vertices) / 3) // #nosec G115 -- bounded by input vertex count
		seen[key] = idx
		remap[i] = idx
		out.Vertices = append(out.Vertices, key[0], key[1], key[2])
	}

	out.Faces = make([]uint32, 0, len(geo.Faces))
	for i := 0; i+2 < len(geo.Faces); i += 3 {
		a := remap[geo.Faces[i]]
		b := remap[geo.Faces[i+1]]
		c := remap[geo.Faces[i+2]]
		if a == b || b == c || a == c || isZeroAreaFace(out, a, b, c) {
			report.DegenerateFaces++
			continue
		}
		out.Faces = append(out.Faces, a, b, c)
	}

	report.Applied = report.WeldedVertices > 0 || report.DegenerateFaces > 0
	if !report.Applied {
		return geo, report
	}
	return out, report
}

func isZeroAreaFace(geo *Geometry, a, b, c uint32) bool {
	nx, ny, nz := crossOfEdges(geo, a, b, c)
	return nx == 0 && ny == 0 && nz == 0
}

func crossOfEdges(geo *Geometry, a, b, c uint32) (nx, ny, nz float64) {
	ax, ay, az := geo.vertex(a)
	bx, by, bz := geo.vertex(b)
	cx, cy, cz := geo.vertex(c)
	ux, uy, uz := bx-ax, by-ay, bz-az
	vx, vy, vz := cx-ax, cy-ay, cz-az
	return uy*vz - uz*vy, uz*vx - ux*vz, ux*vy - uy*vx
}
