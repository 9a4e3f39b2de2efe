// Package mesh implements the print-preparation geometry pipeline: decoding
// raw 3D model encodings, validating them against printer constraints,
// normalizing them, and serializing binary STL.
package mesh

import (
	"fmt"
	"math"
)

// Geometry holds in-memory vertex/face buffers extracted from an input
// encoding. Vertices is a flat xyz sequence; Faces is a strict triangle list
// of indices into Vertices. Normals and Colors are optional parallel buffers.
type Geometry struct {
	Vertices []float64
	Faces    []uint32
	Normals  []float64
	Colors   []float64
}

// VertexCount returns the number of xyz vertices.
func (g *Geometry) VertexCount() int { return len(g.Vertices) / 3 }

// TriangleCount returns the number of triangles in the face list.
func (g *Geometry) TriangleCount() int { return len(g.Faces) / 3 }

// CheckInvariants verifies the structural invariants of the buffers: lengths
// divisible by 3 and every face index in range.
func (g *Geometry) CheckInvariants() error {
	if len(g.Vertices)%3 != 0 {
		return fmt.Errorf("vertex buffer length %d is not divisible by 3", len(g.Vertices))
	}
	if len(g.Faces)%3 != 0 {
		return fmt.Errorf("face buffer length %d is not divisible by 3", len(g.Faces))
	}
	limit := uint32(g.VertexCount()) // #nosec G115 -- buffer sizes are bounded by input length
	for i, idx := range g.Faces {
		if idx >= limit {
			return fmt.Errorf("face index %d at position %d exceeds vertex count %d", idx, i, limit)
		}
	}
	return nil
}

// BoundingBox is an axis-aligned extent in model units (millimetres).
type BoundingBox struct {
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64
}

// Width returns the X extent.
func (b BoundingBox) Width() float64 { return b.MaxX - b.MinX }

// Depth returns the Y extent.
func (b BoundingBox) Depth() float64 { return b.MaxY - b.MinY }

// Height returns the Z extent.
func (b BoundingBox) Height() float64 { return b.MaxZ - b.MinZ }

// Bounds computes the axis-aligned bounding box by a min/max reduction over
// the vertex buffer. An empty mesh yields a zero box.
func (g *Geometry) Bounds() BoundingBox {
	if len(g.Vertices) < 3 {
		return BoundingBox{}
	}
	b := BoundingBox{
		MinX: math.Inf(1), MinY: math.Inf(1), MinZ: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1), MaxZ: math.Inf(-1),
	}
	for i := 0; i+2 < len(g.Vertices); i += 3 {
		x, y, z := g.Vertices[i], g.Vertices[i+1], g.Vertices[i+2]
		b.MinX = math.Min(b.MinX, x)
		b.MinY = math.Min(b.MinY, y)
		b.MinZ = math.Min(b.MinZ, z)
		b.MaxX = math.Max(b.MaxX, x)
		b.MaxY = math.Max(b.MaxY, y)
		b.MaxZ = math.Max(b.MaxZ, z)
	}
	return b
}

// Volume returns the enclosed volume in cubic model units using the signed
// tetrahedron sum. Meaningful only for closed meshes; open meshes yield an
// approximation.
func (g *Geometry) Volume() float64 {
	var total float64
	for i := 0; i+2 < len(g.Faces); i += 3 {
		ax, ay, az := g.vertex(g.Faces[i])
		bx, by, bz := g.vertex(g.Faces[i+1])
		cx, cy, cz := g.vertex(g.Faces[i+2])
		total += ax*(by*cz-bz*cy) - ay*(bx*cz-bz*cx) + az*(bx*cy-by*cx)
	}
	return math.Abs(total) / 6
}

// SurfaceArea returns the summed triangle area in square model units.
func (g *Geometry) SurfaceArea() float64 {
	var total float64
	for i := 0; i+2 < len(g.Faces); i += 3 {
		ax, ay, az := g.vertex(g.Faces[i])
		bx, by, bz := g.vertex(g.Faces[i+1])
		cx, cy, cz := g.vertex(g.Faces[i+2])
		ux, uy, uz := bx-ax, by-ay, bz-az
		vx, vy, vz := cx-ax, cy-ay, cz-az
		nx := uy*vz - uz*vy
		ny := uz*vx - ux*vz
		nz := ux*vy - uy*vx
		total += math.Sqrt(nx*nx+ny*ny+nz*nz) / 2
	}
	return total
}

func (g *Geometry) vertex(idx uint32) (x, y, z float64) {
	i := int(idx) * 3
	return g.Vertices[i], g.Vertices[i+1], g.Vertices[i+2]
}
