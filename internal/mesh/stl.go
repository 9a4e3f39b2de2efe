package mesh

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/printforge/printforge/internal/faults"
)

const (
	stlHeaderSize   = 80
	stlTriangleSize = 50
)

// stlParser decodes STL input, detecting binary versus ASCII. Decoded
// triangles are welded into an indexed triangle list.
type stlParser struct{}

func (p *stlParser) Formats() []Format { return []Format{FormatSTL} }

func (p *stlParser) Parse(data []byte) (*Geometry, error) {
	if isASCIISTL(data) {
		return parseASCIISTL(data)
	}
	return parseBinarySTL(data)
}

// isASCIISTL distinguishes the two STL flavors. A "solid" prefix alone is not
// enough: binary exporters routinely write it into the 80-byte header, so the
// declared binary size is checked first.
func isASCIISTL(data []byte) bool {
	if len(data) >= stlHeaderSize+4 {
		count := binary.LittleEndian.Uint32(data[stlHeaderSize : stlHeaderSize+4])
		if len(data) == stlHeaderSize+4+int(count)*stlTriangleSize {
			return false
		}
	}
	return bytes.HasPrefix(bytes.TrimSpace(data), []byte("solid"))
}

func parseBinarySTL(data []byte) (*Geometry, error) {
	if len(data) < stlHeaderSize+4 {
		return nil, &faults.InvalidFormatError{Format: "stl", Reason: "input shorter than binary STL header"}
	}
	count := binary.LittleEndian.Uint32(data[stlHeaderSize : stlHeaderSize+4])
	want := stlHeaderSize + 4 + int(count)*stlTriangleSize
	if len(data) < want {
		return nil, &faults.InvalidFormatError{
			Format: "stl",
			Reason: fmt.Sprintf("declared %d triangles but only %d bytes present", count, len(data)),
		}
	}

	w := newVertexWelder()
	offset := stlHeaderSize + 4
	for n := uint32(0); n < count; n++ {
		// Skip the 12-byte facet normal; normals are recomputed on encode.
		offset += 12
		for v := 0; v < 3; v++ {
			x := math.Float32frombits(binary.LittleEndian.Uint32(data[offset:]))
			y := math.Float32frombits(binary.LittleEndian.Uint32(data[offset+4:]))
			z := math.Float32frombits(binary.LittleEndian.Uint32(data[offset+8:]))
			w.add(float64(x), float64(y), float64(z))
			offset += 12
		}
		offset += 2 // attribute byte count
	}
	return w.geometry(), nil
}

func parseASCIISTL(data []byte) (*Geometry, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	w := newVertexWelder()
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 4 || fields[0] != "vertex" {
			continue
		}
		var coords [3]float64
		ok := true
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				ok = false
				break
			}
			coords[i] = v
		}
		if ok {
			w.add(coords[0], coords[1], coords[2])
		}
	}
	geo := w.geometry()
	if geo.TriangleCount() == 0 {
		return nil, &faults.InvalidFormatError{Format: "stl", Reason: "ascii input contains no facets"}
	}
	if len(geo.Faces)%3 != 0 {
		return nil, &faults.InvalidFormatError{Format: "stl", Reason: "ascii facet with vertex count not a multiple of 3"}
	}
	return geo, nil
}

// vertexWelder builds an indexed triangle list from a raw vertex soup,
// deduplicating exact-coordinate matches.
type vertexWelder struct {
	geo  *Geometry
	seen map[[3]float64]uint32
}

func newVertexWelder() *vertexWelder {
	return &vertexWelder{geo: &Geometry{}, seen: make(map[[3]float64]uint32)}
}

func (w *vertexWelder) add(x, y, z float64) {
	key := [3]float64{x, y, z}
	idx, ok := w.seen[key]
	if !ok {
		idx = uint32(len(w.geo.Vertices) / 3) // #nosec G115 -- bounded by input size
		w.seen[key] = idx
		w.geo.Vertices = append(w.geo.Vertices, x, y, z)
	}
	w.geo.Faces = append(w.geo.Faces, idx)
}

func (w *vertexWelder) geometry() *Geometry { return w.geo }

// EncodeSTL serializes a geometry into the binary STL wire format:
// an 80-byte ASCII header, a little-endian uint32 triangle count, then per
// triangle 12 bytes of normal, 36 bytes of vertices and a zero attribute
// count. Output is deterministic given the mesh and its face order.
func EncodeSTL(geo *Geometry) ([]byte, error) {
	if err := geo.CheckInvariants(); err != nil {
		return nil, &faults.InvalidModelError{Reason: err.Error()}
	}
	triangles := geo.TriangleCount()

	buf := bytes.NewBuffer(make([]byte, 0, stlHeaderSize+4+triangles*stlTriangleSize))
	header := make([]byte, stlHeaderSize)
	copy(header, "printforge binary stl")
	buf.Write(header)

	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], uint32(triangles)) // #nosec G115 -- bounded by buffer length
	buf.Write(scratch[:])

	writeF32 := func(v float64) {
		binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(float32(v)))
		buf.Write(scratch[:])
	}

	for i := 0; i+2 < len(geo.Faces); i += 3 {
		nx, ny, nz := faceNormal(geo, geo.Faces[i], geo.Faces[i+1], geo.Faces[i+2])
		writeF32(nx)
		writeF32(ny)
		writeF32(nz)
		for _, idx := range geo.Faces[i : i+3] {
			x, y, z := geo.vertex(idx)
			writeF32(x)
			writeF32(y)
			writeF32(z)
		}
		buf.WriteByte(0)
		buf.WriteByte(0)
	}
	return buf.Bytes(), nil
}

// faceNormal computes the unit normal of a triangle via the cross product of
// two edge vectors. Degenerate triangles yield a zero vector rather than a
// division by zero.
func faceNormal(geo *Geometry, a, b, c uint32) (nx, ny, nz float64) {
	ax, ay, az := geo.vertex(a)
	bx, by, bz := geo.vertex(b)
	cx, cy, cz := geo.vertex(c)
	ux, uy, uz := bx-ax, by-ay, bz-az
	vx, vy, vz := cx-ax, cy-ay, cz-az
	nx = uy*vz - uz*vy
	ny = uz*vx - ux*vz
	nz = ux*vy - uy*vx
	length := math.Sqrt(nx*nx + ny*ny + nz*nz)
	if length == 0 {
		return 0, 0, 0
	}
	return nx / length, ny / length, nz / length
}
