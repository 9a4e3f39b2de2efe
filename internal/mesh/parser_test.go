package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printforge/printforge/internal/faults"
)

func TestFormatFromFilename(t *testing.T) {
	cases := map[string]Format{
		"widget.stl":        FormatSTL,
		"scan.PLY":          FormatPLY,
		"model.glb":         FormatGLB,
		"archive.v2.obj":    FormatOBJ,
		"dir/part.name.STL": FormatSTL,
	}
	for name, want := range cases {
		got, err := FormatFromFilename(name)
		require.NoError(t, err, "name=%q", name)
		assert.Equal(t, want, got, "name=%q", name)
	}

	for _, name := range []string{"model.step", "model", "model.gcode"} {
		_, err := FormatFromFilename(name)
		var formatErr *faults.InvalidFormatError
		require.ErrorAs(t, err, &formatErr, "name=%q", name)
	}
}

func TestRegistry_Parse_EmptyInput(t *testing.T) {
	r := NewRegistry()
	_, err := r.Parse(nil, FormatSTL)
	var formatErr *faults.InvalidFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, formatErr.Reason, "empty")
}

func TestRegistry_Parse_UnknownFormat(t *testing.T) {
	r := NewRegistry()
	_, err := r.Parse([]byte("data"), Format("step"))
	var formatErr *faults.InvalidFormatError
	assert.ErrorAs(t, err, &formatErr)
}

func TestRegistry_Parse_PLY(t *testing.T) {
	input := []byte(`ply
format ascii 1.0
element vertex 4
property float x
property float y
property float z
element face 2
property list uchar int vertex_indices
end_header
0 0 0
10 0 0
10 10 0
0 10 0
3 0 1 2
3 0 2 3
`)
	r := NewRegistry()
	geo, err := r.Parse(input, FormatPLY)
	require.NoError(t, err)
	assert.Len(t, geo.Vertices, 12)
	assert.Len(t, geo.Faces, 6)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, geo.Faces)
	assert.Equal(t, 10.0, geo.Bounds().Width())
}

func TestRegistry_Parse_PLYWithColors(t *testing.T) {
	input := []byte(`ply
format ascii 1.0
element vertex 3
property float x
property float y
property float z
property uchar red
property uchar green
property uchar blue
element face 1
property list uchar int vertex_indices
end_header
0 0 0 255 0 0
1 0 0 0 255 0
0 1 0 0 0 255
3 0 1 2
`)
	r := NewRegistry()
	geo, err := r.Parse(input, FormatPLY)
	require.NoError(t, err)
	require.Len(t, geo.Colors, 9)
	assert.InDelta(t, 1.0, geo.Colors[0], 1e-9)
	assert.InDelta(t, 0.0, geo.Colors[1], 1e-9)
}

func TestRegistry_Parse_PLYMissingEndHeader(t *testing.T) {
	r := NewRegistry()
	_, err := r.Parse([]byte("ply\nformat ascii 1.0\nelement vertex 1\n0 0 0\n"), FormatPLY)
	var formatErr *faults.InvalidFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, formatErr.Reason, "end_header")
}

func TestRegistry_Parse_PLYBadElementCounts(t *testing.T) {
	r := NewRegistry()
	for _, count := range []string{"-1", "-2147483648", "many"} {
		input := []byte("ply\nformat ascii 1.0\nelement vertex " + count +
			"\nelement face 0\nend_header\n")
		_, err := r.Parse(input, FormatPLY)
		var formatErr *faults.InvalidFormatError
		require.ErrorAs(t, err, &formatErr, "count=%q", count)
		assert.Contains(t, formatErr.Reason, "element count", "count=%q", count)
	}
}

func TestRegistry_Parse_PLYHugeDeclaredCount(t *testing.T) {
	// A header may promise far more elements than the body delivers; the
	// declared count must not be trusted for allocation.
	input := []byte("ply\nelement vertex 2000000000\nelement face 0\nend_header\n0 0 0\n")
	r := NewRegistry()
	_, err := r.Parse(input, FormatPLY)
	var formatErr *faults.InvalidFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, formatErr.Reason, "declared")
}

func TestRegistry_Parse_PLYTruncatedVertices(t *testing.T) {
	input := []byte(`ply
element vertex 4
element face 0
end_header
0 0 0
1 0 0
`)
	r := NewRegistry()
	_, err := r.Parse(input, FormatPLY)
	var formatErr *faults.InvalidFormatError
	assert.ErrorAs(t, err, &formatErr)
}

func TestRegistry_Parse_OBJ(t *testing.T) {
	input := []byte(`# a single quad
v 0 0 0
v 10 0 0
v 10 10 0
v 0 10 0
f 1 2 3 4
`)
	r := NewRegistry()
	geo, err := r.Parse(input, FormatOBJ)
	require.NoError(t, err)
	assert.Equal(t, 4, geo.VertexCount())
	// quads fan-triangulate into two triangles
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, geo.Faces)
}

func TestRegistry_Parse_OBJFaceTokenForms(t *testing.T) {
	input := []byte(`v 0 0 0
v 1 0 0
v 0 1 0
f 1/1 2//3 -1
`)
	r := NewRegistry()
	geo, err := r.Parse(input, FormatOBJ)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2}, geo.Faces)
}

func TestRegistry_Parse_OBJIndexOutOfRange(t *testing.T) {
	input := []byte(`v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 9
`)
	r := NewRegistry()
	_, err := r.Parse(input, FormatOBJ)
	var modelErr *faults.InvalidModelError
	assert.ErrorAs(t, err, &modelErr)
}

func TestRegistry_Parse_OBJNoVertices(t *testing.T) {
	r := NewRegistry()
	_, err := r.Parse([]byte("# empty file\n"), FormatOBJ)
	var modelErr *faults.InvalidModelError
	assert.ErrorAs(t, err, &modelErr)
}
