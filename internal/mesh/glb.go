package mesh

import (
	"bytes"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/printforge/printforge/internal/faults"
)

// glbParser decodes binary glTF containers. Only the first primitive of the
// first mesh is considered; multi-mesh scenes are flattened upstream by the
// conversion backends.
type glbParser struct{}

func (p *glbParser) Formats() []Format { return []Format{FormatGLB} }

func (p *glbParser) Parse(data []byte) (*Geometry, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, &faults.InvalidFormatError{Format: "glb", Reason: err.Error()}
	}

	if len(doc.Meshes) == 0 || len(doc.Meshes[0].Primitives) == 0 {
		return nil, &faults.InvalidModelError{Reason: "glb contains no mesh primitives"}
	}
	prim := doc.Meshes[0].Primitives[0]

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, &faults.InvalidModelError{Reason: "glb primitive has no POSITION attribute"}
	}
	if int(posIdx) >= len(doc.Accessors) {
		return nil, &faults.InvalidFormatError{Format: "glb", Reason: "position accessor index out of range"}
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, &faults.ProcessingError{Op: "read glb positions", Cause: err}
	}

	geo := &Geometry{Vertices: make([]float64, 0, len(positions)*3)}
	for _, v := range positions {
		geo.Vertices = append(geo.Vertices, float64(v[0]), float64(v[1]), float64(v[2]))
	}

	if prim.Indices != nil {
		if int(*prim.Indices) >= len(doc.Accessors) {
			return nil, &faults.InvalidFormatError{Format: "glb", Reason: "index accessor index out of range"}
		}
		indices, readErr := modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if readErr != nil {
			return nil, &faults.ProcessingError{Op: "read glb indices", Cause: readErr}
		}
		geo.Faces = indices
	} else {
		// Non-indexed primitive: synthesize a sequential triangle list.
		if len(positions)%3 != 0 {
			return nil, &faults.InvalidModelError{
				Reason: "non-indexed glb primitive vertex count is not a multiple of 3",
			}
		}
		geo.Faces = make([]uint32, len(positions))
		for i := range geo.Faces {
			geo.Faces[i] = uint32(i) // #nosec G115 -- bounded by accessor count
		}
	}

	if normIdx, hasNormals := prim.Attributes[gltf.NORMAL]; hasNormals && int(normIdx) < len(doc.Accessors) {
		normals, readErr := modeler.ReadNormal(doc, doc.Accessors[normIdx], nil)
		if readErr == nil {
			geo.Normals = make([]float64, 0, len(normals)*3)
			for _, n := range normals {
				geo.Normals = append(geo.Normals, float64(n[0]), float64(n[1]), float64(n[2]))
			}
		}
	}

	return geo, nil
}
