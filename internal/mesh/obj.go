package mesh

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/printforge/printforge/internal/faults"
)

// objParser decodes Wavefront OBJ text. Positions and faces only; texture
// and normal references in face tokens are parsed past. Polygons with more
// than three vertices are fan-triangulated.
type objParser struct{}

func (p *objParser) Formats() []Format { return []Format{FormatOBJ} }

func (p *objParser) Parse(data []byte) (*Geometry, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	geo := &Geometry{}
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, &faults.InvalidFormatError{Format: "obj", Reason: fmt.Sprintf("line %d: vertex needs 3 coordinates", lineNo)}
			}
			for axis := 1; axis <= 3; axis++ {
				v, err := strconv.ParseFloat(fields[axis], 64)
				if err != nil {
					return nil, &faults.InvalidFormatError{Format: "obj", Reason: fmt.Sprintf("line %d: bad coordinate %q", lineNo, fields[axis])}
				}
				geo.Vertices = append(geo.Vertices, v)
			}
		case "f":
			if err := parseOBJFace(fields[1:], lineNo, geo); err != nil {
				return nil, err
			}
		}
	}
	if len(geo.Vertices) == 0 {
		return nil, &faults.InvalidModelError{Reason: "obj contains no vertices"}
	}
	return geo, nil
}

func parseOBJFace(tokens []string, lineNo int, geo *Geometry) error {
	if len(tokens) < 3 {
		return &faults.InvalidFormatError{Format: "obj", Reason: fmt.Sprintf("line %d: face needs at least 3 vertices", lineNo)}
	}
	indices := make([]uint32, 0, len(tokens))
	vertexCount := len(geo.Vertices) / 3
	for _, tok := range tokens {
		// Face tokens may be v, v/vt, v//vn, or v/vt/vn; only v matters here.
		ref := strings.SplitN(tok, "/", 2)[0]
		n, err := strconv.Atoi(ref)
		if err != nil {
			return &faults.InvalidFormatError{Format: "obj", Reason: fmt.Sprintf("line %d: bad face index %q", lineNo, tok)}
		}
		if n < 0 {
			n = vertexCount + n + 1
		}
		if n < 1 || n > vertexCount {
			return &faults.InvalidModelError{Reason: fmt.Sprintf("obj line %d: face index %d out of range", lineNo, n)}
		}
		indices = append(indices, uint32(n-1)) // #nosec G115 -- bounded by vertexCount
	}
	for i := 1; i+1 < len(indices); i++ {
		geo.Faces = append(geo.Faces, indices[0], indices[i], indices[i+1])
	}
	return nil
}
