package mesh

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/printforge/printforge/internal/faults"
)

// plyParser decodes ASCII PLY. The header declares vertex and face element
// counts; exactly that many body lines are consumed for each.
type plyParser struct{}

func (p *plyParser) Formats() []Format { return []Format{FormatPLY} }

// plyPreallocCap bounds how many elements a header count may preallocate.
const plyPreallocCap = 1 << 20

type plyHeader struct {
	vertexCount int
	faceCount   int
	hasColor    bool
}

func (p *plyParser) Parse(data []byte) (*Geometry, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	header, err := parsePLYHeader(scanner)
	if err != nil {
		return nil, err
	}

	// Preallocation trusts the header only up to a cap; a hostile count is
	// otherwise a cheap way to exhaust memory before the body is read.
	geo := &Geometry{
		Vertices: make([]float64, 0, min(header.vertexCount, plyPreallocCap)*3),
		Faces:    make([]uint32, 0, min(header.faceCount, plyPreallocCap)*3),
	}
	if header.hasColor {
		geo.Colors = make([]float64, 0, min(header.vertexCount, plyPreallocCap)*3)
	}

	if err := readPLYVertices(scanner, header, geo); err != nil {
		return nil, err
	}
	readPLYFaces(scanner, header, geo)
	return geo, nil
}

func parsePLYHeader(scanner *bufio.Scanner) (plyHeader, error) {
	var h plyHeader
	sawEnd := false
	currentElement := ""
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "element":
			if len(fields) < 3 {
				continue
			}
			currentElement = fields[1]
			n, err := strconv.Atoi(fields[2])
			if err != nil || n < 0 {
				return h, &faults.InvalidFormatError{Format: "ply", Reason: fmt.Sprintf("bad element count %q", fields[2])}
			}
			switch fields[1] {
			case "vertex":
				h.vertexCount = n
			case "face":
				h.faceCount = n
			}
		case "property":
			if currentElement == "vertex" && len(fields) == 3 {
				if fields[2] == "red" || fields[2] == "green" || fields[2] == "blue" {
					h.hasColor = true
				}
			}
		case "end_header":
			sawEnd = true
		}
		if sawEnd {
			break
		}
	}
	if !sawEnd {
		return h, &faults.InvalidFormatError{Format: "ply", Reason: "missing end_header sentinel"}
	}
	return h, nil
}

func readPLYVertices(scanner *bufio.Scanner, h plyHeader, geo *Geometry) error {
	for read := 0; read < h.vertexCount; {
		if !scanner.Scan() {
			return &faults.InvalidFormatError{
				Format: "ply",
				Reason: fmt.Sprintf("declared %d vertices, found %d", h.vertexCount, read),
			}
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 3 {
			return &faults.InvalidFormatError{Format: "ply", Reason: fmt.Sprintf("vertex line %d has %d fields", read, len(fields))}
		}
		for axis := 0; axis < 3; axis++ {
			v, err := strconv.ParseFloat(fields[axis], 64)
			if err != nil {
				return &faults.InvalidFormatError{Format: "ply", Reason: fmt.Sprintf("bad vertex coordinate %q", fields[axis])}
			}
			geo.Vertices = append(geo.Vertices, v)
		}
		// A trailing RGB triplet is treated as a per-vertex color in 0..1.
		if h.hasColor && len(fields) >= 6 {
			for c := 3; c < 6; c++ {
				raw, err := strconv.ParseFloat(fields[c], 64)
				if err == nil {
					geo.Colors = append(geo.Colors, raw/255)
				}
			}
		}
		read++
	}
	return nil
}

// readPLYFaces consumes face lines. Lines not shaped "3 i j k" are skipped,
// not fatal: quads and other polygons are simply ignored.
func readPLYFaces(scanner *bufio.Scanner, h plyHeader, geo *Geometry) {
	for read := 0; read < h.faceCount && scanner.Scan(); read++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[0] != "3" {
			continue
		}
		indices := make([]uint32, 0, 3)
		ok := true
		for _, f := range fields[1:4] {
			n, err := strconv.ParseUint(f, 10, 32)
			if err != nil {
				ok = false
				break
			}
			indices = append(indices, uint32(n))
		}
		if ok {
			geo.Faces = append(geo.Faces, indices...)
		}
	}
}
