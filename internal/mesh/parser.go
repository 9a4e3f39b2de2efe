package mesh

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/printforge/printforge/internal/faults"
)

// Format identifies a supported input mesh encoding.
type Format string

const (
	// FormatGLB is the binary glTF container format.
	FormatGLB Format = "glb"
	// FormatPLY is the ASCII Stanford polygon format.
	FormatPLY Format = "ply"
	// FormatOBJ is the Wavefront text format.
	FormatOBJ Format = "obj"
	// FormatSTL is the stereolithography format, binary or ASCII.
	FormatSTL Format = "stl"
)

// Parser decodes one encoding into a Geometry.
type Parser interface {
	Parse(data []byte) (*Geometry, error)
	Formats() []Format
}

// Registry routes raw bytes to the parser for their declared format.
type Registry struct {
	parsers map[Format]Parser
}

// NewRegistry returns a registry with all built-in format parsers installed.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[Format]Parser)}
	r.Register(&glbParser{})
	r.Register(&plyParser{})
	r.Register(&objParser{})
	r.Register(&stlParser{})
	return r
}

// Register installs a parser for each format it declares.
func (r *Registry) Register(p Parser) {
	for _, f := range p.Formats() {
		r.parsers[f] = p
	}
}

// FormatFromFilename derives the Format from a filename extension.
func FormatFromFilename(name string) (Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	f := Format(ext)
	if _, ok := map[Format]bool{FormatGLB: true, FormatPLY: true, FormatOBJ: true, FormatSTL: true}[f]; !ok {
		return "", &faults.InvalidFormatError{Reason: fmt.Sprintf("unsupported file extension %q", ext)}
	}
	return f, nil
}

// Parse decodes data declared to be in the given format. Parser failures
// that are not already classified surface as ProcessingError carrying the
// cause; a failed parse never returns a partial geometry.
func (r *Registry) Parse(data []byte, format Format) (*Geometry, error) {
	p, ok := r.parsers[format]
	if !ok {
		return nil, &faults.InvalidFormatError{Reason: fmt.Sprintf("unsupported format %q", format)}
	}
	if len(data) == 0 {
		return nil, &faults.InvalidFormatError{Format: string(format), Reason: "empty input"}
	}
	geo, err := p.Parse(data)
	if err != nil {
		return nil, classifyParseError(format, err)
	}
	if invErr := geo.CheckInvariants(); invErr != nil {
		return nil, &faults.InvalidModelError{Reason: invErr.Error()}
	}
	return geo, nil
}

func classifyParseError(format Format, err error) error {
	switch err.(type) {
	case *faults.InvalidFormatError, *faults.InvalidModelError, *faults.ProcessingError:
		return err
	}
	return &faults.ProcessingError{Op: fmt.Sprintf("parse %s", format), Cause: err}
}
