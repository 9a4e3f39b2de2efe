package model

import (
	"fmt"
	"strings"
)

// PrinterProfile describes the physical constraints of a target printer.
type PrinterProfile struct {
	Name             string
	BuildVolumeXMM   float64
	BuildVolumeYMM   float64
	BuildVolumeZMM   float64
	NozzleDiameterMM float64
	MaxPrintSpeedMMS float64
	MaxTravelMMS     float64
	HeatedBed        bool
}

// MinWallThicknessMM is the thinnest printable wall, derived from the nozzle.
func (p PrinterProfile) MinWallThicknessMM() float64 {
	return 2 * p.NozzleDiameterMM
}

// MaterialProfile describes temperatures, density and cost for a filament.
type MaterialProfile struct {
	Name          string
	NozzleTempC   int
	BedTempC      int
	FanPercent    int
	DensityGCM3   float64
	CostPerGramUSD float64
	Flexible      bool
}

// QualityPreset describes a layer-height/speed tier.
type QualityPreset struct {
	Name          string
	LayerHeightMM float64
	PrintSpeedMMS float64
	Perimeters    int
}

// The lookup tables below default user-overridable settings. Keys are
// lowercase; Lookup* helpers normalize.

var printerProfiles = map[string]PrinterProfile{
	"default": {
		Name:             "default",
		BuildVolumeXMM:   256,
		BuildVolumeYMM:   256,
		BuildVolumeZMM:   256,
		NozzleDiameterMM: 0.4,
		MaxPrintSpeedMMS: 300,
		MaxTravelMMS:     500,
		HeatedBed:        true,
	},
	"mini": {
		Name:             "mini",
		BuildVolumeXMM:   180,
		BuildVolumeYMM:   180,
		BuildVolumeZMM:   180,
		NozzleDiameterMM: 0.4,
		MaxPrintSpeedMMS: 180,
		MaxTravelMMS:     300,
		HeatedBed:        true,
	},
	"large": {
		Name:             "large",
		BuildVolumeXMM:   350,
		BuildVolumeYMM:   350,
		BuildVolumeZMM:   400,
		NozzleDiameterMM: 0.6,
		MaxPrintSpeedMMS: 250,
		MaxTravelMMS:     400,
		HeatedBed:        true,
	},
}

var materialProfiles = map[string]MaterialProfile{
	"pla": {
		Name:           "pla",
		NozzleTempC:    210,
		BedTempC:       60,
		FanPercent:     100,
		DensityGCM3:    1.24,
		CostPerGramUSD: 0.025,
	},
	"petg": {
		Name:           "petg",
		NozzleTempC:    240,
		BedTempC:       80,
		FanPercent:     50,
		DensityGCM3:    1.27,
		CostPerGramUSD: 0.03,
	},
	"abs": {
		Name:           "abs",
		NozzleTempC:    250,
		BedTempC:       100,
		FanPercent:     0,
		DensityGCM3:    1.04,
		CostPerGramUSD: 0.028,
	},
	"tpu": {
		Name:           "tpu",
		NozzleTempC:    225,
		BedTempC:       50,
		FanPercent:     50,
		DensityGCM3:    1.21,
		CostPerGramUSD: 0.045,
		Flexible:       true,
	},
}

var qualityPresets = map[string]QualityPreset{
	"draft":    {Name: "draft", LayerHeightMM: 0.28, PrintSpeedMMS: 120, Perimeters: 2},
	"standard": {Name: "standard", LayerHeightMM: 0.2, PrintSpeedMMS: 80, Perimeters: 2},
	"fine":     {Name: "fine", LayerHeightMM: 0.12, PrintSpeedMMS: 50, Perimeters: 3},
}

// LookupPrinterProfile resolves a printer name, falling back to "default"
// when empty. Unknown names are an error rather than a silent fallback.
func LookupPrinterProfile(name string) (PrinterProfile, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = "default"
	}
	p, ok := printerProfiles[key]
	if !ok {
		return PrinterProfile{}, fmt.Errorf("unknown printer profile %q", name)
	}
	return p, nil
}

// LookupMaterialProfile resolves a material name, defaulting to PLA.
func LookupMaterialProfile(name string) (MaterialProfile, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = "pla"
	}
	m, ok := materialProfiles[key]
	if !ok {
		return MaterialProfile{}, fmt.Errorf("unknown material %q", name)
	}
	return m, nil
}

// LookupQualityPreset resolves a quality tier, defaulting to standard.
func LookupQualityPreset(name string) (QualityPreset, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = "standard"
	}
	q, ok := qualityPresets[key]
	if !ok {
		return QualityPreset{}, fmt.Errorf("unknown quality preset %q", name)
	}
	return q, nil
}

// ApplyDefaults fills zero-valued print settings from the material and
// quality tables. Explicit user values are preserved.
func (s *PrintSettings) ApplyDefaults(material MaterialProfile, quality QualityPreset) {
	if s.Material == "" {
		s.Material = material.Name
	}
	if s.Quality == "" {
		s.Quality = quality.Name
	}
	if s.InfillPercent == 0 {
		s.InfillPercent = 20
	}
	if s.LayerHeightMM == 0 {
		s.LayerHeightMM = quality.LayerHeightMM
	}
	if s.PrintSpeedMMS == 0 {
		s.PrintSpeedMMS = quality.PrintSpeedMMS
	}
	if s.NozzleTempC == 0 {
		s.NozzleTempC = material.NozzleTempC
	}
	if s.BedTempC == 0 {
		s.BedTempC = material.BedTempC
	}
}
