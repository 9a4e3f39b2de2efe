package slicer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printforge/printforge/internal/domain/model"
	"github.com/printforge/printforge/internal/mesh"
)

func boxGeometry(w, d, h float64) *mesh.Geometry {
	return &mesh.Geometry{
		Vertices: []float64{
			0, 0, 0, w, 0, 0, w, d, 0, 0, d, 0,
			0, 0, h, w, 0, h, w, d, h, 0, d, h,
		},
		Faces: []uint32{
			0, 2, 1, 0, 3, 2,
			4, 5, 6, 4, 6, 7,
			0, 1, 5, 0, 5, 4,
			2, 3, 7, 2, 7, 6,
			0, 4, 7, 0, 7, 3,
			1, 2, 6, 1, 6, 5,
		},
	}
}

func buildInput(t *testing.T, geo *mesh.Geometry) BuildInput {
	t.Helper()
	printer, err := model.LookupPrinterProfile("default")
	require.NoError(t, err)
	material, err := model.LookupMaterialProfile("pla")
	require.NoError(t, err)
	quality, err := model.LookupQualityPreset("standard")
	require.NoError(t, err)

	settings := model.PrintSettings{}
	settings.ApplyDefaults(material, quality)
	return BuildInput{
		Geometry:   geo,
		Printer:    printer,
		Material:   material,
		Quality:    quality,
		Settings:   settings,
		Validation: mesh.Validate(geo, printer),
	}
}

func TestBuild_Sections(t *testing.T) {
	in := buildInput(t, boxGeometry(50, 50, 50))
	profile := Build(in)

	assert.Equal(t, 0.2, profile.Print.LayerHeightMM)
	assert.Equal(t, 0.25, profile.Print.FirstLayerHeightMM)
	assert.Equal(t, 2, profile.Print.Perimeters)
	assert.Equal(t, 20, profile.Print.InfillPercent)
	assert.Equal(t, "pla", profile.Filament.Material)
	assert.Equal(t, 210, profile.Filament.NozzleTempC)
	assert.Equal(t, "default", profile.Printer.Name)
	assert.Equal(t, 256.0, profile.Printer.BuildVolumeXMM)
	assert.Equal(t, 2500.0, profile.Model.BaseContactAreaMM2)
}

func TestBuild_PrintSpeedCappedByPrinter(t *testing.T) {
	in := buildInput(t, boxGeometry(50, 50, 50))
	in.Settings.PrintSpeedMMS = 900
	profile := Build(in)
	assert.Equal(t, in.Printer.MaxPrintSpeedMMS, profile.Print.PrintSpeedMMS)
}

func TestBuild_ScaleFactor(t *testing.T) {
	t.Run("fits without scaling", func(t *testing.T) {
		profile := Build(buildInput(t, boxGeometry(50, 50, 50)))
		assert.Equal(t, 1.0, profile.Model.ScaleFactor)
	})

	t.Run("never upscaled above 1.0", func(t *testing.T) {
		profile := Build(buildInput(t, boxGeometry(1, 1, 1)))
		assert.Equal(t, 1.0, profile.Model.ScaleFactor)
	})

	t.Run("scaled to the tightest axis", func(t *testing.T) {
		// 512mm in X against a 256mm volume wants a 0.5 factor
		profile := Build(buildInput(t, boxGeometry(512, 50, 50)))
		assert.Equal(t, 0.5, profile.Model.ScaleFactor)
	})
}

func TestBuild_PerimeterRules(t *testing.T) {
	t.Run("flexible material floors at three", func(t *testing.T) {
		in := buildInput(t, boxGeometry(50, 50, 50))
		tpu, err := model.LookupMaterialProfile("tpu")
		require.NoError(t, err)
		in.Material = tpu
		profile := Build(in)
		assert.Equal(t, 3, profile.Print.Perimeters)
	})

	t.Run("fine quality keeps its preset", func(t *testing.T) {
		in := buildInput(t, boxGeometry(50, 50, 50))
		fine, err := model.LookupQualityPreset("fine")
		require.NoError(t, err)
		in.Quality = fine
		profile := Build(in)
		assert.Equal(t, 3, profile.Print.Perimeters)
	})
}

func TestBuild_BrimWidth(t *testing.T) {
	t.Run("stable model gets no brim", func(t *testing.T) {
		profile := Build(buildInput(t, boxGeometry(50, 50, 50)))
		assert.Equal(t, 0.0, profile.Print.BrimWidthMM)
	})

	t.Run("tall narrow model gets adhesion help", func(t *testing.T) {
		// 10x10mm base (under 400mm^2) with a 5x aspect ratio
		profile := Build(buildInput(t, boxGeometry(10, 10, 50)))
		assert.Equal(t, 7.0, profile.Print.BrimWidthMM)
	})

	t.Run("capped at ten millimetres", func(t *testing.T) {
		// oversized, tall and tiny-footprint at once
		in := buildInput(t, boxGeometry(10, 10, 300))
		profile := Build(in)
		assert.Equal(t, 10.0, profile.Print.BrimWidthMM)
	})
}

func TestBuild_RecommendedOrientation(t *testing.T) {
	cases := []struct {
		w, d, h float64
		want    string
	}{
		{50, 40, 10, "xy"},
		{50, 10, 40, "xz"},
		{10, 50, 40, "yz"},
	}
	for _, tc := range cases {
		profile := Build(buildInput(t, boxGeometry(tc.w, tc.d, tc.h)))
		assert.Equal(t, tc.want, profile.Model.RecommendedOrientation, "box %vx%vx%v", tc.w, tc.d, tc.h)
	}
}
