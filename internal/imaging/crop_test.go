package imaging

import (
	"bytes"
	"encoding/base64"
	"image/color"
	"image/png"
	"testing"
)

func TestCrop(t *testing.T) {
	img := createRampImage(100, 60)

	result, err := Crop(img, Region{X: 10, Y: 5, Width: 50, Height: 40}, 1.0)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}

	if result.Width != 50 || result.Height != 40 {
		t.Errorf("dimensions: got %dx%d, want 50x40", result.Width, result.Height)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}
	if result.Region != (Region{X: 10, Y: 5, Width: 50, Height: 40}) {
		t.Errorf("Region not echoed: %+v", result.Region)
	}

	data, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}

	// The left edge of the crop is column 10 of the ramp.
	want := img.RGBAAt(10, 5)
	r, _, _, _ := decoded.At(0, 0).RGBA()
	if uint8(r>>8) != want.R {
		t.Errorf("first pixel: got %d, want %d", r>>8, want.R)
	}
}

func TestCrop_Scale(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	tests := []struct {
		name          string
		region        Region
		scale         float64
		width, height int
	}{
		{"zoom 2x", Region{0, 0, 50, 50}, 2.0, 100, 100},
		{"shrink", Region{0, 0, 100, 100}, 0.5, 50, 50},
		{"zero scale means 1", Region{0, 0, 30, 20}, 0, 30, 20},
		{"negative scale means 1", Region{0, 0, 30, 20}, -3, 30, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Crop(img, tt.region, tt.scale)
			if err != nil {
				t.Fatalf("Crop failed: %v", err)
			}
			if result.Width != tt.width || result.Height != tt.height {
				t.Errorf("dimensions: got %dx%d, want %dx%d", result.Width, result.Height, tt.width, tt.height)
			}
		})
	}
}

func TestCrop_InvalidRegion(t *testing.T) {
	img := createInMemoryImage(100, 100, color.Black)

	tests := []struct {
		name   string
		region Region
		scale  float64
	}{
		{"negative x", Region{-1, 0, 50, 50}, 1},
		{"negative y", Region{0, -1, 50, 50}, 1},
		{"too wide", Region{60, 0, 50, 50}, 1},
		{"too tall", Region{0, 60, 50, 50}, 1},
		{"zero width", Region{0, 0, 0, 50}, 1},
		{"negative height", Region{0, 0, 10, -5}, 1},
		{"scaled to nothing", Region{0, 0, 2, 2}, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Crop(img, tt.region, tt.scale); err == nil {
				t.Error("Crop should fail")
			}
		})
	}
}
