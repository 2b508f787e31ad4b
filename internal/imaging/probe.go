package imaging

import (
	"fmt"
	"image"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// RGBColor represents an RGB color with 8-bit components.
type RGBColor struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// HSLColor represents a color in HSL space.
type HSLColor struct {
	H int `json:"h"` // Hue: 0-360 degrees
	S int `json:"s"` // Saturation: 0-100 percent
	L int `json:"l"` // Lightness: 0-100 percent
}

// ProbeResult describes a single rendered pixel.
//
// Intensity is the 0..255 grey level the decoder assigned to the pixel. For
// rendered .dat frames R, G and B are equal so this is simply R; for standard
// frames it is the Rec. 601 luma of the pixel.
type ProbeResult struct {
	X         int      `json:"x"`
	Y         int      `json:"y"`
	Hex       string   `json:"hex"`
	RGB       RGBColor `json:"rgb"`
	HSL       HSLColor `json:"hsl"`
	Intensity uint8    `json:"intensity"`
}

// SampleColor reads the pixel at (x, y).
//
// Coordinates are 0-based with origin at top-left. An error is returned when
// (x, y) falls outside the image.
func SampleColor(img image.Image, x, y int) (*ProbeResult, error) {
	bounds := img.Bounds()
	if !(image.Point{X: x, Y: y}).In(bounds) {
		return nil, fmt.Errorf("coordinates (%d,%d) outside image bounds", x, y)
	}

	c, _ := colorful.MakeColor(img.At(x, y))
	r, g, b := c.RGB255()
	h, s, l := c.Hsl()

	return &ProbeResult{
		X:   x,
		Y:   y,
		Hex: fmt.Sprintf("#%02X%02X%02X", r, g, b),
		RGB: RGBColor{R: r, G: g, B: b},
		HSL: HSLColor{
			H: int(math.Round(h)) % 360,
			S: int(math.Round(s * 100)),
			L: int(math.Round(l * 100)),
		},
		Intensity: luma(r, g, b),
	}, nil
}

func luma(r, g, b uint8) uint8 {
	if r == g && g == b {
		return r
	}
	y := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
	return uint8(math.Round(math.Min(255, y)))
}
