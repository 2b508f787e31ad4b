package imaging

import (
	"fmt"
	"image"
	"image/color"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

// gradient is a list of colour stops at increasing positions in [0, 1].
type gradient []struct {
	c   colorful.Color
	pos float64
}

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(fmt.Sprintf("imaging: bad colormap stop %q: %v", s, err))
	}
	return c
}

func stops(hex ...string) gradient {
	g := make(gradient, len(hex))
	for i, h := range hex {
		g[i].c = mustHex(h)
		g[i].pos = float64(i) / float64(len(hex)-1)
	}
	return g
}

// at blends the two stops surrounding t in CIE L*a*b*.
func (g gradient) at(t float64) colorful.Color {
	for i := 0; i < len(g)-1; i++ {
		lo, hi := g[i], g[i+1]
		if lo.pos <= t && t <= hi.pos {
			f := (t - lo.pos) / (hi.pos - lo.pos)
			return lo.c.BlendLab(hi.c, f).Clamped()
		}
	}
	return g[len(g)-1].c
}

var colormaps = map[string]gradient{
	"gray":    stops("#000000", "#ffffff"),
	"hot":     stops("#000000", "#e60000", "#ffd200", "#ffffff"),
	"magma":   stops("#000004", "#3b0f70", "#8c2981", "#de4968", "#fe9f6d", "#fcfdbf"),
	"viridis": stops("#440154", "#3b528b", "#21918c", "#5ec962", "#fde725"),
}

// Colormaps lists the available colormap names in sorted order.
func Colormaps() []string {
	names := make([]string, 0, len(colormaps))
	for name := range colormaps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Colorize maps the grey level of each pixel through the named colormap and
// returns an opaque RGBA image of the same size.
func Colorize(img image.Image, name string) (*image.RGBA, error) {
	g, ok := colormaps[name]
	if !ok {
		return nil, fmt.Errorf("unknown colormap %q (available: %v)", name, Colormaps())
	}

	var lut [Levels]color.RGBA
	for i := range lut {
		r, gg, b := g.at(float64(i) / float64(Levels-1)).RGB255()
		lut[i] = color.RGBA{R: r, G: gg, B: b, A: 255}
	}

	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			grey := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			out.SetRGBA(x-bounds.Min.X, y-bounds.Min.Y, lut[grey.Y])
		}
	}
	return out, nil
}
