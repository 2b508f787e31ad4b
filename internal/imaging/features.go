package imaging

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/stat"
)

// Features are first-order texture statistics of a frame's grey levels, the
// same set the inference backend reports for a region of interest.
type Features struct {
	Mean       float64 `json:"mean_region"`
	Variance   float64 `json:"variance"`
	Skewness   float64 `json:"skewness"`
	Kurtosis   float64 `json:"kurtosis"` // excess kurtosis
	Entropy    float64 `json:"entropy"`  // bits, over 256 grey levels
	Smoothness float64 `json:"smoothness"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Pixels     int     `json:"pixels"`
	Region     *Region `json:"region,omitempty"`
}

// ComputeFeatures reduces img (or region of it) to grey levels and computes
// its statistics. Smoothness is 1 - 1/(1 + variance) with variance measured on
// levels normalised to [0, 1].
func ComputeFeatures(img image.Image, region *Region) (*Features, error) {
	src := img
	if region != nil {
		if err := region.Within(img.Bounds()); err != nil {
			return nil, err
		}
		src = imaging.Crop(img, region.Rect())
	}

	grey := imaging.Grayscale(src)
	b := grey.Bounds()
	xs := make([]float64, 0, b.Dx()*b.Dy())
	lo, hi := math.Inf(1), math.Inf(-1)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := grey.Pix[(y-b.Min.Y)*grey.Stride:]
		for x := 0; x < b.Dx(); x++ {
			v := float64(row[x*4])
			xs = append(xs, v)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}

	f := &Features{Pixels: len(xs), Region: region}
	if len(xs) == 0 {
		return f, nil
	}
	f.Min, f.Max = lo, hi
	f.Mean, f.Variance = stat.MeanVariance(xs, nil)
	if len(xs) < 2 {
		f.Variance = 0
	}
	// The sample corrections divide by n-2 and n-3.
	if f.Variance > 0 && len(xs) >= 3 {
		f.Skewness = stat.Skew(xs, nil)
	}
	if f.Variance > 0 && len(xs) >= 4 {
		f.Kurtosis = stat.ExKurtosis(xs, nil)
	}

	norm := f.Variance / float64((Levels-1)*(Levels-1))
	f.Smoothness = 1 - 1/(1+norm)

	levels := GreyLevels(src)
	p := make([]float64, len(levels))
	for i, n := range levels {
		p[i] = float64(n) / float64(len(xs))
	}
	f.Entropy = stat.Entropy(p) / math.Ln2
	return f, nil
}
