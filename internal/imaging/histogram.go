package imaging

import (
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/histogram"
	"github.com/disintegration/imaging"
)

// Levels is the number of grey levels in a rendered frame.
const Levels = 256

// HistogramResult summarises the grey-level distribution of a frame or a
// region of it.
type HistogramResult struct {
	Bins   []int   `json:"bins"`
	Bucket int     `json:"bucket_width"` // grey levels per bin
	Total  int     `json:"total"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Mode   int     `json:"mode"`
	Median int     `json:"median"`
	Mean   float64 `json:"mean"`
	Region *Region `json:"region,omitempty"`
}

// GreyLevels returns the 256-bin grey-level histogram of img. Colour images
// are reduced to luminance first.
func GreyLevels(img image.Image) []int {
	grey := imaging.Grayscale(img)
	h := histogram.NewRGBAHistogram(grey)
	bins := make([]int, Levels)
	copy(bins, h.R.Bins)
	return bins
}

// Histogram computes the grey-level histogram of img, or of region when it
// is non-nil. bins must divide 256 evenly; zero means 256.
func Histogram(img image.Image, region *Region, bins int) (*HistogramResult, error) {
	if bins == 0 {
		bins = Levels
	}
	if bins < 1 || bins > Levels || Levels%bins != 0 {
		return nil, fmt.Errorf("bins must be a divisor of %d, got %d", Levels, bins)
	}

	src := img
	if region != nil {
		if err := region.Within(img.Bounds()); err != nil {
			return nil, err
		}
		src = imaging.Crop(img, region.Rect())
	}

	levels := GreyLevels(src)
	res := &HistogramResult{
		Bins:   make([]int, bins),
		Bucket: Levels / bins,
		Min:    -1,
		Region: region,
	}

	var sum float64
	for level, n := range levels {
		res.Bins[level/res.Bucket] += n
		if n == 0 {
			continue
		}
		if res.Min < 0 {
			res.Min = level
		}
		res.Max = level
		if n > levels[res.Mode] {
			res.Mode = level
		}
		res.Total += n
		sum += float64(level) * float64(n)
	}
	if res.Total == 0 {
		res.Min = 0
		return res, nil
	}
	res.Mean = sum / float64(res.Total)

	half := (res.Total + 1) / 2
	seen := 0
	for level, n := range levels {
		seen += n
		if seen >= half {
			res.Median = level
			break
		}
	}
	return res, nil
}
