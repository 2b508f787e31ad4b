package datgrid

import (
	"image"
	"math"
)

// MaxPixels bounds rows*cols so a typo in the dimensions cannot allocate an
// unbounded raster.
const MaxPixels = 1 << 28

// FlatIntensity is the gray level used for every pixel of a flat-range grid.
const FlatIntensity = 128

// IntensityRange is the smallest and largest sample of a grid.
type IntensityRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Flat reports whether every comparable sample has the same value.
func (r IntensityRange) Flat() bool {
	return r.Max == r.Min
}

// Empty reports whether the scan found no comparable (non-NaN) sample.
func (r IntensityRange) Empty() bool {
	return r.Min > r.Max
}

// validate checks the preconditions shared by every entry point and returns
// the sample count.
func validate(buf []byte, rows, cols int, p Precision) (int, error) {
	if buf == nil {
		return 0, invalidInput("buffer", "buffer is nil")
	}
	if rows <= 0 || cols <= 0 {
		return 0, invalidInput("dimensions", "rows and cols must be positive, got %dx%d", rows, cols)
	}
	if rows > MaxPixels/cols {
		return 0, invalidInput("dimensions", "%dx%d exceeds the %d pixel limit", rows, cols, MaxPixels)
	}
	if !p.Valid() {
		return 0, invalidInput("precision", "unknown precision %d", int(p))
	}
	n := rows * cols
	need := n * p.ElementSize()
	if len(buf) < need {
		return 0, invalidInput("buffer length",
			"%d bytes is too short for %dx%d %s samples (need %d)", len(buf), rows, cols, p, need)
	}
	return n, nil
}

func scan(buf []byte, n int, read sampleReader) IntensityRange {
	r := IntensityRange{Min: math.Inf(1), Max: math.Inf(-1)}
	for i := 0; i < n; i++ {
		s := read(buf, i)
		if s < r.Min {
			r.Min = s
		}
		if s > r.Max {
			r.Max = s
		}
	}
	return r
}

// Scan computes the intensity range of a grid without building a raster.
func Scan(buf []byte, rows, cols int, p Precision) (IntensityRange, error) {
	n, err := validate(buf, rows, cols, p)
	if err != nil {
		return IntensityRange{}, err
	}
	return scan(buf, n, precisions[p].read), nil
}

// Samples expands a grid into float64 values in row-major order.
func Samples(buf []byte, rows, cols int, p Precision) ([]float64, error) {
	n, err := validate(buf, rows, cols, p)
	if err != nil {
		return nil, err
	}
	read := precisions[p].read
	out := make([]float64, n)
	for i := range out {
		out[i] = read(buf, i)
	}
	return out, nil
}

// SampleAt returns the raw value of sample (row, col).
func SampleAt(buf []byte, rows, cols int, p Precision, row, col int) (float64, error) {
	if _, err := validate(buf, rows, cols, p); err != nil {
		return 0, err
	}
	if row < 0 || row >= rows || col < 0 || col >= cols {
		return 0, invalidInput("coordinates", "(%d,%d) outside %dx%d grid", row, col, rows, cols)
	}
	return precisions[p].read(buf, row*cols+col), nil
}

// Decode normalizes a raw grid into an 8-bit grayscale raster. The raster is
// cols pixels wide and rows pixels tall.
func Decode(buf []byte, rows, cols int, p Precision) (*image.RGBA, error) {
	n, err := validate(buf, rows, cols, p)
	if err != nil {
		return nil, err
	}
	read := precisions[p].read
	rng := scan(buf, n, read)
	span := rng.Max - rng.Min

	img := image.NewRGBA(image.Rect(0, 0, cols, rows))
	pix := img.Pix
	for i := 0; i < n; i++ {
		var v uint8
		if span == 0 {
			v = FlatIntensity
		} else {
			v = intensity((read(buf, i) - rng.Min) / span * 255)
		}
		o := i * 4
		pix[o] = v
		pix[o+1] = v
		pix[o+2] = v
		pix[o+3] = 255
	}
	return img, nil
}

func intensity(v float64) uint8 {
	if math.IsNaN(v) {
		return 0
	}
	return uint8(math.Round(math.Max(0, math.Min(255, v))))
}
