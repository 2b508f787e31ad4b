package datgrid

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"math"
	"testing"
)

func float64Bytes(vals ...float64) []byte {
	b := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return b
}

func float32Bytes(vals ...float32) []byte {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func uint16Bytes(vals ...uint16) []byte {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(b[i*2:], v)
	}
	return b
}

// grayAt returns the intensity of pixel (row, col) and fails the test if the
// pixel is not an opaque gray.
func grayAt(t *testing.T, img *image.RGBA, row, col int) uint8 {
	t.Helper()
	c := img.RGBAAt(col, row)
	if c.R != c.G || c.G != c.B {
		t.Fatalf("pixel (%d,%d) not gray: %+v", row, col, c)
	}
	if c.A != 255 {
		t.Fatalf("pixel (%d,%d) alpha: got %d, want 255", row, col, c.A)
	}
	return c.R
}

func TestDecode_Uint8Scenario(t *testing.T) {
	img, err := Decode([]byte{0, 85, 170, 255}, 2, 2, Uint8)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	b := img.Bounds()
	if b.Dx() != 2 || b.Dy() != 2 {
		t.Fatalf("dimensions: got %dx%d, want 2x2", b.Dx(), b.Dy())
	}

	want := []uint8{0, 85, 170, 255}
	for i, w := range want {
		if got := grayAt(t, img, i/2, i%2); got != w {
			t.Errorf("pixel %d: got %d, want %d", i, got, w)
		}
	}
}

func TestDecode_FlatRange(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		p    Precision
	}{
		{"zero float64", float64Bytes(0, 0, 0, 0, 0, 0), Float64},
		{"negative float64", float64Bytes(-3.5, -3.5, -3.5, -3.5, -3.5, -3.5), Float64},
		{"large float64", float64Bytes(1e300, 1e300, 1e300, 1e300, 1e300, 1e300), Float64},
		{"float32", float32Bytes(7, 7, 7, 7, 7, 7), Float32},
		{"uint16 max", uint16Bytes(65535, 65535, 65535, 65535, 65535, 65535), Uint16},
		{"uint8", []byte{9, 9, 9, 9, 9, 9}, Uint8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Decode(tt.buf, 2, 3, tt.p)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			for row := 0; row < 2; row++ {
				for col := 0; col < 3; col++ {
					if got := grayAt(t, img, row, col); got != FlatIntensity {
						t.Errorf("pixel (%d,%d): got %d, want %d", row, col, got, FlatIntensity)
					}
				}
			}
		})
	}
}

func TestDecode_SinglePixel(t *testing.T) {
	img, err := Decode(float64Bytes(42.5), 1, 1, Float64)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 1 || b.Dy() != 1 {
		t.Fatalf("dimensions: got %dx%d, want 1x1", b.Dx(), b.Dy())
	}
	if got := grayAt(t, img, 0, 0); got != 128 {
		t.Errorf("intensity: got %d, want 128", got)
	}
}

func TestDecode_Monotonic(t *testing.T) {
	vals := []float64{-10, 3.25, -7.5, 100, 0, 99.9, 42, -10, 1e-3, 55}
	img, err := Decode(float64Bytes(vals...), 2, 5, Float64)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	for i := range vals {
		for j := range vals {
			if vals[i] <= vals[j] {
				pi := grayAt(t, img, i/5, i%5)
				pj := grayAt(t, img, j/5, j%5)
				if pi > pj {
					t.Errorf("sample %v -> %d but larger sample %v -> %d", vals[i], pi, vals[j], pj)
				}
			}
		}
	}

	if got := grayAt(t, img, 0, 0); got != 0 {
		t.Errorf("minimum sample: got %d, want 0", got)
	}
	if got := grayAt(t, img, 0, 3); got != 255 {
		t.Errorf("maximum sample: got %d, want 255", got)
	}
}

func TestDecode_Idempotent(t *testing.T) {
	buf := uint16Bytes(10, 2000, 300, 40000, 5, 65535, 0, 1234, 777)

	img1, err := Decode(buf, 3, 3, Uint16)
	if err != nil {
		t.Fatalf("first Decode failed: %v", err)
	}
	img2, err := Decode(buf, 3, 3, Uint16)
	if err != nil {
		t.Fatalf("second Decode failed: %v", err)
	}
	if !bytes.Equal(img1.Pix, img2.Pix) {
		t.Error("decoding the same buffer twice produced different rasters")
	}
}

func TestDecode_RowOrder(t *testing.T) {
	// 2 rows x 3 cols, increasing along the row-major order.
	img, err := Decode([]byte{0, 51, 102, 153, 204, 255}, 2, 3, Uint8)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
		t.Fatalf("dimensions: got %dx%d, want width 3 height 2", b.Dx(), b.Dy())
	}
	if got := grayAt(t, img, 0, 2); got != 102 {
		t.Errorf("top-right: got %d, want 102", got)
	}
	if got := grayAt(t, img, 1, 0); got != 153 {
		t.Errorf("bottom-left: got %d, want 153", got)
	}
}

func TestDecode_Rounding(t *testing.T) {
	// Range 2: the middle sample lands on 127.5.
	img, err := Decode([]byte{0, 1, 2}, 1, 3, Uint8)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got := grayAt(t, img, 0, 1); got != 128 {
		t.Errorf("half-way sample: got %d, want 128", got)
	}
}

func TestDecode_NaNSamples(t *testing.T) {
	img, err := Decode(float64Bytes(math.NaN(), 0, 10), 1, 3, Float64)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := []uint8{0, 0, 255}
	for col, w := range want {
		if got := grayAt(t, img, 0, col); got != w {
			t.Errorf("col %d: got %d, want %d", col, got, w)
		}
	}
}

func TestDecode_InvalidInput(t *testing.T) {
	tests := []struct {
		name       string
		buf        []byte
		rows, cols int
		p          Precision
		check      string
	}{
		{"nil buffer", nil, 1, 1, Uint8, "buffer"},
		{"zero rows", []byte{1}, 0, 1, Uint8, "dimensions"},
		{"negative cols", []byte{1}, 1, -1, Uint8, "dimensions"},
		{"too many pixels", []byte{1}, MaxPixels, 2, Uint8, "dimensions"},
		{"unknown precision", []byte{1}, 1, 1, Precision(99), "precision"},
		{"short uint8", []byte{1, 2, 3}, 2, 2, Uint8, "buffer length"},
		{"short float64", make([]byte, 31), 2, 2, Float64, "buffer length"},
		{"empty buffer", []byte{}, 1, 1, Uint8, "buffer length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Decode(tt.buf, tt.rows, tt.cols, tt.p)
			if err == nil {
				t.Fatal("Decode should fail")
			}
			if img != nil {
				t.Error("Decode returned a raster alongside an error")
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("error %v does not match ErrInvalidInput", err)
			}
			if errors.Is(err, ErrEncodingFailed) {
				t.Errorf("error %v should not match ErrEncodingFailed", err)
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("error %T is not a *DecodeError", err)
			}
			if de.Check != tt.check {
				t.Errorf("Check: got %q, want %q", de.Check, tt.check)
			}
		})
	}
}

func TestDecode_PrecisionDispatch(t *testing.T) {
	buf := float64Bytes(1.5)

	tests := []struct {
		p       Precision
		samples int
	}{
		{Float64, 1},
		{Float32, 2},
		{Uint16, 4},
		{Uint8, 8},
	}

	for _, tt := range tests {
		t.Run(tt.p.String(), func(t *testing.T) {
			if tt.samples*tt.p.ElementSize() != len(buf) {
				t.Fatalf("test setup: %d samples of %s do not fill %d bytes", tt.samples, tt.p, len(buf))
			}
			img, err := Decode(buf, 1, tt.samples, tt.p)
			if err != nil {
				t.Fatalf("Decode as %s failed: %v", tt.p, err)
			}
			if got := img.Bounds().Dx(); got != tt.samples {
				t.Errorf("width: got %d, want %d", got, tt.samples)
			}
			if _, err := Decode(buf, 1, tt.samples+1, tt.p); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("one sample too many as %s: got %v, want ErrInvalidInput", tt.p, err)
			}
		})
	}

	f64, _ := Decode(buf, 1, 1, Float64)
	u8, _ := Decode(buf, 1, 8, Uint8)
	if bytes.Equal(f64.Pix, u8.Pix) {
		t.Error("float64 and uint8 interpretations produced the same raster")
	}
}

func TestParsePrecision(t *testing.T) {
	tests := []struct {
		in      string
		want    Precision
		wantErr bool
	}{
		{"", Float64, false},
		{"float64", Float64, false},
		{"FLOAT32", Float32, false},
		{" uint16 ", Uint16, false},
		{"uint8", Uint8, false},
		{"uint32", 0, true},
		{"int8", 0, true},
		{"int16", 0, true},
		{"double", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePrecision(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("ParsePrecision(%q): got %v, want ErrInvalidInput", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePrecision(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParsePrecision(%q): got %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestPrecision_ElementSize(t *testing.T) {
	want := map[Precision]int{Float64: 8, Float32: 4, Uint16: 2, Uint8: 1, Precision(-1): 0}
	for p, size := range want {
		if got := p.ElementSize(); got != size {
			t.Errorf("%s: got %d, want %d", p, got, size)
		}
	}
	if names := PrecisionNames(); len(names) != 4 || names[0] != "float64" {
		t.Errorf("PrecisionNames: got %v", names)
	}
}

func TestScan(t *testing.T) {
	rng, err := Scan(float32Bytes(3, -1, 8, 2), 2, 2, Float32)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if rng.Min != -1 || rng.Max != 8 {
		t.Errorf("range: got [%v,%v], want [-1,8]", rng.Min, rng.Max)
	}
	if rng.Flat() || rng.Empty() {
		t.Error("range should be neither flat nor empty")
	}

	rng, err = Scan(float64Bytes(math.NaN()), 1, 1, Float64)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if !rng.Empty() {
		t.Errorf("all-NaN grid should have an empty range, got %+v", rng)
	}
}

func TestSamplesAndSampleAt(t *testing.T) {
	buf := uint16Bytes(1, 2, 3, 4, 5, 6)

	samples, err := Samples(buf, 2, 3, Uint16)
	if err != nil {
		t.Fatalf("Samples failed: %v", err)
	}
	for i, s := range samples {
		if s != float64(i+1) {
			t.Errorf("sample %d: got %v, want %d", i, s, i+1)
		}
	}

	v, err := SampleAt(buf, 2, 3, Uint16, 1, 2)
	if err != nil {
		t.Fatalf("SampleAt failed: %v", err)
	}
	if v != 6 {
		t.Errorf("SampleAt(1,2): got %v, want 6", v)
	}

	if _, err := SampleAt(buf, 2, 3, Uint16, 2, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("out-of-grid SampleAt: got %v, want ErrInvalidInput", err)
	}
}
