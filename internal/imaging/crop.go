package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Region is a rectangular region of interest in pixel coordinates. (X, Y)
// is the top-left corner; the region spans Width x Height pixels. The JSON
// shape matches the cropData field sent to the inference backend.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect converts the region to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Within checks that the region is non-empty and inside bounds.
func (r Region) Within(bounds image.Rectangle) error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("invalid region: width and height must be positive, got %dx%d", r.Width, r.Height)
	}
	if !r.Rect().In(bounds) {
		return fmt.Errorf("region (%d,%d) %dx%d outside image bounds (%d,%d)-(%d,%d)",
			r.X, r.Y, r.Width, r.Height, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}
	return nil
}

// CropResult contains the cropped region of interest
type CropResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
	Region      Region `json:"region"`
	Scale       float64 `json:"scale"`
}

// Crop extracts a region of interest. A scale other than 1 zooms the crop
// with Lanczos resampling; non-positive scales are treated as 1.
func Crop(img image.Image, region Region, scale float64) (*CropResult, error) {
	bounds := img.Bounds()
	if err := region.Within(bounds); err != nil {
		return nil, err
	}
	if scale <= 0 {
		scale = 1.0
	}

	cropped := imaging.Crop(img, region.Rect())

	if scale != 1.0 {
		newWidth := int(float64(cropped.Bounds().Dx()) * scale)
		newHeight := int(float64(cropped.Bounds().Dy()) * scale)
		if newWidth < 1 || newHeight < 1 {
			return nil, fmt.Errorf("scale %.3f shrinks the region to nothing", scale)
		}
		cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.Lanczos)
	}

	encoded, err := encodePNG(cropped)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cropped image: %w", err)
	}

	return &CropResult{
		Width:       cropped.Bounds().Dx(),
		Height:      cropped.Bounds().Dy(),
		ImageBase64: encoded,
		MimeType:    "image/png",
		Region:      region,
		Scale:       scale,
	}, nil
}

// encodePNG renders img as base64 PNG.
func encodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
