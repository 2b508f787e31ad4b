package datgrid

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// PNGMimeType is the MIME type of containers produced by EncodePNG.
const PNGMimeType = "image/png"

// EncodePNG serializes a raster into a PNG container.
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, encodingFailed("png", errors.New("nil raster"))
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, encodingFailed("png", fmt.Errorf("empty raster %v", b))
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, encodingFailed("png", err)
	}
	return buf.Bytes(), nil
}

// DecodeContainer turns an encoded container back into an image.
func DecodeContainer(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode container: %w", err)
	}
	return img, nil
}
