// Package imaging provides the operator-facing image operations of the frame
// console: loading standard frames, cropping and zooming a region of interest,
// probing pixels, and grey-level analysis (histograms, texture features and
// false-colour rendering).
//
// Every operation works on a plain image.Image, so rendered .dat frames and
// frames loaded from PNG, JPEG, GIF, BMP or TIFF files are treated alike.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward. A Region is given by its
// top-left corner and its size, which is the shape the inference backend
// expects for crop data.
//
// # Grey Levels
//
// Analysis functions reduce colour input to luminance first. Rendered .dat
// frames are already grey, so their levels are the decoder's normalized
// intensities.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. The other functions are stateless.
package imaging
