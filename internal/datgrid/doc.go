// Package datgrid decodes raw scientific frames (.dat files) into displayable
// grayscale rasters.
//
// A .dat file is a headerless, row-major grid of fixed-width numeric samples.
// Nothing in the file describes its shape: rows, columns and the sample
// precision are supplied out of band by the operator.
//
// # Wire Contract
//
// Samples are little-endian. The format carries no byte-order marker, so the
// writer of a .dat file must use the same convention. Supported precisions:
//
//   - float64: 8-byte IEEE 754 (the default)
//   - float32: 4-byte IEEE 754
//   - uint16: 2-byte unsigned integer
//   - uint8: 1-byte unsigned integer
//
// Files with a .zst suffix hold the same payload compressed with zstd and are
// decompressed transparently by ReadFile.
//
// # Normalization
//
// Decode performs a single pass to find the minimum and maximum sample, then
// maps every sample linearly onto 0-255:
//
//	intensity = round(clamp((s - min) / (max - min) * 255, 0, 255))
//
// When every sample is identical (a flat range) all pixels are 128. NaN
// samples are ignored by the range scan and render as 0.
//
// The output raster is an *image.RGBA with R=G=B=intensity and A=255. Pixel
// (row, col) corresponds to sample (row, col); there is no flip.
//
// # Errors
//
// Precondition failures (nil buffer, non-positive dimensions, short buffer,
// unknown precision) are reported as *DecodeError with Kind InvalidInput.
// Failures while serializing a raster into a PNG container are reported with
// Kind EncodingFailed. Both match the ErrInvalidInput and ErrEncodingFailed
// sentinels through errors.Is.
package datgrid
