package datgrid

import (
	"fmt"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// IsDatFile reports whether name looks like a raw grid, compressed or not.
func IsDatFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".dat") || strings.HasSuffix(lower, ".dat.zst")
}

// ReadFile loads the raw bytes of a .dat file. Files ending in .zst are
// decompressed with zstd first.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".zst") {
		return data, nil
	}
	return decompress(data)
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("zstd init: %w", err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}
