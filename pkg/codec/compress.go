package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

const (
	// MaxCompressionLevel is the highest accepted zstd level; higher
	// requests are clamped down to it.
	MaxCompressionLevel = 9

	// MaxDecodedSize bounds a single decompressed blob. A stored blob
	// decoding past this is a fatal codec error; records that large do
	// not fit this format.
	MaxDecodedSize = 100 << 20
)

// ClampLevel normalizes a requested compression level into [0, 9].
func ClampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > MaxCompressionLevel {
		return MaxCompressionLevel
	}
	return level
}

// Compress compresses data at the given level. Level 0 returns the
// input unchanged. The caller is expected to pass a clamped level.
func Compress(data []byte, level int) ([]byte, error) {
	if level <= 0 {
		return data, nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("create compressor: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

// Decompress reverses Compress for a blob stored at the given level.
// Level 0 returns the input unchanged. Output beyond MaxDecodedSize
// fails the decode.
func Decompress(data []byte, level int) ([]byte, error) {
	if level <= 0 {
		return data, nil
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxDecodedSize))
	if err != nil {
		return nil, fmt.Errorf("create decompressor: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress blob: %w", err)
	}
	return out, nil
}
