// Package compression handles the compressed artifacts the tool touches:
// heap dumps often arrive gzipped, and rendered reports can be compressed
// before upload.
package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Codec compresses and decompresses byte slices.
type Codec interface {
	// Compress compresses the input data
	Compress(data []byte) ([]byte, error)
	// Decompress decompresses the input data
	Decompress(data []byte) ([]byte, error)
	// Name returns the codec name as used in configuration
	Name() string
	// Extension returns the file extension for compressed artifacts,
	// empty for the no-op codec
	Extension() string
}

// ByName creates a codec from its configuration name. An empty name means
// no compression.
func ByName(name string) (Codec, error) {
	switch name {
	case "", "none":
		return noopCodec{}, nil
	case "gzip":
		return &GzipCodec{level: gzip.DefaultCompression}, nil
	case "zstd":
		return NewZstdCodec()
	default:
		return nil, fmt.Errorf("unknown compression codec: %s (valid: none, gzip, zstd)", name)
	}
}

// GzipCodec implements Codec using gzip.
type GzipCodec struct {
	level int
}

// Compress compresses data using gzip.
func (c *GzipCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write gzip data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress decompresses gzip data.
func (c *GzipCodec) Decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

// Name returns "gzip".
func (c *GzipCodec) Name() string { return "gzip" }

// Extension returns ".gz".
func (c *GzipCodec) Extension() string { return ".gz" }

// ZstdCodec implements Codec using zstd. It is reusable and safe for
// concurrent use.
type ZstdCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdCodec creates a zstd codec with the default level.
func NewZstdCodec() (*ZstdCodec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &ZstdCodec{encoder: encoder, decoder: decoder}, nil
}

// Compress compresses data using zstd.
func (c *ZstdCodec) Compress(data []byte) ([]byte, error) {
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// Decompress decompresses zstd data.
func (c *ZstdCodec) Decompress(data []byte) ([]byte, error) {
	return c.decoder.DecodeAll(data, nil)
}

// Name returns "zstd".
func (c *ZstdCodec) Name() string { return "zstd" }

// Extension returns ".zst".
func (c *ZstdCodec) Extension() string { return ".zst" }

// Close releases the codec's encoder and decoder.
func (c *ZstdCodec) Close() {
	c.encoder.Close()
	c.decoder.Close()
}

type noopCodec struct{}

func (noopCodec) Compress(data []byte) ([]byte, error)   { return data, nil }
func (noopCodec) Decompress(data []byte) ([]byte, error) { return data, nil }
func (noopCodec) Name() string                           { return "none" }
func (noopCodec) Extension() string                      { return "" }

// IsCompressed reports whether the data starts with a known compression
// magic (gzip 0x1f 0x8b, zstd 0x28 0xb5 0x2f 0xfd).
func IsCompressed(data []byte) bool {
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		return true
	}
	if len(data) >= 4 && data[0] == 0x28 && data[1] == 0xb5 && data[2] == 0x2f && data[3] == 0xfd {
		return true
	}
	return false
}

// AutoDecompress decompresses data if it carries a known compression magic
// and returns it unchanged otherwise.
func AutoDecompress(data []byte) ([]byte, error) {
	switch {
	case len(data) >= 4 && data[0] == 0x28 && data[1] == 0xb5 && data[2] == 0x2f && data[3] == 0xfd:
		codec, err := NewZstdCodec()
		if err != nil {
			return nil, err
		}
		defer codec.Close()
		return codec.Decompress(data)
	case len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b:
		return (&GzipCodec{level: gzip.DefaultCompression}).Decompress(data)
	default:
		return data, nil
	}
}
