//go:build !gozstd || !cgo

package codec

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// NewReader returns a streaming decoder. A single decoding goroutine keeps
// memory use predictable; the reader pipeline already overlaps decoding with
// line parsing.
func (c ZstdCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	d, err := zstd.NewReader(r,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(false),
	)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return d.IOReadCloser(), nil
}

func (c ZstdCodec) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	var opts []zstd.EOption
	if level != DefaultLevel {
		opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	}
	enc, err := zstd.NewWriter(w, opts...)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return enc, nil
}
