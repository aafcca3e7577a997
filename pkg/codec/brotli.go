package codec

import (
	"io"

	"github.com/andybalholm/brotli"
)

// BrotliCodec reads and writes raw brotli streams. Brotli has no magic
// bytes; FormatAuto only picks it from a .br extension.
type BrotliCodec struct{}

var _ Codec = (*BrotliCodec)(nil)

// NewBrotliCodec creates a brotli codec.
func NewBrotliCodec() BrotliCodec {
	return BrotliCodec{}
}

func (c BrotliCodec) Format() Format { return FormatBrotli }

func (c BrotliCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(brotli.NewReader(r)), nil
}

func (c BrotliCodec) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	if level == DefaultLevel {
		level = brotli.DefaultCompression
	}
	return brotli.NewWriterLevel(w, level), nil
}
