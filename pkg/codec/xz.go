package codec

import (
	"io"

	"github.com/ulikunitz/xz"
)

// XZCodec reads and writes .xz streams. Levels are ignored.
type XZCodec struct{}

var _ Codec = (*XZCodec)(nil)

// NewXZCodec creates an xz codec.
func NewXZCodec() XZCodec {
	return XZCodec{}
}

func (c XZCodec) Format() Format { return FormatXZ }

// NewReader reads the stream header from r before returning.
func (c XZCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := xz.NewReader(r)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(zr), nil
}

func (c XZCodec) NewWriter(w io.Writer, _ int) (io.WriteCloser, error) {
	zw, err := xz.NewWriter(w)
	if err != nil {
		return nil, err
	}
	return zw, nil
}
