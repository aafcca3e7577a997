package codec

import (
	"io"

	"github.com/golang/snappy"
)

// SnappyCodec reads and writes the Snappy framing format. Levels are ignored.
type SnappyCodec struct{}

var _ Codec = (*SnappyCodec)(nil)

// NewSnappyCodec creates a framed Snappy codec.
func NewSnappyCodec() SnappyCodec {
	return SnappyCodec{}
}

func (c SnappyCodec) Format() Format { return FormatSnappy }

func (c SnappyCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(snappy.NewReader(r)), nil
}

func (c SnappyCodec) NewWriter(w io.Writer, _ int) (io.WriteCloser, error) {
	return snappy.NewBufferedWriter(w), nil
}
