package codec

import (
	"io"

	"github.com/klauspost/compress/s2"
)

// S2Codec reads and writes framed S2 streams. The reader also accepts framed
// Snappy input.
type S2Codec struct{}

var _ Codec = (*S2Codec)(nil)

// NewS2Codec creates an S2 codec.
func NewS2Codec() S2Codec {
	return S2Codec{}
}

func (c S2Codec) Format() Format { return FormatS2 }

func (c S2Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(s2.NewReader(r)), nil
}

// NewWriter maps levels 2 and 3+ to S2's better and best modes; anything
// lower uses the default fast mode.
func (c S2Codec) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	var opts []s2.WriterOption
	switch {
	case level >= 3:
		opts = append(opts, s2.WriterBestCompression())
	case level == 2:
		opts = append(opts, s2.WriterBetterCompression())
	}
	return s2.NewWriter(w, opts...), nil
}
