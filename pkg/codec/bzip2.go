package codec

import (
	"compress/bzip2"
	"fmt"
	"io"

	gferrors "github.com/legaultmarc/fast-gzip/pkg/common/errors"
)

// Bzip2Codec only decompresses.
type Bzip2Codec struct{}

var _ Codec = (*Bzip2Codec)(nil)

// NewBzip2Codec creates a read-only bzip2 codec.
func NewBzip2Codec() Bzip2Codec {
	return Bzip2Codec{}
}

func (c Bzip2Codec) Format() Format { return FormatBzip2 }

func (c Bzip2Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(bzip2.NewReader(r)), nil
}

// NewWriter always fails; use an external compressor Command for bzip2 output.
func (c Bzip2Codec) NewWriter(io.Writer, int) (io.WriteCloser, error) {
	return nil, fmt.Errorf("bzip2 compression: %w", gferrors.ErrUnsupported)
}
