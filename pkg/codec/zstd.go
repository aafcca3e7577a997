package codec

// ZstdCodec reads and writes Zstandard frames.
//
// The default build uses the pure Go decoder from klauspost/compress. Building
// with -tags gozstd (cgo required) switches to the reference C library through
// valyala/gozstd.
type ZstdCodec struct{}

var _ Codec = (*ZstdCodec)(nil)

// NewZstdCodec creates a Zstandard codec.
func NewZstdCodec() ZstdCodec {
	return ZstdCodec{}
}

func (c ZstdCodec) Format() Format { return FormatZstd }
