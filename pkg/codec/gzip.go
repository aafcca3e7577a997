package codec

import (
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// GzipCodec reads and writes RFC 1952 gzip streams. Concatenated members
// are read as one stream, as gzip(1) does.
type GzipCodec struct{}

var _ Codec = (*GzipCodec)(nil)

// NewGzipCodec creates a gzip codec.
func NewGzipCodec() GzipCodec {
	return GzipCodec{}
}

func (c GzipCodec) Format() Format { return FormatGzip }

// NewReader reads the gzip header from r before returning.
func (c GzipCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	return zr, nil
}

func (c GzipCodec) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	zw, err := gzip.NewWriterLevel(w, level)
	if err != nil {
		return nil, err
	}
	return zw, nil
}

// ZlibCodec reads and writes RFC 1950 zlib streams.
type ZlibCodec struct{}

var _ Codec = (*ZlibCodec)(nil)

// NewZlibCodec creates a zlib codec.
func NewZlibCodec() ZlibCodec {
	return ZlibCodec{}
}

func (c ZlibCodec) Format() Format { return FormatZlib }

func (c ZlibCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return zlib.NewReader(r)
}

func (c ZlibCodec) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	zw, err := zlib.NewWriterLevel(w, level)
	if err != nil {
		return nil, err
	}
	return zw, nil
}

// FlateCodec reads and writes raw RFC 1951 deflate data with no framing.
// Raw deflate has no magic bytes, so FormatAuto never selects it.
type FlateCodec struct{}

var _ Codec = (*FlateCodec)(nil)

// NewFlateCodec creates a raw deflate codec.
func NewFlateCodec() FlateCodec {
	return FlateCodec{}
}

func (c FlateCodec) Format() Format { return FormatFlate }

func (c FlateCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return flate.NewReader(r), nil
}

func (c FlateCodec) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	zw, err := flate.NewWriter(w, level)
	if err != nil {
		return nil, err
	}
	return zw, nil
}
