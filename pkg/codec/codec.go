package codec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"

	gferrors "github.com/legaultmarc/fast-gzip/pkg/common/errors"
	"github.com/legaultmarc/fast-gzip/pkg/common/validation"
)

// Format names a compressed stream format.
type Format string

const (
	// FormatAuto detects the format from magic bytes, then from the file
	// extension, and falls back to FormatNone.
	FormatAuto   Format = "auto"
	FormatNone   Format = "none"
	FormatGzip   Format = "gzip"
	FormatZstd   Format = "zstd"
	FormatS2     Format = "s2"
	FormatSnappy Format = "snappy"
	FormatLZ4    Format = "lz4"
	FormatZlib   Format = "zlib"
	FormatFlate  Format = "flate"
	FormatXZ     Format = "xz"
	FormatBrotli Format = "brotli"
	FormatBzip2  Format = "bzip2"
)

// DefaultLevel selects each codec's own default compression level.
const DefaultLevel = -1

func (f Format) String() string {
	return string(f)
}

// Decompressor wraps a compressed stream in a reader of the original bytes.
//
// Closing the returned reader releases decoder resources; it never closes r.
type Decompressor interface {
	NewReader(r io.Reader) (io.ReadCloser, error)
}

// Compressor wraps w in a writer that compresses everything written to it.
//
// Close flushes the final frame; it never closes w.
type Compressor interface {
	NewWriter(w io.Writer, level int) (io.WriteCloser, error)
}

// Codec combines both directions for one Format.
type Codec interface {
	Compressor
	Decompressor
	Format() Format
}

// CreateCodec is a factory function that creates a Codec for the given format.
//
// Returns:
//   - Codec: codec instance for the specified format
//   - error: ValidationError for FormatAuto or an unknown format
func CreateCodec(format Format) (Codec, error) {
	switch format {
	case FormatNone:
		return NewNoOpCodec(), nil
	case FormatGzip:
		return NewGzipCodec(), nil
	case FormatZstd:
		return NewZstdCodec(), nil
	case FormatS2:
		return NewS2Codec(), nil
	case FormatSnappy:
		return NewSnappyCodec(), nil
	case FormatLZ4:
		return NewLZ4Codec(), nil
	case FormatZlib:
		return NewZlibCodec(), nil
	case FormatFlate:
		return NewFlateCodec(), nil
	case FormatXZ:
		return NewXZCodec(), nil
	case FormatBrotli:
		return NewBrotliCodec(), nil
	case FormatBzip2:
		return NewBzip2Codec(), nil
	default:
		return nil, gferrors.NewValidationError("codec", "Format", format, "no codec for format").
			WithHint("auto must be resolved with NewReader before a codec is chosen")
	}
}

var builtinCodecs = map[Format]Codec{
	FormatNone:   NewNoOpCodec(),
	FormatGzip:   NewGzipCodec(),
	FormatZstd:   NewZstdCodec(),
	FormatS2:     NewS2Codec(),
	FormatSnappy: NewSnappyCodec(),
	FormatLZ4:    NewLZ4Codec(),
	FormatZlib:   NewZlibCodec(),
	FormatFlate:  NewFlateCodec(),
	FormatXZ:     NewXZCodec(),
	FormatBrotli: NewBrotliCodec(),
	FormatBzip2:  NewBzip2Codec(),
}

// GetCodec retrieves the built-in Codec for the format.
func GetCodec(format Format) (Codec, error) {
	if c, ok := builtinCodecs[format]; ok {
		return c, nil
	}

	return nil, fmt.Errorf("unsupported compression format: %s", format)
}

// Formats lists every concrete format, sorted by name.
func Formats() []Format {
	out := make([]Format, 0, len(builtinCodecs))
	for f := range builtinCodecs {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseFormat converts a user supplied name (as given on a command line) to a Format.
func ParseFormat(s string) (Format, error) {
	allowed := []string{string(FormatAuto)}
	for _, f := range Formats() {
		allowed = append(allowed, string(f))
	}
	if err := validation.ValidateOneOf("codec", "Format", s, allowed); err != nil {
		return "", err
	}
	return Format(s), nil
}

// NewReader returns a reader of the decompressed bytes of src.
//
// FormatAuto peeks at the first bytes of src and falls back to the extension
// of name. An input that ends before the first byte of a header is an empty
// stream, never an error.
func NewReader(format Format, src io.Reader, name string) (io.ReadCloser, error) {
	if format == FormatAuto {
		br := bufio.NewReader(src)
		head, err := br.Peek(magicLen)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
			return nil, fmt.Errorf("detect format: %w", err)
		}
		format = detectOrGuess(head, name)
		src = br
	}

	c, err := GetCodec(format)
	if err != nil {
		return nil, err
	}

	rc, err := c.NewReader(src)
	if errors.Is(err, io.EOF) {
		return io.NopCloser(eofReader{}), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", format, err)
	}
	return rc, nil
}

func detectOrGuess(head []byte, name string) Format {
	if f, ok := Detect(head); ok {
		return f
	}
	if f, ok := FromExtension(name); ok {
		return f
	}
	return FormatNone
}

// NewWriter compresses into dst with the codec for format.
func NewWriter(format Format, dst io.Writer, level int) (io.WriteCloser, error) {
	c, err := CreateCodec(format)
	if err != nil {
		return nil, err
	}
	return c.NewWriter(dst, level)
}

// NewLazyReader defers open until the first Read. The reader pipeline uses it
// so that header parsing and format detection run on the producer goroutine
// and surface as stream errors instead of blocking the constructor.
func NewLazyReader(open func() (io.ReadCloser, error)) io.ReadCloser {
	return &lazyReader{open: open}
}

type lazyReader struct {
	open func() (io.ReadCloser, error)
	rc   io.ReadCloser
	err  error
}

func (l *lazyReader) Read(p []byte) (int, error) {
	if l.rc == nil && l.err == nil {
		l.rc, l.err = l.open()
	}
	if l.err != nil {
		return 0, l.err
	}
	return l.rc.Read(p)
}

// Close closes the opened reader. It is a no-op when the open never ran or
// failed.
func (l *lazyReader) Close() error {
	if l.rc == nil || l.err != nil {
		return nil
	}
	return l.rc.Close()
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
