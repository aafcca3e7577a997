package fgzip

import (
	"errors"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/legaultmarc/fast-gzip/pkg/codec"
	gferrors "github.com/legaultmarc/fast-gzip/pkg/common/errors"
	"github.com/legaultmarc/fast-gzip/pkg/streaming/reader"
	"github.com/legaultmarc/fast-gzip/pkg/streaming/writer"
)

// Mode is the direction a File was opened in.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
	// ModeAppend adds a new compressed member to the end of the file.
	// Concatenated gzip, zstd, xz, lz4 and bzip2 members decode as one stream.
	ModeAppend
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "r"
	case ModeWrite:
		return "w"
	case ModeAppend:
		return "a"
	default:
		return "invalid"
	}
}

// ParseMode accepts "r", "w" and "a", each optionally followed by "b" or
// "t"; text and binary behave the same. Anything else, including mixed
// directions such as "rw" or "r+", is an invalid configuration.
func ParseMode(s string) (Mode, error) {
	base := strings.TrimRight(s, "bt")
	if len(s)-len(base) > 1 {
		return 0, invalidMode(s)
	}

	switch base {
	case "r":
		return ModeRead, nil
	case "w":
		return ModeWrite, nil
	case "a":
		return ModeAppend, nil
	default:
		return 0, invalidMode(s)
	}
}

func invalidMode(s string) error {
	return gferrors.NewValidationError("fgzip", "mode", s, "must be one read or write direction").
		WithHint(`use "r", "w" or "a"`)
}

// Config carries the configuration of both directions.
type Config struct {
	Reader reader.Config
	Writer writer.Config
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Reader: reader.DefaultConfig(),
		Writer: writer.DefaultConfig(),
	}
}

// Open opens a compressed file for reading with the default configuration.
func Open(path string) (*reader.Reader, error) {
	return reader.Open(path)
}

// Create creates or truncates a file for compressed writing with the default
// configuration.
func Create(path string) (*writer.Writer, error) {
	return writer.Create(path)
}

// File is a compressed file opened in one direction. Calling a method of the
// other direction fails with errors.ErrInvalidConfiguration.
type File struct {
	mode Mode
	r    *reader.Reader
	w    *writer.Writer
	file *os.File // append target, owned
}

// OpenFile opens path in the given mode with the default configuration.
func OpenFile(path, mode string) (*File, error) {
	return OpenFileWithConfig(path, mode, DefaultConfig())
}

// OpenFileWithConfig opens path in the given mode.
func OpenFileWithConfig(path, mode string, config Config) (*File, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}

	switch m {
	case ModeRead:
		r, err := reader.OpenWithConfig(path, config.Reader)
		if err != nil {
			return nil, err
		}
		return &File{mode: m, r: r}, nil

	case ModeWrite:
		w, err := writer.CreateWithConfig(path, config.Writer)
		if err != nil {
			return nil, err
		}
		return &File{mode: m, w: w}, nil

	default:
		return appendFile(path, config.Writer)
	}
}

func appendFile(path string, config writer.Config) (*File, error) {
	if config.Format == codec.FormatAuto {
		format, ok := codec.FromExtension(path)
		if !ok {
			format = codec.FormatGzip
		}
		config.Format = format
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, gferrors.NewOperationError("fgzip", "OpenFile", err).WithContext(path)
	}

	w, err := writer.NewWithConfig(f, config)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &File{mode: ModeAppend, w: w, file: f}, nil
}

// Mode returns the direction the File was opened in.
func (f *File) Mode() Mode {
	return f.mode
}

// Reader returns the underlying Reader, or nil for a File opened for writing.
func (f *File) Reader() *reader.Reader {
	return f.r
}

// Writer returns the underlying Writer, or nil for a File opened for reading.
func (f *File) Writer() *writer.Writer {
	return f.w
}

// ReadLine returns the next line, or io.EOF at the end of the file.
func (f *File) ReadLine() ([]byte, error) {
	if f.r == nil {
		return nil, f.wrongDirection("ReadLine")
	}
	return f.r.NextLine()
}

// Lines iterates over the remaining lines.
func (f *File) Lines() iter.Seq2[[]byte, error] {
	if f.r == nil {
		err := f.wrongDirection("Lines")
		return func(yield func([]byte, error) bool) {
			yield(nil, err)
		}
	}
	return f.r.Lines()
}

// WriteTo writes the remaining decompressed content to w.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	if f.r == nil {
		return 0, f.wrongDirection("WriteTo")
	}
	return f.r.WriteTo(w)
}

func (f *File) Write(p []byte) (int, error) {
	if f.w == nil {
		return 0, f.wrongDirection("Write")
	}
	return f.w.Write(p)
}

func (f *File) WriteString(s string) (int, error) {
	if f.w == nil {
		return 0, f.wrongDirection("WriteString")
	}
	return f.w.WriteString(s)
}

// Close releases the File. For a written File it finishes the compressed
// stream and reports the first write error.
func (f *File) Close() error {
	if f.r != nil {
		return f.r.Close()
	}

	err := f.w.Close()
	if f.file != nil {
		if cerr := f.file.Close(); cerr != nil && err == nil && !errors.Is(cerr, os.ErrClosed) {
			err = gferrors.NewOperationError("fgzip", "Close", cerr)
		}
	}
	return err
}

func (f *File) wrongDirection(op string) error {
	return gferrors.NewOperationError("fgzip", op,
		gferrors.NewValidationError("fgzip", "mode", f.mode.String(), "file is not open for "+direction(op)))
}

func direction(op string) string {
	if strings.HasPrefix(op, "Write") && op != "WriteTo" {
		return "writing"
	}
	return "reading"
}
