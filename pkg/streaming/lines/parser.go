package lines

import (
	"bytes"
	"context"
	"io"

	"github.com/legaultmarc/fast-gzip/pkg/streaming/chunk"
)

// Terminator is the only byte that ends a line.
const Terminator = '\n'

// Source yields the chunk stream, ending with one terminal element.
type Source interface {
	Next(ctx context.Context) (chunk.Chunk, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (chunk.Chunk, error)

func (f SourceFunc) Next(ctx context.Context) (chunk.Chunk, error) {
	return f(ctx)
}

// Option configures a Parser.
type Option func(*Parser)

// KeepTerminator controls whether returned lines keep their trailing '\n'.
// Lines are stripped by default.
func KeepTerminator(keep bool) Option {
	return func(p *Parser) {
		p.keep = keep
	}
}

// Parser reassembles lines that may span any number of chunks.
//
// A Parser is not safe for concurrent use.
type Parser struct {
	src  Source
	keep bool

	data []byte // current chunk
	pos  int    // first unparsed byte of data
	frag []byte // unterminated tail carried into the next chunk

	terminated bool  // whether the last returned line ended in '\n'
	ended      bool  // terminal element received
	err        error // sticky: io.EOF or the producer failure
}

// NewParser creates a Parser reading from src.
func NewParser(src Source, opts ...Option) *Parser {
	p := &Parser{src: src}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Next returns the next line.
//
// After the sentinel, a non-empty unterminated tail is returned once as the
// final line, then io.EOF on every call. After a failure element, lines
// completed before the failure are returned first; the truncated tail is
// dropped and the failure is returned on every later call.
//
// Errors from the Source itself (cancellation, a closed channel) are returned
// as they are and do not end the stream.
//
// The returned slice may alias chunk memory and is capacity-capped, so
// appending to it never overwrites other lines.
func (p *Parser) Next(ctx context.Context) ([]byte, error) {
	for {
		if p.err != nil {
			return nil, p.err
		}

		if p.pos < len(p.data) {
			rest := p.data[p.pos:]
			if i := bytes.IndexByte(rest, Terminator); i >= 0 {
				p.pos += i + 1
				return p.line(rest[:i+1], true), nil
			}
			p.frag = append(p.frag, rest...)
			p.data, p.pos = nil, 0
		}

		c, err := p.src.Next(ctx)
		if err != nil {
			return nil, err
		}

		switch {
		case c.Err != nil:
			p.ended = true
			p.frag = nil
			p.err = c.Err
		case c.End:
			p.ended = true
			p.err = io.EOF
			if len(p.frag) > 0 {
				tail := p.frag
				p.frag = nil
				return p.line(tail, false), nil
			}
		default:
			p.data, p.pos = c.Data, 0
		}
	}
}

// Terminated reports whether the line last returned by Next ended in '\n' in
// the source, whether or not the terminator was kept. Only a final line can
// be unterminated.
func (p *Parser) Terminated() bool {
	return p.terminated
}

// Ended reports whether the terminal element has been received.
func (p *Parser) Ended() bool {
	return p.ended
}

// line joins the pending fragment with piece.
func (p *Parser) line(piece []byte, terminated bool) []byte {
	p.terminated = terminated

	out := piece
	if len(p.frag) > 0 {
		out = append(p.frag, piece...)
		p.frag = nil
	}

	if terminated && !p.keep {
		out = out[:len(out)-1]
	}
	return out[:len(out):len(out)]
}
