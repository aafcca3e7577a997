package codec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/legaultmarc/fast-gzip/pkg/common/validation"
)

// stderrTail is how much of a failing child's stderr ends up in its error.
const stderrTail = 4096

// Command describes an external compressor or decompressor binary. The
// child reads the input on stdin and writes the result on stdout.
type Command struct {
	Path string
	Args []string
	// Env is appended to the current environment.
	Env []string
}

// IsZero reports whether no command is configured.
func (c Command) IsZero() bool {
	return c.Path == "" && len(c.Args) == 0
}

// Validate checks that a configured command names a binary.
func (c Command) Validate(module string) error {
	return validation.ValidateNotEmpty(module, "Command.Path", c.Path)
}

func (c Command) String() string {
	return strings.TrimSpace(c.Path + " " + strings.Join(c.Args, " "))
}

var tools = map[Format]string{
	FormatGzip:   "gzip",
	FormatZstd:   "zstd",
	FormatXZ:     "xz",
	FormatBzip2:  "bzip2",
	FormatLZ4:    "lz4",
	FormatBrotli: "brotli",
}

// DecompressCommand returns the conventional "<tool> -dc" invocation for
// formats that have a standard command line tool.
func DecompressCommand(format Format) (Command, bool) {
	tool, ok := tools[format]
	if !ok {
		return Command{}, false
	}
	return Command{Path: tool, Args: []string{"-dc"}}, true
}

// CompressCommand returns "<tool> -c [-level]" for formats with a standard tool.
func CompressCommand(format Format, level int) (Command, bool) {
	tool, ok := tools[format]
	if !ok {
		return Command{}, false
	}
	args := []string{"-c"}
	if level != DefaultLevel {
		args = append(args, "-"+strconv.Itoa(level))
	}
	return Command{Path: tool, Args: args}, true
}

// ProcessReader streams the stdout of a running decompressor process.
type ProcessReader struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailBuffer

	waitOnce sync.Once
	waitErr  error
}

var _ io.ReadCloser = (*ProcessReader)(nil)

// Reader starts the command with src as its stdin. Cancelling ctx kills the
// process.
func (c Command) Reader(ctx context.Context, src io.Reader) (*ProcessReader, error) {
	cmd := c.command(ctx)

	stderr := &tailBuffer{max: stderrTail}
	cmd.Stderr = stderr

	// A file is handed to the child directly. Anything else is copied by a
	// goroutine that Wait does not track, so a stalled src cannot keep the
	// reader from being reaped.
	var stdin io.WriteCloser
	if f, ok := src.(*os.File); ok {
		cmd.Stdin = f
	} else {
		var err error
		if stdin, err = cmd.StdinPipe(); err != nil {
			return nil, fmt.Errorf("stdin pipe for %s: %w", c.Path, err)
		}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe for %s: %w", c.Path, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", c.Path, err)
	}

	if stdin != nil {
		go func() {
			_, _ = io.Copy(stdin, src)
			_ = stdin.Close()
		}()
	}

	return &ProcessReader{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

// Read returns decompressed bytes. At end of output it waits for the process
// and reports a non-zero exit as an error.
func (p *ProcessReader) Read(b []byte) (int, error) {
	n, err := p.stdout.Read(b)
	if errors.Is(err, io.EOF) {
		if werr := p.wait(); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// Kill terminates the process. A Read blocked on its output then returns.
// Safe to call concurrently with Read and more than once.
func (p *ProcessReader) Kill() error {
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// Close kills the process if it is still running and reaps it. An exit
// status has already been reported by Read, so Close only fails when the
// process cannot be signalled.
func (p *ProcessReader) Close() error {
	if err := p.Kill(); err != nil {
		return err
	}
	_ = p.wait()
	return nil
}

// Pid returns the process id of the child.
func (p *ProcessReader) Pid() int {
	return p.cmd.Process.Pid
}

func (p *ProcessReader) wait() error {
	p.waitOnce.Do(func() {
		if err := p.cmd.Wait(); err != nil {
			p.waitErr = exitError(p.cmd.Path, err, p.stderr)
		}
	})
	return p.waitErr
}

// ProcessWriter feeds bytes to the stdin of a running compressor process.
type ProcessWriter struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer

	closeOnce sync.Once
	closeErr  error
}

var _ io.WriteCloser = (*ProcessWriter)(nil)

// Writer starts the command with dst as its stdout.
func (c Command) Writer(ctx context.Context, dst io.Writer) (*ProcessWriter, error) {
	cmd := c.command(ctx)
	cmd.Stdout = dst

	stderr := &tailBuffer{max: stderrTail}
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe for %s: %w", c.Path, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", c.Path, err)
	}

	return &ProcessWriter{cmd: cmd, stdin: stdin, stderr: stderr}, nil
}

func (p *ProcessWriter) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

// Close ends the input and waits for the compressor to finish writing.
func (p *ProcessWriter) Close() error {
	p.closeOnce.Do(func() {
		if err := p.stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			p.closeErr = err
		}
		if err := p.cmd.Wait(); err != nil {
			p.closeErr = exitError(p.cmd.Path, err, p.stderr)
		}
	})
	return p.closeErr
}

func (c Command) command(ctx context.Context) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	return cmd
}

func exitError(path string, err error, stderr *tailBuffer) error {
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		return fmt.Errorf("%s: %w: %s", path, err, msg)
	}
	return fmt.Errorf("%s: %w", path, err)
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
