package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/legaultmarc/fast-gzip/internal/testutil"
	"github.com/legaultmarc/fast-gzip/pkg/codec"
	gferrors "github.com/legaultmarc/fast-gzip/pkg/common/errors"
	"github.com/legaultmarc/fast-gzip/pkg/metrics"
)

var chunkSizes = []int{1, 3, 16, 4096, 1048576}

func sized(size int) Config {
	cfg := DefaultConfig()
	cfg.ChunkSize = size
	return cfg
}

func readAll(t *testing.T, r *Reader) []string {
	t.Helper()
	var out []string
	for {
		line, err := r.NextLine()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, string(line))
	}
}

func openGzip(t *testing.T, data []byte, cfg Config) *Reader {
	t.Helper()
	r, err := OpenWithConfig(testutil.WriteCompressed(t, codec.FormatGzip, data), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestReader_Examples(t *testing.T) {
	tests := []struct {
		name string
		data string
		size int
		want []string
	}{
		{"no trailing newline", "a\nbb\nccc", 3, []string{"a", "bb", "ccc"}},
		{"empty input", "", 3, nil},
		{"empty line, chunk 1", "x\n\ny\n", 1, []string{"x", "", "y"}},
		{"empty line, chunk 4096", "x\n\ny\n", 4096, []string{"x", "", "y"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := openGzip(t, []byte(tt.data), sized(tt.size))
			assert.Equal(t, tt.want, readAll(t, r))
		})
	}
}

func TestReader_SameLinesForEveryChunkSize(t *testing.T) {
	data := append(testutil.Text(2000), "unterminated tail"...)
	want := testutil.SplitLines(data)

	for _, size := range chunkSizes {
		t.Run(fmt.Sprint(size), func(t *testing.T) {
			r := openGzip(t, data, sized(size))
			assert.Equal(t, want, readAll(t, r))
		})
	}
}

func TestReader_LongLineSpansChunks(t *testing.T) {
	long := strings.Repeat("0123456789", 1000)
	r := openGzip(t, []byte("short\n"+long+"\nend\n"), sized(16))

	assert.Equal(t, []string{"short", long, "end"}, readAll(t, r))
	assert.Greater(t, r.Stats().Chunks, int64(600))
}

func TestReader_WriteToReproducesStream(t *testing.T) {
	data := append(testutil.Text(700), "\n\nlast"...)

	for _, size := range chunkSizes {
		t.Run(fmt.Sprint(size), func(t *testing.T) {
			r := openGzip(t, data, sized(size))

			var out bytes.Buffer
			n, err := r.WriteTo(&out)
			require.NoError(t, err)
			assert.Equal(t, int64(len(data)), n)
			assert.Equal(t, data, out.Bytes())

			stats := r.Stats()
			assert.Equal(t, xxhash.Sum64(data), stats.Digest)
			assert.Equal(t, int64(len(data)), stats.LineBytes)
			assert.Equal(t, int64(len(data)), stats.Bytes)
		})
	}
}

func TestReader_KeepTerminator(t *testing.T) {
	cfg := sized(3)
	cfg.KeepTerminator = true
	r := openGzip(t, []byte("a\n\nb"), cfg)

	assert.Equal(t, []string{"a\n", "\n", "b"}, readAll(t, r))
}

func TestReader_KeepTerminatorWriteTo(t *testing.T) {
	data := testutil.Text(50)
	cfg := sized(7)
	cfg.KeepTerminator = true
	r := openGzip(t, data, cfg)

	var out bytes.Buffer
	_, err := r.WriteTo(&out)
	require.NoError(t, err)
	assert.Equal(t, data, out.Bytes())
	assert.Equal(t, xxhash.Sum64(data), r.Stats().Digest)
}

func TestReader_SourceNotFound(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.gz"))
	require.Error(t, err)
	assert.ErrorIs(t, err, gferrors.ErrSourceNotFound)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = Open(t.TempDir())
	assert.ErrorIs(t, err, gferrors.ErrSourceNotFound)
}

func TestReader_ProducerFailure(t *testing.T) {
	data := testutil.Text(5000)
	compressed := testutil.Compress(t, codec.FormatGzip, data)
	truncated := compressed[:len(compressed)*2/3]

	r, err := NewWithConfig(bytes.NewReader(truncated), sized(1024))
	require.NoError(t, err)
	defer r.Close()

	want := testutil.SplitLines(data)
	var got []string
	for {
		line, err := r.NextLine()
		if err != nil {
			require.NotErrorIs(t, err, io.EOF, "a truncated stream must not end cleanly")
			assert.ErrorIs(t, err, gferrors.ErrProducerFailure)
			assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

			var perr *gferrors.ProducerError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, r.Stats().Bytes, perr.Offset)

			_, again := r.NextLine()
			assert.ErrorIs(t, again, gferrors.ErrProducerFailure, "failure is sticky")
			break
		}
		got = append(got, string(line))
	}

	require.NotEmpty(t, got)
	assert.Equal(t, want[:len(got)], got, "lines before the failure are intact")
	assert.Equal(t, StateDraining, r.State())
}

func TestReader_CorruptHeader(t *testing.T) {
	r, err := New(strings.NewReader("definitely not gzip\n"))
	require.NoError(t, err, "header errors surface from the stream")
	defer r.Close()

	_, err = r.NextLine()
	var perr *gferrors.ProducerError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, int64(0), perr.Offset)
}

func TestReader_CloseMidStream(t *testing.T) {
	cfg := sized(64)
	cfg.Capacity = 1
	r := openGzip(t, testutil.Text(100000), cfg)

	_, err := r.NextLine()
	require.NoError(t, err)
	testutil.AssertEventually(t, func() bool { return r.Stats().BlockedSends > 0 })

	require.NoError(t, r.Close())
	assert.Equal(t, StateClosed, r.State())

	// No producer goroutine survives Close.
	goleak.VerifyNone(t)

	_, err = r.NextLine()
	assert.ErrorIs(t, err, gferrors.ErrUseAfterClose)
	assert.NoError(t, r.Close(), "Close is idempotent")
}

func TestReader_CloseBeforeRead(t *testing.T) {
	r := openGzip(t, testutil.Text(10), DefaultConfig())

	assert.Equal(t, StateCreated, r.State())
	require.NoError(t, r.Close())

	for line, err := range r.Lines() {
		assert.Nil(t, line)
		assert.ErrorIs(t, err, gferrors.ErrUseAfterClose)
	}
	_, err := r.WriteTo(io.Discard)
	assert.ErrorIs(t, err, gferrors.ErrUseAfterClose)
}

func TestReader_StateTransitions(t *testing.T) {
	r := openGzip(t, []byte("a\nb"), sized(2))
	assert.Equal(t, StateCreated, r.State())

	_, err := r.NextLine()
	require.NoError(t, err)
	assert.Equal(t, StateRunning, r.State())

	line, err := r.NextLine()
	require.NoError(t, err)
	assert.Equal(t, "b", string(line))
	assert.Equal(t, StateDraining, r.State(), "sentinel received, final fragment emitted")

	_, err = r.NextLine()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, StateDraining, r.State())

	require.NoError(t, r.Close())
	assert.Equal(t, StateClosed, r.State())
	assert.Equal(t, "closed", r.State().String())
}

func TestReader_LinesIteratorIsPersistent(t *testing.T) {
	data := testutil.Text(10)
	want := testutil.SplitLines(data)
	r := openGzip(t, data, sized(16))

	var first []string
	for line, err := range r.Lines() {
		require.NoError(t, err)
		first = append(first, string(line))
		if len(first) == 3 {
			break
		}
	}

	var rest []string
	for line, err := range r.Lines() {
		require.NoError(t, err)
		rest = append(rest, string(line))
	}

	assert.Equal(t, want[:3], first)
	assert.Equal(t, want[3:], rest, "a second range continues instead of restarting")
}

func TestReader_LinesYieldsFailureOnce(t *testing.T) {
	compressed := testutil.Compress(t, codec.FormatGzip, testutil.Text(3000))
	r, err := New(bytes.NewReader(compressed[:len(compressed)/2]))
	require.NoError(t, err)
	defer r.Close()

	var errs int
	for _, err := range r.Lines() {
		if err != nil {
			errs++
			assert.True(t, gferrors.IsProducerError(err))
		}
	}
	assert.Equal(t, 1, errs)
}

func TestReader_ReopenPath(t *testing.T) {
	data := testutil.Text(20)
	want := testutil.SplitLines(data)
	r := openGzip(t, data, sized(8))

	for i := 0; i < 5; i++ {
		_, err := r.NextLine()
		require.NoError(t, err)
	}

	fresh, err := r.Reopen()
	require.NoError(t, err)
	defer fresh.Close()

	assert.Equal(t, StateClosed, r.State())
	assert.Equal(t, want, readAll(t, fresh))
	assert.Equal(t, 8, fresh.Config().ChunkSize)
}

func TestReader_ReopenSeekableStream(t *testing.T) {
	data := testutil.Text(30)
	src := bytes.NewReader(testutil.Compress(t, codec.FormatGzip, data))

	r, err := New(src)
	require.NoError(t, err)
	require.Len(t, readAll(t, r), 30)

	fresh, err := r.Reopen()
	require.NoError(t, err)
	defer fresh.Close()

	assert.Equal(t, testutil.SplitLines(data), readAll(t, fresh))
}

func TestReader_ReopenNotRewindable(t *testing.T) {
	compressed := testutil.Compress(t, codec.FormatGzip, []byte("one\ntwo\n"))
	r, err := New(io.MultiReader(bytes.NewReader(compressed)))
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Reopen()
	assert.ErrorIs(t, err, gferrors.ErrNotRewindable)
	assert.NotEqual(t, StateClosed, r.State(), "a failed Reopen leaves the reader usable")
	assert.Equal(t, []string{"one", "two"}, readAll(t, r))
}

func TestReader_AutoFormat(t *testing.T) {
	data := testutil.Text(200)
	formats := []codec.Format{
		codec.FormatGzip, codec.FormatZstd, codec.FormatXZ, codec.FormatLZ4,
		codec.FormatS2, codec.FormatSnappy, codec.FormatZlib, codec.FormatBrotli,
		codec.FormatNone,
	}

	for _, format := range formats {
		t.Run(string(format), func(t *testing.T) {
			cfg := sized(100)
			cfg.Format = codec.FormatAuto

			r, err := OpenWithConfig(testutil.WriteCompressed(t, format, data), cfg)
			require.NoError(t, err)
			defer r.Close()

			assert.Equal(t, testutil.SplitLines(data), readAll(t, r))
		})
	}
}

func TestReader_ExternalCommand(t *testing.T) {
	if _, err := exec.LookPath("gzip"); err != nil {
		t.Skip("gzip not installed")
	}

	data := testutil.Text(500)
	cfg := sized(256)
	cfg.Command, _ = codec.DecompressCommand(codec.FormatGzip)

	r, err := OpenWithConfig(testutil.WriteCompressed(t, codec.FormatGzip, data), cfg)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, testutil.SplitLines(data), readAll(t, r))
}

func TestReader_ExternalCommandClosedEarly(t *testing.T) {
	if _, err := exec.LookPath("gzip"); err != nil {
		t.Skip("gzip not installed")
	}

	cfg := sized(64)
	cfg.Capacity = 1
	cfg.Command, _ = codec.DecompressCommand(codec.FormatGzip)

	r, err := OpenWithConfig(testutil.WriteCompressed(t, codec.FormatGzip, testutil.Text(200000)), cfg)
	require.NoError(t, err)

	_, err = r.NextLine()
	require.NoError(t, err)
	require.NoError(t, r.Close())
	goleak.VerifyNone(t)
}

func TestReader_ExternalCommandMissing(t *testing.T) {
	cfg := sized(256)
	cfg.Command = codec.Command{Path: filepath.Join(t.TempDir(), "no-such-decompressor")}

	r, err := OpenWithConfig(testutil.WriteCompressed(t, codec.FormatGzip, testutil.Text(10)), cfg)
	require.NoError(t, err, "the command starts on the producer goroutine")

	_, err = r.NextLine()
	assert.ErrorIs(t, err, gferrors.ErrProducerFailure)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	var perr *gferrors.ProducerError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, int64(0), perr.Offset)

	assert.NotPanics(t, func() { assert.NoError(t, r.Close()) })
	assert.Equal(t, StateClosed, r.State())
	goleak.VerifyNone(t)
}

func TestReader_ExternalCommandExitStatus(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not installed")
	}

	cfg := sized(1024)
	cfg.Command = codec.Command{Path: "sh", Args: []string{"-c", `printf 'a\nb'; exit 3`}}

	r, err := OpenWithConfig(testutil.WriteCompressed(t, codec.FormatNone, []byte("ignored\n")), cfg)
	require.NoError(t, err)

	line, err := r.NextLine()
	require.NoError(t, err)
	assert.Equal(t, "a", string(line))

	_, err = r.NextLine()
	assert.ErrorIs(t, err, gferrors.ErrProducerFailure)
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode())

	var perr *gferrors.ProducerError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, int64(3), perr.Offset, "the unterminated fragment was read before the failure")

	_, again := r.NextLine()
	assert.ErrorIs(t, again, gferrors.ErrProducerFailure)

	require.NoError(t, r.Close())
	goleak.VerifyNone(t)
}

func TestReader_ReadTimeout(t *testing.T) {
	src := testutil.NewStallReader([]byte("first\n"))

	cfg := sized(1024)
	cfg.Format = codec.FormatNone
	cfg.ReadTimeout = 30 * time.Millisecond

	r, err := NewWithConfig(src, cfg)
	require.NoError(t, err)

	_, err = r.NextLine()
	assert.ErrorIs(t, err, gferrors.ErrTimeout)
	assert.True(t, gferrors.IsRetryable(err))

	// Unstall: the buffered bytes arrive, then the stream ends.
	src.Release()
	line, err := r.NextLine()
	require.NoError(t, err)
	assert.Equal(t, "first", string(line))

	_, err = r.NextLine()
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, r.Close())
}

func TestReader_NextLineContextCancelled(t *testing.T) {
	src := testutil.NewStallReader([]byte("x\n"))
	cfg := sized(1024)
	cfg.Format = codec.FormatNone

	r, err := NewWithConfig(src, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.NextLineContext(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, src.Close())
	require.NoError(t, r.Close())
}

func TestReader_CloseTimeout(t *testing.T) {
	src := testutil.NewStallReader(nil)
	cfg := DefaultConfig()
	cfg.Format = codec.FormatNone
	cfg.CloseTimeout = 20 * time.Millisecond

	r, err := NewWithConfig(src, cfg)
	require.NoError(t, err)
	testutil.AssertEventually(t, func() bool { return src.Blocked.Load() == 1 })

	begin := time.Now()
	require.NoError(t, r.Close())
	assert.Less(t, time.Since(begin), testutil.TestTimeout)
	assert.Equal(t, StateClosed, r.State())

	// Let the abandoned read return so the producer exits.
	require.NoError(t, src.Close())
}

func TestReader_Metrics(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	cfg := sized(32)
	cfg.Name = "metrics_test"
	cfg.Metrics = reg

	r := openGzip(t, testutil.Text(40), cfg)
	assert.Equal(t, 1.0, promtestutil.ToFloat64(reg.OpenReaders.WithLabelValues("gzip")))

	assert.Len(t, readAll(t, r), 40)
	require.NoError(t, r.Close())

	assert.Equal(t, 40.0, promtestutil.ToFloat64(reg.LinesEmitted.WithLabelValues("metrics_test")))
	assert.Equal(t, float64(r.Stats().Chunks), promtestutil.ToFloat64(reg.ChunksProduced.WithLabelValues("metrics_test")))
	assert.Equal(t, 0.0, promtestutil.ToFloat64(reg.OpenReaders.WithLabelValues("gzip")))
}

func TestReader_Stdin(t *testing.T) {
	data := testutil.Text(15)
	path := testutil.WriteCompressed(t, codec.FormatGzip, data)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	saved := os.Stdin
	os.Stdin = f
	defer func() { os.Stdin = saved }()

	r, err := Open(Stdin)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, testutil.SplitLines(data), readAll(t, r))

	_, err = r.Reopen()
	assert.ErrorIs(t, err, gferrors.ErrNotRewindable)
}

func TestReader_RateLimit(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789abcdefghi\n"), 250) // 5000 bytes
	cfg := sized(1000)
	cfg.RateLimit = 40000

	r := openGzip(t, data, cfg)

	begin := time.Now()
	lines := readAll(t, r)
	elapsed := time.Since(begin)

	assert.Len(t, lines, 250)
	// The first chunk comes from the burst, the other 4000 bytes take 100ms.
	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
}

func TestReader_StdinCloseIsBounded(t *testing.T) {
	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	defer pr.Close()

	saved := os.Stdin
	os.Stdin = pr
	defer func() { os.Stdin = saved }()

	cfg := sized(64)
	cfg.Format = codec.FormatNone

	r, err := OpenWithConfig(Stdin, cfg)
	require.NoError(t, err)
	assert.Equal(t, StdinCloseTimeout, r.config.CloseTimeout)

	begin := time.Now()
	require.NoError(t, r.Close())
	assert.Less(t, time.Since(begin), 3*StdinCloseTimeout, "Close must not wait on a silent stdin")

	// The producer left behind by the timeout exits once its Read returns.
	require.NoError(t, pw.Close())
	goleak.VerifyNone(t)
}
