// Command fgzcat prints, counts or fingerprints the lines of compressed files,
// and compresses standard input with -compress.
package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/legaultmarc/fast-gzip/pkg/codec"
	"github.com/legaultmarc/fast-gzip/pkg/metrics"
	"github.com/legaultmarc/fast-gzip/pkg/ratelimit/bucket"
	"github.com/legaultmarc/fast-gzip/pkg/streaming/reader"
	"github.com/legaultmarc/fast-gzip/pkg/streaming/writer"
)

type options struct {
	mode         string
	compress     bool
	output       string
	format       string
	level        int
	command      string
	chunkSize    int
	capacity     int
	retries      int
	rate         float64
	jobs         int
	readTimeout  time.Duration
	closeTimeout time.Duration
	metricsAddr  string
	logLevel     string
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (options, []string, error) {
	var opts options

	fs := flag.NewFlagSet("fgzcat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.mode, "mode", "cat", "What to do with each input: cat, count or digest")
	fs.BoolVar(&opts.compress, "compress", false, "Compress standard input into -o instead of reading files")
	fs.StringVar(&opts.output, "o", "-", "Output file for -compress (- for standard output)")
	fs.StringVar(&opts.format, "format", "auto", "Compression format: "+formatList())
	fs.IntVar(&opts.level, "level", codec.DefaultLevel, "Compression level for -compress")
	fs.StringVar(&opts.command, "command", "", `External (de)compressor, e.g. "pigz -dc"`)
	fs.IntVar(&opts.chunkSize, "chunk-size", reader.DefaultConfig().ChunkSize, "Decompressed bytes per chunk")
	fs.IntVar(&opts.capacity, "capacity", reader.DefaultConfig().Capacity, "Chunks buffered ahead of the line parser")
	fs.IntVar(&opts.retries, "retries", reader.DefaultConfig().MaxRetries, "Retries of timed-out reads per chunk")
	fs.Float64Var(&opts.rate, "rate", 0, "Cap on decompressed bytes per second (0 is unlimited)")
	fs.IntVar(&opts.jobs, "jobs", 1, "Files read concurrently in count and digest modes")
	fs.DurationVar(&opts.readTimeout, "read-timeout", 0, "Bound on each line wait (0 waits forever)")
	fs.DurationVar(&opts.closeTimeout, "close-timeout", 5*time.Second, "Bound on waiting for the producer at close")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return opts, nil, err
	}

	switch opts.mode {
	case "cat", "count", "digest":
	default:
		return opts, nil, fmt.Errorf("unknown -mode %q", opts.mode)
	}
	if opts.jobs < 1 {
		return opts, nil, fmt.Errorf("-jobs must be at least 1, got %d", opts.jobs)
	}
	return opts, fs.Args(), nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, files, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	logger := log.NewLogfmtLogger(log.NewSyncWriter(stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	logger = level.NewFilter(logger, allowLevel(opts.logLevel))

	var reg *metrics.Registry
	if opts.metricsAddr != "" {
		reg = metrics.DefaultRegistry()
		srv := &http.Server{Addr: opts.metricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				level.Error(logger).Log("msg", "metrics server failed", "err", err)
			}
		}()
		defer func() { _ = srv.Close() }()
		level.Info(logger).Log("msg", "serving metrics", "addr", opts.metricsAddr)
	}

	if opts.compress {
		if err := compress(ctx, opts, stdin, logger, reg); err != nil {
			level.Error(logger).Log("msg", "compression failed", "err", err)
			return 1
		}
		return 0
	}

	if len(files) == 0 {
		files = []string{reader.Stdin}
	}

	out := bufio.NewWriterSize(stdout, 256*1024)
	defer out.Flush()

	if opts.jobs > 1 && opts.mode != "cat" {
		return processAll(ctx, opts, files, stdin, out, logger, reg)
	}

	status := 0
	for _, path := range files {
		if ctx.Err() != nil {
			return 130
		}
		if err := process(ctx, opts, path, stdin, out, logger, reg); err != nil {
			level.Error(logger).Log("msg", "failed", "file", path, "err", err)
			status = 1
		}
	}
	return status
}

// processAll reads up to opts.jobs files at once. Results are written in
// argument order.
func processAll(ctx context.Context, opts options, files []string, stdin io.Reader, out io.Writer,
	logger log.Logger, reg *metrics.Registry) int {
	results := make([]bytes.Buffer, len(files))
	failed := make([]bool, len(files))

	var g errgroup.Group
	g.SetLimit(opts.jobs)
	for i, path := range files {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := process(ctx, opts, path, stdin, &results[i], logger, reg); err != nil {
				level.Error(logger).Log("msg", "failed", "file", path, "err", err)
				failed[i] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 130
	}

	status := 0
	for i := range results {
		_, _ = results[i].WriteTo(out)
		if failed[i] {
			status = 1
		}
	}
	return status
}

func readerConfig(opts options, logger log.Logger, reg *metrics.Registry) (reader.Config, error) {
	cfg := reader.DefaultConfig()
	cfg.ChunkSize = opts.chunkSize
	cfg.Capacity = opts.capacity
	cfg.MaxRetries = opts.retries
	cfg.ReadTimeout = opts.readTimeout
	cfg.CloseTimeout = opts.closeTimeout
	cfg.RateLimit = bucket.Limit(opts.rate)
	cfg.Logger = logger
	cfg.Metrics = reg
	cfg.Name = "fgzcat"

	format, err := codec.ParseFormat(opts.format)
	if err != nil {
		return cfg, err
	}
	cfg.Format = format
	cfg.Command = parseCommand(opts.command)
	return cfg, nil
}

func process(ctx context.Context, opts options, path string, stdin io.Reader, out io.Writer,
	logger log.Logger, reg *metrics.Registry) error {
	cfg, err := readerConfig(opts, logger, reg)
	if err != nil {
		return err
	}

	var r *reader.Reader
	if path == reader.Stdin {
		r, err = reader.NewWithConfig(stdin, cfg)
	} else {
		r, err = reader.OpenWithConfig(path, cfg)
	}
	if err != nil {
		return err
	}
	defer r.Close()

	// Close on cancellation unblocks a NextLine waiting on the producer.
	stop := context.AfterFunc(ctx, func() { _ = r.Close() })
	defer stop()

	switch opts.mode {
	case "cat":
		_, err = r.WriteTo(out)
		return err

	case "count":
		var n int64
		for _, err := range r.Lines() {
			if err != nil {
				return err
			}
			n++
		}
		_, err = fmt.Fprintf(out, "%d\t%s\n", n, path)
		return err

	default: // digest
		if _, err := r.WriteTo(io.Discard); err != nil {
			return err
		}
		stats := r.Stats()
		_, err = fmt.Fprintf(out, "%016x\t%d\t%d\t%s\n", stats.Digest, stats.Lines, stats.LineBytes, path)
		return err
	}
}

func compress(ctx context.Context, opts options, stdin io.Reader, logger log.Logger, reg *metrics.Registry) error {
	cfg := writer.DefaultConfig()
	cfg.Level = opts.level
	cfg.Logger = logger
	cfg.Metrics = reg
	cfg.Name = "fgzcat"
	cfg.FlushInterval = 0

	format, err := codec.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	cfg.Format = format
	if format == codec.FormatAuto && opts.output == writer.Stdout {
		cfg.Format = codec.FormatGzip
	}
	cfg.Command = parseCommand(opts.command)

	w, err := writer.CreateWithConfig(opts.output, cfg)
	if err != nil {
		return err
	}

	buf := make([]byte, 128*1024)
	for ctx.Err() == nil {
		n, rerr := stdin.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				_ = w.Close()
				return err
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			_ = w.Close()
			return rerr
		}
	}

	if err := w.Close(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	stats := w.Stats()
	level.Info(logger).Log("msg", "compressed", "in", stats.BytesWritten, "out", stats.CompressedBytes,
		"digest", fmt.Sprintf("%016x", stats.Digest))
	return nil
}

func parseCommand(s string) codec.Command {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return codec.Command{}
	}
	return codec.Command{Path: fields[0], Args: fields[1:]}
}

func allowLevel(s string) level.Option {
	switch strings.ToLower(s) {
	case "debug":
		return level.AllowDebug()
	case "info":
		return level.AllowInfo()
	case "error":
		return level.AllowError()
	default:
		return level.AllowWarn()
	}
}

func formatList() string {
	names := []string{string(codec.FormatAuto)}
	for _, f := range codec.Formats() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}
