package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/legaultmarc/fast-gzip/pkg/codec"
)

// Compress returns data encoded in format at the default level.
func Compress(t testing.TB, format codec.Format, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w, err := codec.NewWriter(format, &buf, codec.DefaultLevel)
	if err != nil {
		t.Fatalf("compress %s: %v", format, err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("compress %s: %v", format, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("compress %s: %v", format, err)
	}
	return buf.Bytes()
}

// WriteCompressed stores data encoded in format under t.TempDir() and returns
// the path. The file carries the conventional extension for format.
func WriteCompressed(t testing.TB, format codec.Format, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "input"+codec.Extension(format))
	if err := os.WriteFile(path, Compress(t, format, data), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Text builds n newline-terminated lines of varying length.
func Text(n int) []byte {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "line %06d %s\n", i, strings.Repeat("x", i%37))
	}
	return []byte(b.String())
}

// SplitLines returns the lines of data without terminators. A trailing
// fragment without a terminator is kept.
func SplitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	lines := strings.Split(string(data), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
