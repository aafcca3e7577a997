package codec

import (
	"bytes"
	"path/filepath"
	"strings"
)

// magicLen is the longest signature Detect inspects (the framed snappy/S2
// stream identifier chunk).
const magicLen = 10

var signatures = []struct {
	format Format
	magic  []byte
}{
	{FormatGzip, []byte{0x1f, 0x8b}},
	{FormatZstd, []byte{0x28, 0xb5, 0x2f, 0xfd}},
	{FormatXZ, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}},
	{FormatBzip2, []byte("BZh")},
	{FormatLZ4, []byte{0x04, 0x22, 0x4d, 0x18}},
	{FormatSnappy, []byte("\xff\x06\x00\x00sNaPpY")},
	{FormatS2, []byte("\xff\x06\x00\x00S2sTwO")},
}

var extensions = map[string]Format{
	".gz":      FormatGzip,
	".gzip":    FormatGzip,
	".tgz":     FormatGzip,
	".zst":     FormatZstd,
	".zstd":    FormatZstd,
	".s2":      FormatS2,
	".sz":      FormatSnappy,
	".snappy":  FormatSnappy,
	".lz4":     FormatLZ4,
	".zz":      FormatZlib,
	".zlib":    FormatZlib,
	".deflate": FormatFlate,
	".xz":      FormatXZ,
	".br":      FormatBrotli,
	".bz2":     FormatBzip2,
	".bz":      FormatBzip2,
}

// Detect identifies a format from the first bytes of a stream.
func Detect(header []byte) (Format, bool) {
	for _, sig := range signatures {
		if bytes.HasPrefix(header, sig.magic) {
			return sig.format, true
		}
	}
	if isZlibHeader(header) {
		return FormatZlib, true
	}
	return "", false
}

// isZlibHeader accepts the four headers zlib itself emits (32 KiB window,
// each compression level class). The looser RFC 1950 checksum rule matches
// ordinary text such as "x ".
func isZlibHeader(h []byte) bool {
	if len(h) < 2 || h[0] != 0x78 {
		return false
	}
	switch h[1] {
	case 0x01, 0x5e, 0x9c, 0xda:
		return true
	}
	return false
}

// FromExtension guesses a format from a file name.
func FromExtension(name string) (Format, bool) {
	f, ok := extensions[strings.ToLower(filepath.Ext(name))]
	return f, ok
}

// Extension returns the conventional file suffix for format, or "" for
// FormatNone and unknown formats.
func Extension(format Format) string {
	switch format {
	case FormatGzip:
		return ".gz"
	case FormatZstd:
		return ".zst"
	case FormatS2:
		return ".s2"
	case FormatSnappy:
		return ".sz"
	case FormatLZ4:
		return ".lz4"
	case FormatZlib:
		return ".zz"
	case FormatFlate:
		return ".deflate"
	case FormatXZ:
		return ".xz"
	case FormatBrotli:
		return ".br"
	case FormatBzip2:
		return ".bz2"
	default:
		return ""
	}
}
