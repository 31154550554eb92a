package diff

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// ReadInput reads diff text from r, transparently decompressing gzip or zstd
// streams.
func ReadInput(r io.Reader) (string, error) {
	br := bufio.NewReader(r)
	magic, _ := br.Peek(len(zstdMagic))

	var src io.Reader = br
	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return "", fmt.Errorf("open gzip diff: %w", err)
		}
		defer gz.Close()
		src = gz
	case bytes.HasPrefix(magic, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return "", fmt.Errorf("open zstd diff: %w", err)
		}
		defer zr.Close()
		src = zr
	}

	b, err := io.ReadAll(src)
	if err != nil {
		return "", fmt.Errorf("read diff: %w", err)
	}
	return string(b), nil
}
