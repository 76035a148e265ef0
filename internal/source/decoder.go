package source

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// zstdReadCloser decompresses a zstd stream and closes the underlying reader
// along with the decoder.
type zstdReadCloser struct {
	dec   *zstd.Decoder
	under io.Closer
}

// newDecompressor wraps rc so reads yield the decompressed record bytes.
func newDecompressor(rc io.ReadCloser) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(rc, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &zstdReadCloser{dec: dec, under: rc}, nil
}

func (z *zstdReadCloser) Read(p []byte) (int, error) {
	return z.dec.Read(p)
}

func (z *zstdReadCloser) Close() error {
	z.dec.Close()
	return z.under.Close()
}
