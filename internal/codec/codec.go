// Package codec dispatches per-file payload compression over the
// archive's compression tags.
package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"github.com/kastell/ar7/internal/record"
)

// Compress encodes data with the algorithm named by the tag. The none
// tag passes data through unchanged.
func Compress(c record.Compression, data []byte) ([]byte, error) {
	if c == record.CompressionNone {
		return data, nil
	}

	var buf bytes.Buffer
	var w io.WriteCloser
	var err error
	switch c {
	case record.CompressionZip:
		w = zlib.NewWriter(&buf)
	case record.CompressionGzip:
		w = gzip.NewWriter(&buf)
	case record.CompressionBzip2:
		w, err = bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
		if err != nil {
			return nil, fmt.Errorf("init bzip2 writer: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown compression tag %d", c)
	}

	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("compress %s: %w", c, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress %s: %w", c, err)
	}
	return buf.Bytes(), nil
}

// Decompress decodes data previously produced by Compress.
func Decompress(c record.Compression, data []byte) ([]byte, error) {
	if c == record.CompressionNone {
		return data, nil
	}

	var r io.Reader
	var err error
	switch c {
	case record.CompressionZip:
		r, err = zlib.NewReader(bytes.NewReader(data))
	case record.CompressionGzip:
		r, err = gzip.NewReader(bytes.NewReader(data))
	case record.CompressionBzip2:
		r, err = bzip2.NewReader(bytes.NewReader(data), new(bzip2.ReaderConfig))
	default:
		return nil, fmt.Errorf("unknown compression tag %d", c)
	}
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", c, err)
	}

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", c, err)
	}
	return out, nil
}
