package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kastell/ar7/internal/record"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("compressible content "), 400)

	for _, comp := range []record.Compression{
		record.CompressionNone,
		record.CompressionZip,
		record.CompressionGzip,
		record.CompressionBzip2,
	} {
		comp := comp
		t.Run(comp.String(), func(t *testing.T) {
			t.Parallel()

			stored, err := Compress(comp, payload)
			require.NoError(t, err)
			if comp != record.CompressionNone {
				assert.Less(t, len(stored), len(payload))
			}

			got, err := Decompress(comp, stored)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestNonePassesThrough(t *testing.T) {
	t.Parallel()

	payload := []byte{0x00, 0xff, 0x10}
	stored, err := Compress(record.CompressionNone, payload)
	require.NoError(t, err)
	assert.Equal(t, payload, stored)
}

func TestUnknownCodecRejected(t *testing.T) {
	t.Parallel()

	_, err := Compress(record.Compression(42), []byte("x"))
	require.Error(t, err)
	_, err = Decompress(record.Compression(42), []byte("x"))
	require.Error(t, err)
}

func TestDecompressRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := Decompress(record.CompressionGzip, []byte("not a gzip stream"))
	require.Error(t, err)
}
