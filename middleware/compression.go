package middleware

import (
	"bytes"
	"io"

	"github.com/andybalholm/brotli"
)

func compressPayload(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	writer := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := writer.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decompressPayload(data []byte) ([]byte, error) {
	return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
}
