package fetch

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/net/html/charset"
)

// MaxBodyBytes caps how much of a decoded response body is kept.
const MaxBodyBytes = 16 << 20

// decodeBody undoes Content-Encoding and converts the payload to UTF-8
// using the Content-Type charset or an in-document declaration. When the
// payload cannot be decoded the raw bytes are returned along with the error.
func decodeBody(body io.Reader, contentEncoding, contentType string) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(body, MaxBodyBytes))
	if err != nil {
		return string(raw), fmt.Errorf("failed to read body: %w", err)
	}

	decompressed, closer, err := decompress(bytes.NewReader(raw), contentEncoding)
	if err != nil {
		return string(raw), err
	}
	if closer != nil {
		defer closer()
	}

	utf8Reader, err := charset.NewReader(decompressed, contentType)
	if err != nil {
		// Unknown charset label; fall back to the decompressed bytes.
		utf8Reader = decompressed
	}

	data, err := io.ReadAll(io.LimitReader(utf8Reader, MaxBodyBytes))
	if err != nil {
		return string(raw), fmt.Errorf("failed to decode body: %w", err)
	}
	return string(data), nil
}

func decompress(body io.Reader, contentEncoding string) (io.Reader, func(), error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "", "identity":
		return body, nil, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open gzip body: %w", err)
		}
		return zr, func() { zr.Close() }, nil
	case "deflate":
		zr, err := zlib.NewReader(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open deflate body: %w", err)
		}
		return zr, func() { zr.Close() }, nil
	case "zstd":
		zr, err := zstd.NewReader(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open zstd body: %w", err)
		}
		return zr, zr.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported content encoding %q", contentEncoding)
	}
}
