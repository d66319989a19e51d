package fetch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/shop-search-scraper/pkg/logger"
)

func testClient() *Client {
	return NewDirect(Options{Logger: logger.Discard()})
}

func TestGetSendsDefaultHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	c := testClient()
	defer c.Close()

	result := c.Get(context.Background(), server.URL, 5*time.Second)
	require.True(t, result.Succeeded)
	assert.Equal(t, "ok", result.Body)
	assert.Equal(t, UserAgent, got.Get("User-Agent"))
	assert.Equal(t, AcceptEncoding, got.Get("Accept-Encoding"))
	assert.Equal(t, "https://www.bing.com/", got.Get("Referer"))
}

func TestGetDecodesGzip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		zw := gzip.NewWriter(w)
		zw.Write([]byte("<html>compressed</html>"))
		zw.Close()
	}))
	defer server.Close()

	result := testClient().Get(context.Background(), server.URL, 5*time.Second)
	require.True(t, result.Succeeded)
	require.NoError(t, result.Err)
	assert.Equal(t, "<html>compressed</html>", result.Body)
}

func TestGetDecodesCharset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write([]byte{'c', 'a', 'f', 0xe9})
	}))
	defer server.Close()

	result := testClient().Get(context.Background(), server.URL, 5*time.Second)
	require.True(t, result.Succeeded)
	assert.Equal(t, "café", result.Body)
}

func TestGetKeepsErrorStatusBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("Access Denied"))
	}))
	defer server.Close()

	result := testClient().Get(context.Background(), server.URL, 5*time.Second)
	assert.True(t, result.Succeeded)
	assert.True(t, result.IsHTTPError())
	assert.Equal(t, http.StatusForbidden, result.StatusCode)
	assert.Equal(t, "Access Denied", result.Body)
}

func TestGetNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	result := testClient().Get(context.Background(), url, 2*time.Second)
	assert.False(t, result.Succeeded)
	assert.False(t, result.HasBody())
	assert.Error(t, result.Err)
}

func TestGetTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	result := testClient().Get(context.Background(), server.URL, 50*time.Millisecond)
	assert.False(t, result.Succeeded)
	assert.ErrorIs(t, result.Err, context.DeadlineExceeded)
}

func TestPostSendsBody(t *testing.T) {
	var body []byte
	var contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		contentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	result := testClient().Post(context.Background(), server.URL, []byte(`{"q":"mug"}`), "application/json", 5*time.Second)
	require.True(t, result.Succeeded)
	assert.Equal(t, http.StatusCreated, result.StatusCode)
	assert.Equal(t, `{"q":"mug"}`, string(body))
	assert.Equal(t, "application/json", contentType)
}

func TestDecodeBodyZstd(t *testing.T) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write([]byte("zstd payload"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	text, err := decodeBody(&buf, "zstd", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "zstd payload", text)
}

func TestDecodeBodyUnsupportedEncoding(t *testing.T) {
	text, err := decodeBody(bytes.NewReader([]byte("x")), "br", "text/html")
	assert.Error(t, err)
	assert.Equal(t, "x", text)
}

func TestGetKeepsRawBodyWhenDecodingFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("<html>Access Denied</html>"))
	}))
	defer server.Close()

	c := testClient()
	defer c.Close()

	result := c.Get(context.Background(), server.URL, 5*time.Second)
	require.True(t, result.Succeeded)
	assert.Error(t, result.Err)
	assert.Equal(t, http.StatusForbidden, result.StatusCode)
	assert.Contains(t, result.Body, "Access Denied")
}

func TestNewSOCKS5(t *testing.T) {
	c, err := NewSOCKS5("127.0.0.1:9050", Options{Logger: logger.Discard()})
	require.NoError(t, err)
	assert.True(t, c.transport.DisableKeepAlives)
}

func TestDefaultHeadersIsCopy(t *testing.T) {
	h := DefaultHeaders()
	h.Set("User-Agent", "changed")
	assert.Equal(t, UserAgent, DefaultHeaders().Get("User-Agent"))
}
