package fetch

import "net/http"

const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:126.0) Gecko/20100101 Firefox/126.0"

// AcceptEncoding lists only encodings decodeBody understands.
const AcceptEncoding = "gzip, deflate, zstd"

var defaultHeaders = http.Header{
	"User-Agent":      {UserAgent},
	"Accept":          {"*/*"},
	"Accept-Language": {"en-US,en;q=0.9,en-GB;q=0.8"},
	"Accept-Encoding": {AcceptEncoding},
	"Cache-Control":   {"no-cache"},
	"Pragma":          {"no-cache"},
	"Referer":         {"https://www.bing.com/"},
	"Sec-Fetch-Dest":  {"empty"},
	"Sec-Fetch-Mode":  {"cors"},
	"Sec-Fetch-Site":  {"same-origin"},
}

// DefaultHeaders returns a copy of the browser-like header set sent with
// every request.
func DefaultHeaders() http.Header {
	return defaultHeaders.Clone()
}
