package models

// FetchResult is the outcome of a single HTTP request.
//
// Succeeded means a response was received at all. HTTP error statuses still
// count as received, since block and captcha pages are worth inspecting; only
// network failures leave Body empty and Succeeded false.
type FetchResult struct {
	StatusCode int
	Body       string
	Succeeded  bool
	Err        error
}

func FailedFetch(err error) FetchResult {
	return FetchResult{Err: err}
}

func (f FetchResult) HasBody() bool {
	return f.Succeeded && f.Body != ""
}

func (f FetchResult) IsHTTPError() bool {
	return f.StatusCode >= 400
}
