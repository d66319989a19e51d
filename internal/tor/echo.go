package tor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maltedev/shop-search-scraper/internal/models"
)

var ErrAddressUnknown = errors.New("external address unknown")

// AddressObserver reports the egress address as seen from outside.
type AddressObserver interface {
	ObserveAddress(ctx context.Context) (string, error)
}

// Getter is satisfied by *fetch.Client.
type Getter interface {
	Get(ctx context.Context, url string, timeout time.Duration) models.FetchResult
}

// AddressEcho queries a JSON echo service such as api.ipify.org?format=json
// or httpbin.org/ip through the same transport the scraper uses.
type AddressEcho struct {
	client  Getter
	url     string
	timeout time.Duration
}

func NewAddressEcho(client Getter, url string, timeout time.Duration) *AddressEcho {
	return &AddressEcho{client: client, url: url, timeout: timeout}
}

type echoResponse struct {
	IP     string `json:"ip"`
	Origin string `json:"origin"`
}

func (e *AddressEcho) ObserveAddress(ctx context.Context) (string, error) {
	result := e.client.Get(ctx, e.url, e.timeout)
	if !result.Succeeded {
		return "", fmt.Errorf("%w: %v", ErrAddressUnknown, result.Err)
	}
	if result.IsHTTPError() {
		return "", fmt.Errorf("%w: echo service returned status %d", ErrAddressUnknown, result.StatusCode)
	}

	var resp echoResponse
	if err := json.Unmarshal([]byte(result.Body), &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAddressUnknown, err)
	}

	addr := strings.TrimSpace(resp.IP)
	if addr == "" {
		addr = strings.TrimSpace(resp.Origin)
	}
	if addr == "" {
		return "", ErrAddressUnknown
	}
	return addr, nil
}
