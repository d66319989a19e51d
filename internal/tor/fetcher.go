package tor

import (
	"context"
	"log/slog"
	"time"

	"github.com/maltedev/shop-search-scraper/internal/fetch"
)

// RotatingFetcher is a SOCKS5 client bundled with the rotator that controls
// its exit identity.
type RotatingFetcher struct {
	*fetch.Client
	rotator *Rotator
}

type RotatingOptions struct {
	SocksAddr       string
	ControlAddr     string
	ControlPassword string
	EchoURL         string
	EchoTimeout     time.Duration
	Rotator         RotatorConfig
	Fetch           fetch.Options
}

func NewRotatingFetcher(opts RotatingOptions, logger *slog.Logger) (*RotatingFetcher, error) {
	opts.Fetch.Logger = logger
	client, err := fetch.NewSOCKS5(opts.SocksAddr, opts.Fetch)
	if err != nil {
		return nil, err
	}

	echoTimeout := opts.EchoTimeout
	if echoTimeout <= 0 {
		echoTimeout = 15 * time.Second
	}

	control := NewPortController(opts.ControlAddr, opts.ControlPassword, logger)
	echo := NewAddressEcho(client, opts.EchoURL, echoTimeout)

	return &RotatingFetcher{
		Client:  client,
		rotator: NewRotator(control, echo, opts.Rotator, logger),
	}, nil
}

func (f *RotatingFetcher) RotateIdentity(ctx context.Context) bool {
	return f.rotator.RotateIdentity(ctx)
}

func (f *RotatingFetcher) ObserveAddress(ctx context.Context) (string, error) {
	return f.rotator.observer.ObserveAddress(ctx)
}
