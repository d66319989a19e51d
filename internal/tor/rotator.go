package tor

import (
	"context"
	"log/slog"
	"time"

	"github.com/maltedev/shop-search-scraper/internal/ratelimit"
)

type RotatorConfig struct {
	// IdentityWait bounds how long to poll for a changed address.
	IdentityWait time.Duration
	PollInterval time.Duration
	// Strict makes an unchanged address after the wait count as failure.
	// When false, any observable address is accepted.
	Strict bool
}

func DefaultRotatorConfig() RotatorConfig {
	return RotatorConfig{
		IdentityWait: 15 * time.Second,
		PollInterval: 3 * time.Second,
	}
}

type Rotator struct {
	control  ControlChannel
	observer AddressObserver
	sleeper  ratelimit.Sleeper
	cfg      RotatorConfig
	logger   *slog.Logger
}

func NewRotator(control ControlChannel, observer AddressObserver, cfg RotatorConfig, logger *slog.Logger) *Rotator {
	if cfg.PollInterval <= 0 || (cfg.IdentityWait > 0 && cfg.PollInterval > cfg.IdentityWait) {
		cfg.PollInterval = cfg.IdentityWait
	}
	return &Rotator{
		control:  control,
		observer: observer,
		sleeper:  ratelimit.TimerSleeper{},
		cfg:      cfg,
		logger:   logger.With("component", "tor_rotator"),
	}
}

// WithSleeper replaces the sleeper used between polls.
func (r *Rotator) WithSleeper(s ratelimit.Sleeper) *Rotator {
	r.sleeper = s
	return r
}

// RotateIdentity signals the control channel and waits for the observed
// egress address to change. It returns false when the signal could not be
// delivered or when no address can be observed after the wait.
func (r *Rotator) RotateIdentity(ctx context.Context) bool {
	before, err := r.observer.ObserveAddress(ctx)
	if err != nil {
		r.logger.Debug("pre-rotation address unknown", "error", err)
		before = ""
	}

	if err := r.control.NewIdentity(ctx); err != nil {
		r.logger.Warn("identity rotation failed", "error", err)
		return false
	}

	var waited time.Duration
	for waited < r.cfg.IdentityWait {
		step := min(r.cfg.PollInterval, r.cfg.IdentityWait-waited)
		if err := r.sleeper.Sleep(ctx, step); err != nil {
			return false
		}
		waited += step

		addr, err := r.observer.ObserveAddress(ctx)
		if err == nil && addr != "" && addr != before {
			r.logger.Info("identity rotated", "previous", before, "current", addr, "waited", waited)
			return true
		}
	}

	after, err := r.observer.ObserveAddress(ctx)
	if err != nil {
		r.logger.Warn("address unobservable after rotation", "error", err)
		return false
	}
	if after != before {
		r.logger.Info("identity rotated", "previous", before, "current", after, "waited", waited)
		return true
	}

	if r.cfg.Strict {
		r.logger.Warn("address unchanged after rotation", "address", after, "waited", waited)
		return false
	}
	r.logger.Warn("address unchanged after rotation, continuing", "address", after, "waited", waited)
	return true
}
