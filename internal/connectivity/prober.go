package connectivity

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const defaultProbeInterval = 5 * time.Second

// Checker reports whether the backend is reachable.
type Checker interface {
	Ping(ctx context.Context) error
}

// Prober drives a Signal from periodic health checks, for hosts that have no
// native online/offline events.
type Prober struct {
	signal   *Signal
	checker  Checker
	interval time.Duration
	logger   *slog.Logger
}

func NewProber(signal *Signal, checker Checker, interval time.Duration, logger *slog.Logger) (*Prober, error) {
	if signal == nil {
		return nil, errors.New("connectivity: signal must not be nil")
	}
	if checker == nil {
		return nil, errors.New("connectivity: checker must not be nil")
	}
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{signal: signal, checker: checker, interval: interval, logger: logger}, nil
}

// Run probes immediately and then on every tick until ctx is done.
func (p *Prober) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

func (p *Prober) probe(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	err := p.checker.Ping(checkCtx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		p.logger.Debug("health probe failed", "err", err)
	}
	p.signal.Set(err == nil)
}
