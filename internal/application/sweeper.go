package application

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically evicts expired preview sessions. Expiry is already
// enforced lazily on every read; the sweeper exists so abandoned uploads
// release their budget share without waiting for the next request.
type Sweeper struct {
	store    *PreviewStore
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper wires a sweeper over the store. A non-positive interval falls
// back to five minutes.
func NewSweeper(store *PreviewStore, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   defaultLogger(logger),
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger := s.logger.With("service", "sweeper")
	logger.Info("sweeper started", "interval", s.interval.String())

	for {
		select {
		case <-ctx.Done():
			logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			if removed := s.store.SweepExpired(); removed > 0 {
				logger.Info("expired previews evicted", "count", removed, "used_bytes", s.store.UsedBytes())
			}
		}
	}
}
