package session

import (
	"context"
	"log/slog"
	"time"
)

// Janitor periodically purges expired ledger records. Expiry is always
// checked on read, so the janitor only bounds table growth.
type Janitor struct {
	svc      *Service
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
}

// NewJanitor returns a Janitor running every cfg.CleanupInterval.
func NewJanitor(svc *Service, log *slog.Logger) *Janitor {
	if log == nil {
		log = slog.Default()
	}
	return &Janitor{
		svc:      svc,
		interval: svc.cfg.CleanupInterval,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run blocks until ctx is done. A non-positive interval returns immediately.
func (j *Janitor) Run(ctx context.Context) {
	if j == nil || j.interval <= 0 {
		return
	}

	t := time.NewTicker(j.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	n, err := j.svc.PurgeExpired(ctx, j.now())
	if err != nil {
		j.log.Error("auth.session.cleanup.fail", "err", err)
		return
	}
	if n > 0 {
		j.log.Info("auth.session.cleanup", "deleted", n)
	}
}
