package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"roomdrop/internal/domain"
	"roomdrop/internal/domain/ports"
)

// ExpirePending fails pending transfers nobody responded to within the TTL,
// through the same Fail entry point a caller would use, and prunes terminal
// records once they age out of the in-memory retention window.
type ExpirePending struct {
	Coordinator ports.TransferCoordinator
	Archive     ports.TransferArchive
	Spool       ports.PayloadStore
	Logger      *slog.Logger
	Interval    time.Duration
	PendingTTL  time.Duration
	Retention   time.Duration
	Now         func() time.Time
}

func (e ExpirePending) Run(ctx context.Context) {
	interval := e.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Sweep(ctx)
		}
	}
}

func (e ExpirePending) Sweep(ctx context.Context) {
	ttl := e.PendingTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	retention := e.Retention
	if retention <= 0 {
		retention = time.Hour
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}

	open, err := e.Coordinator.ListOpen(ctx)
	if err != nil {
		e.Logger.Warn("expire: list open transfers failed", slog.String("error", err.Error()))
		return
	}

	fail := FailTransfer{
		Coordinator: e.Coordinator,
		Archive:     e.Archive,
		Spool:       e.Spool,
		Logger:      e.Logger,
	}

	for _, t := range open {
		if t.Status != domain.TransferPending {
			continue
		}
		if now().Sub(t.RequestedAt) <= ttl {
			continue
		}
		if _, err := fail.Execute(ctx, t.ID, "no response within "+ttl.String()); err != nil {
			// A response landed between the listing and the transition.
			if errors.Is(err, domain.ErrInvalidState) {
				continue
			}
			e.Logger.Warn("expire: fail transfer failed",
				slog.String("transferId", string(t.ID)),
				slog.String("error", err.Error()),
			)
			continue
		}
		e.Logger.Info("pending transfer expired",
			slog.String("transferId", string(t.ID)),
			slog.String("fileName", t.FileName),
		)
	}

	if pruned, err := e.Coordinator.PruneTerminal(ctx, now().Add(-retention)); err == nil && pruned > 0 {
		e.Logger.Debug("terminal transfers pruned", slog.Int("count", pruned))
	}
}
