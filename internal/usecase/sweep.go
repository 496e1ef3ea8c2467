package usecase

import (
	"context"
	"log/slog"
	"time"

	"roomdrop/internal/domain"
	"roomdrop/internal/domain/ports"
	"roomdrop/internal/metrics"
)

// LivenessSweep is the background liveness policy: devices whose heartbeat
// goes quiet are first marked disconnected, then evicted from their room after
// a longer grace window. It runs on its own schedule and is never invoked by
// a client-facing call.
type LivenessSweep struct {
	Registry        ports.DeviceRegistry
	Rooms           ports.RoomManager
	Logger          *slog.Logger
	Interval        time.Duration
	DisconnectAfter time.Duration
	EvictAfter      time.Duration
	Now             func() time.Time
}

func (s LivenessSweep) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one pass. Exported so the schedule and the policy can be
// tested independently.
func (s LivenessSweep) Sweep(ctx context.Context) {
	disconnectAfter := s.DisconnectAfter
	if disconnectAfter <= 0 {
		disconnectAfter = 45 * time.Second
	}
	evictAfter := s.EvictAfter
	if evictAfter <= 0 {
		evictAfter = 3 * disconnectAfter
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	devices, err := s.Registry.List(ctx)
	if err != nil {
		s.Logger.Warn("liveness sweep: list devices failed", slog.String("error", err.Error()))
		return
	}

	for _, d := range devices {
		idle := now().Sub(d.LastSeen)
		switch {
		case idle > evictAfter:
			// LeaveRoom takes the per-room lock, removes the member, reclaims
			// the room if it empties and deregisters the device.
			if err := s.Rooms.LeaveRoom(ctx, d.ID); err != nil {
				s.Logger.Warn("liveness sweep: evict failed",
					slog.String("deviceId", string(d.ID)),
					slog.String("error", err.Error()),
				)
				continue
			}
			metrics.DevicesEvictedTotal.Inc()
			s.Logger.Info("device evicted",
				slog.String("deviceId", string(d.ID)),
				slog.String("roomCode", string(d.RoomCode)),
				slog.Int64("idleSeconds", int64(idle.Seconds())),
			)
		case idle > disconnectAfter && d.Status == domain.ConnConnected:
			if err := s.Registry.SetStatus(ctx, d.ID, domain.ConnDisconnected); err != nil {
				continue
			}
			s.Logger.Debug("device marked disconnected",
				slog.String("deviceId", string(d.ID)),
				slog.Int64("idleSeconds", int64(idle.Seconds())),
			)
		}
	}
}
