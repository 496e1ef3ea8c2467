package transfer

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"roomdrop/internal/domain"
	"roomdrop/internal/domain/ports"
)

// record pairs a transfer with its own mutex so state transitions on
// different transfers never contend. All mutation goes through apply.
type record struct {
	mu sync.Mutex
	t  domain.TransferRequest
}

func (r *record) snapshot() domain.TransferRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.t
}

// Coordinator exclusively owns TransferRequest mutation. Endpoint existence
// and shared-room membership are validated at request creation; later room
// churn never retroactively fails an in-flight transfer.
type Coordinator struct {
	registry ports.DeviceRegistry
	rooms    ports.RoomManager

	mu        sync.RWMutex
	transfers map[domain.TransferID]*record

	now func() time.Time
}

func New(registry ports.DeviceRegistry, rooms ports.RoomManager) *Coordinator {
	return &Coordinator{
		registry:  registry,
		rooms:     rooms,
		transfers: make(map[domain.TransferID]*record),
		now:       time.Now,
	}
}

func (c *Coordinator) Request(ctx context.Context, from, to domain.DeviceID, fileName string, fileSize int64) (domain.TransferRequest, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return domain.TransferRequest{}, errors.New("file name is required")
	}
	if fileSize < 0 {
		return domain.TransferRequest{}, errors.New("fileSize must not be negative")
	}
	if from == to {
		return domain.TransferRequest{}, errors.New("transfer endpoints must differ")
	}

	if _, err := c.registry.Get(ctx, from); err != nil {
		return domain.TransferRequest{}, err
	}
	if _, err := c.registry.Get(ctx, to); err != nil {
		return domain.TransferRequest{}, err
	}
	code, err := c.rooms.SharedRoom(ctx, from, to)
	if err != nil {
		return domain.TransferRequest{}, err
	}

	t := domain.TransferRequest{
		ID:           domain.TransferID(uuid.NewString()),
		FileName:     fileName,
		FileSize:     fileSize,
		FromDeviceID: from,
		ToDeviceID:   to,
		RoomCode:     code,
		Status:       domain.TransferPending,
		RequestedAt:  c.now(),
	}

	c.mu.Lock()
	c.transfers[t.ID] = &record{t: t}
	c.mu.Unlock()
	return t, nil
}

// apply performs an atomic read-modify-write transition under the per-transfer
// lock. Two concurrent terminal attempts resolve deterministically: the loser
// observes a terminal state and fails with ErrInvalidState.
func (c *Coordinator) apply(id domain.TransferID, to domain.TransferStatus, mutate func(*domain.TransferRequest)) (domain.TransferRequest, error) {
	rec := c.lookup(id)
	if rec == nil {
		return domain.TransferRequest{}, domain.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !domain.CanTransition(rec.t.Status, to) {
		return rec.t, domain.ErrInvalidState
	}
	rec.t.Status = to
	if mutate != nil {
		mutate(&rec.t)
	}
	return rec.t, nil
}

func (c *Coordinator) Respond(ctx context.Context, id domain.TransferID, accept bool) (domain.TransferRequest, error) {
	now := c.now()
	if accept {
		return c.apply(id, domain.TransferAccepted, func(t *domain.TransferRequest) {
			t.AcceptedAt = now
		})
	}
	return c.apply(id, domain.TransferRejected, func(t *domain.TransferRequest) {
		t.CompletedAt = now
	})
}

func (c *Coordinator) StartUpload(ctx context.Context, id domain.TransferID) (domain.TransferRequest, error) {
	return c.apply(id, domain.TransferUploading, nil)
}

func (c *Coordinator) StartDownload(ctx context.Context, id domain.TransferID) (domain.TransferRequest, error) {
	return c.apply(id, domain.TransferDownloading, nil)
}

// ReportProgress records data-plane progress while the transfer is in an
// active state. Progress and transferred bytes are clamped to be
// monotonically non-decreasing even if the transport reports a regression;
// the remaining-time estimate is only recomputed when a positive speed is
// known.
func (c *Coordinator) ReportProgress(ctx context.Context, id domain.TransferID, transferred, total, speedBps int64) (domain.TransferRequest, error) {
	rec := c.lookup(id)
	if rec == nil {
		return domain.TransferRequest{}, domain.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if !rec.t.Status.Active() {
		return rec.t, domain.ErrInvalidState
	}

	if total <= 0 {
		total = rec.t.FileSize
	}
	if transferred > rec.t.Transferred {
		rec.t.Transferred = transferred
	}
	if total > 0 {
		pct := float64(rec.t.Transferred) / float64(total) * 100
		if pct > 100 {
			pct = 100
		}
		if pct > rec.t.Progress {
			rec.t.Progress = pct
		}
	}
	if speedBps > 0 {
		rec.t.SpeedBps = speedBps
		remaining := total - rec.t.Transferred
		if remaining < 0 {
			remaining = 0
		}
		rec.t.ETASeconds = float64(remaining) / float64(speedBps)
	}
	return rec.t, nil
}

func (c *Coordinator) Complete(ctx context.Context, id domain.TransferID) (domain.TransferRequest, error) {
	now := c.now()
	return c.apply(id, domain.TransferCompleted, func(t *domain.TransferRequest) {
		t.Progress = 100
		if t.FileSize > 0 {
			t.Transferred = t.FileSize
		}
		t.ETASeconds = 0
		t.CompletedAt = now
	})
}

func (c *Coordinator) Fail(ctx context.Context, id domain.TransferID, reason string) (domain.TransferRequest, error) {
	now := c.now()
	return c.apply(id, domain.TransferFailed, func(t *domain.TransferRequest) {
		t.FailReason = strings.TrimSpace(reason)
		t.CompletedAt = now
	})
}

func (c *Coordinator) Cancel(ctx context.Context, id domain.TransferID) (domain.TransferRequest, error) {
	now := c.now()
	return c.apply(id, domain.TransferCancelled, func(t *domain.TransferRequest) {
		t.CompletedAt = now
	})
}

func (c *Coordinator) Get(ctx context.Context, id domain.TransferID) (domain.TransferRequest, error) {
	rec := c.lookup(id)
	if rec == nil {
		return domain.TransferRequest{}, domain.ErrNotFound
	}
	return rec.snapshot(), nil
}

func (c *Coordinator) ListPending(ctx context.Context, to domain.DeviceID) ([]domain.TransferRequest, error) {
	return c.list(func(t domain.TransferRequest) bool {
		return t.Status == domain.TransferPending && t.ToDeviceID == to
	}), nil
}

func (c *Coordinator) ListOpen(ctx context.Context) ([]domain.TransferRequest, error) {
	return c.list(func(t domain.TransferRequest) bool {
		return !t.Status.IsTerminal()
	}), nil
}

func (c *Coordinator) list(match func(domain.TransferRequest) bool) []domain.TransferRequest {
	c.mu.RLock()
	recs := make([]*record, 0, len(c.transfers))
	for _, rec := range c.transfers {
		recs = append(recs, rec)
	}
	c.mu.RUnlock()

	out := make([]domain.TransferRequest, 0, len(recs))
	for _, rec := range recs {
		if t := rec.snapshot(); match(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out
}

// PruneTerminal drops terminal records whose terminal timestamp is older than
// the cutoff. Callers are expected to have archived them already.
func (c *Coordinator) PruneTerminal(ctx context.Context, olderThan time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pruned := 0
	for id, rec := range c.transfers {
		t := rec.snapshot()
		if t.Status.IsTerminal() && !t.CompletedAt.IsZero() && t.CompletedAt.Before(olderThan) {
			delete(c.transfers, id)
			pruned++
		}
	}
	return pruned, nil
}

func (c *Coordinator) lookup(id domain.TransferID) *record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transfers[id]
}
