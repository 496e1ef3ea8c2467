package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"roomdrop/internal/domain"
)

// Registry is the in-memory device registry. It exclusively owns Device
// records; the room manager and transfer coordinator reference devices by id
// only.
type Registry struct {
	mu      sync.RWMutex
	devices map[domain.DeviceID]*domain.Device
	now     func() time.Time
}

func New() *Registry {
	return &Registry{
		devices: make(map[domain.DeviceID]*domain.Device),
		now:     time.Now,
	}
}

func (r *Registry) Register(ctx context.Context, d domain.Device) error {
	if d.LastSeen.IsZero() {
		d.LastSeen = r.now()
	}
	if err := d.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[d.ID]; ok {
		return domain.ErrAlreadyExists
	}
	stored := d
	r.devices[d.ID] = &stored
	return nil
}

// Heartbeat refreshes last-seen and recovers connecting/error devices back to
// connected. A disconnected device that heartbeats again also reconnects.
func (r *Registry) Heartbeat(ctx context.Context, id domain.DeviceID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.LastSeen = r.now()
	d.Status = domain.ConnConnected
	return nil
}

func (r *Registry) SetStatus(ctx context.Context, id domain.DeviceID, status domain.ConnectionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.Status = status
	return nil
}

// Deregister removes the device. Removing an unknown device is a no-op so
// that explicit leave and liveness eviction can race safely.
func (r *Registry) Deregister(ctx context.Context, id domain.DeviceID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.devices, id)
	return nil
}

func (r *Registry) Get(ctx context.Context, id domain.DeviceID) (domain.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	if !ok {
		return domain.Device{}, domain.ErrNotFound
	}
	return *d, nil
}

func (r *Registry) List(ctx context.Context) ([]domain.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
