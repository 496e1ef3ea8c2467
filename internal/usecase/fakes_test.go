package usecase

import (
	"context"
	"io"
	"sync"

	"roomdrop/internal/domain"
)

type fakeRegistry struct {
	mu       sync.Mutex
	devices  map[domain.DeviceID]domain.Device
	statuses map[domain.DeviceID]domain.ConnectionStatus
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		devices:  make(map[domain.DeviceID]domain.Device),
		statuses: make(map[domain.DeviceID]domain.ConnectionStatus),
	}
}

func (f *fakeRegistry) add(d domain.Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices[d.ID] = d
}

func (f *fakeRegistry) Register(ctx context.Context, d domain.Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.devices[d.ID]; ok {
		return domain.ErrAlreadyExists
	}
	f.devices[d.ID] = d
	return nil
}

func (f *fakeRegistry) Heartbeat(ctx context.Context, id domain.DeviceID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.Status = domain.ConnConnected
	f.devices[id] = d
	return nil
}

func (f *fakeRegistry) SetStatus(ctx context.Context, id domain.DeviceID, status domain.ConnectionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.Status = status
	f.devices[id] = d
	f.statuses[id] = status
	return nil
}

func (f *fakeRegistry) Deregister(ctx context.Context, id domain.DeviceID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.devices, id)
	return nil
}

func (f *fakeRegistry) Get(ctx context.Context, id domain.DeviceID) (domain.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[id]
	if !ok {
		return domain.Device{}, domain.ErrNotFound
	}
	return d, nil
}

func (f *fakeRegistry) List(ctx context.Context) ([]domain.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Device, 0, len(f.devices))
	for _, d := range f.devices {
		out = append(out, d)
	}
	return out, nil
}

// fakeRooms answers SharedRoom from the registry's stored room codes and
// records LeaveRoom calls.
type fakeRooms struct {
	registry *fakeRegistry

	mu    sync.Mutex
	left  []domain.DeviceID
	rooms []domain.Room
}

func (f *fakeRooms) CreateRoom(ctx context.Context, name string, dtype domain.DeviceType, userName string) (domain.RoomCode, domain.DeviceID, error) {
	return "", "", domain.ErrNotFound
}

func (f *fakeRooms) JoinRoom(ctx context.Context, code domain.RoomCode, name string, dtype domain.DeviceType, userName string) (domain.DeviceID, error) {
	return "", domain.ErrNotFound
}

func (f *fakeRooms) LeaveRoom(ctx context.Context, id domain.DeviceID) error {
	f.mu.Lock()
	f.left = append(f.left, id)
	f.mu.Unlock()
	return f.registry.Deregister(ctx, id)
}

func (f *fakeRooms) Get(ctx context.Context, code domain.RoomCode) (domain.Room, error) {
	return domain.Room{}, domain.ErrNotFound
}

func (f *fakeRooms) ListDevices(ctx context.Context, code domain.RoomCode) ([]domain.Device, error) {
	devices, _ := f.registry.List(ctx)
	out := make([]domain.Device, 0, len(devices))
	for _, d := range devices {
		if d.RoomCode == code {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeRooms) ListRooms(ctx context.Context) ([]domain.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rooms, nil
}

func (f *fakeRooms) SharedRoom(ctx context.Context, a, b domain.DeviceID) (domain.RoomCode, error) {
	da, err := f.registry.Get(ctx, a)
	if err != nil {
		return "", err
	}
	db, err := f.registry.Get(ctx, b)
	if err != nil {
		return "", err
	}
	if da.RoomCode == "" || da.RoomCode != db.RoomCode {
		return "", domain.ErrNotSameRoom
	}
	return da.RoomCode, nil
}

func (f *fakeRooms) leftDevices() []domain.DeviceID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.DeviceID(nil), f.left...)
}

type fakeArchive struct {
	mu       sync.Mutex
	inserted []domain.TransferRequest
	insertFn func(domain.TransferRequest) error
	listed   []domain.TransferRequest
}

func (f *fakeArchive) Insert(ctx context.Context, t domain.TransferRequest) error {
	if f.insertFn != nil {
		if err := f.insertFn(t); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.inserted = append(f.inserted, t)
	f.mu.Unlock()
	return nil
}

func (f *fakeArchive) List(ctx context.Context, filter domain.HistoryFilter) ([]domain.TransferRequest, error) {
	return f.listed, nil
}

func (f *fakeArchive) insertedTransfers() []domain.TransferRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TransferRequest(nil), f.inserted...)
}

type fakeSpool struct {
	mu      sync.Mutex
	removed []domain.TransferID
}

func (f *fakeSpool) Save(id domain.TransferID, src io.Reader) (int64, error) {
	return io.Copy(io.Discard, src)
}

func (f *fakeSpool) Open(id domain.TransferID) (io.ReadCloser, int64, error) {
	return nil, 0, domain.ErrNotFound
}

func (f *fakeSpool) Remove(id domain.TransferID) error {
	f.mu.Lock()
	f.removed = append(f.removed, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeSpool) removedIDs() []domain.TransferID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TransferID(nil), f.removed...)
}
