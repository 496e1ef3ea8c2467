package rooms

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

// maxCodeAttempts bounds collision retries during code generation. With a
// 31-character alphabet and 6+ character codes the space holds close to a
// billion values, so hitting the bound means the index is effectively full.
const maxCodeAttempts = 64

// room is an independently lockable membership unit. closed is set under mu
// when the last member leaves, so a concurrent join observes deletion instead
// of resurrecting the room.
type room struct {
	mu        sync.Mutex
	code      domain.RoomCode
	createdAt time.Time
	members   map[domain.DeviceID]struct{}
	closed    bool
}

func (r *room) snapshot() domain.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := make([]domain.DeviceID, 0, len(r.members))
	for id := range r.members {
		members = append(members, id)
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	return domain.Room{Code: r.code, CreatedAt: r.createdAt, Members: members}
}

// Manager owns room lifecycle and is the sole authority over membership.
// The index lock only guards the code->room map; each room carries its own
// mutex so independent rooms never contend.
type Manager struct {
	registry ports.DeviceRegistry
	codeLen  int

	mu    sync.RWMutex
	rooms map[domain.RoomCode]*room

	now func() time.Time
}

func New(registry ports.DeviceRegistry, codeLength int) *Manager {
	if codeLength < minCodeLength {
		codeLength = minCodeLength
	}
	return &Manager{
		registry: registry,
		codeLen:  codeLength,
		rooms:    make(map[domain.RoomCode]*room),
		now:      time.Now,
	}
}

func (m *Manager) CreateRoom(ctx context.Context, name string, dtype domain.DeviceType, userName string) (domain.RoomCode, domain.DeviceID, error) {
	rm, err := m.allocateRoom()
	if err != nil {
		return "", "", err
	}

	id, err := m.addDevice(ctx, rm, name, dtype, userName)
	if err != nil {
		m.mu.Lock()
		delete(m.rooms, rm.code)
		m.mu.Unlock()
		return "", "", err
	}
	return rm.code, id, nil
}

// allocateRoom generates a collision-checked code and inserts an empty room
// under the index lock.
func (m *Manager) allocateRoom() (*room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := generateCode(m.codeLen)
		if err != nil {
			return nil, err
		}
		if _, taken := m.rooms[code]; taken {
			continue
		}
		rm := &room{
			code:      code,
			createdAt: m.now(),
			members:   make(map[domain.DeviceID]struct{}),
		}
		m.rooms[code] = rm
		return rm, nil
	}
	return nil, domain.ErrGenerationExhausted
}

func (m *Manager) JoinRoom(ctx context.Context, code domain.RoomCode, name string, dtype domain.DeviceType, userName string) (domain.DeviceID, error) {
	rm := m.lookup(code)
	if rm == nil {
		return "", domain.ErrNotFound
	}
	return m.addDevice(ctx, rm, name, dtype, userName)
}

// addDevice registers a new device and adds it to the room's member set under
// the per-room lock. A room observed closed is indistinguishable from a room
// that never existed.
func (m *Manager) addDevice(ctx context.Context, rm *room, name string, dtype domain.DeviceType, userName string) (domain.DeviceID, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("device name is required")
	}

	device := domain.Device{
		ID:       domain.DeviceID(uuid.NewString()),
		Name:     strings.TrimSpace(name),
		Type:     dtype,
		UserName: strings.TrimSpace(userName),
		Status:   domain.ConnConnected,
		LastSeen: m.now(),
		RoomCode: rm.code,
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.closed {
		return "", domain.ErrNotFound
	}
	if err := m.registry.Register(ctx, device); err != nil {
		return "", err
	}
	rm.members[device.ID] = struct{}{}
	return device.ID, nil
}

func (m *Manager) LeaveRoom(ctx context.Context, id domain.DeviceID) error {
	d, err := m.registry.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Already gone; leave is idempotent.
			return nil
		}
		return err
	}

	if d.RoomCode != "" {
		if rm := m.lookup(d.RoomCode); rm != nil {
			m.removeMember(rm, id)
		}
	}
	return m.registry.Deregister(ctx, id)
}

// removeMember drops the device from the member set and closes the room when
// it empties. Closing happens under the room lock; removal from the index
// follows, so join and delete are mutually exclusive.
func (m *Manager) removeMember(rm *room, id domain.DeviceID) {
	rm.mu.Lock()
	delete(rm.members, id)
	empty := len(rm.members) == 0
	if empty {
		rm.closed = true
	}
	rm.mu.Unlock()

	if empty {
		m.mu.Lock()
		if cur, ok := m.rooms[rm.code]; ok && cur == rm {
			delete(m.rooms, rm.code)
		}
		m.mu.Unlock()
	}
}

func (m *Manager) lookup(code domain.RoomCode) *room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[code]
}

func (m *Manager) Get(ctx context.Context, code domain.RoomCode) (domain.Room, error) {
	rm := m.lookup(code)
	if rm == nil {
		return domain.Room{}, domain.ErrNotFound
	}
	snap := rm.snapshot()
	if len(snap.Members) == 0 {
		// Closed between lookup and snapshot.
		return domain.Room{}, domain.ErrNotFound
	}
	return snap, nil
}

func (m *Manager) ListDevices(ctx context.Context, code domain.RoomCode) ([]domain.Device, error) {
	snap, err := m.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	devices := make([]domain.Device, 0, len(snap.Members))
	for _, id := range snap.Members {
		d, err := m.registry.Get(ctx, id)
		if err != nil {
			// Evicted while we were iterating; skip.
			continue
		}
		devices = append(devices, d)
	}
	return devices, nil
}

func (m *Manager) ListRooms(ctx context.Context) ([]domain.Room, error) {
	m.mu.RLock()
	live := make([]*room, 0, len(m.rooms))
	for _, rm := range m.rooms {
		live = append(live, rm)
	}
	m.mu.RUnlock()

	out := make([]domain.Room, 0, len(live))
	for _, rm := range live {
		snap := rm.snapshot()
		if len(snap.Members) > 0 {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *Manager) SharedRoom(ctx context.Context, a, b domain.DeviceID) (domain.RoomCode, error) {
	da, err := m.registry.Get(ctx, a)
	if err != nil {
		return "", err
	}
	db, err := m.registry.Get(ctx, b)
	if err != nil {
		return "", err
	}
	if da.RoomCode == "" || da.RoomCode != db.RoomCode {
		return "", domain.ErrNotSameRoom
	}
	return da.RoomCode, nil
}
