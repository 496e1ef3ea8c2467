package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"roomdrop/internal/domain"
)

func testDevice(id string) domain.Device {
	return domain.Device{
		ID:       domain.DeviceID(id),
		Name:     "Device " + id,
		Type:     domain.DeviceLaptop,
		UserName: "alice",
		Status:   domain.ConnConnected,
		RoomCode: "ABCDEF",
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := New()
	ctx := context.Background()

	if err := r.Register(ctx, testDevice("d1")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	d, err := r.Get(ctx, "d1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.Name != "Device d1" || d.RoomCode != "ABCDEF" {
		t.Fatalf("unexpected device: %+v", d)
	}
	if d.LastSeen.IsZero() {
		t.Fatal("LastSeen should be stamped on register")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := New()
	ctx := context.Background()

	if err := r.Register(ctx, testDevice("d1")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(ctx, testDevice("d1")); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestRegisterInvalid(t *testing.T) {
	r := New()
	d := testDevice("d1")
	d.Type = "toaster"
	if err := r.Register(context.Background(), d); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestHeartbeatRefreshesAndReconnects(t *testing.T) {
	r := New()
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }

	if err := r.Register(ctx, testDevice("d1")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.SetStatus(ctx, "d1", domain.ConnDisconnected); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	r.now = func() time.Time { return base.Add(time.Minute) }
	if err := r.Heartbeat(ctx, "d1"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	d, err := r.Get(ctx, "d1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !d.LastSeen.Equal(base.Add(time.Minute)) {
		t.Fatalf("LastSeen = %v", d.LastSeen)
	}
	if d.Status != domain.ConnConnected {
		t.Fatalf("Status = %s, want connected", d.Status)
	}
}

func TestHeartbeatUnknown(t *testing.T) {
	r := New()
	if err := r.Heartbeat(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeregisterIdempotent(t *testing.T) {
	r := New()
	ctx := context.Background()

	if err := r.Register(ctx, testDevice("d1")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Deregister(ctx, "d1"); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
	if err := r.Deregister(ctx, "d1"); err != nil {
		t.Fatalf("second Deregister: %v", err)
	}
	if _, err := r.Get(ctx, "d1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListSorted(t *testing.T) {
	r := New()
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b"} {
		if err := r.Register(ctx, testDevice(id)); err != nil {
			t.Fatalf("Register %s: %v", id, err)
		}
	}

	out, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("len = %d", len(out))
	}
	for i, want := range []domain.DeviceID{"a", "b", "c"} {
		if out[i].ID != want {
			t.Fatalf("out[%d].ID = %s, want %s", i, out[i].ID, want)
		}
	}
}
