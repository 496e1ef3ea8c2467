package transfer

import (
	"context"
	"errors"
	"testing"
	"time"

	"roomdrop/internal/domain"
	"roomdrop/internal/services/registry"
	"roomdrop/internal/services/rooms"
)

// setupPair wires a registry and room manager with two devices in one room and
// returns a coordinator over them.
func setupPair(t *testing.T) (*Coordinator, domain.DeviceID, domain.DeviceID) {
	t.Helper()
	ctx := context.Background()
	reg := registry.New()
	mgr := rooms.New(reg, 6)

	code, from, err := mgr.CreateRoom(ctx, "MacBook", domain.DeviceLaptop, "alice")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	to, err := mgr.JoinRoom(ctx, code, "Pixel", domain.DeviceMobile, "bob")
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	return New(reg, mgr), from, to
}

func TestRequestCreatesPending(t *testing.T) {
	c, from, to := setupPair(t)
	ctx := context.Background()

	tr, err := c.Request(ctx, from, to, "photo.jpg", 2048)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if tr.ID == "" {
		t.Fatal("missing transfer id")
	}
	if tr.Status != domain.TransferPending {
		t.Fatalf("status = %s, want pending", tr.Status)
	}
	if tr.RoomCode == "" {
		t.Fatal("room code should be recorded")
	}
	if tr.RequestedAt.IsZero() {
		t.Fatal("RequestedAt should be stamped")
	}
}

func TestRequestValidation(t *testing.T) {
	c, from, to := setupPair(t)
	ctx := context.Background()

	if _, err := c.Request(ctx, from, to, "   ", 10); err == nil {
		t.Fatal("expected error for blank file name")
	}
	if _, err := c.Request(ctx, from, to, "a.txt", -1); err == nil {
		t.Fatal("expected error for negative size")
	}
	if _, err := c.Request(ctx, from, from, "a.txt", 10); err == nil {
		t.Fatal("expected error for identical endpoints")
	}
	if _, err := c.Request(ctx, from, "ghost", "a.txt", 10); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown recipient, got %v", err)
	}
}

func TestRequestAcrossRooms(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	mgr := rooms.New(reg, 6)

	_, a, err := mgr.CreateRoom(ctx, "MacBook", domain.DeviceLaptop, "alice")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	_, b, err := mgr.CreateRoom(ctx, "Pixel", domain.DeviceMobile, "bob")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	c := New(reg, mgr)
	if _, err := c.Request(ctx, a, b, "a.txt", 10); !errors.Is(err, domain.ErrNotSameRoom) {
		t.Fatalf("expected ErrNotSameRoom, got %v", err)
	}
}

func TestRespondAccept(t *testing.T) {
	c, from, to := setupPair(t)
	ctx := context.Background()

	tr, err := c.Request(ctx, from, to, "photo.jpg", 2048)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	got, err := c.Respond(ctx, tr.ID, true)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if got.Status != domain.TransferAccepted {
		t.Fatalf("status = %s, want accepted", got.Status)
	}
	if got.AcceptedAt.IsZero() {
		t.Fatal("AcceptedAt should be stamped")
	}
}

func TestRespondReject(t *testing.T) {
	c, from, to := setupPair(t)
	ctx := context.Background()

	tr, err := c.Request(ctx, from, to, "photo.jpg", 2048)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	got, err := c.Respond(ctx, tr.ID, false)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if got.Status != domain.TransferRejected {
		t.Fatalf("status = %s, want rejected", got.Status)
	}
	if got.CompletedAt.IsZero() {
		t.Fatal("CompletedAt should be stamped on reject")
	}
}

func TestRespondTwice(t *testing.T) {
	c, from, to := setupPair(t)
	ctx := context.Background()

	tr, err := c.Request(ctx, from, to, "photo.jpg", 2048)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if _, err := c.Respond(ctx, tr.ID, true); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if _, err := c.Respond(ctx, tr.ID, false); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("second response should fail with ErrInvalidState, got %v", err)
	}
}

func TestRespondUnknown(t *testing.T) {
	c, _, _ := setupPair(t)
	if _, err := c.Respond(context.Background(), "missing", true); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFullLifecycle(t *testing.T) {
	c, from, to := setupPair(t)
	ctx := context.Background()

	tr, err := c.Request(ctx, from, to, "video.mp4", 1000)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if _, err := c.Respond(ctx, tr.ID, true); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if _, err := c.StartUpload(ctx, tr.ID); err != nil {
		t.Fatalf("StartUpload: %v", err)
	}
	if _, err := c.StartDownload(ctx, tr.ID); err != nil {
		t.Fatalf("StartDownload: %v", err)
	}
	got, err := c.Complete(ctx, tr.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.Status != domain.TransferCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.Progress != 100 || got.Transferred != 1000 || got.ETASeconds != 0 {
		t.Fatalf("completion fields: progress=%v transferred=%d eta=%v", got.Progress, got.Transferred, got.ETASeconds)
	}
	if got.CompletedAt.IsZero() {
		t.Fatal("CompletedAt should be stamped")
	}
}

func TestCompleteFromUploading(t *testing.T) {
	c, from, to := setupPair(t)
	ctx := context.Background()

	tr, _ := c.Request(ctx, from, to, "a.txt", 10)
	_, _ = c.Respond(ctx, tr.ID, true)
	if _, err := c.StartUpload(ctx, tr.ID); err != nil {
		t.Fatalf("StartUpload: %v", err)
	}
	if _, err := c.Complete(ctx, tr.ID); err != nil {
		t.Fatalf("Complete from uploading: %v", err)
	}
}

func TestProgressRequiresActiveState(t *testing.T) {
	c, from, to := setupPair(t)
	ctx := context.Background()

	tr, _ := c.Request(ctx, from, to, "a.txt", 1000)
	if _, err := c.ReportProgress(ctx, tr.ID, 100, 1000, 50); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("progress on pending should fail, got %v", err)
	}
}

func TestProgressMonotone(t *testing.T) {
	c, from, to := setupPair(t)
	ctx := context.Background()

	tr, _ := c.Request(ctx, from, to, "a.txt", 1000)
	_, _ = c.Respond(ctx, tr.ID, true)
	_, _ = c.StartUpload(ctx, tr.ID)

	got, err := c.ReportProgress(ctx, tr.ID, 500, 1000, 100)
	if err != nil {
		t.Fatalf("ReportProgress: %v", err)
	}
	if got.Progress != 50 || got.Transferred != 500 {
		t.Fatalf("progress=%v transferred=%d", got.Progress, got.Transferred)
	}
	if got.ETASeconds != 5 {
		t.Fatalf("eta = %v, want 5", got.ETASeconds)
	}

	// A regression report must not move anything backwards.
	got, err = c.ReportProgress(ctx, tr.ID, 300, 1000, 100)
	if err != nil {
		t.Fatalf("ReportProgress: %v", err)
	}
	if got.Progress != 50 || got.Transferred != 500 {
		t.Fatalf("regressed: progress=%v transferred=%d", got.Progress, got.Transferred)
	}
}

func TestProgressClampedAt100(t *testing.T) {
	c, from, to := setupPair(t)
	ctx := context.Background()

	tr, _ := c.Request(ctx, from, to, "a.txt", 1000)
	_, _ = c.Respond(ctx, tr.ID, true)
	_, _ = c.StartUpload(ctx, tr.ID)

	got, err := c.ReportProgress(ctx, tr.ID, 1500, 1000, 100)
	if err != nil {
		t.Fatalf("ReportProgress: %v", err)
	}
	if got.Progress != 100 {
		t.Fatalf("progress = %v, want clamp at 100", got.Progress)
	}
	if got.ETASeconds != 0 {
		t.Fatalf("eta = %v, want 0 past the end", got.ETASeconds)
	}
}

func TestProgressZeroSpeedKeepsETA(t *testing.T) {
	c, from, to := setupPair(t)
	ctx := context.Background()

	tr, _ := c.Request(ctx, from, to, "a.txt", 1000)
	_, _ = c.Respond(ctx, tr.ID, true)
	_, _ = c.StartUpload(ctx, tr.ID)

	if _, err := c.ReportProgress(ctx, tr.ID, 500, 1000, 100); err != nil {
		t.Fatalf("ReportProgress: %v", err)
	}
	got, err := c.ReportProgress(ctx, tr.ID, 600, 1000, 0)
	if err != nil {
		t.Fatalf("ReportProgress: %v", err)
	}
	if got.SpeedBps != 100 {
		t.Fatalf("speed = %d, want last known 100", got.SpeedBps)
	}
	if got.ETASeconds != 5 {
		t.Fatalf("eta = %v, want unchanged 5", got.ETASeconds)
	}
}

func TestCancelFromEveryOpenState(t *testing.T) {
	c, from, to := setupPair(t)
	ctx := context.Background()

	advance := map[string]func(id domain.TransferID){
		"pending":  func(id domain.TransferID) {},
		"accepted": func(id domain.TransferID) { _, _ = c.Respond(ctx, id, true) },
		"uploading": func(id domain.TransferID) {
			_, _ = c.Respond(ctx, id, true)
			_, _ = c.StartUpload(ctx, id)
		},
		"downloading": func(id domain.TransferID) {
			_, _ = c.Respond(ctx, id, true)
			_, _ = c.StartUpload(ctx, id)
			_, _ = c.StartDownload(ctx, id)
		},
	}
	for name, adv := range advance {
		tr, err := c.Request(ctx, from, to, name+".bin", 10)
		if err != nil {
			t.Fatalf("%s: Request: %v", name, err)
		}
		adv(tr.ID)
		got, err := c.Cancel(ctx, tr.ID)
		if err != nil {
			t.Fatalf("%s: Cancel: %v", name, err)
		}
		if got.Status != domain.TransferCancelled {
			t.Fatalf("%s: status = %s", name, got.Status)
		}
	}
}

func TestFailRecordsReason(t *testing.T) {
	c, from, to := setupPair(t)
	ctx := context.Background()

	tr, _ := c.Request(ctx, from, to, "a.txt", 10)
	got, err := c.Fail(ctx, tr.ID, "  connection reset  ")
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if got.FailReason != "connection reset" {
		t.Fatalf("reason = %q", got.FailReason)
	}
}

func TestListPendingFiltersRecipient(t *testing.T) {
	c, from, to := setupPair(t)
	ctx := context.Background()

	first, _ := c.Request(ctx, from, to, "a.txt", 10)
	second, _ := c.Request(ctx, from, to, "b.txt", 10)
	_, _ = c.Respond(ctx, second.ID, true)

	pending, err := c.ListPending(ctx, to)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != first.ID {
		t.Fatalf("pending = %+v", pending)
	}

	other, err := c.ListPending(ctx, from)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("sender should have no pending, got %+v", other)
	}
}

func TestListOpenOrdering(t *testing.T) {
	c, from, to := setupPair(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }
	first, _ := c.Request(ctx, from, to, "a.txt", 10)
	c.now = func() time.Time { return base.Add(time.Second) }
	second, _ := c.Request(ctx, from, to, "b.txt", 10)

	open, err := c.ListOpen(ctx)
	if err != nil {
		t.Fatalf("ListOpen: %v", err)
	}
	if len(open) != 2 || open[0].ID != first.ID || open[1].ID != second.ID {
		t.Fatalf("open = %+v", open)
	}
}

func TestPruneTerminal(t *testing.T) {
	c, from, to := setupPair(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	old, _ := c.Request(ctx, from, to, "old.txt", 10)
	_, _ = c.Respond(ctx, old.ID, false)

	fresh, _ := c.Request(ctx, from, to, "fresh.txt", 10)
	stillOpen, _ := c.Request(ctx, from, to, "open.txt", 10)

	c.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, _ = c.Respond(ctx, fresh.ID, false)

	pruned, err := c.PruneTerminal(ctx, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("PruneTerminal: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("pruned = %d, want 1", pruned)
	}
	if _, err := c.Get(ctx, old.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("old should be pruned, got %v", err)
	}
	if _, err := c.Get(ctx, fresh.ID); err != nil {
		t.Fatalf("fresh should remain: %v", err)
	}
	if _, err := c.Get(ctx, stillOpen.ID); err != nil {
		t.Fatalf("open should remain: %v", err)
	}
}
