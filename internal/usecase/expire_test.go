package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"roomdrop/internal/domain"
)

func TestExpireFailsStalePending(t *testing.T) {
	coord, _, _, from, to := setupTransferWorld(t)
	archive := &fakeArchive{}
	spoolStore := &fakeSpool{}
	ctx := context.Background()

	stale, err := coord.Request(ctx, from, to, "stale.txt", 10)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	accepted, err := coord.Request(ctx, from, to, "accepted.txt", 10)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := coord.Respond(ctx, accepted.ID, true); err != nil {
		t.Fatalf("accept: %v", err)
	}

	expire := ExpirePending{
		Coordinator: coord,
		Archive:     archive,
		Spool:       spoolStore,
		Logger:      discardLogger(),
		PendingTTL:  5 * time.Minute,
		Retention:   time.Hour,
		Now:         func() time.Time { return time.Now().Add(10 * time.Minute) },
	}
	expire.Sweep(ctx)

	got, err := coord.Get(ctx, stale.ID)
	if err != nil {
		t.Fatalf("get stale: %v", err)
	}
	if got.Status != domain.TransferFailed {
		t.Fatalf("stale status = %s, want failed", got.Status)
	}
	if got.FailReason == "" {
		t.Fatal("expiry should record a reason")
	}

	got, err = coord.Get(ctx, accepted.ID)
	if err != nil {
		t.Fatalf("get accepted: %v", err)
	}
	if got.Status != domain.TransferAccepted {
		t.Fatalf("accepted status = %s, must not expire", got.Status)
	}

	inserted := archive.insertedTransfers()
	if len(inserted) != 1 || inserted[0].ID != stale.ID {
		t.Fatalf("archive inserts = %+v", inserted)
	}
}

func TestExpireKeepsFreshPending(t *testing.T) {
	coord, _, _, from, to := setupTransferWorld(t)
	ctx := context.Background()

	fresh, err := coord.Request(ctx, from, to, "fresh.txt", 10)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	expire := ExpirePending{
		Coordinator: coord,
		Logger:      discardLogger(),
		PendingTTL:  5 * time.Minute,
		Retention:   time.Hour,
	}
	expire.Sweep(ctx)

	got, err := coord.Get(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.TransferPending {
		t.Fatalf("status = %s, want pending", got.Status)
	}
}

func TestExpirePrunesAgedTerminal(t *testing.T) {
	coord, _, _, from, to := setupTransferWorld(t)
	ctx := context.Background()

	tr, err := coord.Request(ctx, from, to, "a.txt", 10)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := coord.Respond(ctx, tr.ID, false); err != nil {
		t.Fatalf("reject: %v", err)
	}

	expire := ExpirePending{
		Coordinator: coord,
		Logger:      discardLogger(),
		PendingTTL:  5 * time.Minute,
		Retention:   time.Hour,
		Now:         func() time.Time { return time.Now().Add(2 * time.Hour) },
	}
	expire.Sweep(ctx)

	if _, err := coord.Get(ctx, tr.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("terminal record should be pruned, got %v", err)
	}
}
