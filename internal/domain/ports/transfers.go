package ports

import (
	"context"
	"time"

	"roomdrop/internal/domain"
)

type TransferCoordinator interface {
	// Request validates both endpoints and their shared-room membership, then
	// creates a record in the pending state.
	Request(ctx context.Context, from, to domain.DeviceID, fileName string, fileSize int64) (domain.TransferRequest, error)
	// Respond applies the recipient's accept or reject decision. A transfer
	// may be responded to exactly once.
	Respond(ctx context.Context, id domain.TransferID, accept bool) (domain.TransferRequest, error)
	StartUpload(ctx context.Context, id domain.TransferID) (domain.TransferRequest, error)
	StartDownload(ctx context.Context, id domain.TransferID) (domain.TransferRequest, error)
	ReportProgress(ctx context.Context, id domain.TransferID, transferred, total, speedBps int64) (domain.TransferRequest, error)
	Complete(ctx context.Context, id domain.TransferID) (domain.TransferRequest, error)
	Fail(ctx context.Context, id domain.TransferID, reason string) (domain.TransferRequest, error)
	Cancel(ctx context.Context, id domain.TransferID) (domain.TransferRequest, error)
	Get(ctx context.Context, id domain.TransferID) (domain.TransferRequest, error)
	// ListPending returns pending transfers addressed to the device.
	ListPending(ctx context.Context, to domain.DeviceID) ([]domain.TransferRequest, error)
	// ListOpen returns every non-terminal transfer.
	ListOpen(ctx context.Context) ([]domain.TransferRequest, error)
	// PruneTerminal drops terminal records older than the cutoff from memory.
	// Archived copies are unaffected.
	PruneTerminal(ctx context.Context, olderThan time.Time) (int, error)
}
