package usecase

import (
	"context"
	"log/slog"
	"strings"

	"roomdrop/internal/domain"
	"roomdrop/internal/domain/ports"
	"roomdrop/internal/metrics"
)

type RequestTransfer struct {
	Coordinator ports.TransferCoordinator
}

type RequestTransferInput struct {
	FromDeviceID domain.DeviceID
	ToDeviceID   domain.DeviceID
	FileName     string
	FileSize     int64
}

func (uc RequestTransfer) Execute(ctx context.Context, input RequestTransferInput) (domain.TransferRequest, error) {
	if input.FromDeviceID == "" || input.ToDeviceID == "" {
		return domain.TransferRequest{}, invalidInput("both device ids are required")
	}
	if input.FromDeviceID == input.ToDeviceID {
		return domain.TransferRequest{}, invalidInput("cannot transfer to the requesting device")
	}
	if strings.TrimSpace(input.FileName) == "" {
		return domain.TransferRequest{}, invalidInput("fileName is required")
	}
	if input.FileSize < 0 {
		return domain.TransferRequest{}, invalidInput("fileSize must not be negative")
	}

	t, err := uc.Coordinator.Request(ctx, input.FromDeviceID, input.ToDeviceID, input.FileName, input.FileSize)
	if err != nil {
		return domain.TransferRequest{}, coreErr(err)
	}
	metrics.TransfersCreatedTotal.Inc()
	return t, nil
}

// archiveTerminal records a terminal transfer in the archive. Archive failures
// are logged, never surfaced: the transition itself already happened and
// history is best-effort.
func archiveTerminal(ctx context.Context, archive ports.TransferArchive, logger *slog.Logger, t domain.TransferRequest) {
	if !t.Status.IsTerminal() {
		return
	}
	metrics.TransfersTerminalTotal.WithLabelValues(string(t.Status)).Inc()
	if archive == nil {
		return
	}
	if err := archive.Insert(ctx, t); err != nil && logger != nil {
		logger.Warn("transfer archive insert failed",
			slog.String("transferId", string(t.ID)),
			slog.String("error", err.Error()),
		)
	}
}

// dropPayload removes any spooled payload for a transfer that can no longer
// be downloaded.
func dropPayload(spool ports.PayloadStore, logger *slog.Logger, id domain.TransferID) {
	if spool == nil {
		return
	}
	if err := spool.Remove(id); err != nil && logger != nil {
		logger.Warn("spool remove failed",
			slog.String("transferId", string(id)),
			slog.String("error", err.Error()),
		)
	}
}

type RespondTransfer struct {
	Coordinator ports.TransferCoordinator
	Archive     ports.TransferArchive
	Spool       ports.PayloadStore
	Logger      *slog.Logger
}

func (uc RespondTransfer) Execute(ctx context.Context, id domain.TransferID, accept bool) (domain.TransferRequest, error) {
	if id == "" {
		return domain.TransferRequest{}, invalidInput("transfer id is required")
	}
	t, err := uc.Coordinator.Respond(ctx, id, accept)
	if err != nil {
		return t, coreErr(err)
	}
	if !accept {
		archiveTerminal(ctx, uc.Archive, uc.Logger, t)
		dropPayload(uc.Spool, uc.Logger, t.ID)
	}
	return t, nil
}

type ReportTransferProgress struct {
	Coordinator ports.TransferCoordinator
}

type ProgressInput struct {
	TransferID  domain.TransferID
	Transferred int64
	Total       int64
	SpeedBps    int64
}

func (uc ReportTransferProgress) Execute(ctx context.Context, input ProgressInput) (domain.TransferRequest, error) {
	if input.TransferID == "" {
		return domain.TransferRequest{}, invalidInput("transfer id is required")
	}
	if input.Transferred < 0 || input.Total < 0 || input.SpeedBps < 0 {
		return domain.TransferRequest{}, invalidInput("progress values must not be negative")
	}
	t, err := uc.Coordinator.ReportProgress(ctx, input.TransferID, input.Transferred, input.Total, input.SpeedBps)
	if err != nil {
		return t, coreErr(err)
	}
	return t, nil
}

type CompleteTransfer struct {
	Coordinator ports.TransferCoordinator
	Archive     ports.TransferArchive
	Spool       ports.PayloadStore
	Logger      *slog.Logger
}

func (uc CompleteTransfer) Execute(ctx context.Context, id domain.TransferID) (domain.TransferRequest, error) {
	if id == "" {
		return domain.TransferRequest{}, invalidInput("transfer id is required")
	}
	t, err := uc.Coordinator.Complete(ctx, id)
	if err != nil {
		return t, coreErr(err)
	}
	archiveTerminal(ctx, uc.Archive, uc.Logger, t)
	dropPayload(uc.Spool, uc.Logger, t.ID)
	return t, nil
}

type FailTransfer struct {
	Coordinator ports.TransferCoordinator
	Archive     ports.TransferArchive
	Spool       ports.PayloadStore
	Logger      *slog.Logger
}

func (uc FailTransfer) Execute(ctx context.Context, id domain.TransferID, reason string) (domain.TransferRequest, error) {
	if id == "" {
		return domain.TransferRequest{}, invalidInput("transfer id is required")
	}
	t, err := uc.Coordinator.Fail(ctx, id, reason)
	if err != nil {
		return t, coreErr(err)
	}
	archiveTerminal(ctx, uc.Archive, uc.Logger, t)
	dropPayload(uc.Spool, uc.Logger, t.ID)
	return t, nil
}

type CancelTransfer struct {
	Coordinator ports.TransferCoordinator
	Archive     ports.TransferArchive
	Spool       ports.PayloadStore
	Logger      *slog.Logger
}

func (uc CancelTransfer) Execute(ctx context.Context, id domain.TransferID) (domain.TransferRequest, error) {
	if id == "" {
		return domain.TransferRequest{}, invalidInput("transfer id is required")
	}
	t, err := uc.Coordinator.Cancel(ctx, id)
	if err != nil {
		return t, coreErr(err)
	}
	archiveTerminal(ctx, uc.Archive, uc.Logger, t)
	dropPayload(uc.Spool, uc.Logger, t.ID)
	return t, nil
}

type GetTransferStatus struct {
	Coordinator ports.TransferCoordinator
}

func (uc GetTransferStatus) Execute(ctx context.Context, id domain.TransferID) (domain.TransferRequest, error) {
	if id == "" {
		return domain.TransferRequest{}, invalidInput("transfer id is required")
	}
	t, err := uc.Coordinator.Get(ctx, id)
	if err != nil {
		return domain.TransferRequest{}, coreErr(err)
	}
	return t, nil
}

type ListPendingTransfers struct {
	Coordinator ports.TransferCoordinator
}

func (uc ListPendingTransfers) Execute(ctx context.Context, to domain.DeviceID) ([]domain.TransferRequest, error) {
	if to == "" {
		return nil, invalidInput("device id is required")
	}
	out, err := uc.Coordinator.ListPending(ctx, to)
	if err != nil {
		return nil, coreErr(err)
	}
	return out, nil
}

type ListTransferHistory struct {
	Archive ports.TransferArchive
}

func (uc ListTransferHistory) Execute(ctx context.Context, filter domain.HistoryFilter) ([]domain.TransferRequest, error) {
	if uc.Archive == nil {
		return nil, nil
	}
	out, err := uc.Archive.List(ctx, filter)
	if err != nil {
		return nil, wrapArchive(err)
	}
	return out, nil
}
