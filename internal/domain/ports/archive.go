package ports

import (
	"context"

	"roomdrop/internal/domain"
)

// TransferArchive persists transfers that reached a terminal state.
type TransferArchive interface {
	Insert(ctx context.Context, t domain.TransferRequest) error
	List(ctx context.Context, filter domain.HistoryFilter) ([]domain.TransferRequest, error)
}
