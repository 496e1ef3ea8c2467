package ports

import (
	"context"

	"roomdrop/internal/domain"
)

type DeviceRegistry interface {
	Register(ctx context.Context, d domain.Device) error
	Heartbeat(ctx context.Context, id domain.DeviceID) error
	SetStatus(ctx context.Context, id domain.DeviceID, status domain.ConnectionStatus) error
	Deregister(ctx context.Context, id domain.DeviceID) error
	Get(ctx context.Context, id domain.DeviceID) (domain.Device, error)
	List(ctx context.Context) ([]domain.Device, error)
}
