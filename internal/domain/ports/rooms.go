package ports

import (
	"context"

	"roomdrop/internal/domain"
)

type RoomManager interface {
	// CreateRoom issues a fresh room code, registers the calling device and
	// makes it the sole member.
	CreateRoom(ctx context.Context, name string, dtype domain.DeviceType, userName string) (domain.RoomCode, domain.DeviceID, error)
	JoinRoom(ctx context.Context, code domain.RoomCode, name string, dtype domain.DeviceType, userName string) (domain.DeviceID, error)
	// LeaveRoom removes the device from its room. Leaving when not a member
	// of any room is a no-op. The last member leaving deletes the room.
	LeaveRoom(ctx context.Context, id domain.DeviceID) error
	Get(ctx context.Context, code domain.RoomCode) (domain.Room, error)
	ListDevices(ctx context.Context, code domain.RoomCode) ([]domain.Device, error)
	ListRooms(ctx context.Context) ([]domain.Room, error)
	// SharedRoom returns the code of the room both devices belong to, or
	// domain.ErrNotSameRoom.
	SharedRoom(ctx context.Context, a, b domain.DeviceID) (domain.RoomCode, error)
}
