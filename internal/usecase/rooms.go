package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"roomdrop/internal/domain"
	"roomdrop/internal/domain/ports"
)

var ErrInvalidInput = errors.New("invalid input")

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// coreErr passes domain sentinels through untouched so handlers can map them,
// and wraps everything else as an internal coordination error.
func coreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrNotSameRoom),
		errors.Is(err, domain.ErrGenerationExhausted):
		return err
	default:
		return wrapCore(err)
	}
}

type NewDeviceInput struct {
	DeviceName string
	DeviceType string
	UserName   string
}

func (in NewDeviceInput) parse() (string, domain.DeviceType, string, error) {
	name := strings.TrimSpace(in.DeviceName)
	if name == "" {
		return "", "", "", invalidInput("deviceName is required")
	}
	dtype, err := domain.ParseDeviceType(strings.TrimSpace(in.DeviceType))
	if err != nil {
		return "", "", "", invalidInput(err.Error())
	}
	return name, dtype, strings.TrimSpace(in.UserName), nil
}

type CreateRoom struct {
	Rooms ports.RoomManager
}

type CreateRoomResult struct {
	RoomCode domain.RoomCode `json:"roomCode"`
	DeviceID domain.DeviceID `json:"deviceId"`
}

func (uc CreateRoom) Execute(ctx context.Context, input NewDeviceInput) (CreateRoomResult, error) {
	name, dtype, userName, err := input.parse()
	if err != nil {
		return CreateRoomResult{}, err
	}
	code, id, err := uc.Rooms.CreateRoom(ctx, name, dtype, userName)
	if err != nil {
		return CreateRoomResult{}, coreErr(err)
	}
	return CreateRoomResult{RoomCode: code, DeviceID: id}, nil
}

type JoinRoom struct {
	Rooms ports.RoomManager
}

type JoinRoomInput struct {
	RoomCode domain.RoomCode
	Device   NewDeviceInput
}

func (uc JoinRoom) Execute(ctx context.Context, input JoinRoomInput) (domain.DeviceID, error) {
	if strings.TrimSpace(string(input.RoomCode)) == "" {
		return "", invalidInput("roomCode is required")
	}
	name, dtype, userName, err := input.Device.parse()
	if err != nil {
		return "", err
	}
	id, err := uc.Rooms.JoinRoom(ctx, input.RoomCode, name, dtype, userName)
	if err != nil {
		return "", coreErr(err)
	}
	return id, nil
}

type LeaveRoom struct {
	Rooms ports.RoomManager
}

func (uc LeaveRoom) Execute(ctx context.Context, id domain.DeviceID) error {
	if id == "" {
		return invalidInput("device id is required")
	}
	return coreErr(uc.Rooms.LeaveRoom(ctx, id))
}

type ListRoomDevices struct {
	Rooms    ports.RoomManager
	Registry ports.DeviceRegistry
}

type RoomDevicesResult struct {
	RoomCode        domain.RoomCode `json:"roomCode"`
	CurrentDeviceID domain.DeviceID `json:"currentDeviceId,omitempty"`
	Devices         []domain.Device `json:"devices"`
}

// Execute returns the full membership of a room. The location classifier is
// derived at query time by comparing each member's room against the caller's;
// it is never stored.
func (uc ListRoomDevices) Execute(ctx context.Context, code domain.RoomCode, current domain.DeviceID) (RoomDevicesResult, error) {
	devices, err := uc.Rooms.ListDevices(ctx, code)
	if err != nil {
		return RoomDevicesResult{}, coreErr(err)
	}

	callerRoom := code
	if current != "" {
		if d, err := uc.Registry.Get(ctx, current); err == nil {
			callerRoom = d.RoomCode
		}
	}
	for i := range devices {
		if devices[i].RoomCode == callerRoom {
			devices[i].Location = domain.LocationSameRoom
		} else {
			devices[i].Location = domain.LocationNetwork
		}
	}
	return RoomDevicesResult{RoomCode: code, CurrentDeviceID: current, Devices: devices}, nil
}

type HeartbeatDevice struct {
	Registry ports.DeviceRegistry
}

func (uc HeartbeatDevice) Execute(ctx context.Context, id domain.DeviceID) error {
	if id == "" {
		return invalidInput("device id is required")
	}
	return coreErr(uc.Registry.Heartbeat(ctx, id))
}
