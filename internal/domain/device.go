package domain

import (
	"errors"
	"time"
)

type DeviceID string

type RoomCode string

type DeviceType string

const (
	DeviceLaptop  DeviceType = "laptop"
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
)

// ParseDeviceType validates a client-supplied device type string.
func ParseDeviceType(raw string) (DeviceType, error) {
	switch DeviceType(raw) {
	case DeviceLaptop, DeviceDesktop, DeviceMobile, DeviceTablet:
		return DeviceType(raw), nil
	default:
		return "", errors.New("invalid device type: " + raw)
	}
}

type ConnectionStatus string

const (
	ConnDisconnected ConnectionStatus = "disconnected"
	ConnConnecting   ConnectionStatus = "connecting"
	ConnConnected    ConnectionStatus = "connected"
	ConnError        ConnectionStatus = "error"
)

// DeviceLocation classifies a device relative to the querying device. It is
// derived from room membership at query time, never stored.
type DeviceLocation string

const (
	LocationSameRoom DeviceLocation = "same_room"
	LocationNetwork  DeviceLocation = "network"
)

type Device struct {
	ID       DeviceID         `json:"id"`
	Name     string           `json:"name"`
	Type     DeviceType       `json:"type"`
	UserName string           `json:"userName"`
	Status   ConnectionStatus `json:"status"`
	LastSeen time.Time        `json:"lastSeen"`
	RoomCode RoomCode         `json:"roomCode,omitempty"`
	Location DeviceLocation   `json:"location,omitempty"`
}

// Validate checks domain invariants for Device.
func (d Device) Validate() error {
	if d.ID == "" {
		return errors.New("device id is required")
	}
	if d.Name == "" {
		return errors.New("device name is required")
	}
	if _, err := ParseDeviceType(string(d.Type)); err != nil {
		return err
	}
	switch d.Status {
	case ConnDisconnected, ConnConnecting, ConnConnected, ConnError:
		// valid
	case "":
		return errors.New("connection status is required")
	default:
		return errors.New("invalid connection status: " + string(d.Status))
	}
	return nil
}
