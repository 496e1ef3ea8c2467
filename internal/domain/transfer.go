package domain

import (
	"errors"
	"time"
)

type TransferID string

// TransferStatus is the lifecycle state of a file transfer.
//
// TransferQueued is a client-local pre-submission marker. It is part of the
// enumerated type so that clients and server share one vocabulary, but it is
// never a server-side state: it has no entry in the transition map and
// RequestTransfer always creates records in TransferPending.
type TransferStatus string

const (
	TransferQueued      TransferStatus = "queued"
	TransferPending     TransferStatus = "pending"
	TransferAccepted    TransferStatus = "accepted"
	TransferRejected    TransferStatus = "rejected"
	TransferUploading   TransferStatus = "uploading"
	TransferDownloading TransferStatus = "downloading"
	TransferCompleted   TransferStatus = "completed"
	TransferFailed      TransferStatus = "failed"
	TransferCancelled   TransferStatus = "cancelled"
)

var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines the adjacency list of allowed state transitions.
// Terminal states have no entry: nothing leaves them.
var validTransitions = map[TransferStatus][]TransferStatus{
	TransferPending:     {TransferAccepted, TransferRejected, TransferFailed, TransferCancelled},
	TransferAccepted:    {TransferUploading, TransferFailed, TransferCancelled},
	TransferUploading:   {TransferDownloading, TransferCompleted, TransferFailed, TransferCancelled},
	TransferDownloading: {TransferCompleted, TransferFailed, TransferCancelled},
}

// CanTransition reports whether a transition from one status to another is valid.
func CanTransition(from, to TransferStatus) bool {
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions leave the status.
func (s TransferStatus) IsTerminal() bool {
	switch s {
	case TransferRejected, TransferCompleted, TransferFailed, TransferCancelled:
		return true
	default:
		return false
	}
}

// Active reports whether progress may be recorded against the status.
func (s TransferStatus) Active() bool {
	return s == TransferUploading || s == TransferDownloading
}

type TransferRequest struct {
	ID           TransferID     `json:"id"`
	FileName     string         `json:"fileName"`
	FileSize     int64          `json:"fileSize"`
	FromDeviceID DeviceID       `json:"fromDeviceId"`
	ToDeviceID   DeviceID       `json:"toDeviceId"`
	RoomCode     RoomCode       `json:"roomCode"`
	Status       TransferStatus `json:"status"`
	Progress     float64        `json:"progress"`
	Transferred  int64          `json:"transferred"`
	SpeedBps     int64          `json:"speedBps"`
	ETASeconds   float64        `json:"etaSeconds"`
	FailReason   string         `json:"failReason,omitempty"`
	RequestedAt  time.Time      `json:"requestedAt"`
	AcceptedAt   time.Time      `json:"acceptedAt,omitzero"`
	CompletedAt  time.Time      `json:"completedAt,omitzero"`
}

// Validate checks domain invariants for TransferRequest.
func (t TransferRequest) Validate() error {
	if t.ID == "" {
		return errors.New("transfer id is required")
	}
	if t.FileName == "" {
		return errors.New("file name is required")
	}
	if t.FileSize < 0 {
		return errors.New("fileSize must not be negative")
	}
	if t.FromDeviceID == "" || t.ToDeviceID == "" {
		return errors.New("both endpoint device ids are required")
	}
	if t.FromDeviceID == t.ToDeviceID {
		return errors.New("transfer endpoints must differ")
	}
	if t.Progress < 0 || t.Progress > 100 {
		return errors.New("progress must be within [0,100]")
	}
	switch t.Status {
	case TransferPending, TransferAccepted, TransferRejected, TransferUploading,
		TransferDownloading, TransferCompleted, TransferFailed, TransferCancelled:
		// valid
	case TransferQueued:
		return errors.New("queued is a client-local status")
	case "":
		return errors.New("status is required")
	default:
		return errors.New("invalid status: " + string(t.Status))
	}
	return nil
}
