package ports

import (
	"io"

	"roomdrop/internal/domain"
)

// PayloadStore spools uploaded file payloads between the sender's upload and
// the recipient's download. It is a data-plane collaborator; the coordinator's
// state machine never blocks on it.
type PayloadStore interface {
	Save(id domain.TransferID, src io.Reader) (int64, error)
	Open(id domain.TransferID) (io.ReadCloser, int64, error)
	Remove(id domain.TransferID) error
}
