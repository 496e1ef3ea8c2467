package domain

// HistoryFilter narrows archived transfer queries.
type HistoryFilter struct {
	DeviceID DeviceID        `json:"deviceId,omitempty"`
	Status   *TransferStatus `json:"status,omitempty"`
	Limit    int             `json:"limit,omitempty"`
}
