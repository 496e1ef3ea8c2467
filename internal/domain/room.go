package domain

import "time"

// Room is a point-in-time snapshot of a live room. The member list is a copy;
// mutating it has no effect on the room itself.
type Room struct {
	Code      RoomCode   `json:"code"`
	CreatedAt time.Time  `json:"createdAt"`
	Members   []DeviceID `json:"members"`
}

// HasMember reports whether the snapshot contains the given device.
func (r Room) HasMember(id DeviceID) bool {
	for _, m := range r.Members {
		if m == id {
			return true
		}
	}
	return false
}
