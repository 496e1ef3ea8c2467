package apihttp

import (
	"net/http"
	"strings"

	"roomdrop/internal/domain"
	"roomdrop/internal/usecase"
)

type createRoomRequest struct {
	DeviceName string `json:"deviceName"`
	DeviceType string `json:"deviceType"`
	UserName   string `json:"userName"`
}

type joinRoomRequest struct {
	RoomCode   string `json:"roomCode"`
	DeviceName string `json:"deviceName"`
	DeviceType string `json:"deviceType"`
	UserName   string `json:"userName"`
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}
	if s.createRoom == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "room creation not available")
		return
	}

	var req createRoomRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	result, err := s.createRoom.Execute(r.Context(), usecase.NewDeviceInput{
		DeviceName: req.DeviceName,
		DeviceType: req.DeviceType,
		UserName:   req.UserName,
	})
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleRoomSubpath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/rooms/")
	switch {
	case rest == "join":
		s.handleJoinRoom(w, r)
	case rest == "leave":
		s.handleLeaveRoom(w, r)
	case strings.HasSuffix(rest, "/devices"):
		code := strings.TrimSuffix(rest, "/devices")
		s.handleRoomDevices(w, r, domain.RoomCode(code))
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown path")
	}
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}
	if s.joinRoom == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "room join not available")
		return
	}

	var req joinRoomRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	deviceID, err := s.joinRoom.Execute(r.Context(), usecase.JoinRoomInput{
		RoomCode: domain.RoomCode(strings.ToUpper(strings.TrimSpace(req.RoomCode))),
		Device: usecase.NewDeviceInput{
			DeviceName: req.DeviceName,
			DeviceType: req.DeviceType,
			UserName:   req.UserName,
		},
	})
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]domain.DeviceID{"deviceId": deviceID})
}

func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}
	if s.leaveRoom == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "room leave not available")
		return
	}
	deviceID, ok := requireDevice(w, r)
	if !ok {
		return
	}
	if err := s.leaveRoom.Execute(r.Context(), deviceID); err != nil {
		writeCoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRoomDevices(w http.ResponseWriter, r *http.Request, code domain.RoomCode) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET required")
		return
	}
	if s.listRoomDevices == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "device listing not available")
		return
	}
	deviceID, ok := requireDevice(w, r)
	if !ok {
		return
	}
	result, err := s.listRoomDevices.Execute(r.Context(), code, deviceID)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}
	if s.heartbeat == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "heartbeat not available")
		return
	}
	deviceID, ok := requireDevice(w, r)
	if !ok {
		return
	}
	if err := s.heartbeat.Execute(r.Context(), deviceID); err != nil {
		writeCoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
