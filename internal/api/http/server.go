package apihttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"roomdrop/internal/domain"
	"roomdrop/internal/domain/ports"
	"roomdrop/internal/usecase"
)

type CreateRoomUseCase interface {
	Execute(ctx context.Context, input usecase.NewDeviceInput) (usecase.CreateRoomResult, error)
}

type JoinRoomUseCase interface {
	Execute(ctx context.Context, input usecase.JoinRoomInput) (domain.DeviceID, error)
}

type LeaveRoomUseCase interface {
	Execute(ctx context.Context, id domain.DeviceID) error
}

type ListRoomDevicesUseCase interface {
	Execute(ctx context.Context, code domain.RoomCode, current domain.DeviceID) (usecase.RoomDevicesResult, error)
}

type HeartbeatUseCase interface {
	Execute(ctx context.Context, id domain.DeviceID) error
}

type RequestTransferUseCase interface {
	Execute(ctx context.Context, input usecase.RequestTransferInput) (domain.TransferRequest, error)
}

type RespondTransferUseCase interface {
	Execute(ctx context.Context, id domain.TransferID, accept bool) (domain.TransferRequest, error)
}

type ReportProgressUseCase interface {
	Execute(ctx context.Context, input usecase.ProgressInput) (domain.TransferRequest, error)
}

type CompleteTransferUseCase interface {
	Execute(ctx context.Context, id domain.TransferID) (domain.TransferRequest, error)
}

type FailTransferUseCase interface {
	Execute(ctx context.Context, id domain.TransferID, reason string) (domain.TransferRequest, error)
}

type CancelTransferUseCase interface {
	Execute(ctx context.Context, id domain.TransferID) (domain.TransferRequest, error)
}

type GetTransferStatusUseCase interface {
	Execute(ctx context.Context, id domain.TransferID) (domain.TransferRequest, error)
}

type ListPendingTransfersUseCase interface {
	Execute(ctx context.Context, to domain.DeviceID) ([]domain.TransferRequest, error)
}

type ListTransferHistoryUseCase interface {
	Execute(ctx context.Context, filter domain.HistoryFilter) ([]domain.TransferRequest, error)
}

type Server struct {
	createRoom      CreateRoomUseCase
	joinRoom        JoinRoomUseCase
	leaveRoom       LeaveRoomUseCase
	listRoomDevices ListRoomDevicesUseCase
	heartbeat       HeartbeatUseCase

	requestTransfer  RequestTransferUseCase
	respondTransfer  RespondTransferUseCase
	reportProgress   ReportProgressUseCase
	completeTransfer CompleteTransferUseCase
	failTransfer     FailTransferUseCase
	cancelTransfer   CancelTransferUseCase
	getTransfer      GetTransferStatusUseCase
	listPending      ListPendingTransfersUseCase
	listHistory      ListTransferHistoryUseCase

	rooms       ports.RoomManager
	coordinator ports.TransferCoordinator
	spool       ports.PayloadStore

	allowedOrigins []string
	rateLimitRPS   float64
	rateLimitBurst int
	logger         *slog.Logger
	handler        http.Handler
	wsHub          *wsHub
}

type ServerOption func(*Server)

func WithJoinRoom(uc JoinRoomUseCase) ServerOption {
	return func(s *Server) { s.joinRoom = uc }
}

func WithLeaveRoom(uc LeaveRoomUseCase) ServerOption {
	return func(s *Server) { s.leaveRoom = uc }
}

func WithListRoomDevices(uc ListRoomDevicesUseCase) ServerOption {
	return func(s *Server) { s.listRoomDevices = uc }
}

func WithHeartbeat(uc HeartbeatUseCase) ServerOption {
	return func(s *Server) { s.heartbeat = uc }
}

func WithRequestTransfer(uc RequestTransferUseCase) ServerOption {
	return func(s *Server) { s.requestTransfer = uc }
}

func WithRespondTransfer(uc RespondTransferUseCase) ServerOption {
	return func(s *Server) { s.respondTransfer = uc }
}

func WithReportProgress(uc ReportProgressUseCase) ServerOption {
	return func(s *Server) { s.reportProgress = uc }
}

func WithCompleteTransfer(uc CompleteTransferUseCase) ServerOption {
	return func(s *Server) { s.completeTransfer = uc }
}

func WithFailTransfer(uc FailTransferUseCase) ServerOption {
	return func(s *Server) { s.failTransfer = uc }
}

func WithCancelTransfer(uc CancelTransferUseCase) ServerOption {
	return func(s *Server) { s.cancelTransfer = uc }
}

func WithGetTransferStatus(uc GetTransferStatusUseCase) ServerOption {
	return func(s *Server) { s.getTransfer = uc }
}

func WithListPendingTransfers(uc ListPendingTransfersUseCase) ServerOption {
	return func(s *Server) { s.listPending = uc }
}

func WithListTransferHistory(uc ListTransferHistoryUseCase) ServerOption {
	return func(s *Server) { s.listHistory = uc }
}

// WithRooms gives the server read access to the room manager for WebSocket
// roster broadcasts.
func WithRooms(rooms ports.RoomManager) ServerOption {
	return func(s *Server) { s.rooms = rooms }
}

// WithCoordinator gives the download path direct access to the coordinator's
// data-plane transitions.
func WithCoordinator(c ports.TransferCoordinator) ServerOption {
	return func(s *Server) { s.coordinator = c }
}

func WithSpool(store ports.PayloadStore) ServerOption {
	return func(s *Server) { s.spool = store }
}

// WithAllowedOrigins configures the CORS allowed origins whitelist.
// When empty (default), any origin is permitted (development mode).
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) { s.allowedOrigins = origins }
}

func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		s.rateLimitRPS = rps
		s.rateLimitBurst = burst
	}
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

func NewServer(createRoom CreateRoomUseCase, opts ...ServerOption) *Server {
	s := &Server{
		createRoom:     createRoom,
		rateLimitRPS:   100,
		rateLimitBurst: 200,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.wsHub = newWSHub(s.logger)
	go s.wsHub.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/rooms", s.handleRooms)
	mux.HandleFunc("/rooms/", s.handleRoomSubpath)
	mux.HandleFunc("/devices/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("/transfers", s.handleTransfers)
	mux.HandleFunc("/transfers/", s.handleTransferSubpath)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.handleWS)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "roomdrop",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/metrics" && r.URL.Path != "/healthz"
		}),
	)
	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(s.rateLimitRPS, s.rateLimitBurst, metricsMiddleware(corsMiddleware(s.allowedOrigins, traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.wsHub == nil {
		http.Error(w, "websocket not available", http.StatusServiceUnavailable)
		return
	}
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &wsClient{
		hub:  s.wsHub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.wsHub.register <- client
	go client.writePump()
	go client.readPump()
}

type roomSummary struct {
	Code        domain.RoomCode `json:"code"`
	CreatedAt   time.Time       `json:"createdAt"`
	MemberCount int             `json:"memberCount"`
}

// BroadcastRooms sends a summary of all live rooms to WebSocket clients.
func (s *Server) BroadcastRooms(ctx context.Context) {
	if s.wsHub == nil || s.rooms == nil || s.wsHub.clientCount() == 0 {
		return
	}
	rooms, err := s.rooms.ListRooms(ctx)
	if err != nil {
		s.logger.Debug("ws broadcast rooms failed", slog.String("error", err.Error()))
		return
	}
	summaries := make([]roomSummary, 0, len(rooms))
	for _, rm := range rooms {
		summaries = append(summaries, roomSummary{
			Code:        rm.Code,
			CreatedAt:   rm.CreatedAt,
			MemberCount: len(rm.Members),
		})
	}
	s.wsHub.Broadcast("rooms", summaries)
}

// BroadcastTransfers sends all open transfers to WebSocket clients.
func (s *Server) BroadcastTransfers(ctx context.Context) {
	if s.wsHub == nil || s.coordinator == nil || s.wsHub.clientCount() == 0 {
		return
	}
	open, err := s.coordinator.ListOpen(ctx)
	if err != nil {
		s.logger.Debug("ws broadcast transfers failed", slog.String("error", err.Error()))
		return
	}
	s.wsHub.BroadcastTransfers(open)
}

// Close shuts down the WebSocket hub, disconnecting all clients.
func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}
