package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	apihttp "roomdrop/internal/api/http"
	"roomdrop/internal/app"
	"roomdrop/internal/domain"
	"roomdrop/internal/domain/ports"
	"roomdrop/internal/metrics"
	mongorepo "roomdrop/internal/repository/mongo"
	"roomdrop/internal/services/registry"
	"roomdrop/internal/services/rooms"
	"roomdrop/internal/services/spool"
	"roomdrop/internal/services/transfer"
	"roomdrop/internal/telemetry"
	"roomdrop/internal/usecase"
)

func main() {
	cfg := app.LoadConfig()

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	metrics.Register(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, "roomdrop")
	if err != nil {
		logger.Warn("telemetry init failed", slog.String("error", err.Error()))
		shutdownTelemetry = func(context.Context) error { return nil }
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	archive := connectArchive(ctx, cfg, logger)

	payloadStore, err := spool.New(cfg.SpoolDir)
	if err != nil {
		logger.Error("spool init failed", slog.String("dir", cfg.SpoolDir), slog.String("error", err.Error()))
		os.Exit(1)
	}

	deviceRegistry := registry.New()
	roomManager := rooms.New(deviceRegistry, cfg.RoomCodeLength)
	coordinator := transfer.New(deviceRegistry, roomManager)

	go usecase.LivenessSweep{
		Registry:        deviceRegistry,
		Rooms:           roomManager,
		Logger:          logger,
		Interval:        cfg.SweepInterval,
		DisconnectAfter: cfg.DisconnectAfter,
		EvictAfter:      cfg.EvictAfter,
	}.Run(ctx)

	go usecase.ExpirePending{
		Coordinator: coordinator,
		Archive:     archive,
		Spool:       payloadStore,
		Logger:      logger,
		Interval:    cfg.ExpireInterval,
		PendingTTL:  cfg.PendingTTL,
		Retention:   cfg.TerminalRetention,
	}.Run(ctx)

	server := apihttp.NewServer(
		usecase.CreateRoom{Rooms: roomManager},
		apihttp.WithJoinRoom(usecase.JoinRoom{Rooms: roomManager}),
		apihttp.WithLeaveRoom(usecase.LeaveRoom{Rooms: roomManager}),
		apihttp.WithListRoomDevices(usecase.ListRoomDevices{Rooms: roomManager, Registry: deviceRegistry}),
		apihttp.WithHeartbeat(usecase.HeartbeatDevice{Registry: deviceRegistry}),
		apihttp.WithRequestTransfer(usecase.RequestTransfer{Coordinator: coordinator}),
		apihttp.WithRespondTransfer(usecase.RespondTransfer{Coordinator: coordinator, Archive: archive, Spool: payloadStore, Logger: logger}),
		apihttp.WithReportProgress(usecase.ReportTransferProgress{Coordinator: coordinator}),
		apihttp.WithCompleteTransfer(usecase.CompleteTransfer{Coordinator: coordinator, Archive: archive, Spool: payloadStore, Logger: logger}),
		apihttp.WithFailTransfer(usecase.FailTransfer{Coordinator: coordinator, Archive: archive, Spool: payloadStore, Logger: logger}),
		apihttp.WithCancelTransfer(usecase.CancelTransfer{Coordinator: coordinator, Archive: archive, Spool: payloadStore, Logger: logger}),
		apihttp.WithGetTransferStatus(usecase.GetTransferStatus{Coordinator: coordinator}),
		apihttp.WithListPendingTransfers(usecase.ListPendingTransfers{Coordinator: coordinator}),
		apihttp.WithListTransferHistory(usecase.ListTransferHistory{Archive: archive}),
		apihttp.WithRooms(roomManager),
		apihttp.WithCoordinator(coordinator),
		apihttp.WithSpool(payloadStore),
		apihttp.WithAllowedOrigins(cfg.CORSAllowedOrigins),
		apihttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		apihttp.WithLogger(logger),
	)
	defer server.Close()

	go observeState(ctx, server, deviceRegistry, roomManager, coordinator, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown failed", slog.String("error", err.Error()))
		}
	}()

	logger.Info("server listening", slog.String("addr", cfg.HTTPAddr))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// connectArchive dials Mongo for transfer history. The archive is best-effort:
// when Mongo is unreachable the service still runs, with history disabled.
func connectArchive(ctx context.Context, cfg app.Config, logger *slog.Logger) ports.TransferArchive {
	if cfg.MongoURI == "" {
		return nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongorepo.Connect(connectCtx, cfg.MongoURI,
		mongooptions.Client().SetMonitor(otelmongo.NewMonitor()),
	)
	if err != nil {
		logger.Warn("mongo unavailable, transfer history disabled",
			slog.String("uri", cfg.MongoURI),
			slog.String("error", err.Error()),
		)
		return nil
	}

	archive := mongorepo.NewArchive(client, cfg.MongoDatabase, cfg.MongoCollection)
	if err := archive.EnsureIndexes(connectCtx); err != nil {
		logger.Warn("mongo index creation failed", slog.String("error", err.Error()))
	}
	logger.Info("transfer archive connected",
		slog.String("db", cfg.MongoDatabase),
		slog.String("collection", cfg.MongoCollection),
	)
	return archive
}

// observeState refreshes the state gauges and pushes snapshots to WebSocket
// clients on a fixed cadence.
func observeState(ctx context.Context, server *apihttp.Server, deviceRegistry ports.DeviceRegistry, roomManager ports.RoomManager, coordinator ports.TransferCoordinator, logger *slog.Logger) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if devices, err := deviceRegistry.List(ctx); err == nil {
				connected := 0
				for _, d := range devices {
					if d.Status == domain.ConnConnected {
						connected++
					}
				}
				metrics.DevicesRegistered.Set(float64(len(devices)))
				metrics.DevicesConnected.Set(float64(connected))
			}
			if liveRooms, err := roomManager.ListRooms(ctx); err == nil {
				metrics.RoomsActive.Set(float64(len(liveRooms)))
			}
			if open, err := coordinator.ListOpen(ctx); err == nil {
				metrics.TransfersOpen.Set(float64(len(open)))
			}
			server.BroadcastRooms(ctx)
			server.BroadcastTransfers(ctx)
		}
	}
}

func newLogger(cfg app.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(raw string) slog.Level {
	switch raw {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
