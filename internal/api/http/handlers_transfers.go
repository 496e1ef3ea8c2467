package apihttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"roomdrop/internal/domain"
	"roomdrop/internal/metrics"
	"roomdrop/internal/usecase"
)

const downloadChunkSize = 256 * 1024

type requestTransferRequest struct {
	TargetDeviceID string `json:"targetDeviceId"`
	FileName       string `json:"fileName"`
	FileSize       int64  `json:"fileSize"`
}

type respondTransferRequest struct {
	Action string `json:"action"`
}

type progressRequest struct {
	BytesTransferred int64 `json:"bytesTransferred"`
	TotalBytes       int64 `json:"totalBytes"`
	Speed            int64 `json:"speed"`
}

type failTransferRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}
	if s.requestTransfer == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "transfer requests not available")
		return
	}
	deviceID, ok := requireDevice(w, r)
	if !ok {
		return
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		s.handleSpooledTransfer(w, r, deviceID)
		return
	}

	var req requestTransferRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	t, err := s.requestTransfer.Execute(r.Context(), usecase.RequestTransferInput{
		FromDeviceID: deviceID,
		ToDeviceID:   domain.DeviceID(req.TargetDeviceID),
		FileName:     req.FileName,
		FileSize:     req.FileSize,
	})
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// handleSpooledTransfer accepts the payload together with the request. The
// file lands in the spool keyed by transfer id and is streamed back out when
// the recipient downloads it.
func (s *Server) handleSpooledTransfer(w http.ResponseWriter, r *http.Request, deviceID domain.DeviceID) {
	if s.spool == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "payload spooling not available")
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "file part is required")
		return
	}
	defer file.Close()

	fileName := r.FormValue("fileName")
	if fileName == "" {
		fileName = header.Filename
	}
	t, err := s.requestTransfer.Execute(r.Context(), usecase.RequestTransferInput{
		FromDeviceID: deviceID,
		ToDeviceID:   domain.DeviceID(r.FormValue("targetDeviceId")),
		FileName:     fileName,
		FileSize:     header.Size,
	})
	if err != nil {
		writeCoreError(w, err)
		return
	}

	if _, err := s.spool.Save(t.ID, file); err != nil {
		s.logger.Error("payload spool failed",
			slog.String("transferId", string(t.ID)),
			slog.String("error", err.Error()),
		)
		if s.failTransfer != nil {
			if _, ferr := s.failTransfer.Execute(r.Context(), t.ID, "payload spool failed"); ferr != nil {
				s.logger.Warn("failed to mark spool failure", slog.String("transferId", string(t.ID)), slog.String("error", ferr.Error()))
			}
		}
		writeError(w, http.StatusInternalServerError, "internal", "could not store payload")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleTransferSubpath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/transfers/")
	switch rest {
	case "pending":
		s.handlePendingTransfers(w, r)
		return
	case "history":
		s.handleTransferHistory(w, r)
		return
	}

	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusNotFound, "not_found", "unknown path")
		return
	}
	tid := domain.TransferID(id)
	switch action {
	case "":
		s.handleGetTransfer(w, r, tid)
	case "respond":
		s.handleRespondTransfer(w, r, tid)
	case "progress":
		s.handleTransferProgress(w, r, tid)
	case "complete":
		s.handleCompleteTransfer(w, r, tid)
	case "fail":
		s.handleFailTransfer(w, r, tid)
	case "cancel":
		s.handleCancelTransfer(w, r, tid)
	case "download":
		s.handleDownloadTransfer(w, r, tid)
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown path")
	}
}

func (s *Server) handleGetTransfer(w http.ResponseWriter, r *http.Request, id domain.TransferID) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET required")
		return
	}
	if s.getTransfer == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "transfer lookup not available")
		return
	}
	t, err := s.getTransfer.Execute(r.Context(), id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleRespondTransfer(w http.ResponseWriter, r *http.Request, id domain.TransferID) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}
	if s.respondTransfer == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "transfer responses not available")
		return
	}
	deviceID, ok := requireDevice(w, r)
	if !ok {
		return
	}
	var req respondTransferRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	var accept bool
	switch req.Action {
	case "accept":
		accept = true
	case "reject":
		accept = false
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "action must be accept or reject")
		return
	}
	if s.getTransfer != nil {
		t, err := s.getTransfer.Execute(r.Context(), id)
		if err != nil {
			writeCoreError(w, err)
			return
		}
		if t.ToDeviceID != deviceID {
			writeError(w, http.StatusForbidden, "forbidden", "only the recipient may respond")
			return
		}
	}
	t, err := s.respondTransfer.Execute(r.Context(), id, accept)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTransferProgress(w http.ResponseWriter, r *http.Request, id domain.TransferID) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}
	if s.reportProgress == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "progress reporting not available")
		return
	}
	var req progressRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	t, err := s.reportProgress.Execute(r.Context(), usecase.ProgressInput{
		TransferID:  id,
		Transferred: req.BytesTransferred,
		Total:       req.TotalBytes,
		SpeedBps:    req.Speed,
	})
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCompleteTransfer(w http.ResponseWriter, r *http.Request, id domain.TransferID) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}
	if s.completeTransfer == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "transfer completion not available")
		return
	}
	t, err := s.completeTransfer.Execute(r.Context(), id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleFailTransfer(w http.ResponseWriter, r *http.Request, id domain.TransferID) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}
	if s.failTransfer == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "transfer failure reporting not available")
		return
	}
	var req failTransferRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	t, err := s.failTransfer.Execute(r.Context(), id, req.Reason)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCancelTransfer(w http.ResponseWriter, r *http.Request, id domain.TransferID) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}
	if s.cancelTransfer == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "transfer cancellation not available")
		return
	}
	t, err := s.cancelTransfer.Execute(r.Context(), id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handlePendingTransfers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET required")
		return
	}
	if s.listPending == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "pending listing not available")
		return
	}
	deviceID, ok := requireDevice(w, r)
	if !ok {
		return
	}
	out, err := s.listPending.Execute(r.Context(), deviceID)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	if out == nil {
		out = []domain.TransferRequest{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTransferHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET required")
		return
	}
	if s.listHistory == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "history not available")
		return
	}
	deviceID, ok := requireDevice(w, r)
	if !ok {
		return
	}

	filter := domain.HistoryFilter{DeviceID: deviceID}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.TransferStatus(raw)
		if !status.IsTerminal() {
			writeError(w, http.StatusBadRequest, "invalid_request", "status must be a terminal transfer status")
			return
		}
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	out, err := s.listHistory.Execute(r.Context(), filter)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	if out == nil {
		out = []domain.TransferRequest{}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDownloadTransfer is the data plane for spooled payloads. It walks the
// transfer through uploading and downloading while streaming the file, then
// marks it completed or failed.
func (s *Server) handleDownloadTransfer(w http.ResponseWriter, r *http.Request, id domain.TransferID) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET required")
		return
	}
	if s.coordinator == nil || s.spool == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "payload download not available")
		return
	}
	deviceID, ok := requireDevice(w, r)
	if !ok {
		return
	}

	t, err := s.coordinator.Get(r.Context(), id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	if t.ToDeviceID != deviceID {
		writeError(w, http.StatusForbidden, "forbidden", "only the recipient may download")
		return
	}

	src, size, err := s.spool.Open(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no payload spooled for transfer")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "could not open payload")
		return
	}
	defer src.Close()

	if _, err := s.coordinator.StartUpload(r.Context(), id); err != nil {
		writeCoreError(w, err)
		return
	}
	if _, err := s.coordinator.StartDownload(r.Context(), id); err != nil {
		writeCoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", t.FileName))
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)

	if err := s.streamPayload(w, r, id, src, size); err != nil {
		s.logger.Warn("payload stream interrupted",
			slog.String("transferId", string(id)),
			slog.String("error", err.Error()),
		)
		s.finishTransfer(r, id, err)
		return
	}
	s.finishTransfer(r, id, nil)
}

func (s *Server) streamPayload(w http.ResponseWriter, r *http.Request, id domain.TransferID, src io.Reader, size int64) error {
	var sent int64
	start := time.Now()
	buf := make([]byte, downloadChunkSize)
	flusher, _ := w.(http.Flusher)

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if flusher != nil {
				flusher.Flush()
			}
			sent += int64(n)
			metrics.TransferBytesTotal.Add(float64(n))

			var speed int64
			if elapsed := time.Since(start).Seconds(); elapsed > 0 {
				speed = int64(float64(sent) / elapsed)
			}
			if _, perr := s.coordinator.ReportProgress(r.Context(), id, sent, size, speed); perr != nil {
				return perr
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

// finishTransfer applies the terminal transition after streaming. It prefers
// the usecases so archiving and spool cleanup run, falling back to the bare
// coordinator when they are not wired.
func (s *Server) finishTransfer(r *http.Request, id domain.TransferID, streamErr error) {
	// The client may already be gone when a stream fails; the terminal
	// transition and archive write must still land.
	ctx := context.WithoutCancel(r.Context())
	if streamErr != nil {
		if s.failTransfer != nil {
			if _, err := s.failTransfer.Execute(ctx, id, "download interrupted"); err != nil {
				s.logger.Warn("failed to mark download failure", slog.String("transferId", string(id)), slog.String("error", err.Error()))
			}
			return
		}
		if _, err := s.coordinator.Fail(ctx, id, "download interrupted"); err != nil {
			s.logger.Warn("failed to mark download failure", slog.String("transferId", string(id)), slog.String("error", err.Error()))
		}
		return
	}
	if s.completeTransfer != nil {
		if _, err := s.completeTransfer.Execute(ctx, id); err != nil {
			s.logger.Warn("failed to complete transfer", slog.String("transferId", string(id)), slog.String("error", err.Error()))
		}
		return
	}
	if _, err := s.coordinator.Complete(ctx, id); err != nil {
		s.logger.Warn("failed to complete transfer", slog.String("transferId", string(id)), slog.String("error", err.Error()))
	}
}
