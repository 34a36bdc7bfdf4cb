package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/filo-ai/portal/internal/middleware"
	"github.com/filo-ai/portal/internal/model"
	"github.com/filo-ai/portal/pkg/metrics"
)

// HeartbeatInterval is how often an idle event stream is pinged.
var HeartbeatInterval = 30 * time.Second

// Events handles GET .../{id}/events. It streams every published snapshot
// of the mounted view as a "view" event, starting with the current one, and
// ends with a "closed" event when the view is unmounted.
func (h *ViewHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	updates, cancel := ctrl.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	log := middleware.RequestLogger(ctx, h.logger).WithView(string(h.mode), ctrl.ID())

	if err := sendSSEEvent(w, flusher, "view", ctrl.Snapshot()); err != nil {
		return
	}

	heartbeat := time.NewTicker(HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("SSE client disconnected")
			return

		case view, open := <-updates:
			if !open {
				_ = sendSSEEvent(w, flusher, "closed", map[string]string{
					"conversation_id": ctrl.ID(),
				})
				return
			}
			if err := sendSSEEvent(w, flusher, "view", view); err != nil {
				log.Warn("SSE write failed", zap.Error(err))
				return
			}

		case <-heartbeat.C:
			if err := sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{
				Timestamp: time.Now(),
			}); err != nil {
				return
			}
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
