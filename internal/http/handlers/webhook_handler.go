// README: Webhook endpoint receiving ENTRY/PARKED/EXIT events from the garage.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"parkman/internal/modules/event"
	"parkman/internal/types"
)

type WebhookHandler struct {
	events *event.Service
	logger *slog.Logger
}

func NewWebhookHandler(events *event.Service, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{events: events, logger: logger}
}

type webhookPayload struct {
	EventType    string   `json:"event_type" binding:"required"`
	LicensePlate string   `json:"license_plate" binding:"required"`
	EntryTime    string   `json:"entry_time"`
	ExitTime     string   `json:"exit_time"`
	Lat          *float64 `json:"lat"`
	Lng          *float64 `json:"lng"`
}

// Handle dispatches on event_type. Lifecycle duplicates are absorbed by the
// service and still answer 200; only malformed payloads and lookup failures
// produce error statuses.
func (h *WebhookHandler) Handle(c *gin.Context) {
	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json or missing required fields")
		return
	}
	h.logger.Info("webhook event received",
		"type", payload.EventType,
		"plate", payload.LicensePlate,
		"request_id", c.GetString("request_id"),
	)

	var err error
	switch payload.EventType {
	case "ENTRY":
		var entryAt time.Time
		if entryAt, err = time.Parse(time.RFC3339, payload.EntryTime); err != nil {
			writeError(c, http.StatusBadRequest, "invalid entry_time")
			return
		}
		err = h.events.HandleEntry(c.Request.Context(), event.EntryCommand{
			LicensePlate: payload.LicensePlate,
			EntryAt:      entryAt,
		})
	case "PARKED":
		if payload.Lat == nil || payload.Lng == nil {
			writeError(c, http.StatusBadRequest, "lat and lng are required")
			return
		}
		err = h.events.HandlePark(c.Request.Context(), event.ParkCommand{
			LicensePlate: payload.LicensePlate,
			Position:     types.Point{Lat: *payload.Lat, Lng: *payload.Lng},
		})
	case "EXIT":
		var exitAt time.Time
		if exitAt, err = time.Parse(time.RFC3339, payload.ExitTime); err != nil {
			writeError(c, http.StatusBadRequest, "invalid exit_time")
			return
		}
		err = h.events.HandleExit(c.Request.Context(), event.ExitCommand{
			LicensePlate: payload.LicensePlate,
			ExitAt:       exitAt,
		})
	default:
		h.logger.Warn("unknown webhook event type", "type", payload.EventType)
		writeError(c, http.StatusBadRequest, "unknown event type")
		return
	}
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
