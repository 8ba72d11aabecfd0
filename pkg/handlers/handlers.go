package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"autopilot-assistant/pkg/models"
)

// Sink accepts inbound messages for processing, normally the engine
// dispatcher.
type Sink interface {
	Enqueue(ctx context.Context, msg models.InboundMessage) error
}

// OwnerChecker reports whether a sender identity belongs to an owner.
type OwnerChecker interface {
	Exists(ctx context.Context, ownerID string) bool
}

type Handler struct {
	sink       Sink
	owners     OwnerChecker
	logger     *logrus.Logger
	instanceID string
	startedAt  time.Time
}

func NewHandler(sink Sink, owners OwnerChecker, logger *logrus.Logger, instanceID string) *Handler {
	return &Handler{
		sink:       sink,
		owners:     owners,
		logger:     logger,
		instanceID: instanceID,
		startedAt:  time.Now(),
	}
}

// Inbound ingests a message event directly, for webhook-style deployments
// and integration testing. The same dispatcher path as the poller applies,
// so per-contact ordering still holds.
func (h *Handler) Inbound(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ContactID   string `json:"contact_id"`
		Username    string `json:"username"`
		DisplayName string `json:"display_name"`
		Text        string `json:"text"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if request.ContactID == "" || request.Text == "" {
		http.Error(w, "Missing contact_id or text", http.StatusBadRequest)
		return
	}

	msg := models.InboundMessage{
		ContactID:     request.ContactID,
		Username:      request.Username,
		DisplayName:   request.DisplayName,
		Text:          request.Text,
		SenderIsOwner: h.owners.Exists(r.Context(), request.ContactID),
		ReceivedAt:    time.Now(),
	}

	if err := h.sink.Enqueue(r.Context(), msg); err != nil {
		h.logger.WithError(err).WithField("contact_id", msg.ContactID).Error("Failed to enqueue inbound message")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"accepted":   true,
		"contact_id": msg.ContactID,
	})

	h.logger.WithField("contact_id", msg.ContactID).Debug("Accepted inbound message")
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"instance_id":    h.instanceID,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"time":           time.Now().UTC().Format(time.RFC3339),
	})
}
