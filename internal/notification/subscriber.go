package notification

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fixmycity/platform/internal/shared/events"
	"github.com/fixmycity/platform/internal/shared/types"
)

// Subscriber turns complaint lifecycle events into notifications.
type Subscriber struct {
	service *Service
	bus     events.EventBus
	logger  *zap.Logger
}

// NewSubscriber creates an event subscriber feeding the service
func NewSubscriber(service *Service, bus events.EventBus, logger *zap.Logger) *Subscriber {
	return &Subscriber{service: service, bus: bus, logger: logger}
}

// Start subscribes to complaint events
func (s *Subscriber) Start(ctx context.Context) error {
	return s.bus.Subscribe(ctx, "complaint.*", "notifications", s.handle)
}

func (s *Subscriber) handle(ctx context.Context, event events.Event) error {
	switch event.Type {
	case "complaint.created":
		s.notify(event, "reporter_id", "reporter",
			"Complaint received",
			"Your complaint has been filed and is awaiting assignment.")

	case "complaint.assigned":
		s.notify(event, "worker_id", "worker",
			"New complaint assigned",
			"A complaint has been assigned to you.")

	case "complaint.status_changed":
		newStatus := field(event.Data, "new_status")
		s.notify(event, "reporter_id", "reporter",
			"Complaint status updated",
			fmt.Sprintf("Your complaint status is now %s.", newStatus))
	}

	return nil
}

func (s *Subscriber) notify(event events.Event, idKey, recipientType, subject, body string) {
	raw := field(event.Data, idKey)
	if raw == "" {
		s.logger.Debug("event missing recipient, skipping notification",
			zap.String("event_type", event.Type),
			zap.String("key", idKey))
		return
	}

	recipientID, err := types.ParseID(raw)
	if err != nil {
		s.logger.Warn("invalid recipient ID in event",
			zap.String("event_type", event.Type),
			zap.String("value", raw))
		return
	}

	data := map[string]any{"event_type": event.Type}
	if complaintID := field(event.Data, "complaint_id"); complaintID != "" {
		data["complaint_id"] = complaintID
	}

	s.service.Enqueue(&Notification{
		Channel:       ChannelEmail,
		RecipientID:   recipientID,
		RecipientType: recipientType,
		Subject:       subject,
		Body:          body,
		Data:          data,
	})
}

// field extracts a string value from decoded event data.
func field(data any, key string) string {
	m, ok := data.(map[string]any)
	if !ok {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case types.ID:
		return v.String()
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}
