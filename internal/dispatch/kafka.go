package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ringnet/hazardcore/internal/models"
)

// KafkaDelivery publishes notification records to the delivery topic the
// push/email workers consume.
type KafkaDelivery struct {
	writer *kafkago.Writer
}

func NewKafkaDelivery(brokers []string, topic string) *KafkaDelivery {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &KafkaDelivery{writer: w}
}

type deliveryPayload struct {
	NotificationID string            `json:"notification_id"`
	UserID         string            `json:"user_id"`
	HazardID       string            `json:"hazard_id"`
	HazardType     models.HazardType `json:"hazard_type"`
	Title          string            `json:"title"`
	Severity       models.Severity   `json:"severity"`
	DistanceKm     float64           `json:"distance_km"`
	Location       models.Location   `json:"location"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

func (k *KafkaDelivery) Deliver(ctx context.Context, n *models.NotificationRecord, h *models.HazardRecord) error {
	payload := deliveryPayload{
		NotificationID: n.ID,
		UserID:         n.UserID,
		HazardID:       h.ID,
		HazardType:     h.Type,
		Title:          h.Title,
		Severity:       n.Severity,
		DistanceKm:     n.DistanceKm,
		Location:       h.Location,
		OccurredAt:     h.OccurredAt,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("serialize notification %s: %w", n.ID, err)
	}

	msg := kafkago.Message{
		Key:   []byte(n.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "hazard_type", Value: []byte(h.Type)},
			{Key: "severity", Value: []byte(n.Severity)},
		},
	}
	return k.writer.WriteMessages(ctx, msg)
}

func (k *KafkaDelivery) Close() error {
	return k.writer.Close()
}

// LogDelivery is the fallback when no broker is configured: the record is
// only logged, and delivery workers are expected to poll the store instead.
type LogDelivery struct{}

func (LogDelivery) Deliver(_ context.Context, n *models.NotificationRecord, h *models.HazardRecord) error {
	slog.Info("notification ready for delivery",
		"notification", n.ID, "user", n.UserID, "hazard", h.ID,
		"severity", n.Severity, "distance_km", n.DistanceKm)
	return nil
}
