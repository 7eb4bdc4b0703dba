// Package notify publishes domain events for other systems (dashboards, SMS gateways)
// to consume.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/garage-service/internal/models"
	"github.com/ukydev/garage-service/internal/outbox"
)

// Event topics, relative to the configured prefix.
const (
	TopicJobStatus     = "jobs/status"
	TopicBookingStatus = "bookings/status"
	TopicLowStock      = "inventory/low-stock"
)

// Publisher delivers a payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Message is the envelope of every published event.
type Message struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Subject    string      `json:"subject"`
	OccurredAt time.Time   `json:"occurredAt"`
	Data       interface{} `json:"data"`
}

// MQTTConfig configures the MQTT publisher.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
	Timeout  time.Duration
}

// MQTTPublisher publishes to an MQTT broker.
type MQTTPublisher struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
}

// NewMQTTPublisher connects to the broker.
func NewMQTTPublisher(cfg MQTTConfig) (*MQTTPublisher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost")
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect error: %w", err)
	}
	return &MQTTPublisher{client: client, qos: cfg.QoS, timeout: cfg.Timeout}, nil
}

// Publish sends payload and waits for the broker to acknowledge it.
func (p *MQTTPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.timeout):
		return errors.New("mqtt publish timed out")
	}
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	log.WithFields(log.Fields{"topic": topic, "payload": string(payload)}).Debug("Event published")
	return nil
}

// publishPayload is the outbox payload of a failed publish.
type publishPayload struct {
	Topic   string `bson:"topic"`
	Message string `bson:"message"`
}

// DefaultPublishTimeout bounds an inline publish made while serving a request.
const DefaultPublishTimeout = 500 * time.Millisecond

// Notifier builds event messages and publishes them. Failed or slow publishes are
// handed to the outbox.
type Notifier struct {
	pub      Publisher
	prefix   string
	deferrer outbox.Deferrer
	now      func() time.Time

	// PublishTimeout caps the inline publish. Outbox replays are not affected.
	PublishTimeout time.Duration
}

// NewNotifier creates a notifier publishing under prefix.
func NewNotifier(pub Publisher, prefix string, deferrer outbox.Deferrer) *Notifier {
	return &Notifier{pub: pub, prefix: prefix, deferrer: deferrer, now: time.Now, PublishTimeout: DefaultPublishTimeout}
}

// JobStatusChanged announces a job transition.
func (n *Notifier) JobStatusChanged(ctx context.Context, job *models.Job, from models.JobStatus) {
	n.emit(ctx, TopicJobStatus, "job.status_changed", job.JobID, map[string]interface{}{
		"jobId":   job.JobID,
		"booking": job.Booking.Hex(),
		"from":    from,
		"to":      job.Status,
	})
}

// BookingStatusChanged announces a booking transition.
func (n *Notifier) BookingStatusChanged(ctx context.Context, booking *models.Booking, from models.BookingStatus) {
	n.emit(ctx, TopicBookingStatus, "booking.status_changed", booking.BookingID, map[string]interface{}{
		"bookingId": booking.BookingID,
		"customer":  booking.Customer.Hex(),
		"from":      from,
		"to":        booking.Status,
	})
}

// LowStock announces an item that reached its minimum.
func (n *Notifier) LowStock(ctx context.Context, item *models.InventoryItem) {
	n.emit(ctx, TopicLowStock, "inventory.low_stock", item.ItemID, map[string]interface{}{
		"itemId":       item.ItemID,
		"name":         item.Name,
		"currentStock": item.CurrentStock,
		"minimumStock": item.MinimumStock,
	})
}

func (n *Notifier) emit(ctx context.Context, topic, eventType, subject string, data interface{}) {
	msg := Message{
		ID:         uuid.NewString(),
		Type:       eventType,
		Subject:    subject,
		OccurredAt: n.now(),
		Data:       data,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		log.WithError(err).WithField("type", eventType).Error("Failed to encode event")
		return
	}
	fullTopic := n.topic(topic)
	if err := n.publish(ctx, fullTopic, body); err != nil {
		if n.deferrer == nil {
			log.WithError(err).WithField("topic", fullTopic).Warn("Failed to publish event")
			return
		}
		payload := publishPayload{Topic: fullTopic, Message: string(body)}
		if derr := n.deferrer.Defer(ctx, models.EventNotify, subject, payload, err); derr != nil {
			log.WithError(derr).WithField("topic", fullTopic).Error("Failed to record event publish")
		}
	}
}

func (n *Notifier) publish(ctx context.Context, topic string, body []byte) error {
	if n.PublishTimeout <= 0 {
		return n.pub.Publish(ctx, topic, body)
	}
	pctx, cancel := context.WithTimeout(ctx, n.PublishTimeout)
	defer cancel()
	return n.pub.Publish(pctx, topic, body)
}

func (n *Notifier) topic(t string) string {
	if n.prefix == "" {
		return t
	}
	return n.prefix + "/" + t
}

// HandleEvent republishes a message recorded by a failed publish.
func (n *Notifier) HandleEvent(ctx context.Context, evt models.OutboxEvent) error {
	var p publishPayload
	if err := outbox.Decode(evt, &p); err != nil {
		return fmt.Errorf("failed to decode publish payload: %w", err)
	}
	return n.pub.Publish(ctx, p.Topic, []byte(p.Message))
}
