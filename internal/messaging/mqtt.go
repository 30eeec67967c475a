package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/joaosantosg/reserva-salas-uni/internal/application"
	"github.com/joaosantosg/reserva-salas-uni/internal/recurrence"
)

const (
	defaultPublishTimeout = 5 * time.Second
	disconnectQuiesce     = 250
)

// Publisher is the subset of mqtt.Client used by MQTTNotifier.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// ConnectMQTT connects a client to broker. Lost connections are logged and
// retried by the client.
func ConnectMQTT(broker, clientID string, logger *slog.Logger) (mqtt.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info("connected to MQTT broker", "broker", broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "broker", broker, "error", err)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", broker, token.Error())
	}
	return client, nil
}

// DisconnectMQTT waits briefly for in-flight messages and closes client.
func DisconnectMQTT(client mqtt.Client) {
	if client != nil && client.IsConnected() {
		client.Disconnect(disconnectQuiesce)
	}
}

// MQTTNotifier publishes booking events as JSON under a topic prefix:
// <prefix>/rules and <prefix>/reservations.
type MQTTNotifier struct {
	publisher Publisher
	prefix    string
	qos       byte
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewMQTTNotifier constructs a notifier publishing with QoS 1.
func NewMQTTNotifier(publisher Publisher, prefix string, now func() time.Time, logger *slog.Logger) *MQTTNotifier {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTNotifier{
		publisher: publisher,
		prefix:    strings.TrimSuffix(prefix, "/"),
		qos:       1,
		timeout:   defaultPublishTimeout,
		now:       now,
		logger:    logger,
	}
}

var _ application.Notifier = (*MQTTNotifier)(nil)

// NotifyRuleCreated publishes a recurring_rule.created event.
func (n *MQTTNotifier) NotifyRuleCreated(ctx context.Context, rule recurrence.Rule, owner application.User) error {
	return n.publish(ctx, n.prefix+"/rules", RuleCreatedEvent(rule, owner, n.now()))
}

// NotifyReservationCreated publishes a reservation.created event.
func (n *MQTTNotifier) NotifyReservationCreated(ctx context.Context, reservation application.Reservation, owner application.User) error {
	return n.publish(ctx, n.prefix+"/reservations", ReservationCreatedEvent(reservation, owner, n.now()))
}

func (n *MQTTNotifier) publish(ctx context.Context, topic string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	token := n.publisher.Publish(topic, n.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(n.timeout):
		return fmt.Errorf("publish %s: timed out after %s", topic, n.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	n.logger.DebugContext(ctx, "notification published", "topic", topic, "type", event.Type)
	return nil
}
