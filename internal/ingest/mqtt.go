// Package ingest feeds telemetry published by devices over MQTT into the
// twin engine.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"shiptwin/internal/logger"
	"shiptwin/internal/metrics"
	"shiptwin/internal/model"
)

// TopicPattern matches per-shipment telemetry topics.
const TopicPattern = "shipments/+/telemetry"

type telemetryIngestor interface {
	IngestTelemetry(ctx context.Context, rec model.TelemetryRecord) error
}

// Subscriber feeds messages on TopicPattern into the engine. It subscribes
// from the client's on-connect handler, so the subscription is restored after
// every automatic reconnect of a clean session.
type Subscriber struct {
	engine telemetryIngestor
	qos    byte

	mu     sync.Mutex
	client mqtt.Client
}

func NewSubscriber(engine telemetryIngestor) *Subscriber {
	return &Subscriber{engine: engine, qos: 1}
}

// Dial connects an MQTT client to broker with s wired in as its connection
// handler.
func Dial(broker, clientID string, s *Subscriber) (mqtt.Client, error) {
	client := mqtt.NewClient(s.clientOptions(broker, clientID))
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	return client, nil
}

func (s *Subscriber) clientOptions(broker, clientID string) *mqtt.ClientOptions {
	return mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(s.onConnectionLost).
		SetReconnectingHandler(func(_ mqtt.Client, opts *mqtt.ClientOptions) {
			logger.InfoKV(context.Background(), "MQTT reconnecting", "client_id", opts.ClientID)
		})
}

// onConnect runs on the first connect and after every reconnect.
func (s *Subscriber) onConnect(client mqtt.Client) {
	ctx := logger.WithKV(context.Background(), "topic", TopicPattern)
	token := client.Subscribe(TopicPattern, s.qos, s.handleMessage)
	if !token.WaitTimeout(10 * time.Second) {
		logger.Warn(ctx, "MQTT subscribe timed out")
		return
	}
	if err := token.Error(); err != nil {
		logger.WarnKV(ctx, "MQTT subscribe failed", "error", err)
		return
	}
	logger.InfoKV(ctx, "MQTT subscribed")
}

func (s *Subscriber) onConnectionLost(_ mqtt.Client, err error) {
	logger.WarnKV(context.Background(), "MQTT connection lost", "error", err)
}

// Stop drops the subscription and disconnects.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return
	}
	client.Unsubscribe(TopicPattern).WaitTimeout(2 * time.Second)
	client.Disconnect(250)
}

// handleMessage decodes one record. Invalid payloads are logged and dropped;
// MQTT has no reply channel.
func (s *Subscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	ctx := logger.WithKV(context.Background(), "topic", msg.Topic())

	var rec model.TelemetryRecord
	if err := json.Unmarshal(msg.Payload(), &rec); err != nil {
		metrics.TelemetryIngested.WithLabelValues("malformed").Inc()
		logger.WarnKV(ctx, "Invalid telemetry message", "error", err)
		return
	}
	if rec.ShipmentID == "" {
		rec.ShipmentID = shipmentFromTopic(msg.Topic())
	}
	if err := s.engine.IngestTelemetry(ctx, rec); err != nil {
		logger.WarnKV(ctx, "Telemetry rejected", "shipment_id", rec.ShipmentID, "error", err)
	}
}

// shipmentFromTopic extracts <id> from shipments/<id>/telemetry.
func shipmentFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "shipments" || parts[2] != "telemetry" {
		return ""
	}
	return parts[1]
}
