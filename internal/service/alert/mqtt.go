package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"camwatch/internal/logger"
)

const publishTimeout = 2 * time.Second

// MQTTSink publishes alerts as JSON to <prefix>/alerts/<stream id>.
type MQTTSink struct {
	client mqtt.Client
	prefix string
	logger *logger.Logger

	connected atomic.Bool
}

// NewMQTTSink prepares a client for broker ("host:port" or a full URL).
// Call Connect before sending.
func NewMQTTSink(broker, clientID, prefix string, logger *logger.Logger) *MQTTSink {
	s := &MQTTSink{prefix: strings.TrimSuffix(prefix, "/"), logger: logger.With("mqtt")}

	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		s.connected.Store(true)
		s.logger.Info("Connected to %s", broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		s.connected.Store(false)
		s.logger.Warning("Connection lost, reconnecting: %v", err)
	}

	s.client = mqtt.NewClient(opts)
	return s
}

// Connect waits for the first connection to the broker.
func (s *MQTTSink) Connect(ctx context.Context) error {
	token := s.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	return nil
}

// Connected reports whether the client currently holds a broker connection.
func (s *MQTTSink) Connected() bool {
	return s.connected.Load()
}

func (s *MQTTSink) Send(ctx context.Context, a Alert) error {
	if !s.connected.Load() {
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	topic := fmt.Sprintf("%s/alerts/%s", s.prefix, a.StreamID)
	token := s.client.Publish(topic, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
