package driver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mycodo-go/mycodo-go/pkg/output"
)

// Publisher is the subset of mqtt.Client used by the MQTT driver.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTConfig configures the MQTT driver.
type MQTTConfig struct {
	// TopicPrefix is used for outputs without Settings.Topic; the topic is
	// TopicPrefix + "/" + unique_id.
	TopicPrefix string

	// QoS is the publish quality of service.
	QoS byte

	// Retained sets the retained flag so late subscribers see the last level.
	Retained bool

	Logger *slog.Logger
}

// DefaultMQTTConfig returns the default MQTT driver configuration.
func DefaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		TopicPrefix: "mycodo/output",
		QoS:         1,
		Retained:    true,
	}
}

// MQTT drives outputs by publishing "on", "off" or a duty cycle to a topic.
// It serves mqtt outputs and bridges wireless_rf outputs to an RF gateway.
type MQTT struct {
	client Publisher
	config MQTTConfig
}

// NewMQTT creates an MQTT driver publishing through client.
func NewMQTT(client Publisher, config MQTTConfig) *MQTT {
	return &MQTT{client: client, config: config}
}

// Activate implements Driver.
func (m *MQTT) Activate(ctx context.Context, o output.Output, a Activation) error {
	payload := "on"
	if o.Type.Family() == output.FamilyPWM {
		payload = formatDutyCycle(a.DutyCycle)
	}
	return m.publish(ctx, o, payload)
}

// Deactivate implements Driver.
func (m *MQTT) Deactivate(ctx context.Context, o output.Output) error {
	payload := "off"
	if o.Type.Family() == output.FamilyPWM {
		payload = "0"
	}
	return m.publish(ctx, o, payload)
}

// Topic returns the topic an output publishes to.
func (m *MQTT) Topic(o output.Output) string {
	if o.Settings.Topic != "" {
		return o.Settings.Topic
	}
	return strings.TrimSuffix(m.config.TopicPrefix, "/") + "/" + o.UniqueID
}

func (m *MQTT) publish(ctx context.Context, o output.Output, payload string) error {
	topic := m.Topic(o)
	token := m.client.Publish(topic, m.config.QoS, m.config.Retained, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	if m.config.Logger != nil {
		m.config.Logger.Debug("published output level", "unique_id", o.UniqueID, "topic", topic, "payload", payload)
	}
	return nil
}

// MQTTClientConfig configures a broker connection.
type MQTTClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string

	// ConnectTimeout bounds the initial connection. Default 10s.
	ConnectTimeout time.Duration

	Logger *slog.Logger
}

// ConnectMQTT connects to a broker with auto-reconnect enabled.
func ConnectMQTT(cfg MQTTClientConfig) (mqtt.Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "broker", cfg.Broker, "error", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("connect to %s: timed out after %s", cfg.Broker, timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, err)
	}
	return client, nil
}
