// Package config loads the daemon configuration.
//
// Values are layered: built-in defaults, then the YAML file, then a .env
// file, then MYCODO_* environment variables. Command-line flags are applied
// by the caller last.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MYCODO_"

// Config is the daemon configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// Database is the SQLite path of the output store.
	Database string `yaml:"database"`

	// EventLog is the path of the CBOR event log. Empty disables it.
	EventLog string `yaml:"event_log"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	// DriverTimeout bounds each driver call.
	DriverTimeout time.Duration `yaml:"driver_timeout"`

	// Simulate drives GPIO, PWM, RF and GPIO pump outputs in memory.
	Simulate bool `yaml:"simulate"`

	// Shell interprets command output strings.
	Shell string `yaml:"shell"`

	// SerialPumps enables the serial driver for atlas_pump outputs.
	SerialPumps bool `yaml:"serial_pumps"`

	MQTT  MQTTConfig  `yaml:"mqtt"`
	Kafka KafkaConfig `yaml:"kafka"`
	MDNS  MDNSConfig  `yaml:"mdns"`
}

// MDNSConfig configures DNS-SD advertisement of the REST API.
type MDNSConfig struct {
	Advertise bool `yaml:"advertise"`

	// Instance is the advertised instance name. Empty derives one from the
	// hostname.
	Instance string `yaml:"instance"`

	// Interface restricts advertisement to one network interface.
	Interface string `yaml:"interface"`
}

// MQTTConfig configures the broker used by mqtt outputs, RF bridging and
// event publishing.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883. Empty disables MQTT.
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// TopicPrefix is the default topic prefix for output levels.
	TopicPrefix string `yaml:"topic_prefix"`

	// EventPrefix is the topic prefix for published events. Empty disables
	// event publishing over MQTT.
	EventPrefix string `yaml:"event_prefix"`
}

// KafkaConfig configures event publishing to Kafka.
type KafkaConfig struct {
	// Brokers are host:port addresses. Empty disables Kafka.
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:        ":8080",
		Database:      "mycodo-outputs.db",
		LogLevel:      "info",
		DriverTimeout: 30 * time.Second,
		Simulate:      true,
		Shell:         "/bin/sh",
		SerialPumps:   true,
		MQTT: MQTTConfig{
			ClientID:    "mycodo-output",
			TopicPrefix: "mycodo/output",
			EventPrefix: "mycodo/events",
		},
		Kafka: KafkaConfig{
			Topic: "mycodo.outputs",
		},
	}
}

// Load reads path (optional) and envFile (optional) on top of the defaults
// and validates the result. A missing envFile is not an error.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = m
		case !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("read %s: %w", envFile, err)
		}
	}

	// Process environment wins over the .env file.
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	str("LISTEN", &c.Listen)
	str("DATABASE", &c.Database)
	str("EVENT_LOG", &c.EventLog)
	str("LOG_LEVEL", &c.LogLevel)
	str("SHELL", &c.Shell)
	str("MQTT_BROKER", &c.MQTT.Broker)
	str("MQTT_CLIENT_ID", &c.MQTT.ClientID)
	str("MQTT_USERNAME", &c.MQTT.Username)
	str("MQTT_PASSWORD", &c.MQTT.Password)
	str("MQTT_TOPIC_PREFIX", &c.MQTT.TopicPrefix)
	str("MQTT_EVENT_PREFIX", &c.MQTT.EventPrefix)
	str("KAFKA_TOPIC", &c.Kafka.Topic)
	str("MDNS_INSTANCE", &c.MDNS.Instance)
	str("MDNS_INTERFACE", &c.MDNS.Interface)

	if v, ok := lookup(EnvPrefix + "KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "DRIVER_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sDRIVER_TIMEOUT: %w", EnvPrefix, err)
		}
		c.DriverTimeout = d
	}
	for name, dst := range map[string]*bool{
		"SIMULATE":     &c.Simulate,
		"SERIAL_PUMPS": &c.SerialPumps,
		"MDNS":         &c.MDNS.Advertise,
	} {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = b
		}
	}
	return nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Listen == "" {
		return errors.New("config: listen address is required")
	}
	if c.Database == "" {
		return errors.New("config: database path is required")
	}
	if c.DriverTimeout <= 0 {
		return fmt.Errorf("config: driver_timeout must be positive, got %s", c.DriverTimeout)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("config: kafka.topic is required when brokers are set")
	}
	if len(c.MDNS.Instance) > 63 {
		return fmt.Errorf("config: mdns.instance exceeds 63 bytes")
	}
	return nil
}

// ParseLevel parses a log level name.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: invalid log level %q", s)
	}
	return level, nil
}

func splitList(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
