package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default connection values used when no config file or CLI arguments
// are provided. These match the historical behavior of the listener.
const (
	DefaultBrokerHost = "localhost"
	DefaultBrokerPort = 1883
	DefaultTopic      = "digitaltwin"
)

// ListenerConfigFilename is the expected file name inside the config directory.
const ListenerConfigFilename = "listener_config.yaml"

// ListenerConfig holds the configuration for the twinlisten daemon.
type ListenerConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	HTTP    HTTPConfig    `yaml:"http"`
	Forward ForwardConfig `yaml:"forward"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogPath string `yaml:"log_path,omitempty"`
}

// MQTTConfig holds broker connection settings
type MQTTConfig struct {
	BrokerHost string `yaml:"broker_host"`
	BrokerPort int    `yaml:"broker_port"`
	Topic      string `yaml:"topic"`
}

// HTTPConfig holds the optional status API settings
type HTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// ForwardConfig holds the optional ZeroMQ forwarder settings
type ForwardConfig struct {
	Enabled            bool   `yaml:"enabled"`
	PublishBindAddress string `yaml:"publish_bind_address"`
}

// DefaultListenerConfig returns a config carrying only the built-in
// defaults, used when no config file is present.
func DefaultListenerConfig() *ListenerConfig {
	return &ListenerConfig{
		Logging: LoggingConfig{Level: "info"},
		MQTT: MQTTConfig{
			BrokerHost: DefaultBrokerHost,
			BrokerPort: DefaultBrokerPort,
			Topic:      DefaultTopic,
		},
	}
}

// LoadListenerConfig loads the listener configuration from
// configDir/listener_config.yaml. A missing file is not an error: the
// defaults are returned so the listener behaves as a plain subscriber.
func LoadListenerConfig(configDir string) (*ListenerConfig, error) {
	path := filepath.Join(configDir, ListenerConfigFilename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultListenerConfig(), nil
		}
		return nil, fmt.Errorf("error reading config file '%s': %w", path, err)
	}

	cfg := DefaultListenerConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file '%s': %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file '%s': %w", path, err)
	}

	return cfg, nil
}

// Validate checks that enabled sections carry their required fields.
func (c *ListenerConfig) Validate() error {
	if c.MQTT.BrokerHost == "" {
		return fmt.Errorf("missing required field: mqtt.broker_host")
	}
	if c.MQTT.BrokerPort <= 0 || c.MQTT.BrokerPort > 65535 {
		return fmt.Errorf("mqtt.broker_port out of range: %d", c.MQTT.BrokerPort)
	}
	if c.MQTT.Topic == "" {
		return fmt.Errorf("missing required field: mqtt.topic")
	}
	if c.HTTP.Enabled && c.HTTP.Port <= 0 {
		return fmt.Errorf("http.enabled requires http.port")
	}
	if c.Forward.Enabled && c.Forward.PublishBindAddress == "" {
		return fmt.Errorf("forward.enabled requires forward.publish_bind_address")
	}
	return nil
}

// BrokerURL returns the paho broker URL for the configured host/port.
func (c *ListenerConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTT.BrokerHost, c.MQTT.BrokerPort)
}
