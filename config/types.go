package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Config is the top-level invoicedash configuration.
type Config struct {
	Version string       `yaml:"version" toml:"version" json:"version" jsonschema:"description=Configuration version (e.g. '1.0')"`
	Server  ServerConfig `yaml:"server" toml:"server" json:"server" jsonschema:"description=Mock real-time event server"`
	Client  ClientConfig `yaml:"client" toml:"client" json:"client" jsonschema:"description=Realtime client connection"`
	Store   StoreConfig  `yaml:"store" toml:"store" json:"store" jsonschema:"description=Invoice and activity stores"`
	Auth    AuthConfig   `yaml:"auth" toml:"auth" json:"auth" jsonschema:"description=Route guard and identity"`

	// Extensions captures all other top-level keys (e.g. "logging").
	Extensions map[string]interface{} `yaml:",inline" toml:"-" json:"-" jsonschema:"-"`
}

// ServerConfig configures the mock event server.
type ServerConfig struct {
	Addr           string   `yaml:"addr" toml:"addr" json:"addr" jsonschema:"description=Listen address (host:port)"`
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins" json:"allowed_origins" jsonschema:"description=Origins allowed to open a socket; empty allows any"`
	PidFile        string   `yaml:"pid_file" toml:"pid_file" json:"pid_file" jsonschema:"description=PID file guarding against a second instance"`

	InvoiceUpdateIntervalMs int     `yaml:"invoice_update_interval_ms" toml:"invoice_update_interval_ms" json:"invoice_update_interval_ms" jsonschema:"description=Random invoice-updated period in milliseconds"`
	InvoiceCreateIntervalMs int     `yaml:"invoice_create_interval_ms" toml:"invoice_create_interval_ms" json:"invoice_create_interval_ms" jsonschema:"description=Random invoice-created period in milliseconds"`
	InvoiceCreateChance     float64 `yaml:"invoice_create_chance" toml:"invoice_create_chance" json:"invoice_create_chance" jsonschema:"description=Probability of emitting invoice-created on each period"`
	ActivityIntervalMs      int     `yaml:"activity_interval_ms" toml:"activity_interval_ms" json:"activity_interval_ms" jsonschema:"description=Random create-activity period in milliseconds"`
	ActivityChance          float64 `yaml:"activity_chance" toml:"activity_chance" json:"activity_chance" jsonschema:"description=Probability of emitting create-activity on each period"`
	SampleInvoiceCount      int     `yaml:"sample_invoice_count" toml:"sample_invoice_count" json:"sample_invoice_count" jsonschema:"description=Random updates target invoice ids 1..N"`
}

// ClientConfig configures the realtime client.
type ClientConfig struct {
	URL                string `yaml:"url" toml:"url" json:"url" jsonschema:"description=WebSocket URL of the event server"`
	ReconnectAttempts  int    `yaml:"reconnect_attempts" toml:"reconnect_attempts" json:"reconnect_attempts" jsonschema:"description=Reconnection attempts after an unexpected drop"`
	ReconnectDelayMs   int    `yaml:"reconnect_delay_ms" toml:"reconnect_delay_ms" json:"reconnect_delay_ms" jsonschema:"description=Fixed delay between reconnection attempts"`
	AckTimeoutMs       int    `yaml:"ack_timeout_ms" toml:"ack_timeout_ms" json:"ack_timeout_ms" jsonschema:"description=Acknowledgment timeout for emitted events"`
	HandshakeTimeoutMs int    `yaml:"handshake_timeout_ms" toml:"handshake_timeout_ms" json:"handshake_timeout_ms" jsonschema:"description=WebSocket handshake timeout"`
}

// StoreConfig configures the stores.
type StoreConfig struct {
	SeedDelayMs   int `yaml:"seed_delay_ms" toml:"seed_delay_ms" json:"seed_delay_ms" jsonschema:"description=Simulated latency of the initial invoice load"`
	MaxActivities int `yaml:"max_activities" toml:"max_activities" json:"max_activities" jsonschema:"description=Bound of the activity feed"`
	IDNode        int `yaml:"id_node" toml:"id_node" json:"id_node" jsonschema:"description=Snowflake node number for local invoice ids (0-1023)"`
}

// AuthConfig configures the route guard.
type AuthConfig struct {
	LoginPath   string `yaml:"login_path" toml:"login_path" json:"login_path" jsonschema:"description=Redirect target for unauthenticated navigation"`
	TokenSecret string `yaml:"token_secret" toml:"token_secret" json:"token_secret" jsonschema:"description=HMAC secret used to verify identity tokens"`
	TokenEnv    string `yaml:"token_env" toml:"token_env" json:"token_env" jsonschema:"description=Environment variable holding the identity token"`
}

// Interval helpers

func (s ServerConfig) InvoiceUpdateInterval() time.Duration {
	return ms(s.InvoiceUpdateIntervalMs)
}

func (s ServerConfig) InvoiceCreateInterval() time.Duration {
	return ms(s.InvoiceCreateIntervalMs)
}

func (s ServerConfig) ActivityInterval() time.Duration {
	return ms(s.ActivityIntervalMs)
}

func (c ClientConfig) ReconnectDelay() time.Duration { return ms(c.ReconnectDelayMs) }

func (c ClientConfig) AckTimeout() time.Duration { return ms(c.AckTimeoutMs) }

func (c ClientConfig) HandshakeTimeout() time.Duration { return ms(c.HandshakeTimeoutMs) }

func (s StoreConfig) SeedDelay() time.Duration { return ms(s.SeedDelayMs) }

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// UnmarshalExtension decodes a specific extension's configuration into a
// target struct. It's not an error if the key doesn't exist; the target
// then stays zero-valued.
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	// Use mapstructure to decode the generic map into the strongly-typed
	// target, honouring `yaml` tags for consistency.
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
