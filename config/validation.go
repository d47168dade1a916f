package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/grovetools/invoicedash/errors"
)

// Defaults mirror the reference dashboard: socket on :3001, app origin
// on :3000, five reconnection attempts one second apart.
const (
	DefaultVersion                 = "1.0"
	DefaultServerAddr              = ":3001"
	DefaultAllowedOrigin           = "http://localhost:3000"
	DefaultInvoiceUpdateIntervalMs = 15000
	DefaultInvoiceCreateIntervalMs = 20000
	DefaultInvoiceCreateChance     = 0.3
	DefaultActivityIntervalMs      = 10000
	DefaultActivityChance          = 0.5
	DefaultSampleInvoiceCount      = 5
	DefaultClientURL               = "ws://localhost:3001/socket"
	DefaultReconnectAttempts       = 5
	DefaultReconnectDelayMs        = 1000
	DefaultAckTimeoutMs            = 10000
	DefaultHandshakeTimeoutMs      = 5000
	DefaultSeedDelayMs             = 1000
	DefaultMaxActivities           = 200
	DefaultIDNode                  = 1
	DefaultLoginPath               = "/login"
	DefaultTokenEnv                = "INVOICEDASH_TOKEN"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.SetDefaults()
	return c
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = DefaultVersion
	}

	s := &c.Server
	if s.Addr == "" {
		s.Addr = DefaultServerAddr
	}
	if s.AllowedOrigins == nil {
		s.AllowedOrigins = []string{DefaultAllowedOrigin}
	}
	if s.PidFile == "" {
		s.PidFile = filepath.Join(os.TempDir(), "invoicedash", "mock-server.pid")
	}
	if s.InvoiceUpdateIntervalMs == 0 {
		s.InvoiceUpdateIntervalMs = DefaultInvoiceUpdateIntervalMs
	}
	if s.InvoiceCreateIntervalMs == 0 {
		s.InvoiceCreateIntervalMs = DefaultInvoiceCreateIntervalMs
	}
	if s.InvoiceCreateChance == 0 {
		s.InvoiceCreateChance = DefaultInvoiceCreateChance
	}
	if s.ActivityIntervalMs == 0 {
		s.ActivityIntervalMs = DefaultActivityIntervalMs
	}
	if s.ActivityChance == 0 {
		s.ActivityChance = DefaultActivityChance
	}
	if s.SampleInvoiceCount == 0 {
		s.SampleInvoiceCount = DefaultSampleInvoiceCount
	}

	cl := &c.Client
	if cl.URL == "" {
		cl.URL = DefaultClientURL
	}
	if cl.ReconnectAttempts == 0 {
		cl.ReconnectAttempts = DefaultReconnectAttempts
	}
	if cl.ReconnectDelayMs == 0 {
		cl.ReconnectDelayMs = DefaultReconnectDelayMs
	}
	if cl.AckTimeoutMs == 0 {
		cl.AckTimeoutMs = DefaultAckTimeoutMs
	}
	if cl.HandshakeTimeoutMs == 0 {
		cl.HandshakeTimeoutMs = DefaultHandshakeTimeoutMs
	}

	st := &c.Store
	if st.SeedDelayMs == 0 {
		st.SeedDelayMs = DefaultSeedDelayMs
	}
	if st.MaxActivities == 0 {
		st.MaxActivities = DefaultMaxActivities
	}
	if st.IDNode == 0 {
		st.IDNode = DefaultIDNode
	}

	if c.Auth.LoginPath == "" {
		c.Auth.LoginPath = DefaultLoginPath
	}
	if c.Auth.TokenEnv == "" {
		c.Auth.TokenEnv = DefaultTokenEnv
	}
}

// Validate performs semantic checks the schema cannot express.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Client.URL)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "client.url is not a valid URL").
			WithDetail("url", c.Client.URL)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.ConfigInvalid(fmt.Sprintf("client.url must use ws or wss, got %q", u.Scheme)).
			WithDetail("url", c.Client.URL)
	}

	for name, p := range map[string]float64{
		"server.invoice_create_chance": c.Server.InvoiceCreateChance,
		"server.activity_chance":       c.Server.ActivityChance,
	} {
		if p < 0 || p > 1 {
			return errors.ConfigInvalid(fmt.Sprintf("%s must be between 0 and 1, got %v", name, p)).
				WithDetail("field", name)
		}
	}

	if c.Store.IDNode < 0 || c.Store.IDNode > 1023 {
		return errors.ConfigInvalid(fmt.Sprintf("store.id_node must be between 0 and 1023, got %d", c.Store.IDNode))
	}

	if len(c.Auth.LoginPath) == 0 || c.Auth.LoginPath[0] != '/' {
		return errors.ConfigInvalid("auth.login_path must start with '/'")
	}

	return nil
}
