package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Client  ClientConfig  `yaml:"client"`
	Session SessionConfig `yaml:"session"`
	RPC     RPCConfig     `yaml:"rpc"`
	Agent   AgentConfig   `yaml:"agent"`
	Privacy PrivacyConfig `yaml:"privacy"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ClientConfig configures the frontend's connection to the agent.
type ClientConfig struct {
	URL                string        `yaml:"url"`
	Token              string        `yaml:"token"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
}

// SessionConfig drives the visibility of transient tool-call indicators.
type SessionConfig struct {
	VisibilityWindow time.Duration `yaml:"visibility_window"`
	MaxVisible       int           `yaml:"max_visible"`
	RefreshInterval  time.Duration `yaml:"refresh_interval"`
}

type RPCConfig struct {
	ResponseTimeout time.Duration `yaml:"response_timeout"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	PongTimeout     time.Duration `yaml:"pong_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	InboundRate     float64       `yaml:"inbound_rate"`
	InboundBurst    int           `yaml:"inbound_burst"`
	MaxPayloadBytes int64         `yaml:"max_payload_bytes"`
}

type AgentConfig struct {
	StepInterval     time.Duration `yaml:"step_interval"`
	AvailableTimes   []string      `yaml:"available_times"`
	DaysAhead        int           `yaml:"days_ahead"`
	ExcludedWeekdays []int         `yaml:"excluded_weekdays"` // 0=Sunday .. 6=Saturday
}

type PrivacyConfig struct {
	MaskContactNumbers bool `yaml:"mask_contact_numbers"`
	MaskEmails         bool `yaml:"mask_emails"`
	MaskNames          bool `yaml:"mask_names"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
		Client: ClientConfig{
			URL:                "ws://127.0.0.1:8080/rpc",
			ReconnectBaseDelay: time.Second,
			ReconnectMaxDelay:  30 * time.Second,
		},
		Session: SessionConfig{
			VisibilityWindow: 10 * time.Second,
			MaxVisible:       5,
			RefreshInterval:  time.Second,
		},
		RPC: RPCConfig{
			ResponseTimeout: 5 * time.Second,
			PingInterval:    30 * time.Second,
			PongTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			InboundRate:     50,
			InboundBurst:    100,
			MaxPayloadBytes: 1 << 20,
		},
		Agent: AgentConfig{
			StepInterval: 2 * time.Second,
			AvailableTimes: []string{
				"09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
				"14:00", "14:30", "15:00", "15:30", "16:00", "16:30",
			},
			DaysAhead:        14,
			ExcludedWeekdays: []int{int(time.Saturday), int(time.Sunday)},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file on top of Default. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Session.VisibilityWindow <= 0 {
		errs = append(errs, errors.New("session.visibility_window must be positive"))
	}
	if c.Session.MaxVisible <= 0 {
		errs = append(errs, errors.New("session.max_visible must be positive"))
	}
	if c.Session.RefreshInterval <= 0 {
		errs = append(errs, errors.New("session.refresh_interval must be positive"))
	}
	if c.RPC.ResponseTimeout <= 0 {
		errs = append(errs, errors.New("rpc.response_timeout must be positive"))
	}
	if c.Client.ReconnectBaseDelay <= 0 || c.Client.ReconnectMaxDelay < c.Client.ReconnectBaseDelay {
		errs = append(errs, errors.New("client reconnect delays must be positive and max >= base"))
	}
	for _, d := range c.Agent.ExcludedWeekdays {
		if d < 0 || d > 6 {
			errs = append(errs, fmt.Errorf("agent.excluded_weekdays: %d out of range 0-6", d))
		}
	}
	for _, t := range c.Agent.AvailableTimes {
		if _, err := time.Parse("15:04", t); err != nil {
			errs = append(errs, fmt.Errorf("agent.available_times: %q is not HH:MM", t))
		}
	}
	return errors.Join(errs...)
}

// Addr returns the host:port the agent server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
