// Package config loads the YAML configuration shared by the Connect TUI and
// the mock Connect API server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/connect-button/connect/internal/connection"
)

type Config struct {
	Server      ServerConfig            `yaml:"server"`
	API         APIConfig               `yaml:"api"`
	Button      ButtonConfig            `yaml:"button"`
	Connections []connection.Connection `yaml:"connections"`
}

type ServerConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Token string `yaml:"token"`
}

type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	WSURL   string `yaml:"ws_url"`
	Token   string `yaml:"token"`
}

type ButtonConfig struct {
	ConnectionID   string   `yaml:"connection_id"`
	Email          string   `yaml:"email"`
	DarkBackground bool     `yaml:"dark_background"`
	TrackWidth     int      `yaml:"track_width"`
	HandleWidth    int      `yaml:"handle_width"`
	EmailStep      bool     `yaml:"email_step"`
	KnownAccounts  []string `yaml:"known_accounts"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8090,
		},
		API: APIConfig{
			BaseURL: "http://127.0.0.1:8090",
			WSURL:   "ws://127.0.0.1:8090/ws",
		},
		Button: ButtonConfig{
			ConnectionID: "log-my-runs",
			TrackWidth:   40,
			HandleWidth:  7,
			EmailStep:    true,
		},
		Connections: DefaultConnections(),
	}
}

// DefaultConnections is the seed data used when the file lists none.
func DefaultConnections() []connection.Connection {
	return []connection.Connection{
		{
			ID:          "log-my-runs",
			Name:        "Log my runs to a spreadsheet",
			Description: "Every run you finish is added as a new row.",
			Status:      connection.StatusInitial,
			Services: []connection.Service{
				{ID: "strava", Name: "Strava", ShortName: "Strava", BrandColor: "#FC4C02", MonochromeIconURL: "/icons/strava", Primary: true},
				{ID: "sheets", Name: "Google Sheets", ShortName: "Sheets", BrandColor: "#0F9D58", MonochromeIconURL: "/icons/sheets"},
			},
		},
		{
			ID:          "porch-lights",
			Name:        "Turn on the porch lights at sunset",
			Description: "Your lights come on when the sun goes down.",
			Status:      connection.StatusEnabled,
			Services: []connection.Service{
				{ID: "hue", Name: "Philips Hue", ShortName: "Hue", BrandColor: "#0065D3", MonochromeIconURL: "/icons/hue", Primary: true},
			},
		},
	}
}

// Load reads path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	cfg.Connections = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(cfg.Connections) == 0 {
		cfg.Connections = DefaultConnections()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// Validate rejects values neither program can run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Button.HandleWidth < 1 || c.Button.TrackWidth < 2*c.Button.HandleWidth {
		return fmt.Errorf("button.track_width %d must be at least twice button.handle_width %d",
			c.Button.TrackWidth, c.Button.HandleWidth)
	}
	seen := make(map[string]bool, len(c.Connections))
	for _, conn := range c.Connections {
		if conn.ID == "" {
			return errors.New("connection without id")
		}
		if seen[conn.ID] {
			return fmt.Errorf("duplicate connection %q", conn.ID)
		}
		seen[conn.ID] = true
	}
	return nil
}

// Connection returns the seed connection with the given id.
func (c *Config) Connection(id string) (connection.Connection, bool) {
	for _, conn := range c.Connections {
		if conn.ID == id {
			return conn.Clone(), true
		}
	}
	return connection.Connection{}, false
}
