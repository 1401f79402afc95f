package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/botfelt/botfelt/internal/game"
)

// ServerConfig is the complete server configuration.
type ServerConfig struct {
	Server ServerSettings `hcl:"server,block"`
	Tables []TableConfig  `hcl:"table,block"`
	Replay *ReplayConfig  `hcl:"replay,block"`
}

// ServerSettings contains server-level configuration.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
	// APIKey, when set, requires every identify to present it.
	APIKey string `hcl:"api_key,optional"`
}

// TableConfig defines one table created at startup.
type TableConfig struct {
	Name             string  `hcl:"name,label"`
	MaxPlayers       int     `hcl:"max_players,optional"`
	SmallBlind       int     `hcl:"small_blind"`
	BigBlind         int     `hcl:"big_blind"`
	TurnTimeLimit    float64 `hcl:"turn_time_limit,optional"` // Seconds; fractional allowed.
	HandStartDelayMS *int    `hcl:"hand_start_delay_ms,optional"`
	Tournament       bool    `hcl:"tournament,optional"`
}

// ReplayConfig enables JSONL replay logs, one file per table.
type ReplayConfig struct {
	Dir    string `hcl:"dir"`
	Buffer int    `hcl:"buffer,optional"`
}

const defaultHandStartDelayMS = 2000

// GameConfig converts a table block into the engine configuration.
func (t TableConfig) GameConfig() game.Config {
	delay := defaultHandStartDelayMS
	if t.HandStartDelayMS != nil {
		delay = *t.HandStartDelayMS
	}
	return game.Config{
		MaxPlayers:       t.MaxPlayers,
		SmallBlindAmount: t.SmallBlind,
		BigBlindAmount:   t.BigBlind,
		TurnTimeLimit:    t.TurnTimeLimit,
		HandStartDelay:   time.Duration(delay) * time.Millisecond,
		IsTournament:     t.Tournament,
	}
}

// DefaultServerConfig returns the configuration used when no file is given.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Tables: []TableConfig{
			{
				Name:          "main",
				MaxPlayers:    6,
				SmallBlind:    5,
				BigBlind:      10,
				TurnTimeLimit: 30,
			},
		},
	}
}

// LoadServerConfig loads configuration from an HCL file. A missing file
// yields the defaults.
func LoadServerConfig(filename string) (*ServerConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultServerConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ServerConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	if config.Server.Address == "" {
		config.Server.Address = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}

	for i := range config.Tables {
		if config.Tables[i].MaxPlayers == 0 {
			config.Tables[i].MaxPlayers = 6
		}
		if config.Tables[i].TurnTimeLimit == 0 {
			config.Tables[i].TurnTimeLimit = 30
		}
	}

	if config.Replay != nil && config.Replay.Buffer == 0 {
		config.Replay.Buffer = 1024
	}

	return &config, nil
}

// Validate checks the configuration for invalid values.
func (c *ServerConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if len(c.Tables) == 0 {
		return fmt.Errorf("at least one table must be configured")
	}

	for _, table := range c.Tables {
		// Zero blinds are legal (play-money tables); negative are not.
		if table.SmallBlind < 0 {
			return fmt.Errorf("table %s: small blind must be non-negative", table.Name)
		}
		if table.BigBlind < table.SmallBlind {
			return fmt.Errorf("table %s: big blind must be at least the small blind", table.Name)
		}
		if table.MaxPlayers < 2 || table.MaxPlayers > 10 {
			return fmt.Errorf("table %s: max players must be between 2 and 10", table.Name)
		}
		if table.HandStartDelayMS != nil && *table.HandStartDelayMS < 0 {
			return fmt.Errorf("table %s: hand start delay must be non-negative", table.Name)
		}
	}

	return nil
}

// GetServerAddress returns the full listen address.
func (c *ServerConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
