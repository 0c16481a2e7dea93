// Package config loads the server's yaml configuration, including
// the database connection settings.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Server holds all configuration for the MUD server.
type Server struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// World
	TickRate int    `yaml:"tickrate"` // ticks per second
	MapsDir  string `yaml:"maps_dir"` // directory of room-map files

	// Security. StrictCrypto drops frames that fail decryption after
	// the key exchange instead of retrying them as cleartext.
	StrictCrypto bool `yaml:"strict_crypto"`

	// Database
	Database DatabaseConfig `yaml:"database"`

	// Logging
	LogLevel string `yaml:"log_level"` // debug, info, warn, error (default: info)
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	// Connection pool parameters (optional, pgxpool defaults apply if not set)
	MaxConns        int32  `yaml:"max_conns"`
	MinConns        int32  `yaml:"min_conns"`
	MaxConnLifetime string `yaml:"max_conn_lifetime"` // duration, e.g. "1h"
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	base := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)

	var params []string
	if d.MaxConns > 0 {
		params = append(params, fmt.Sprintf("pool_max_conns=%d", d.MaxConns))
	}
	if d.MinConns > 0 {
		params = append(params, fmt.Sprintf("pool_min_conns=%d", d.MinConns))
	}
	if d.MaxConnLifetime != "" {
		params = append(params, fmt.Sprintf("pool_max_conn_lifetime=%s", d.MaxConnLifetime))
	}

	if len(params) > 0 {
		return base + "&" + strings.Join(params, "&")
	}
	return base
}

// LoadServer reads and validates the server config from path.
func LoadServer(path string) (Server, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Server{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Server{
		BindAddress: "0.0.0.0",
		Port:        42523,
		TickRate:    20,
		MapsDir:     "maps",
		LogLevel:    "info",
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Server{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Server{}, fmt.Errorf("config %s: bad port %d", path, cfg.Port)
	}
	if cfg.TickRate <= 0 {
		return Server{}, fmt.Errorf("config %s: tickrate must be positive, got %d", path, cfg.TickRate)
	}
	return cfg, nil
}
