// Package config builds the server configuration from defaults, an optional
// JSON file and command-line flags, in that order.
package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the server.
//
//   - EndpointAddr: HTTP bind address for the API and the websocket endpoint.
//   - DatabaseDriver / DatabaseDSN: one of sqlite3, sqlite, postgres, pgx and its DSN.
//   - SecretKey: HMAC secret for signing JWTs.
//   - TokenValidityDuration: lifetime of the auth cookie token.
//   - SidebarIndex: serve the sidebar from the incremental index instead of a per-request scan.
//   - S3*: object storage for message images and profile pictures; an empty bucket disables uploads.
type Config struct {
	EndpointAddr          string
	DatabaseDriver        string
	DatabaseDSN           string
	SecretKey             string
	TokenValidityDuration time.Duration
	ShutdownTimeout       time.Duration
	SidebarIndex          bool
	LogLevel              string
	S3AccessKey           string
	S3SecretKey           string
	S3Bucket              string
	S3Region              string
	S3BaseEndpoint        string
}

// LoadDefaults populates development defaults. The secret is not fit for production.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":8080"
	c.DatabaseDriver = "sqlite3"
	c.DatabaseDSN = "dmchat.db?_foreign_keys=1&_journal_mode=WAL"
	c.SecretKey = "secretKey"
	c.TokenValidityDuration = 7 * 24 * time.Hour
	c.ShutdownTimeout = 10 * time.Second
	c.SidebarIndex = false
	c.LogLevel = "info"
	c.S3Region = "us-east-1"
}

// Load applies defaults, then the JSON file named by -c/-config, then flags.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig is Load over os.Args. It panics on a broken config file or flag.
func LoadConfig() *Config {
	cfg, err := Load(os.Args[1:])
	if err != nil {
		panic(err)
	}
	return cfg
}
