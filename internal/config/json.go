package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pliu/dmchat/internal/flagx"
	"github.com/pliu/dmchat/internal/timex"
)

// JSONConfig is the on-disk shape of the config file. Zero values leave the
// defaults untouched.
type JSONConfig struct {
	EndpointAddr          string         `json:"endpoint_addr"`
	DatabaseDriver        string         `json:"database_driver"`
	DatabaseDSN           string         `json:"database_dsn"`
	SecretKey             string         `json:"secret_key"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
	ShutdownTimeout       timex.Duration `json:"shutdown_timeout"`
	SidebarIndex          *bool          `json:"sidebar_index"`
	LogLevel              string         `json:"log_level"`
	S3AccessKey           string         `json:"s3_access_key"`
	S3SecretKey           string         `json:"s3_secret_key"`
	S3Bucket              string         `json:"s3_bucket"`
	S3Region              string         `json:"s3_region"`
	S3BaseEndpoint        string         `json:"s3_base_endpoint"`
}

func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var c JSONConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.EndpointAddr, c.EndpointAddr)
	setString(&cfg.DatabaseDriver, c.DatabaseDriver)
	setString(&cfg.DatabaseDSN, c.DatabaseDSN)
	setString(&cfg.SecretKey, c.SecretKey)
	setString(&cfg.LogLevel, c.LogLevel)
	setString(&cfg.S3AccessKey, c.S3AccessKey)
	setString(&cfg.S3SecretKey, c.S3SecretKey)
	setString(&cfg.S3Bucket, c.S3Bucket)
	setString(&cfg.S3Region, c.S3Region)
	setString(&cfg.S3BaseEndpoint, c.S3BaseEndpoint)
	if c.TokenValidityDuration.Duration > 0 {
		cfg.TokenValidityDuration = c.TokenValidityDuration.Duration
	}
	if c.ShutdownTimeout.Duration > 0 {
		cfg.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
	if c.SidebarIndex != nil {
		cfg.SidebarIndex = *c.SidebarIndex
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
