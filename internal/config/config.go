// Package config defines the application configuration and its loader.
package config

import (
	"fmt"
	"time"

	"github.com/scribeflow/gatekeeper/pkg/constants"
)

// Config holds the application's configuration.
type Config struct {
	Server     ServerConfig          `mapstructure:"server"`
	Database   DatabaseConfig        `mapstructure:"database"`
	Redis      RedisConfig           `mapstructure:"redis"`
	Log        LogConfig             `mapstructure:"log"`
	RateLimit  RateLimitConfig       `mapstructure:"rate_limit"`
	Security   SecurityConfig        `mapstructure:"security"`
	Quota      QuotaConfig           `mapstructure:"quota"`
	Monitoring MonitoringConfig      `mapstructure:"monitoring"`
	Plans      map[string]PlanConfig `mapstructure:"plans"`
}

type ServerConfig struct {
	Host            string   `mapstructure:"host"`
	Port            int      `mapstructure:"port"`
	Mode            string   `mapstructure:"mode"`             // debug, release, test
	ReadTimeout     int      `mapstructure:"read_timeout"`     // in seconds
	WriteTimeout    int      `mapstructure:"write_timeout"`    // in seconds
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"` // in seconds
	AllowOrigins    []string `mapstructure:"allow_origins"`
	EnablePprof     bool     `mapstructure:"enable_pprof"`
}

// Address returns the listen address in host:port form.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxConns        int    `mapstructure:"max_conns"`
	MinConns        int    `mapstructure:"min_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime"` // in minutes
}

// GetDSN returns the postgres connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type RedisConfig struct {
	// Enabled selects the Redis-backed counter store; false falls back to
	// the in-process store
	Enabled      bool     `mapstructure:"enabled"`
	Addresses    []string `mapstructure:"addresses"`
	Password     string   `mapstructure:"password"`
	DB           int      `mapstructure:"db"`
	PoolSize     int      `mapstructure:"pool_size"`
	MinIdleConns int      `mapstructure:"min_idle_conns"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, console
}

// PolicyConfig overrides one rate-limit scope.
type PolicyConfig struct {
	Scope         string `mapstructure:"scope"`
	WindowSeconds int    `mapstructure:"window_seconds"`
	Max           int64  `mapstructure:"max"`
}

// Window returns the configured window as a duration.
func (p *PolicyConfig) Window() time.Duration {
	return time.Duration(p.WindowSeconds) * time.Second
}

type RateLimitConfig struct {
	Policies []PolicyConfig `mapstructure:"policies"`
}

type SecurityConfig struct {
	BlockThreshold     int `mapstructure:"block_threshold"`
	BlockWindowMinutes int `mapstructure:"block_window_minutes"`
	ActivityLogSize    int `mapstructure:"activity_log_size"`
}

// BlockWindow returns the trailing evaluation window as a duration.
func (c *SecurityConfig) BlockWindow() time.Duration {
	return time.Duration(c.BlockWindowMinutes) * time.Minute
}

type QuotaConfig struct {
	// PrivilegedPrincipals bypass quota and feature checks; identifiers are
	// case-normalized at load
	PrivilegedPrincipals []string `mapstructure:"privileged_principals"`
	QueryTimeoutSeconds  int      `mapstructure:"query_timeout_seconds"`
}

// QueryTimeout returns the usage-count query timeout as a duration.
func (c *QuotaConfig) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

type MonitoringConfig struct {
	MemorySampleSeconds int `mapstructure:"memory_sample_seconds"`
	CPUSampleSeconds    int `mapstructure:"cpu_sample_seconds"`
}

// PlanConfig declares one plan tier. Zero limits mean unlimited.
type PlanConfig struct {
	MonthlyLimit int64    `mapstructure:"monthly_limit"`
	DailyLimit   int64    `mapstructure:"daily_limit"`
	Features     []string `mapstructure:"features"`
}

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if len(c.Plans) > 0 {
		// A partial plan table would make tier recommendations undefined.
		for _, tier := range constants.TierOrder {
			if _, ok := c.Plans[string(tier)]; !ok {
				return fmt.Errorf("plan table missing tier %q", tier)
			}
		}
	}

	for _, p := range c.RateLimit.Policies {
		if p.WindowSeconds <= 0 || p.Max <= 0 {
			return fmt.Errorf("invalid rate limit policy for scope %q", p.Scope)
		}
	}

	return nil
}
