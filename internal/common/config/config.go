// internal/common/config/config.go
package config

import "time"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Bitrix    BitrixConfig    `mapstructure:"bitrix"`
	Session   SessionConfig   `mapstructure:"session"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // seconds
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BitrixConfig holds the CRM webhook secrets. Domain and WebhookToken are
// required for the CRM call but their absence is deliberately not a startup
// failure: the gateway reports CONFIG_ERROR per request instead, so the
// token endpoint and health checks keep working on a misconfigured host.
type BitrixConfig struct {
	Domain       string `mapstructure:"domain"`
	UserID       string `mapstructure:"user_id"`
	WebhookToken string `mapstructure:"webhook_token"`
	Timeout      int    `mapstructure:"timeout"` // seconds
	// Endpoint overrides the webhook URL entirely; used for local stubs.
	Endpoint string `mapstructure:"endpoint"`
}

// SessionConfig controls the cookie-tracked server-side session.
type SessionConfig struct {
	CookieName string `mapstructure:"cookie_name"`
	TTL        int    `mapstructure:"ttl"` // seconds
}

func (s SessionConfig) TTLDuration() time.Duration {
	return time.Duration(s.TTL) * time.Second
}

// RateLimitConfig controls the per-session fixed submission window.
type RateLimitConfig struct {
	Max    int `mapstructure:"max"`
	Window int `mapstructure:"window"` // seconds
}

func (r RateLimitConfig) WindowDuration() time.Duration {
	return time.Duration(r.Window) * time.Second
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
