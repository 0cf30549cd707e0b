package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/Omoju-Mayowa/blogauth/internal/flagx"
	"github.com/Omoju-Mayowa/blogauth/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "30m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its fields are copied into the
// runtime Config struct which uses time.Duration.
type JsonConfig struct {
	DatabaseDSN                 string          `json:"database_dsn"`
	RedisAddr                   string          `json:"redis_addr"`
	MetricsAddr                 string          `json:"metrics_addr"`
	SecretKey                   string          `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`
	PepperFile                  string          `json:"pepper_file"`
	Pepper                      string          `json:"pepper"`
	PepperFallbacks             []string        `json:"pepper_fallbacks"`
	LoginMaxAttempts            *int            `json:"login_max_attempts"`
	LoginWindow                 *timex.Duration `json:"login_window"`
	LoginBlockDuration          *timex.Duration `json:"login_block_duration"`
	RateLimitFailOpen           *bool           `json:"rate_limit_fail_open"`
	TrustedIPs                  []string        `json:"trusted_ips"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path is taken from the -c or -config flags;
// if neither is set, no JSON file is loaded. Fields absent from the file
// keep their current values. An unreadable or invalid file panics, since
// running with half-applied configuration is worse than not starting.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.RedisAddr != "" {
		config.RedisAddr = c.RedisAddr
	}
	if c.MetricsAddr != "" {
		config.MetricsAddr = c.MetricsAddr
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = time.Duration(c.AccessTokenValidityDuration.Duration)
	}
	if c.PepperFile != "" {
		config.PepperFile = c.PepperFile
	}
	if c.Pepper != "" {
		config.Pepper = c.Pepper
	}
	if c.PepperFallbacks != nil {
		config.PepperFallbacks = c.PepperFallbacks
	}
	if c.LoginMaxAttempts != nil {
		config.LoginMaxAttempts = *c.LoginMaxAttempts
	}
	if c.LoginWindow != nil {
		config.LoginWindow = time.Duration(c.LoginWindow.Duration)
	}
	if c.LoginBlockDuration != nil {
		config.LoginBlockDuration = time.Duration(c.LoginBlockDuration.Duration)
	}
	if c.RateLimitFailOpen != nil {
		config.RateLimitFailOpen = *c.RateLimitFailOpen
	}
	if c.TrustedIPs != nil {
		config.TrustedIPs = c.TrustedIPs
	}
}
