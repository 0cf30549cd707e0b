package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// parseEnv overlays configuration from environment variables. Only
// variables that are actually set override previous values.
//
// Recognized variables:
//
//	DATABASE_DSN          PostgreSQL DSN
//	REDIS_ADDR            host:port of the shared counter store
//	METRICS_ADDR          listen address for the prometheus endpoint
//	SECRET_KEY            HMAC secret for bearer tokens
//	ACCESS_TOKEN_TTL      access token validity ("15m")
//	PEPPER_FILE           path of the persisted pepper sequence
//	PEPPER                current pepper used to seed a fresh store
//	PEPPER_FALLBACKS      comma-separated older peppers, newest first
//	LOGIN_MAX_ATTEMPTS    attempts per window before blocking
//	LOGIN_WINDOW          rolling window duration ("30m")
//	LOGIN_BLOCK_DURATION  block duration once the limit is exceeded
//	RATE_LIMIT_FAIL_OPEN  "true" allows logins when the counter store is down
//	TRUSTED_IPS           comma-separated allow-listed source addresses
func parseEnv(config *Config) {
	if v, ok := os.LookupEnv("DATABASE_DSN"); ok {
		config.DatabaseDSN = v
	}
	if v, ok := os.LookupEnv("REDIS_ADDR"); ok {
		config.RedisAddr = v
	}
	if v, ok := os.LookupEnv("METRICS_ADDR"); ok {
		config.MetricsAddr = v
	}
	if v, ok := os.LookupEnv("SECRET_KEY"); ok {
		config.SecretKey = v
	}
	if v, ok := os.LookupEnv("ACCESS_TOKEN_TTL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			config.AccessTokenValidityDuration = d
		}
	}
	if v, ok := os.LookupEnv("PEPPER_FILE"); ok {
		config.PepperFile = v
	}
	if v, ok := os.LookupEnv("PEPPER"); ok {
		config.Pepper = v
	}
	if v, ok := os.LookupEnv("PEPPER_FALLBACKS"); ok {
		config.PepperFallbacks = splitAndTrim(v)
	}
	if v, ok := os.LookupEnv("LOGIN_MAX_ATTEMPTS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			config.LoginMaxAttempts = n
		}
	}
	if v, ok := os.LookupEnv("LOGIN_WINDOW"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			config.LoginWindow = d
		}
	}
	if v, ok := os.LookupEnv("LOGIN_BLOCK_DURATION"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			config.LoginBlockDuration = d
		}
	}
	if v, ok := os.LookupEnv("RATE_LIMIT_FAIL_OPEN"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			config.RateLimitFailOpen = b
		}
	}
	if v, ok := os.LookupEnv("TRUSTED_IPS"); ok {
		config.TrustedIPs = splitAndTrim(v)
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
