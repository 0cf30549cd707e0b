package config

import (
	"flag"
	"os"
	"time"

	"github.com/Omoju-Mayowa/blogauth/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   PostgreSQL DSN
//	-r string   Redis address (host:port)
//	-s string   bearer token HMAC secret key
//	-t int      access token validity, minutes
//	-f string   pepper file path
//	-m int      login attempts allowed per window
//	-w int      login window, minutes
//	-b int      block duration on exceeding the limit, minutes
//	-o bool     fail open when the counter store is unreachable
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. Duration
// flags are accepted as integers in minutes and then converted to
// time.Duration values.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-r", "-s", "-t", "-f", "-m", "-w", "-b", "-o"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.PepperFile, "f", config.PepperFile, "pepper file path")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	fs.IntVar(&config.LoginMaxAttempts, "m", config.LoginMaxAttempts, "login attempts per window")
	loginWindow := fs.Int("w", int(config.LoginWindow.Minutes()), "login window (in minutes)")
	blockDuration := fs.Int("b", int(config.LoginBlockDuration.Minutes()), "block duration (in minutes)")
	fs.BoolVar(&config.RateLimitFailOpen, "o", config.RateLimitFailOpen, "fail open on counter store outage")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
	config.LoginWindow = time.Duration(*loginWindow) * time.Minute
	config.LoginBlockDuration = time.Duration(*blockDuration) * time.Minute
}
