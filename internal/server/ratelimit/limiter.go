// Package ratelimit implements a distributed login rate limiter backed by a
// shared Redis counter store, so the attempt budget for a source address is
// enforced across every server process.
//
// Per key the limiter moves through three states: no record, accumulating
// (count below the limit inside a rolling window), and blocked (limit
// exceeded; rejected until the block TTL lapses). Only TTL expiry erases
// state; a successful login does not clear the counter.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/Omoju-Mayowa/blogauth/internal/common"
	"github.com/Omoju-Mayowa/blogauth/internal/logging"
	"github.com/Omoju-Mayowa/blogauth/internal/netx"
	"github.com/go-redis/redis/v8"
)

// Config carries the externally tunable limiter settings.
type Config struct {
	// MaxAttempts allowed per rolling window before the key is blocked.
	MaxAttempts int
	// Window is the rolling window duration, measured from the first
	// attempt in it.
	Window time.Duration
	// BlockDuration is how long a key stays blocked once it exceeds
	// MaxAttempts.
	BlockDuration time.Duration
	// FailOpen selects the policy when the counter store is unreachable:
	// true allows the attempt through (availability over protection),
	// false rejects it. This must be a conscious choice per deployment.
	FailOpen bool
}

// backendTimeout bounds each counter-store round trip so a slow backend
// degrades into the configured fail-open/fail-closed behavior instead of
// hanging login requests.
const backendTimeout = 500 * time.Millisecond

const (
	attemptKeyPrefix = "login:attempts:"
	blockKeyPrefix   = "login:block:"
)

// checkScript performs the whole increment-and-check as one atomic server-
// side operation, so concurrent requests for the same key from multiple
// processes cannot race. KEYS[1] is the attempt counter, KEYS[2] the block
// marker; ARGV are window ms, max attempts, block ms. Returns the attempt
// count, or -1 when the key is (or just became) blocked.
var checkScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 then
  return -1
end
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if count > tonumber(ARGV[2]) then
  redis.call("SET", KEYS[2], "1", "PX", ARGV[3])
  redis.call("DEL", KEYS[1])
  return -1
end
return count
`)

// Limiter throttles login attempts per normalized source IP.
type Limiter struct {
	rdb       *redis.Client
	cfg       Config
	allowlist map[string]struct{}
	logger    logging.Logger
}

// New builds a Limiter. allowlist entries are normalized once here; an
// allow-listed address bypasses the limiter without consuming any quota.
func New(rdb *redis.Client, cfg Config, allowlist []string, logger logging.Logger) *Limiter {
	allowed := make(map[string]struct{}, len(allowlist))
	for _, ip := range allowlist {
		allowed[netx.NormalizeIP(ip)] = struct{}{}
	}
	return &Limiter{rdb: rdb, cfg: cfg, allowlist: allowed, logger: logger}
}

// CheckAndConsume registers one login attempt for ip and reports whether it
// may proceed. Blocked keys get (false, nil). A counter-store failure
// follows the configured policy: fail-open returns (true, nil), fail-closed
// returns ErrBackendUnavailable.
func (l *Limiter) CheckAndConsume(ctx context.Context, ip string) (bool, error) {
	key := netx.NormalizeIP(ip)

	if _, ok := l.allowlist[key]; ok {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, backendTimeout)
	defer cancel()

	count, err := checkScript.Run(ctx, l.rdb,
		[]string{attemptKeyPrefix + key, blockKeyPrefix + key},
		l.cfg.Window.Milliseconds(),
		l.cfg.MaxAttempts,
		l.cfg.BlockDuration.Milliseconds(),
	).Int64()

	if err != nil {
		if l.cfg.FailOpen {
			l.logger.Warn(ctx, "rate limiter backend unreachable, failing open", "error", err)
			return true, nil
		}
		l.logger.Error(ctx, "rate limiter backend unreachable, failing closed", "error", err)
		return false, fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
	}

	if count < 0 {
		l.logger.Debug(ctx, "login attempt blocked", "ip", key)
		return false, nil
	}
	return true, nil
}

// Remaining reports how many attempts are left in the current window for
// ip: zero when blocked, the full budget when no record exists.
func (l *Limiter) Remaining(ctx context.Context, ip string) (int, error) {
	key := netx.NormalizeIP(ip)

	ctx, cancel := context.WithTimeout(ctx, backendTimeout)
	defer cancel()

	blocked, err := l.rdb.Exists(ctx, blockKeyPrefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
	}
	if blocked == 1 {
		return 0, nil
	}

	count, err := l.rdb.Get(ctx, attemptKeyPrefix+key).Int()
	if err == redis.Nil {
		return l.cfg.MaxAttempts, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
	}

	remaining := l.cfg.MaxAttempts - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset clears all limiter state for ip. Operator/test use only.
func (l *Limiter) Reset(ctx context.Context, ip string) error {
	key := netx.NormalizeIP(ip)
	return l.rdb.Del(ctx, attemptKeyPrefix+key, blockKeyPrefix+key).Err()
}

// Ping verifies counter-store connectivity, for startup checks.
func (l *Limiter) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}
