package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/render-api/internal/config"
	"github.com/redis/go-redis/v9"
)

// errRemoteUnavailable signals that the shared store could not serve the
// admission decision; the limiter degrades to local mode for that call.
var errRemoteUnavailable = errors.New("distributed admission store unavailable")

// admissionKeyPrefix namespaces admission records in the shared store. The
// key embeds a one-way hash of the credential, never the raw credential.
const admissionKeyPrefix = "ratelimit:sess:"

// credentialKey derives the admission record key fragment for a credential.
func credentialKey(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

// acquireScript is the atomic check-and-set for an admission grant. It reads
// the inflight count and the next-allowed-at timestamp, and either denies
// (returning the suggested retry delay in milliseconds) or grants by
// incrementing inflight, advancing next-allowed-at, and refreshing the
// record's safety TTL — all in one step, so simultaneous acquirers for the
// same credential cannot race.
var acquireScript = redis.NewScript(`
local key = KEYS[1]
local max_concurrent = tonumber(ARGV[1])
local interval_ms = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])
local ttl_ms = tonumber(ARGV[4])

local inflight = tonumber(redis.call('HGET', key, 'inflight') or '0')
local next_allowed = tonumber(redis.call('HGET', key, 'next_allowed_at') or '0')

if inflight >= max_concurrent then
  return {0, interval_ms}
end
if now_ms < next_allowed then
  return {0, next_allowed - now_ms}
end

redis.call('HSET', key, 'inflight', inflight + 1, 'next_allowed_at', now_ms + interval_ms)
redis.call('PEXPIRE', key, ttl_ms)
return {1, 0}
`)

// releaseScript decrements the inflight count, deleting the record once it
// reaches zero so idle credentials leave nothing behind.
var releaseScript = redis.NewScript(`
local key = KEYS[1]
local inflight = tonumber(redis.call('HGET', key, 'inflight') or '0')
if inflight <= 1 then
  redis.call('DEL', key)
  return 0
end
redis.call('HSET', key, 'inflight', inflight - 1)
return inflight - 1
`)

// RedisAdmitter evaluates admission against per-credential records in a
// shared Redis, making the two limiter rules hold across a fleet of
// processes.
type RedisAdmitter struct {
	client redis.UniversalClient
	cfg    config.RateLimitConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisAdmitter creates an admitter on the given client.
func NewRedisAdmitter(
	client redis.UniversalClient,
	cfg config.RateLimitConfig,
	logger *slog.Logger,
) *RedisAdmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisAdmitter{
		client: client,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "redis_admitter")),
		now:    time.Now,
	}
}

// tryAcquire runs the admission check-and-set once. It returns whether the
// grant was given and, when denied, how long to wait before retrying.
func (a *RedisAdmitter) tryAcquire(ctx context.Context, credential string) (bool, time.Duration, error) {
	key := admissionKeyPrefix + credentialKey(credential)

	res, err := acquireScript.Run(ctx, a.client, []string{key},
		a.cfg.MaxConcurrent,
		a.cfg.MinInterval.Milliseconds(),
		a.now().UnixMilli(),
		a.cfg.RecordTTL.Milliseconds(),
	).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", errRemoteUnavailable, err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("%w: unexpected script reply %v", errRemoteUnavailable, res)
	}

	granted, ok1 := res[0].(int64)
	retryMs, ok2 := res[1].(int64)
	if !ok1 || !ok2 {
		return false, 0, fmt.Errorf("%w: unexpected script reply %v", errRemoteUnavailable, res)
	}

	if granted == 1 {
		return true, 0, nil
	}

	retryAfter := time.Duration(retryMs) * time.Millisecond
	if retryAfter < 50*time.Millisecond {
		retryAfter = 50 * time.Millisecond
	}
	return false, retryAfter, nil
}

// release gives back one grant for the credential.
func (a *RedisAdmitter) release(ctx context.Context, credential string) error {
	key := admissionKeyPrefix + credentialKey(credential)
	if err := releaseScript.Run(ctx, a.client, []string{key}).Err(); err != nil {
		return fmt.Errorf("%w: %v", errRemoteUnavailable, err)
	}
	return nil
}

// acquireDistributed polls the shared admission record until granted, the
// admission deadline passes, or the context is cancelled. A store error at
// any point surfaces as errRemoteUnavailable so the caller can fall back to
// local admission.
func (l *SessionLimiter) acquireDistributed(ctx context.Context, credential string) (Release, error) {
	deadline := time.NewTimer(l.cfg.QueueTimeout)
	defer deadline.Stop()

	for {
		granted, retryAfter, err := l.remote.tryAcquire(ctx, credential)
		if err != nil {
			return nil, errRemoteUnavailable
		}
		if granted {
			return l.remoteReleaseFunc(credential), nil
		}

		retry := time.NewTimer(retryAfter)
		select {
		case <-retry.C:
		case <-deadline.C:
			retry.Stop()
			return nil, ErrAcquireTimeout
		case <-ctx.Done():
			retry.Stop()
			return nil, ctx.Err()
		}
	}
}

// remoteReleaseFunc builds the single-use release for a distributed grant.
// A release that cannot reach the store is logged and dropped; the record's
// TTL reclaims the grant.
func (l *SessionLimiter) remoteReleaseFunc(credential string) Release {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.remote.release(ctx, credential); err != nil {
				l.logger.Warn("failed to release distributed admission grant",
					"credential_hash", credentialKey(credential),
					"error", err)
			}
		})
	}
}
