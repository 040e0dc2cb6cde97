package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/render-api/internal/config"
)

// Release returns the grant obtained from Acquire. It must be called exactly
// once when the protected work finishes, successfully or not. Calling it more
// than once is a no-op.
type Release func()

// Limiter admits or delays a generation attempt for a credential.
// Version: 1.0
type Limiter interface {
	// Acquire suspends the caller until admission is granted for the
	// credential, then returns the single-use release. A disabled limiter
	// or an empty credential is a pass-through.
	Acquire(ctx context.Context, credential string) (Release, error)
}

// waiter is one queued acquire call. Its fields are guarded by the limiter
// mutex; ready is buffered so grant delivery never blocks the evaluator.
type waiter struct {
	ready   chan Release
	granted bool
}

// bucket is the per-credential local admission state. A bucket exists only
// while it has active grants, queued waiters, or a pending retry timer; it is
// removed from the registry the moment all three are gone.
type bucket struct {
	active        int
	lastStartedAt time.Time
	queue         []*waiter
	timer         *time.Timer
}

// SessionLimiter implements Limiter. All bucket mutations go through a single
// mutex: admission is (re)evaluated synchronously on every enqueue, every
// release, and every timer fire, so at most one writer ever touches a
// credential's state.
type SessionLimiter struct {
	cfg    config.RateLimitConfig
	logger *slog.Logger

	// remote, when set, handles admission through the shared store; local
	// buckets remain the fallback when it errors.
	remote *RedisAdmitter

	mu      sync.Mutex
	buckets map[string]*bucket

	// now is the clock, injectable for tests.
	now func() time.Time
}

// NewSessionLimiter creates a session limiter. remote may be nil, in which
// case admission is purely process-local.
func NewSessionLimiter(
	cfg config.RateLimitConfig,
	remote *RedisAdmitter,
	logger *slog.Logger,
) *SessionLimiter {
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionLimiter{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "session_limiter")),
		remote:  remote,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Ensure SessionLimiter implements the Limiter interface.
var _ Limiter = (*SessionLimiter)(nil)

// noopRelease is returned on pass-through acquires.
func noopRelease() {}

// Acquire implements Limiter.Acquire.
func (l *SessionLimiter) Acquire(ctx context.Context, credential string) (Release, error) {
	if !l.cfg.Enabled || credential == "" {
		return noopRelease, nil
	}

	if l.remote != nil && l.cfg.Distributed {
		release, err := l.acquireDistributed(ctx, credential)
		if err == nil {
			return release, nil
		}
		if errors.Is(err, errRemoteUnavailable) {
			// Shared store outage degrades to local-only admission for
			// this call; the caller is never failed for it.
			l.logger.Warn("distributed admission unavailable, falling back to local",
				"credential_hash", credentialKey(credential))
			return l.acquireLocal(ctx, credential)
		}
		return nil, err
	}

	return l.acquireLocal(ctx, credential)
}

// acquireLocal queues the caller in the credential's bucket and waits for a
// grant, the admission deadline, or context cancellation.
func (l *SessionLimiter) acquireLocal(ctx context.Context, credential string) (Release, error) {
	w := &waiter{ready: make(chan Release, 1)}

	l.mu.Lock()
	b, ok := l.buckets[credential]
	if !ok {
		b = &bucket{}
		l.buckets[credential] = b
	}

	if len(b.queue) >= l.cfg.MaxQueuePerSession {
		l.maybeRemoveBucket(credential, b)
		l.mu.Unlock()
		return nil, ErrQueueFull
	}

	b.queue = append(b.queue, w)
	l.evaluate(credential, b)
	l.mu.Unlock()

	deadline := time.NewTimer(l.cfg.QueueTimeout)
	defer deadline.Stop()

	select {
	case release := <-w.ready:
		return release, nil
	case <-deadline.C:
		return nil, l.abandon(credential, w, ErrAcquireTimeout)
	case <-ctx.Done():
		return nil, l.abandon(credential, w, ctx.Err())
	}
}

// abandon removes a waiter whose deadline or context expired. If the grant
// raced ahead of the expiry, the grant is consumed and handed back instead,
// so admission state never leaks.
func (l *SessionLimiter) abandon(credential string, w *waiter, cause error) error {
	l.mu.Lock()
	if w.granted {
		l.mu.Unlock()
		// The evaluator granted before we could withdraw; give the slot
		// straight back.
		release := <-w.ready
		release()
		return cause
	}

	b := l.buckets[credential]
	if b != nil {
		for i, queued := range b.queue {
			if queued == w {
				b.queue = append(b.queue[:i], b.queue[i+1:]...)
				break
			}
		}
		l.maybeRemoveBucket(credential, b)
	}
	l.mu.Unlock()
	return cause
}

// evaluate grants as many queued waiters as the two admission rules allow,
// scheduling exactly one retry timer when only spacing stands in the way.
// Callers must hold l.mu.
func (l *SessionLimiter) evaluate(credential string, b *bucket) {
	for len(b.queue) > 0 && b.active < l.cfg.MaxConcurrent {
		now := l.now()
		if wait := l.cfg.MinInterval - now.Sub(b.lastStartedAt); wait > 0 && !b.lastStartedAt.IsZero() {
			l.scheduleRetry(credential, b, wait)
			return
		}

		w := b.queue[0]
		b.queue = b.queue[1:]
		b.active++
		b.lastStartedAt = now
		w.granted = true
		w.ready <- l.releaseFunc(credential)
	}
	l.maybeRemoveBucket(credential, b)
}

// scheduleRetry arms the bucket's single retry timer for the remaining
// spacing wait. Callers must hold l.mu.
func (l *SessionLimiter) scheduleRetry(credential string, b *bucket, wait time.Duration) {
	if b.timer != nil {
		return
	}
	b.timer = time.AfterFunc(wait, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		b.timer = nil
		l.evaluate(credential, b)
	})
}

// releaseFunc builds the single-use release for a local grant.
func (l *SessionLimiter) releaseFunc(credential string) Release {
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			b := l.buckets[credential]
			if b == nil {
				return
			}
			b.active--
			l.evaluate(credential, b)
		})
	}
}

// maybeRemoveBucket garbage-collects an empty bucket. Callers must hold l.mu.
func (l *SessionLimiter) maybeRemoveBucket(credential string, b *bucket) {
	if b.active == 0 && len(b.queue) == 0 && b.timer == nil {
		delete(l.buckets, credential)
	}
}
