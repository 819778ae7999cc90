package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mmiller-dev/folio/internal/api/ctxkeys"
	"github.com/mmiller-dev/folio/internal/infra/llm"
)

// RateLimitConfig is the per-client token bucket. RPS <= 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64
	Burst int
	// TTL drops buckets of clients not seen for this long; default 10 minutes.
	TTL time.Duration
}

// ThrottleRecorder is notified for every refused request. *metrics.Metrics satisfies it.
type ThrottleRecorder interface {
	Throttled()
}

// RateLimit identifies the client by remote address (run chi's RealIP first),
// stores it under ctxkeys.ClientID and refuses requests over budget. A refusal
// is a 200 {"message": ...} carrying the same wait wording as a vendor rate
// limit, so clients render it as an ordinary assistant turn.
func RateLimit(cfg RateLimitConfig, rec ThrottleRecorder) func(http.Handler) http.Handler {
	pool := newLimiterPool(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientKey(r)
			r = r.WithContext(ctxkeys.WithValue(r.Context(), ctxkeys.ClientID, client))

			if wait, ok := pool.reserve(client); !ok {
				if rec != nil {
					rec.Throttled()
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": llm.WaitMessage(wait, true)}) //nolint:errcheck
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// limiterPool keeps one token bucket per client. Idle entries are swept on
// access, at most once per TTL.
type limiterPool struct {
	mu        sync.Mutex
	m         map[string]*limiterEntry
	cfg       RateLimitConfig
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterPool(cfg RateLimitConfig) *limiterPool {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	return &limiterPool{m: make(map[string]*limiterEntry), cfg: cfg, now: time.Now}
}

// reserve takes a token for key. When none is available it returns the time
// until one will be, and false.
func (p *limiterPool) reserve(key string) (time.Duration, bool) {
	if p.cfg.RPS <= 0 {
		return 0, true
	}
	now := p.now()

	p.mu.Lock()
	p.sweepLocked(now)
	e, ok := p.m[key]
	if !ok {
		e = &limiterEntry{l: rate.NewLimiter(rate.Limit(p.cfg.RPS), p.cfg.Burst)}
		p.m[key] = e
	}
	e.lastSeen = now
	p.mu.Unlock()

	res := e.l.ReserveN(now, 1)
	if !res.OK() {
		return 0, false
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return delay, false
	}
	return 0, true
}

func (p *limiterPool) sweepLocked(now time.Time) {
	if now.Sub(p.lastSweep) < p.cfg.TTL {
		return
	}
	p.lastSweep = now
	cutoff := now.Add(-p.cfg.TTL)
	for k, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, k)
		}
	}
}

func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}
