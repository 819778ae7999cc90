package llm

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMissingCredentials is returned before any network call when an adapter has no API key.
	ErrMissingCredentials = errors.New("llm: missing api credentials")
	// ErrUnknownProvider is returned by Router for an unregistered name.
	ErrUnknownProvider = errors.New("llm: unknown provider")
)

// CredentialsError names the vendor and the environment variable that should hold its key.
type CredentialsError struct {
	Vendor string // display name, e.g. "OpenAI"
	EnvVar string // e.g. "OPENAI_API_KEY"
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("%s API key is not configured. Please add %s to your .env.local file.", e.Vendor, e.EnvVar)
}

func (e *CredentialsError) Unwrap() error { return ErrMissingCredentials }

// RateLimitError reports an HTTP 429 from a vendor together with whatever
// wait hint the response headers carried.
type RateLimitError struct {
	Provider string
	// RetryAfter is the server-advised delay; zero when the header was absent.
	RetryAfter time.Duration
	// ResetAt is when the vendor quota window resets; zero when unknown.
	ResetAt time.Time
	Err     error
}

func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: rate limited: %v", e.Provider, e.Err)
	}
	return e.Provider + ": rate limited"
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// Wait estimates how long the caller should back off. retry-after wins over
// the reset timestamp; a reset in the past clamps to zero.
func (e *RateLimitError) Wait(now time.Time) (time.Duration, bool) {
	if e.RetryAfter > 0 {
		return e.RetryAfter, true
	}
	if !e.ResetAt.IsZero() {
		return max(0, e.ResetAt.Sub(now)), true
	}
	return 0, false
}

// Message is the assistant-facing text shown instead of an error.
func (e *RateLimitError) Message(now time.Time) string {
	return WaitMessage(e.Wait(now))
}

const rateLimitFallback = "I've hit my rate limit. Please wait a moment and try again."

// WaitMessage renders a wait estimate: whole seconds below one minute,
// rounded-up minutes otherwise.
func WaitMessage(wait time.Duration, known bool) string {
	if !known {
		return rateLimitFallback
	}
	seconds := int(math.Ceil(wait.Seconds()))
	if seconds <= 0 {
		return rateLimitFallback
	}
	if seconds < 60 {
		return fmt.Sprintf("I've hit my rate limit. Please wait about %s and try again.", plural(seconds, "second"))
	}
	minutes := (seconds + 59) / 60
	return fmt.Sprintf("I've hit my rate limit. Please wait about %s and try again.", plural(minutes, "minute"))
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

// Header names consulted by NewRateLimitError, in priority order within each group.
const (
	headerRetryAfter     = "Retry-After"
	headerRateLimitReset = "X-Ratelimit-Reset"
)

var (
	// OpenAI and Groq send Go-style durations such as "1s" or "6m0s".
	durationResetHeaders = []string{"X-Ratelimit-Reset-Requests", "X-Ratelimit-Reset-Tokens"}
	// Anthropic sends RFC 3339 timestamps.
	timestampResetHeaders = []string{"Anthropic-Ratelimit-Requests-Reset", "Anthropic-Ratelimit-Tokens-Reset"}
)

// NewRateLimitError extracts wait hints from a 429 response's headers.
// h may be nil when the transport could not capture them.
func NewRateLimitError(provider string, h http.Header, now time.Time, cause error) *RateLimitError {
	e := &RateLimitError{Provider: provider, Err: cause}
	if h == nil {
		return e
	}
	if v := strings.TrimSpace(h.Get(headerRetryAfter)); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			e.RetryAfter = time.Duration(secs * float64(time.Second))
		} else if at, err := http.ParseTime(v); err == nil {
			e.RetryAfter = max(0, at.Sub(now))
		}
	}
	if v := strings.TrimSpace(h.Get(headerRateLimitReset)); v != "" {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			e.ResetAt = time.Unix(unix, 0)
			return e
		}
	}
	for _, name := range durationResetHeaders {
		if d, err := time.ParseDuration(strings.TrimSpace(h.Get(name))); err == nil {
			e.ResetAt = now.Add(d)
			return e
		}
	}
	for _, name := range timestampResetHeaders {
		if at, err := time.Parse(time.RFC3339, strings.TrimSpace(h.Get(name))); err == nil {
			e.ResetAt = at
			return e
		}
	}
	return e
}
