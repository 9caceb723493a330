package poller

import "time"

// maxBackoffFactor caps the doubling factor applied after consecutive
// rate-limit signals.
const maxBackoffFactor = 32

// Backoff tracks the reduction factor across consecutive rate-limit
// responses. The zero value is ready to use.
type Backoff struct {
	factor int
}

// NextWait returns how long to pause after a rate-limit signal and advances
// the factor. A positive retryAfter (seconds, from a Retry-After header)
// takes precedence over the computed wait; the factor doubles either way.
func (b *Backoff) NextWait(retryAfter int) time.Duration {
	if b.factor < 1 {
		b.factor = 1
	}

	seconds := retryAfter
	if seconds <= 0 {
		exp := b.factor
		if exp > maxBackoffFactor {
			exp = maxBackoffFactor
		}
		seconds = 1 << uint(exp)
		if seconds < 2 {
			seconds = 2
		}
	}

	b.factor *= 2
	if b.factor > maxBackoffFactor {
		b.factor = maxBackoffFactor
	}

	return time.Duration(seconds) * time.Second
}

// Reset clears the factor after a successful fetch.
func (b *Backoff) Reset() {
	b.factor = 1
}

// Factor exposes the current factor for inspection.
func (b *Backoff) Factor() int {
	if b.factor < 1 {
		return 1
	}
	return b.factor
}
