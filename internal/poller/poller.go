package poller

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// FetchResult is what one poll of the target produced.
type FetchResult struct {
	Status     int       // HTTP status of the fetch
	RetryAfter int       // Retry-After seconds on 429, 0 when absent/invalid
	UpdatedAt  time.Time // server-side updatedAt of the fetched state
	Payload    any       // decoded body, handed to the update callback
}

// Fetcher performs one fetch of a polling target (a conversation or the
// admin list).
type Fetcher interface {
	Fetch(ctx context.Context) (FetchResult, error)
}

// State of a polling controller.
type State int

const (
	Idle State = iota
	Polling
	BackingOff
)

// Controller polls one target over REST when realtime is unavailable,
// pausing when the server signals rate limiting. One controller owns at most
// one active timer; Start is idempotent per target.
type Controller struct {
	mu sync.Mutex

	sched    Scheduler
	fetcher  Fetcher
	onUpdate func(FetchResult)

	state        State
	interval     time.Duration
	backoff      Backoff
	cancelTick   CancelFunc
	cancelResume CancelFunc
	lastUpdated  time.Time
}

// New creates a controller for one polling target. onUpdate fires only when
// the fetched state is newer than the last seen updatedAt.
func New(sched Scheduler, fetcher Fetcher, interval time.Duration, onUpdate func(FetchResult)) *Controller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Controller{
		sched:    sched,
		fetcher:  fetcher,
		onUpdate: onUpdate,
		interval: interval,
	}
}

// Start begins (or restarts) the poll loop. Any existing timer for this
// target is cleared first, so calling Start twice never stacks timers.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearTimersLocked()
	c.state = Polling
	c.cancelTick = c.sched.Every(c.interval, c.tick)
}

// Stop clears the active timer and returns to Idle. Backoff bookkeeping is
// kept so a later Start still respects the reduction factor.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearTimersLocked()
	c.state = Idle
}

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Interval returns the current poll interval.
func (c *Controller) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

func (c *Controller) tick() {
	c.mu.Lock()
	if c.state != Polling {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	res, err := c.fetcher.Fetch(context.Background())
	if err != nil {
		// Transport failure: keep the loop running and try again next tick.
		return
	}

	if res.Status == http.StatusTooManyRequests {
		c.enterBackoff(res.RetryAfter)
		return
	}

	c.mu.Lock()
	c.backoff.Reset()
	changed := res.UpdatedAt.IsZero() || !res.UpdatedAt.Equal(c.lastUpdated)
	if changed {
		c.lastUpdated = res.UpdatedAt
	}
	onUpdate := c.onUpdate
	c.mu.Unlock()

	if changed && onUpdate != nil {
		onUpdate(res)
	}
}

func (c *Controller) enterBackoff(retryAfter int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Polling {
		return
	}

	wait := c.backoff.NextWait(retryAfter)
	c.clearTimersLocked()
	c.state = BackingOff
	c.cancelResume = c.sched.After(wait, c.resume)
}

func (c *Controller) resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != BackingOff {
		return
	}

	// Poll a little less eagerly after a rate limit; never shrink the
	// interval.
	next := c.interval + c.interval/2
	if next > time.Minute {
		next = time.Minute
	}
	if next > c.interval {
		c.interval = next
	}

	c.state = Polling
	c.cancelTick = c.sched.Every(c.interval, c.tick)
}

func (c *Controller) clearTimersLocked() {
	if c.cancelTick != nil {
		c.cancelTick()
		c.cancelTick = nil
	}
	if c.cancelResume != nil {
		c.cancelResume()
		c.cancelResume = nil
	}
}
