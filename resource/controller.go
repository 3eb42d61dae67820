// Package resource limits the work a page server accepts: concurrent
// requests, I/O throughput and the number of pages leased to clients.
package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrLeaseLimitExceeded is returned when too many pages are held by clients.
var ErrLeaseLimitExceeded = errors.New("page lease limit exceeded")

// Config holds resource limits. Zero values mean unlimited.
type Config struct {
	// MaxInFlight is the maximum number of requests served at the same time.
	MaxInFlight int64

	// IOLimitBytesPerSec is the maximum page payload throughput.
	IOLimitBytesPerSec int64

	// MaxLeasedPages is the maximum number of pages handed out and not yet released.
	MaxLeasedPages int64
}

// Controller enforces a Config. A nil *Controller enforces nothing.
type Controller struct {
	cfg Config

	inFlight  *semaphore.Weighted // nil if unlimited
	ioLimiter *rate.Limiter       // nil if unlimited
	leased    atomic.Int64
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MaxInFlight > 0 {
		c.inFlight = semaphore.NewWeighted(cfg.MaxInFlight)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// Acquire blocks until a request slot is free or ctx is done.
func (c *Controller) Acquire(ctx context.Context) error {
	if c == nil || c.inFlight == nil {
		return nil
	}
	return c.inFlight.Acquire(ctx, 1)
}

// Release frees a request slot taken by Acquire.
func (c *Controller) Release() {
	if c == nil || c.inFlight == nil {
		return
	}
	c.inFlight.Release(1)
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
// Requests larger than the burst are split.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil || bytes <= 0 {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}

// Lease records n pages handed to a client.
func (c *Controller) Lease(n int64) error {
	if c == nil || n <= 0 {
		return nil
	}
	if total := c.leased.Add(n); c.cfg.MaxLeasedPages > 0 && total > c.cfg.MaxLeasedPages {
		c.leased.Add(-n)
		return ErrLeaseLimitExceeded
	}
	return nil
}

// Return records n pages given back by a client.
func (c *Controller) Return(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.leased.Add(-n)
}

// Leased returns the number of pages currently held by clients.
func (c *Controller) Leased() int64 {
	if c == nil {
		return 0
	}
	return c.leased.Load()
}
