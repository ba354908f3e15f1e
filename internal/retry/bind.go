// Package retry waits out a busy listening address at startup, such as
// the UDP port a previous flatctl instance is still releasing.
//
// The session engine itself never retries: remote delivery is
// fire-and-forget, and local requests are answered exactly once.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"syscall"
	"time"

	"flatctl/util"
)

// Policy bounds how long Bind keeps trying a busy address.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// Delay is the wait before the second try.  It doubles after every
	// busy attempt, up to MaxDelay.
	Delay    time.Duration
	MaxDelay time.Duration
}

// DefaultPolicy gives a restarted instance about four seconds to take
// over the port.
func DefaultPolicy() Policy {
	return Policy{Attempts: 5, Delay: 200 * time.Millisecond, MaxDelay: 2 * time.Second}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.Delay <= 0 {
		p.Delay = d.Delay
	}
	if p.MaxDelay < p.Delay {
		p.MaxDelay = p.Delay
	}
	return p
}

// Busy reports whether err says another socket still holds the address.
// Every other bind failure (a bad address, a denied privileged port) is
// final.
func Busy(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}

// Bind calls listen until it succeeds, fails for a reason other than a
// busy address, runs out of attempts, or ctx is cancelled.  addr only
// labels the log lines and errors.
func Bind(ctx context.Context, p Policy, log *util.Logger, addr string, listen func() error) error {
	p = p.normalized()
	delay := p.Delay
	for attempt := 1; ; attempt++ {
		err := listen()
		if err == nil {
			if attempt > 1 {
				log.Verbose("bound %s on attempt %d", addr, attempt)
			}
			return nil
		}
		if !Busy(err) {
			return err
		}
		if attempt >= p.Attempts {
			log.Warn("%s is still in use after %d attempts", addr, attempt)
			return fmt.Errorf("%s still in use after %d attempts: %w", addr, attempt, err)
		}

		wait := jitter(delay)
		log.Verbose("%s is in use (attempt %d/%d), retrying in %s",
			addr, attempt, p.Attempts, wait.Round(time.Millisecond))
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("bind %s: %w", addr, ctx.Err())
		case <-t.C:
		}

		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}

// jitter spreads d by ±25%.
func jitter(d time.Duration) time.Duration {
	quarter := int64(d) / 4
	if quarter <= 0 {
		return d
	}
	return d - time.Duration(quarter) + time.Duration(rand.Int63n(2*quarter+1))
}
