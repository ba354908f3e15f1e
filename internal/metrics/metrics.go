// Package metrics provides lightweight, lock-free counters for tracking
// runtime statistics of a flatctl session.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks session-wide counters: datagram traffic on the remote
// transport, authentication outcomes and dispatcher activity.
type Collector struct {
	datagramsIn      atomic.Int64
	datagramsDropped atomic.Int64
	bytesIn          atomic.Int64
	bytesOut         atomic.Int64
	responsesSent    atomic.Int64
	authFailures     atomic.Int64
	commandsCreated  atomic.Int64
	requestsHandled  atomic.Int64
	clientsSeen      atomic.Int64
	errorsTotal      atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Transport ────────────────────────────────────────────────────────

// DatagramReceived records one inbound datagram of n bytes.
func (c *Collector) DatagramReceived(n int) {
	if c == nil {
		return
	}
	c.datagramsIn.Add(1)
	c.bytesIn.Add(int64(n))
}

// DatagramDropped records an inbound datagram that was not a frame, or an
// outbound response that could not be queued or written.
func (c *Collector) DatagramDropped() {
	if c == nil {
		return
	}
	c.datagramsDropped.Add(1)
}

// ResponseSent records one outbound response frame of n bytes.
func (c *Collector) ResponseSent(n int) {
	if c == nil {
		return
	}
	c.responsesSent.Add(1)
	c.bytesOut.Add(int64(n))
}

// ClientRegistered records a newly assigned remote client id.
func (c *Collector) ClientRegistered() {
	if c == nil {
		return
	}
	c.clientsSeen.Add(1)
}

// AuthFailure records a rejected remote request.
func (c *Collector) AuthFailure() {
	if c == nil {
		return
	}
	c.authFailures.Add(1)
}

// DatagramsIn returns the number of datagrams received.
func (c *Collector) DatagramsIn() int64 {
	if c == nil {
		return 0
	}
	return c.datagramsIn.Load()
}

// ResponsesSent returns the number of response frames written.
func (c *Collector) ResponsesSent() int64 {
	if c == nil {
		return 0
	}
	return c.responsesSent.Load()
}

// AuthFailures returns the number of rejected remote requests.
func (c *Collector) AuthFailures() int64 {
	if c == nil {
		return 0
	}
	return c.authFailures.Load()
}

// ── Dispatcher ───────────────────────────────────────────────────────

// CommandCreated records a new history entry.
func (c *Collector) CommandCreated() {
	if c == nil {
		return
	}
	c.commandsCreated.Add(1)
}

// RequestHandled records one dispatched request of any kind.
func (c *Collector) RequestHandled() {
	if c == nil {
		return
	}
	c.requestsHandled.Add(1)
}

// CommandsCreated returns the lifetime number of history entries.
func (c *Collector) CommandsCreated() int64 {
	if c == nil {
		return 0
	}
	return c.commandsCreated.Load()
}

// RequestsHandled returns the lifetime number of dispatched requests.
func (c *Collector) RequestsHandled() int64 {
	if c == nil {
		return 0
	}
	return c.requestsHandled.Load()
}

// ── Errors ───────────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	DatagramsIn      int64  `json:"datagrams_in"`
	DatagramsDropped int64  `json:"datagrams_dropped"`
	BytesIn          int64  `json:"bytes_in"`
	BytesOut         int64  `json:"bytes_out"`
	ResponsesSent    int64  `json:"responses_sent"`
	AuthFailures     int64  `json:"auth_failures"`
	ClientsSeen      int64  `json:"clients_seen"`
	CommandsCreated  int64  `json:"commands_created"`
	RequestsHandled  int64  `json:"requests_handled"`
	ErrorsTotal      int64  `json:"errors_total"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:           time.Since(c.startTime).Truncate(time.Second).String(),
		DatagramsIn:      c.datagramsIn.Load(),
		DatagramsDropped: c.datagramsDropped.Load(),
		BytesIn:          c.bytesIn.Load(),
		BytesOut:         c.bytesOut.Load(),
		ResponsesSent:    c.responsesSent.Load(),
		AuthFailures:     c.authFailures.Load(),
		ClientsSeen:      c.clientsSeen.Load(),
		CommandsCreated:  c.commandsCreated.Load(),
		RequestsHandled:  c.requestsHandled.Load(),
		ErrorsTotal:      c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
