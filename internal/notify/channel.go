package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"novacore.dev/internal/ids"
	"novacore.dev/internal/obs"
)

// State is the realtime connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Dialer opens one transport attempt and returns the event stream body.
type Dialer func(ctx context.Context) (io.ReadCloser, error)

// HTTPDialer returns a Dialer that opens a server-sent-events stream.
// token is consulted on every attempt so a refreshed credential is
// picked up across reconnects.
func HTTPDialer(hc *http.Client, url string, token func() string) Dialer {
	if hc == nil {
		hc = http.DefaultClient
	}
	return func(ctx context.Context) (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Cache-Control", "no-cache")
		if t := token(); t != "" {
			req.Header.Set("Authorization", "Bearer "+t)
		}
		resp, err := hc.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("stream endpoint returned %d", resp.StatusCode)
		}
		return resp.Body, nil
	}
}

// Channel maintains the realtime connection for one identity session:
// it dials, parses envelopes into the feed, and reconnects with capped
// jittered backoff until its context is cancelled.
type Channel struct {
	dial   Dialer
	feed   *Feed
	alerts *AlertManager
	log    *zap.SugaredLogger
	boff   *backoff.Backoff
	state  atomic.Int32
}

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// WithChannelLogger sets the channel logger.
func WithChannelLogger(log *zap.SugaredLogger) ChannelOption {
	return func(c *Channel) {
		if log != nil {
			c.log = log.Named("channel")
		}
	}
}

// WithAlerts attaches the native alert manager.
func WithAlerts(m *AlertManager) ChannelOption {
	return func(c *Channel) { c.alerts = m }
}

// WithReconnectRange overrides the reconnect delay bounds.
func WithReconnectRange(min, max time.Duration) ChannelOption {
	return func(c *Channel) {
		if min > 0 {
			c.boff.Min = min
		}
		if max >= c.boff.Min {
			c.boff.Max = max
		}
	}
}

// NewChannel builds a channel over the given transport, feeding the
// given feed.
func NewChannel(dial Dialer, feed *Feed, opts ...ChannelOption) *Channel {
	c := &Channel{
		dial: dial,
		feed: feed,
		log:  zap.NewNop().Sugar(),
		boff: &backoff.Backoff{
			Min:    5 * time.Second,
			Max:    time.Minute,
			Factor: 2,
			Jitter: true,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current connection state.
func (c *Channel) State() State {
	return State(c.state.Load())
}

// Run drives the connection until ctx is cancelled. Transport faults are
// never surfaced; they schedule a reconnect. Cancellation wins any race
// with a pending reconnect timer and forces the disconnected state.
func (c *Channel) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}
		c.setState(StateConnecting)

		body, err := c.dial(ctx)
		if err != nil {
			c.setState(StateError)
			c.log.Warnw("stream connect failed", "err", err)
		} else {
			c.setState(StateOpen)
			c.boff.Reset()

			done := make(chan struct{})
			go func() {
				select {
				case <-ctx.Done():
					body.Close()
				case <-done:
				}
			}()
			err = c.consume(body)
			close(done)
			body.Close()

			if ctx.Err() != nil {
				c.setState(StateDisconnected)
				return
			}
			c.setState(StateClosed)
			c.log.Infow("stream closed, scheduling reconnect", "err", err)
		}

		obs.ChannelReconnects.Inc()
		select {
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return
		case <-time.After(c.boff.Duration()):
		}
	}
}

// consume reads SSE frames until the stream ends. Lines other than data
// and comments are ignored; consecutive data lines are joined per the
// SSE framing rules.
func (c *Channel) consume(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var data []byte
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				c.dispatch(data)
				data = nil
			}
		case strings.HasPrefix(line, ":"):
			// keep-alive comment
		case strings.HasPrefix(line, "data:"):
			if len(data) > 0 {
				data = append(data, '\n')
			}
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")...)
		}
	}
	if len(data) > 0 {
		c.dispatch(data)
	}
	return sc.Err()
}

// dispatch handles one envelope. Malformed frames are logged and
// dropped; they never terminate the stream.
func (c *Channel) dispatch(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		obs.ChannelEvents.WithLabelValues("malformed").Inc()
		c.log.Warnw("malformed stream frame", "err", err)
		return
	}
	if env.Type != EnvelopeNotification {
		obs.ChannelEvents.WithLabelValues("ignored").Inc()
		return
	}

	var n Notification
	if err := json.Unmarshal(env.Payload, &n); err != nil {
		obs.ChannelEvents.WithLabelValues("malformed").Inc()
		c.log.Warnw("malformed notification payload", "err", err)
		return
	}
	if n.ID == "" {
		n.ID = ids.New()
	}

	c.feed.Push(n)
	if c.alerts != nil {
		c.alerts.Notify(n)
	}
	obs.ChannelEvents.WithLabelValues("handled").Inc()
}

func (c *Channel) setState(s State) {
	c.state.Store(int32(s))
}
