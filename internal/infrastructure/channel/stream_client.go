// Package channel implements the remote event source port over the delivery
// channel's HTTP API: a REST snapshot endpoint, a PATCH endpoint for partial
// updates, and a server-sent-events stream for live notifications.
package channel

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chefware/backoffice/internal/domain/channel"
)

// maxResponseSize limits response bodies to prevent memory exhaustion
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// StreamClient talks to the delivery channel's keyed order collection
type StreamClient struct {
	baseURL        string
	path           string
	authToken      string
	reconnectDelay time.Duration
	httpClient     *http.Client
	logger         *zap.Logger
}

// StreamClientOption is a functional option for configuring the client
type StreamClientOption func(*StreamClient)

// WithStreamLogger sets the logger for the client
func WithStreamLogger(logger *zap.Logger) StreamClientOption {
	return func(c *StreamClient) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(client *http.Client) StreamClientOption {
	return func(c *StreamClient) {
		c.httpClient = client
	}
}

// WithReconnectDelay sets the wait between stream reconnect attempts
func WithReconnectDelay(delay time.Duration) StreamClientOption {
	return func(c *StreamClient) {
		c.reconnectDelay = delay
	}
}

// NewStreamClient creates a client for the channel API rooted at baseURL.
// path is the collection path, e.g. "orders".
func NewStreamClient(baseURL, path, authToken string, timeout time.Duration, opts ...StreamClientOption) *StreamClient {
	c := &StreamClient{
		baseURL:        strings.TrimRight(baseURL, "/"),
		path:           strings.Trim(path, "/"),
		authToken:      authToken,
		reconnectDelay: 5 * time.Second,
		httpClient:     &http.Client{Timeout: timeout},
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// streamEvent is the wire shape of one SSE data frame
type streamEvent struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Subscribe attaches to the live event stream. Cancelling the returned
// subscription closes the underlying connection; no events are delivered
// after Cancel returns.
func (c *StreamClient) Subscribe(ctx context.Context) (*channel.Subscription, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	events := make(chan channel.RawEvent, 64)

	go c.streamLoop(streamCtx, events)

	return channel.NewSubscription(events, cancel), nil
}

// streamLoop keeps the SSE connection alive, reconnecting after transient
// failures until the context is cancelled
func (c *StreamClient) streamLoop(ctx context.Context, events chan<- channel.RawEvent) {
	defer close(events)

	for {
		if err := c.consumeStream(ctx, events); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("event stream disconnected, reconnecting",
				zap.Duration("delay", c.reconnectDelay),
				zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectDelay):
		}
	}
}

// consumeStream opens one SSE connection and forwards its events
func (c *StreamClient) consumeStream(ctx context.Context, events chan<- channel.RawEvent) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.collectionURL()+"/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	c.authorize(req)

	// The stream is long-lived; the configured client timeout would kill it
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("channel: stream connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("channel: stream returned status %d", resp.StatusCode)
	}

	c.logger.Info("event stream connected")

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var eventName string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			c.dispatch(ctx, events, eventName, data)
		case line == "":
			eventName = ""
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("channel: stream read: %w", err)
	}
	return fmt.Errorf("channel: stream closed by server")
}

// dispatch converts one SSE frame into a RawEvent
func (c *StreamClient) dispatch(ctx context.Context, events chan<- channel.RawEvent, eventName, data string) {
	var kind channel.EventKind
	switch eventName {
	case "added", "put":
		kind = channel.EventAdded
	case "changed", "patch":
		kind = channel.EventChanged
	case "removed", "delete":
		kind = channel.EventRemoved
	case "keep-alive", "":
		return
	default:
		c.logger.Debug("ignoring unknown stream event", zap.String("event", eventName))
		return
	}

	var frame streamEvent
	if err := json.Unmarshal([]byte(data), &frame); err != nil {
		c.logger.Warn("malformed stream frame", zap.Error(err))
		return
	}
	if frame.Key == "" {
		return
	}

	select {
	case events <- channel.RawEvent{Key: frame.Key, Kind: kind, Payload: frame.Value}:
	case <-ctx.Done():
	}
}

// Snapshot performs a one-shot full read of the order collection
func (c *StreamClient) Snapshot(ctx context.Context) (map[string]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.collectionURL(), nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("channel: snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("channel: snapshot returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("channel: snapshot read: %w", err)
	}

	// A null body means an empty collection
	if len(bytes.TrimSpace(body)) == 0 || bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return map[string]json.RawMessage{}, nil
	}

	var snapshot map[string]json.RawMessage
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("channel: snapshot decode: %w", err)
	}
	return snapshot, nil
}

// UpdateFields writes a partial-path update to a single item
func (c *StreamClient) UpdateFields(ctx context.Context, key string, fields map[string]any) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("channel: encode update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch,
		c.collectionURL()+"/"+key, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("channel: update %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("channel: update %s returned status %d", key, resp.StatusCode)
	}
	return nil
}

func (c *StreamClient) collectionURL() string {
	return c.baseURL + "/" + c.path
}

func (c *StreamClient) authorize(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}

// Ensure StreamClient implements the event source port
var _ channel.EventSource = (*StreamClient)(nil)
