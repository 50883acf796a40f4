// Package client implements the Janus RPC client: request construction,
// Manifest-aware validation, datagram transport, and reply correlation.
package client

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jowharshamshiri/janus/pkg/jsonrpc"
	"github.com/jowharshamshiri/janus/pkg/manifest"
	"github.com/jowharshamshiri/janus/pkg/security"
	"github.com/jowharshamshiri/janus/pkg/transport"
	"github.com/jowharshamshiri/janus/pkg/wire"
)

// CorrelationError is raised when a reply's request_id does not match
// the id of the request that was sent; the client discards the
// datagram and does not wait for another.
type CorrelationError struct {
	Expected, Actual string
}

func (e *CorrelationError) Error() string {
	return fmt.Sprintf("CORRELATION_MISMATCH: expected request_id %q, got %q", e.Expected, e.Actual)
}

// Config mirrors spec.md §6's enumerated client configuration.
type Config struct {
	SocketPath         string
	DefaultTimeout     time.Duration
	DatagramTimeout    time.Duration
	MaxMessageSize     int
	EnableValidation   bool
	ConnectionTimeout  time.Duration
	MaxPendingRequests int
	Channel            string // optional logical namespace identifier, name-validated
}

func (c *Config) applyDefaults() {
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = 30 * time.Second
	}
	if c.DatagramTimeout == 0 {
		c.DatagramTimeout = 5 * time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = transport.MaxDatagramSize
	}
	if c.ConnectionTimeout == 0 {
		c.ConnectionTimeout = 10 * time.Second
	}
	if c.MaxPendingRequests == 0 {
		c.MaxPendingRequests = 1000
	}
}

// Client is a Janus RPC client bound to one server socket path.
type Client struct {
	cfg       Config
	validator *security.Validator
	log       zerolog.Logger

	manifestMu sync.Mutex
	manifest   *manifest.Manifest
}

// New constructs a Client, eagerly validating its socket path (and
// optional channel identifier) via the security validator per spec.md
// §4.6.
func New(cfg Config, log zerolog.Logger) (*Client, error) {
	cfg.applyDefaults()
	v := security.NewValidator(security.DefaultConfig())
	if f := v.ValidateSocketPath(cfg.SocketPath); f != nil {
		return nil, f
	}
	if cfg.Channel != "" {
		if f := v.ValidateName(cfg.Channel, "channel"); f != nil {
			return nil, f
		}
	}
	if cfg.MaxMessageSize < 0 {
		return nil, fmt.Errorf("maxMessageSize must be non-negative")
	}
	return &Client{cfg: cfg, validator: v, log: log}, nil
}

// SendRequest sends name with args, awaits exactly one correlated
// reply or a timeout, and returns the parsed Response.
func (c *Client) SendRequest(name string, args map[string]interface{}, timeout time.Duration) (*wire.Response, error) {
	if timeout == 0 {
		timeout = c.cfg.DefaultTimeout
	}

	if c.cfg.EnableValidation && !manifest.ReservedRequestNames[name] {
		if err := c.validateAgainstManifest(name, args); err != nil {
			return nil, err
		}
	}

	id := uuid.New().String()
	reply, err := transport.Bind()
	if err != nil {
		return nil, fmt.Errorf("bind reply socket: %w", err)
	}
	defer reply.Close()

	req := &wire.Request{
		ID:        id,
		Request:   name,
		Args:      args,
		Timeout:   timeout.Seconds(),
		Timestamp: wire.Now(),
		ReplyTo:   reply.Path,
	}
	buf, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	c.log.Debug().Str("request", name).Str("id", id).Msg("sending request")
	if err := transport.Send(c.cfg.SocketPath, buf); err != nil {
		return nil, err
	}

	raw, err := reply.ReceiveOne(time.Now().Add(timeout))
	if err != nil {
		c.log.Warn().Str("request", name).Str("id", id).Msg("timed out awaiting reply")
		return nil, err
	}

	var resp wire.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.RequestID != id {
		return nil, &CorrelationError{Expected: id, Actual: resp.RequestID}
	}
	c.log.Debug().Str("request", name).Str("id", id).Bool("success", resp.Success).Msg("received reply")
	return &resp, nil
}

// SendRequestNoResponse sends name with args without a reply_to and
// does not wait for any reply.
func (c *Client) SendRequestNoResponse(name string, args map[string]interface{}) error {
	if c.cfg.EnableValidation && !manifest.ReservedRequestNames[name] {
		if err := c.validateAgainstManifest(name, args); err != nil {
			return err
		}
	}
	req := &wire.Request{
		ID:        uuid.New().String(),
		Request:   name,
		Args:      args,
		Timestamp: wire.Now(),
	}
	buf, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return transport.Send(c.cfg.SocketPath, buf)
}

// TestConnection sends a minimal probe request and reports reachability.
func (c *Client) TestConnection() bool {
	_, err := c.SendRequest("ping", nil, c.cfg.ConnectionTimeout)
	return err == nil
}

// Ping is a convenience wrapper sending "ping" with a fixed 10s timeout.
func (c *Client) Ping() (bool, error) {
	resp, err := c.SendRequest("ping", nil, 10*time.Second)
	if err != nil {
		return false, err
	}
	return resp.Success, nil
}

// FetchManifest fetches and caches the server's Manifest via the
// built-in "manifest" request, with a short fixed timeout. Subsequent
// calls return the cached value.
func (c *Client) FetchManifest() (*manifest.Manifest, error) {
	c.manifestMu.Lock()
	defer c.manifestMu.Unlock()
	if c.manifest != nil {
		return c.manifest, nil
	}
	resp, err := c.SendRequest("manifest", nil, 10*time.Second)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("server refused manifest request")
	}
	encoded, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("re-encode manifest result: %w", err)
	}
	m, err := manifest.ParseJSON(encoded)
	if err != nil {
		return nil, fmt.Errorf("parse fetched manifest: %w", err)
	}
	c.manifest = m
	return m, nil
}

func (c *Client) validateAgainstManifest(name string, args map[string]interface{}) error {
	m, err := c.FetchManifest()
	if err != nil {
		// A Manifest fetch failure (server unreachable, or a served
		// Manifest that does not parse) does not block the request; it is
		// sent without Manifest validation.
		return nil
	}
	spec := m.GetRequest(name)
	if spec == nil {
		return jsonrpc.New(jsonrpc.MethodNotFound, fmt.Sprintf("request %q is not declared by the manifest", name))
	}
	for argName, argSpec := range spec.Args {
		if argSpec.Required {
			if _, ok := args[argName]; !ok {
				return jsonrpc.New(jsonrpc.InvalidParams, fmt.Sprintf("missing required argument %q", argName))
			}
		}
	}
	return nil
}
