// Package lockbox is the HTTP client for the lockbox control protocol.
package lockbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single exchange with the device.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// Command describes one protocol route.
type Command struct {
	Name     string
	Method   string
	Path     string
	WantData bool
}

// Protocol routes.
var (
	CommandLock        = Command{Name: "lock", Method: http.MethodPost, Path: "/lock"}
	CommandUnlock      = Command{Name: "unlock", Method: http.MethodPost, Path: "/unlock"}
	CommandUpdate      = Command{Name: "update", Method: http.MethodPost, Path: "/update"}
	CommandGetSettings = Command{Name: "get settings", Method: http.MethodGet, Path: "/settings", WantData: true}
	CommandSetSetting  = Command{Name: "set setting", Method: http.MethodPost, Path: "/settings"}
)

// Client issues control commands to a lockbox. It never retries.
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient = &http.Client{Timeout: d} }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a Client.
func New(logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  "lockboxctl",
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lock locks the device with password.
func (c *Client) Lock(ctx context.Context, baseURL, password string) error {
	return c.expectSuccess(ctx, baseURL, CommandLock, url.Values{"password": {password}})
}

// Unlock unlocks the device. The device checks the password; the client
// sends it as given, even when empty.
func (c *Client) Unlock(ctx context.Context, baseURL, password string) error {
	return c.expectSuccess(ctx, baseURL, CommandUnlock, url.Values{"password": {password}})
}

// Update asks the device to update itself.
func (c *Client) Update(ctx context.Context, baseURL string) error {
	return c.expectSuccess(ctx, baseURL, CommandUpdate, nil)
}

// Settings returns the device configuration as raw JSON.
func (c *Client) Settings(ctx context.Context, baseURL string) (json.RawMessage, error) {
	resp, err := c.Do(ctx, baseURL, CommandGetSettings, nil)
	if err != nil {
		return nil, err
	}
	if resp.Kind == Failure {
		return nil, &CommandError{Command: CommandGetSettings.Name, Detail: resp.Detail}
	}
	return resp.Data, nil
}

// SetSetting changes one device setting. Invalid pairs fail with
// ErrInvalidSetting without contacting the device.
func (c *Client) SetSetting(ctx context.Context, baseURL, key, value string) error {
	if err := ValidateSetting(key, value); err != nil {
		return err
	}
	return c.expectSuccess(ctx, baseURL, CommandSetSetting, url.Values{key: {value}})
}

func (c *Client) expectSuccess(ctx context.Context, baseURL string, cmd Command, form url.Values) error {
	resp, err := c.Do(ctx, baseURL, cmd, form)
	if err != nil {
		return err
	}
	if resp.Kind == Failure {
		return &CommandError{Command: cmd.Name, Detail: resp.Detail}
	}
	return nil
}

// Do performs one exchange and returns the parsed response. A Failure
// response is returned without error; every error is a *TransportError.
func (c *Client) Do(ctx context.Context, baseURL string, cmd Command, form url.Values) (*Response, error) {
	target := strings.TrimRight(baseURL, "/") + cmd.Path
	fail := func(err error) (*Response, error) {
		return nil, &TransportError{Op: cmd.Method, URL: target, Err: err}
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, cmd.Method, target, body)
	if err != nil {
		return fail(fmt.Errorf("build request: %w", err))
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)

	log := c.logger.With(
		zap.String("command", cmd.Name),
		zap.String("url", target),
		zap.String("request_id", requestID),
	)
	log.Debug("sending command")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug("command transport failed", zap.Error(err))
		return fail(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fail(fmt.Errorf("read response: %w", err))
	}

	parsed, err := ParseResponse(data, cmd.WantData)
	if err != nil {
		log.Debug("malformed response",
			zap.Int("status", resp.StatusCode),
			zap.Error(err),
		)
		return fail(fmt.Errorf("status %d: %w", resp.StatusCode, err))
	}

	log.Debug("command answered",
		zap.Int("status", resp.StatusCode),
		zap.Stringer("result", parsed.Kind),
		zap.Duration("elapsed", time.Since(start)),
	)
	return parsed, nil
}
