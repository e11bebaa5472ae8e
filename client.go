package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Endpoints under the API base path
const (
	EndpointLogin            = "/login"
	EndpointRegister         = "/register"
	EndpointRefresh          = "/refresh"
	EndpointLogout           = "/logout"
	EndpointStatus           = "/status"
	EndpointPassword         = "/user/password"
	EndpointPayments         = "/payments"
	EndpointDashboardSummary = "/dashboard/summary"
	EndpointDashboardChart   = "/dashboard/chart"
)

// HeaderRequestID carries a per request identifier
const HeaderRequestID = "X-Request-ID"

// Client talks to the remote auth/resource service.
type Client struct {
	cfg      Config
	baseURL  string
	http     *http.Client
	anon     *http.Client
	jar      http.CookieJar
	tokens   TokenSource
	logger   Logger
	observer Observer
	newID    func() string
}

// ClientOption customizes Client construction.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying http client. In cookie mode its jar is
// used unless WithCookieJar is also given.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithCookieJar sets the jar used in cookie mode, e.g. a PersistentJar.
func WithCookieJar(jar http.CookieJar) ClientOption {
	return func(c *Client) {
		if jar != nil {
			c.jar = jar
		}
	}
}

// WithTokenSource provides the bearer token in token mode.
func WithTokenSource(ts TokenSource) ClientOption {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithClientLogger overrides the logger.
func WithClientLogger(logger Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers request telemetry.
func WithObserver(o Observer) ClientOption {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithRequestIDGenerator overrides how X-Request-ID values are built.
func WithRequestIDGenerator(fn func() string) ClientOption {
	return func(c *Client) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// NewClient builds a client for cfg.Mode. Token mode needs a TokenSource
// before authenticated calls can succeed, Store wires itself as one.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, NewValidationError(err)
	}

	c := &Client{
		cfg:      cfg,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{},
		logger:   defLogger{},
		observer: noopObserver{},
		newID:    func() string { return uuid.NewString() },
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	// never mutate a caller supplied client
	authed := *c.http
	anon := *c.http
	anon.Jar = nil

	if cfg.Mode == TransportCookie {
		if c.jar == nil {
			c.jar = c.http.Jar
		}
		if c.jar == nil {
			jar, err := cookiejar.New(nil)
			if err != nil {
				return nil, errors.Wrap(err, "create cookie jar")
			}
			c.jar = jar
		}
		authed.Jar = c.jar
	} else {
		authed.Jar = nil
	}

	c.http = &authed
	c.anon = &anon

	return c, nil
}

// Mode returns the active transport mode
func (c *Client) Mode() TransportMode {
	return c.cfg.Mode
}

// Config returns the effective configuration
func (c *Client) Config() Config {
	return c.cfg
}

// Jar returns the cookie jar in cookie mode, nil otherwise
func (c *Client) Jar() http.CookieJar {
	if c.cfg.Mode != TransportCookie {
		return nil
	}
	return c.jar
}

// SetTokenSource wires the bearer token provider after construction
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

// Login posts credentials. In cookie mode the session cookie lands in the jar.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResponse, error) {
	out := &LoginResponse{}
	err := c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: EndpointLogin,
		payload:  creds,
		client:   c.http,
	}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Register posts credentials without any proof of authentication.
func (c *Client) Register(ctx context.Context, creds Credentials) (*MessageResponse, error) {
	out := &MessageResponse{}
	err := c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: EndpointRegister,
		payload:  creds,
		client:   c.anon,
	}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Refresh asks the server to rotate the session cookie. The body is ignored.
func (c *Client) Refresh(ctx context.Context) error {
	err := c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: EndpointRefresh,
		client:   c.http,
	}, nil)
	c.observer.ObserveRefresh(err == nil)
	return err
}

// Logout is best effort, failures are logged and swallowed.
func (c *Client) Logout(ctx context.Context) {
	err := c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: EndpointLogout,
		auth:     true,
		client:   c.http,
	}, nil)
	if err != nil {
		c.logger.Debug("logout request failed, ignoring", "error", err)
	}
}

// GetStatus reads the protected status endpoint
func (c *Client) GetStatus(ctx context.Context) (*StatusResponse, error) {
	out := &StatusResponse{}
	if err := c.authed(ctx, http.MethodGet, EndpointStatus, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ChangePassword updates the secret of the current identity
func (c *Client) ChangePassword(ctx context.Context, payload PasswordChange) (*MessageResponse, error) {
	out := &MessageResponse{}
	if err := c.authed(ctx, http.MethodPut, EndpointPassword, payload, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPayments lists payments
func (c *Client) GetPayments(ctx context.Context) ([]Payment, error) {
	var out []Payment
	if err := c.authed(ctx, http.MethodGet, EndpointPayments, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDashboardSummary reads dashboard totals
func (c *Client) GetDashboardSummary(ctx context.Context) (*DashboardSummary, error) {
	out := &DashboardSummary{}
	if err := c.authed(ctx, http.MethodGet, EndpointDashboardSummary, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetChartData reads the dashboard chart series
func (c *Client) GetChartData(ctx context.Context) ([]ChartPoint, error) {
	var out []ChartPoint
	if err := c.authed(ctx, http.MethodGet, EndpointDashboardChart, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type request struct {
	method   string
	endpoint string
	payload  any
	auth     bool
	client   *http.Client
}

func (c *Client) authed(ctx context.Context, method, endpoint string, payload, out any) error {
	return c.do(ctx, request{
		method:   method,
		endpoint: endpoint,
		payload:  payload,
		auth:     true,
		client:   c.http,
	}, out)
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	var body []byte
	if req.payload != nil {
		b, err := json.Marshal(req.payload)
		if err != nil {
			return errors.Wrapf(err, "encode %s payload", req.endpoint)
		}
		body = b
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	resp, err := c.send(ctx, req, body)
	if err != nil {
		return err
	}

	if req.auth && c.cfg.Mode == TransportCookie && resp.StatusCode == http.StatusUnauthorized {
		drain(resp)

		c.logger.Debug("unauthorized response, refreshing session", "endpoint", req.endpoint)
		if rerr := c.Refresh(ctx); rerr != nil {
			c.logger.Debug("session refresh failed", "error", rerr)
		}

		// single retry, its outcome is final
		resp, err = c.send(ctx, req, body)
		if err != nil {
			return err
		}
	}

	return c.handleResponse(req, resp, out)
}

func (c *Client) send(ctx context.Context, req request, body []byte) (*http.Response, error) {
	url := c.baseURL + req.endpoint

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, url, reader)
	if err != nil {
		return nil, &NetworkError{Op: req.method, URL: url, Err: err}
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(HeaderRequestID, c.newID())
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if req.auth && c.cfg.Mode == TransportToken && c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	started := time.Now()
	resp, err := req.client.Do(httpReq)
	if err != nil {
		c.observer.ObserveRequest(req.endpoint, req.method, 0, time.Since(started))
		return nil, &NetworkError{Op: req.method, URL: url, Err: err}
	}
	c.observer.ObserveRequest(req.endpoint, req.method, resp.StatusCode, time.Since(started))

	return resp, nil
}

func (c *Client) handleResponse(req request, resp *http.Response, out any) error {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: "read", URL: c.baseURL + req.endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &envelope)

		msg := strings.TrimSpace(envelope.Message)
		if msg == "" {
			msg = DefaultErrorMessage
		}

		return &AuthError{
			StatusCode: resp.StatusCode,
			Message:    msg,
			Endpoint:   req.endpoint,
		}
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(ErrUnableToParseData, "%s %s: %v", req.method, req.endpoint, err)
	}

	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
