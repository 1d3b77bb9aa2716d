package qobuz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
	"github.com/vitiko98/mopidy-qobuz/backend"
	"github.com/vitiko98/mopidy-qobuz/backend/platform"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://www.qobuz.com/api.json/0.2"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/95.0.4638.69 Safari/537.36"

	defaultTimeout = 15 * time.Second
	maxReplySize   = 16 << 20
)

// Options configures a Client.
type Options struct {
	AppID     string
	Secret    string
	BaseURL   string
	UserAgent string
	Timeout   time.Duration

	// Catalogue GETs are retried; signed and mutating calls never are.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// RateLimit is the number of outbound requests per second. Zero disables limiting.
	RateLimit float64
	RateBurst int

	Transport http.RoundTripper
	Logger    backend.Logger

	// OnSession is called after every successful login.
	OnSession func(token, membership string)

	Now func() time.Time
}

// Client provides resilient Qobuz API calls.
type Client struct {
	appID     string
	secret    string
	baseURL   string
	userAgent string
	retry     *retryablehttp.Client
	single    *http.Client
	breaker   *gobreaker.CircuitBreaker
	limiter   *rate.Limiter
	logger    backend.Logger
	now       func() time.Time
	onSession func(token, membership string)

	mu         sync.RWMutex
	token      string
	membership string
	username   string
	password   string
	loginMu    sync.Mutex
}

type rawReply struct {
	status int
	body   []byte
}

// NewClient creates a Qobuz client with retry, circuit breaker and rate limiting.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.AppID) == "" {
		return nil, fmt.Errorf("qobuz: app_id required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RetryMax < 0 {
		opts.RetryMax = 0
	}
	if opts.RetryWaitMin <= 0 {
		opts.RetryWaitMin = 200 * time.Millisecond
	}
	if opts.RetryWaitMax < opts.RetryWaitMin {
		opts.RetryWaitMax = 2 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	httpClient := &http.Client{Timeout: opts.Timeout, Transport: opts.Transport}

	retry := retryablehttp.NewClient()
	retry.HTTPClient = httpClient
	retry.RetryMax = opts.RetryMax
	retry.RetryWaitMin = opts.RetryWaitMin
	retry.RetryWaitMax = opts.RetryWaitMax
	retry.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retry.Logger = nil

	settings := gobreaker.Settings{
		Name:        "qobuz-api",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		appID:     strings.TrimSpace(opts.AppID),
		secret:    strings.TrimSpace(opts.Secret),
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		userAgent: opts.UserAgent,
		retry:     retry,
		single:    httpClient,
		breaker:   gobreaker.NewCircuitBreaker(settings),
		limiter:   limiter,
		logger:    opts.Logger,
		now:       opts.Now,
		onSession: opts.OnSession,
	}, nil
}

// Login authenticates with email and password and stores the user auth token.
func (c *Client) Login(ctx context.Context, username, password string) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	return c.login(ctx, username, password)
}

func (c *Client) login(ctx context.Context, username, password string) error {
	const endpoint = "user/login"
	params := url.Values{
		"email":    {username},
		"password": {password},
		"app_id":   {c.appID},
	}
	reply, err := c.send(ctx, http.MethodGet, endpoint, params, true)
	if err != nil {
		return fmt.Errorf("qobuz: %s: %w", endpoint, err)
	}
	switch reply.status {
	case http.StatusUnauthorized:
		return &APIError{Endpoint: endpoint, Status: reply.status, Message: replyMessage(reply.body), kind: ErrAuthentication}
	case http.StatusBadRequest:
		return &APIError{Endpoint: endpoint, Status: reply.status, Message: replyMessage(reply.body), kind: ErrInvalidAppID}
	}
	if err := errorForStatus(endpoint, reply.status, reply.body); err != nil {
		return err
	}

	var result loginReply
	if err := json.Unmarshal(reply.body, &result); err != nil {
		return fmt.Errorf("qobuz: decode login reply: %w", err)
	}
	if result.UserAuthToken == "" {
		return fmt.Errorf("%w: login reply carries no token", ErrAuthentication)
	}

	membership := result.membership()
	c.mu.Lock()
	c.token = result.UserAuthToken
	c.membership = membership
	c.username = username
	c.password = password
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Info("logged in to qobuz", "membership", membership)
	}
	if c.onSession != nil {
		c.onSession(result.UserAuthToken, membership)
	}
	return nil
}

// RestoreSession reuses a token from a previous login. Credentials, when
// given, let the client log in again if the token was revoked.
func (c *Client) RestoreSession(token, membership, username, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.membership = membership
	c.username = username
	c.password = password
}

// Session returns the current token and membership label.
func (c *Client) Session() (token, membership string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.membership
}

// Membership returns the subscription label of the logged in user.
func (c *Client) Membership() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.membership
}

// LoggedIn reports whether a user auth token is set.
func (c *Client) LoggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

// Get performs a catalogue GET and decodes the JSON reply into out.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values, out any) error {
	body, err := c.call(ctx, http.MethodGet, endpoint, params, true)
	if err != nil {
		return err
	}
	return decodeReply(endpoint, body, out)
}

// Post sends a form to endpoint. Mutations are not retried.
func (c *Client) Post(ctx context.Context, endpoint string, form url.Values, out any) error {
	body, err := c.call(ctx, http.MethodPost, endpoint, form, false)
	if err != nil {
		return err
	}
	return decodeReply(endpoint, body, out)
}

func decodeReply(endpoint string, body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("qobuz: decode %s: %w", endpoint, err)
	}
	return nil
}

// call sends a request and maps the status. A 401 triggers one re-login when
// credentials are known.
func (c *Client) call(ctx context.Context, method, endpoint string, params url.Values, retrying bool) ([]byte, error) {
	reply, err := c.send(ctx, method, endpoint, params, retrying)
	if err != nil {
		return nil, fmt.Errorf("qobuz: %s: %w", endpoint, err)
	}
	if reply.status == http.StatusUnauthorized && c.relogin(ctx) {
		reply, err = c.send(ctx, method, endpoint, params, retrying)
		if err != nil {
			return nil, fmt.Errorf("qobuz: %s: %w", endpoint, err)
		}
	}
	if err := errorForStatus(endpoint, reply.status, reply.body); err != nil {
		if c.logger != nil {
			c.logger.Debug("qobuz call failed", "endpoint", endpoint, "status", reply.status, "error", err)
		}
		return nil, err
	}
	return reply.body, nil
}

func (c *Client) relogin(ctx context.Context) bool {
	c.mu.RLock()
	username, password := c.username, c.password
	c.mu.RUnlock()
	if username == "" || password == "" {
		return false
	}

	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	if err := c.login(ctx, username, password); err != nil {
		if c.logger != nil {
			c.logger.Warn("qobuz re-login failed", "error", err)
		}
		return false
	}
	return true
}

// send performs one request through the rate limiter and the circuit breaker.
// Any HTTP status is returned as a reply; errors are transport level only.
func (c *Client) send(ctx context.Context, method, endpoint string, params url.Values, retrying bool) (*rawReply, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	if c.logger != nil {
		c.logger.Debug("qobuz call", "method", method, "endpoint", endpoint)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		reply, err := c.roundTrip(ctx, method, endpoint, params, retrying)
		if err != nil {
			return nil, err
		}
		if reply.status >= http.StatusInternalServerError {
			return reply, errorForStatus(endpoint, reply.status, reply.body)
		}
		return reply, nil
	})
	if reply, ok := out.(*rawReply); ok && reply != nil {
		return reply, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", platform.ErrUnavailable, err)
	}
	return nil, err
}

func (c *Client) roundTrip(ctx context.Context, method, endpoint string, params url.Values, retrying bool) (*rawReply, error) {
	req, err := c.newRequest(ctx, method, endpoint, params)
	if err != nil {
		return nil, err
	}

	var resp *http.Response
	if retrying {
		rreq, err := retryablehttp.FromRequest(req)
		if err != nil {
			return nil, err
		}
		resp, err = c.retry.Do(rreq)
		if err != nil {
			return nil, err
		}
	} else {
		resp, err = c.single.Do(req)
		if err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	return &rawReply{status: resp.StatusCode, body: body}, nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, params url.Values) (*http.Request, error) {
	target := c.baseURL + "/" + strings.TrimPrefix(endpoint, "/")

	var body io.Reader
	if method == http.MethodGet {
		if len(params) > 0 {
			target += "?" + params.Encode()
		}
	} else {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-App-Id", c.appID)
	req.Header.Set("Accept", "application/json")
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token, _ := c.Session(); token != "" {
		req.Header.Set("X-User-Auth-Token", token)
	}
	return req, nil
}
