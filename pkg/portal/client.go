/*-
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package portal drives the eportal captive-portal login protocol.
package portal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/mfreeman451/portalwatch/pkg/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const (
	defaultCheckTimeout   = 5 * time.Second
	defaultRequestTimeout = 8 * time.Second
	maxBodySize           = 1 << 20

	successMarker = "success.jsp"
	infoPath      = "/eportal/InterFace.do"

	msgAuthenticated = "authenticated"
	msgAlreadyOnline = "already online"
	msgLoggedOut     = "logged out"
)

var logger = logrus.WithField("module", "portal")

// Options configures a Client.
type Options struct {
	// GatewayURL is the internal address that either lands on success.jsp or
	// serves the redirect page carrying the queryString token.
	GatewayURL string
	// InterfaceURL is the InterFace.do endpoint used for login and logout.
	InterfaceURL   string
	UserAgent      string
	CheckTimeout   time.Duration
	RequestTimeout time.Duration
	// Limiter paces every request to the portal. Nil uses a default.
	Limiter    *rate.Limiter
	HTTPClient *http.Client
}

// LoginRequest carries everything one login attempt needs.
type LoginRequest struct {
	Credentials models.Credentials
	Carrier     models.Carrier
	// PreLoginLogout clears any server-side session first. The portal keeps
	// one session per account and rejects a new login while an old one lives.
	PreLoginLogout bool
}

// Outcome is the portal's verdict on a login or logout.
type Outcome struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	UserIndex string `json:"user_index,omitempty"`
}

// Client holds one portal session. It is meant to be driven by a single
// goroutine; State may be read from anywhere.
type Client struct {
	opts    Options
	http    *http.Client
	limiter *rate.Limiter

	mu          sync.RWMutex
	state       models.AuthState
	sessionInfo *Response
}

// NewClient creates a Client with its own cookie jar.
func NewClient(opts Options) (*Client, error) {
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = defaultCheckTimeout
	}

	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}

	opts.GatewayURL = strings.TrimRight(opts.GatewayURL, "/")

	hc := opts.HTTPClient
	if hc == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}

		hc = &http.Client{Jar: jar}
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(200*time.Millisecond), 8)
	}

	return &Client{
		opts:    opts,
		http:    hc,
		limiter: limiter,
	}, nil
}

// State returns the last observed authentication state.
func (c *Client) State() models.AuthState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state
}

func (c *Client) setState(s models.AuthState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// CheckAuthenticated asks the gateway whether this host is already let
// through. Transport failures are returned, not folded into false.
func (c *Client) CheckAuthenticated(ctx context.Context) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.opts.GatewayURL, "")
	if err != nil {
		return false, err
	}

	resp, _, err := c.do(req, c.opts.CheckTimeout)
	if err != nil {
		return false, fmt.Errorf("auth check: %w", err)
	}

	online := strings.Contains(resp.Request.URL.String(), successMarker)
	if online {
		c.setState(models.AuthOnline)
	} else {
		c.setState(models.AuthOffline)
	}

	return online, nil
}

// Login runs the full handshake: optional pre-login logout, state refresh,
// token scrape, credential POST.
func (c *Client) Login(ctx context.Context, lr LoginRequest) (Outcome, error) {
	if lr.Credentials.Empty() {
		return Outcome{Message: ErrEmptyCredentials.Error()}, ErrEmptyCredentials
	}

	if lr.PreLoginLogout {
		if out, err := c.Logout(ctx); err != nil {
			logger.WithError(err).Debug("Pre-login logout skipped")
		} else {
			logger.WithField("message", out.Message).Debug("Pre-login logout done")
		}

		c.setState(models.AuthUnknown)
	}

	if c.State() == models.AuthUnknown {
		if _, err := c.CheckAuthenticated(ctx); err != nil {
			return Outcome{Message: err.Error()}, err
		}
	}

	if c.State() == models.AuthOnline {
		return Outcome{Success: true, Message: msgAlreadyOnline}, nil
	}

	queryString, err := c.fetchQueryString(ctx)
	if err != nil {
		return Outcome{Message: err.Error()}, err
	}

	if queryString == "" {
		logger.Warn("No queryString found on the gateway page; submitting without it")
	}

	body := encodeForm([]formField{
		{"userId", lr.Credentials.Identity},
		{"password", lr.Credentials.Secret},
		{"service", lr.Carrier.ServiceCode()},
		{"operatorPwd", ""},
		{"operatorUserId", ""},
		{"validcode", ""},
		{"passwordEncrypt", "False"},
		{"queryString", queryString},
	})

	resp, err := c.postInterface(ctx, "login", body)
	if err != nil {
		return Outcome{Message: err.Error()}, fmt.Errorf("login: %w", err)
	}

	token, _ := resp.Token()

	if !resp.Succeeded() {
		c.setState(models.AuthOffline)

		return Outcome{Message: resp.MessageOr("login rejected"), UserIndex: token}, nil
	}

	c.setState(models.AuthOnline)

	return Outcome{Success: true, Message: msgAuthenticated, UserIndex: token}, nil
}

// Logout ends the current portal session. Cached session info is dropped
// after every attempt, successful or not.
func (c *Client) Logout(ctx context.Context) (Outcome, error) {
	defer c.dropSessionInfo()

	info := c.cachedSessionInfo()
	if info == nil {
		fetched, err := c.FetchSessionInfo(ctx)
		if err != nil {
			return Outcome{Message: err.Error()}, fmt.Errorf("%w: %w", ErrNoSessionToken, err)
		}

		info = fetched
	}

	token, ok := info.Token()
	if !ok {
		return Outcome{Message: ErrNoSessionToken.Error()}, ErrNoSessionToken
	}

	resp, err := c.postInterface(ctx, "logout", encodeForm([]formField{{"userIndex", token}}))
	if err != nil {
		return Outcome{Message: err.Error()}, fmt.Errorf("logout: %w", err)
	}

	if !resp.Succeeded() {
		return Outcome{Message: resp.MessageOr("logout rejected"), UserIndex: token}, nil
	}

	c.setState(models.AuthOffline)

	return Outcome{Success: true, Message: msgLoggedOut, UserIndex: token}, nil
}

// FetchSessionInfo loads the online-user descriptor and caches it for the
// next logout.
func (c *Client) FetchSessionInfo(ctx context.Context) (*Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.opts.GatewayURL+infoPath+"?method=getOnlineUserInfo", "")
	if err != nil {
		return nil, err
	}

	_, body, err := c.do(req, c.opts.CheckTimeout)
	if err != nil {
		return nil, fmt.Errorf("session info: %w", err)
	}

	info, err := ParseResponse(body)
	if err != nil {
		return nil, fmt.Errorf("session info: %w", err)
	}

	c.mu.Lock()
	c.sessionInfo = info
	c.mu.Unlock()

	return info, nil
}

func (c *Client) cachedSessionInfo() *Response {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.sessionInfo
}

func (c *Client) dropSessionInfo() {
	c.mu.Lock()
	c.sessionInfo = nil
	c.mu.Unlock()
}

func (c *Client) fetchQueryString(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.opts.GatewayURL, "")
	if err != nil {
		return "", err
	}

	_, body, err := c.do(req, c.opts.CheckTimeout)
	if err != nil {
		return "", fmt.Errorf("token fetch: %w", err)
	}

	return extractQueryString(string(body)), nil
}

func (c *Client) postInterface(ctx context.Context, method, form string) (*Response, error) {
	req, err := c.newRequest(ctx, http.MethodPost, c.opts.InterfaceURL+"?method="+method, form)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	_, body, err := c.do(req, c.opts.RequestTimeout)
	if err != nil {
		return nil, err
	}

	return ParseResponse(body)
}

func (c *Client) newRequest(ctx context.Context, method, target, form string) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if form != "" {
		body = strings.NewReader(form)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	return req, nil
}

// do paces, sends and fully reads one request under its own timeout.
func (c *Client) do(req *http.Request, timeout time.Duration) (*http.Response, []byte, error) {
	ctx, cancel := context.WithTimeout(req.Context(), timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, nil, fmt.Errorf("%w %d from %s", errUnexpectedStatus, resp.StatusCode, req.URL.Path)
	}

	return resp, body, nil
}
