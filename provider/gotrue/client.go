package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/provider"
	"github.com/MrEthical07/goSession/session"
)

// ErrMissingBaseURL is returned by New when Config.BaseURL is empty.
var ErrMissingBaseURL = errors.New("gotrue: base url is required")

// Config configures a [Client].
type Config struct {
	// BaseURL is the auth server root, for example
	// https://project.supabase.co/auth/v1.
	BaseURL string
	// APIKey is sent as the apikey header on every request.
	APIKey string
	// ServiceKey authorizes admin calls. DeleteUser fails without it.
	ServiceKey string
	// HTTPClient defaults to a client with a 15s timeout.
	HTTPClient *http.Client
	// Cache keeps the session across restarts. Defaults to a MemoryCache.
	Cache session.Cache
	// Verifier, when set, checks the signature of every access token the
	// server returns. Sessions that fail are rejected.
	Verifier *jwt.Manager
	// RefreshAttempts bounds token refresh calls on network errors.
	RefreshAttempts int
	RefreshBackoff  time.Duration
	Now             func() time.Time
	Logger          *slog.Logger
}

// Client is a [provider.Gateway] backed by a GoTrue-compatible REST API.
// It holds one session at a time. Events are delivered synchronously on the
// calling goroutine after the client's lock is released.
type Client struct {
	cfg    Config
	base   *url.URL
	http   *http.Client
	cache  session.Cache
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	current *session.Session
	loaded  bool
	subs    map[int]func(provider.Event)
	nextSub int
}

var _ provider.Gateway = (*Client)(nil)

// New validates cfg and returns a client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrMissingBaseURL
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("gotrue: parse base url: %w", err)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Cache == nil {
		cfg.Cache = session.NewMemoryCache()
	}
	if cfg.RefreshAttempts <= 0 {
		cfg.RefreshAttempts = 3
	}
	if cfg.RefreshBackoff <= 0 {
		cfg.RefreshBackoff = 200 * time.Millisecond
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		base:   base,
		http:   cfg.HTTPClient,
		cache:  cfg.Cache,
		now:    cfg.Now,
		logger: cfg.Logger,
		subs:   make(map[int]func(provider.Event)),
	}, nil
}

// GetSession returns the held session, restoring it from the cache on first
// use. A restored session whose access token has expired is refreshed.
func (c *Client) GetSession(ctx context.Context) (*session.Session, error) {
	c.mu.Lock()
	if c.loaded {
		out := c.current.Clone()
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	restored, err := c.cache.Load(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "session cache load failed", "error", err)
		restored = nil
	}

	c.mu.Lock()
	if !c.loaded {
		c.current = restored
		c.loaded = true
	}
	out := c.current.Clone()
	c.mu.Unlock()

	if out == nil || out.Live(c.now()) || out.ExpiresAt.IsZero() {
		return out, nil
	}
	if out.RefreshToken == "" {
		c.forget(ctx)
		return nil, nil
	}
	refreshed, err := c.RefreshSession(ctx)
	if err != nil {
		if provider.CodeOf(err) == provider.CodeSessionNotFound {
			return nil, nil
		}
		return nil, err
	}
	return refreshed, nil
}

func (c *Client) SignUp(ctx context.Context, email, password string, opts provider.SignUpOptions) (*provider.AuthResponse, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	if len(opts.Metadata) > 0 {
		body["data"] = opts.Metadata
	}
	var out sessionJSON
	if err := c.do(ctx, http.MethodPost, "/signup", nil, "", body, &out); err != nil {
		return nil, err
	}
	resp := out.response(c.now())
	if resp.Session != nil {
		if err := c.verify(resp.Session); err != nil {
			return nil, err
		}
		c.install(ctx, resp.Session, provider.EventSignedIn)
	}
	return resp, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*provider.AuthResponse, error) {
	return c.grant(ctx, "password", map[string]any{"email": email, "password": password})
}

func (c *Client) SignInWithOTP(ctx context.Context, email string, opts provider.OTPOptions) error {
	return c.do(ctx, http.MethodPost, "/otp", nil, "", map[string]any{
		"email":       email,
		"create_user": opts.CreateUser,
	}, nil)
}

func (c *Client) VerifyOTP(ctx context.Context, email, token string, purpose provider.OTPPurpose) (*provider.AuthResponse, error) {
	if !purpose.Valid() {
		return nil, provider.NewError(provider.CodeValidationFailed, 0, "unknown otp purpose")
	}
	var out sessionJSON
	if err := c.do(ctx, http.MethodPost, "/verify", nil, "", map[string]any{
		"type":  string(purpose),
		"email": email,
		"token": token,
	}, &out); err != nil {
		return nil, err
	}
	resp := out.response(c.now())
	if resp.Session == nil {
		return nil, provider.NewError(provider.CodeUnexpected, 0, "verify returned no session")
	}
	if err := c.verify(resp.Session); err != nil {
		return nil, err
	}
	c.install(ctx, resp.Session, provider.EventSignedIn)
	return resp, nil
}

// RefreshSession exchanges the held refresh token. Network failures are
// retried with exponential backoff; provider rejections are not.
func (c *Client) RefreshSession(ctx context.Context) (*session.Session, error) {
	c.mu.Lock()
	var refreshToken string
	if c.current != nil {
		refreshToken = c.current.RefreshToken
	}
	c.mu.Unlock()
	if refreshToken == "" {
		return nil, provider.NewError(provider.CodeSessionNotFound, 0, "no refresh token")
	}

	var out sessionJSON
	backoff := retry.WithMaxRetries(uint64(c.cfg.RefreshAttempts-1), retry.NewExponential(c.cfg.RefreshBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"refresh_token"}}, "",
			map[string]any{"refresh_token": refreshToken}, &out)
		if provider.CodeOf(err) == provider.CodeNetwork && ctx.Err() == nil {
			c.logger.DebugContext(ctx, "session refresh retry", "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		if code := provider.CodeOf(err); code == provider.CodeSessionNotFound || code == provider.CodeInvalidCredentials {
			c.forget(ctx)
			c.emit(provider.Event{Type: provider.EventSignedOut, At: c.now()})
		}
		return nil, err
	}

	s := out.session(c.now())
	if s == nil {
		return nil, provider.NewError(provider.CodeUnexpected, 0, "refresh returned no session")
	}
	if err := c.verify(s); err != nil {
		return nil, err
	}
	c.install(ctx, s, provider.EventTokenRefreshed)
	return s.Clone(), nil
}

func (c *Client) UpdateUser(ctx context.Context, update provider.UserUpdate) (*session.Identity, error) {
	token, err := c.accessToken()
	if err != nil {
		return nil, err
	}
	body := map[string]any{}
	if update.Password != "" {
		body["password"] = update.Password
	}
	if update.Email != "" {
		body["email"] = update.Email
	}
	if len(update.Metadata) > 0 {
		body["data"] = update.Metadata
	}

	var out userJSON
	if err := c.do(ctx, http.MethodPut, "/user", nil, token, body, &out); err != nil {
		return nil, err
	}
	identity := out.identity()
	if identity == nil {
		return nil, provider.NewError(provider.CodeUnexpected, 0, "update returned no user")
	}

	c.mu.Lock()
	var updated *session.Session
	if c.current != nil {
		c.current.Identity = *identity.Clone()
		updated = c.current.Clone()
	}
	c.mu.Unlock()
	if updated != nil {
		c.save(ctx, updated)
		c.emit(provider.Event{Type: provider.EventUserUpdated, Session: updated, At: c.now()})
	}
	return identity, nil
}

func (c *Client) ResetPasswordForEmail(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/recover", nil, "", map[string]any{"email": email}, nil)
}

// SignOut revokes the session on the server and always forgets it locally.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	var token string
	if c.current != nil {
		token = c.current.AccessToken
	}
	c.mu.Unlock()

	var err error
	if token != "" {
		err = c.do(ctx, http.MethodPost, "/logout", nil, token, nil, nil)
		if provider.CodeOf(err) == provider.CodeSessionNotFound {
			err = nil
		}
	}
	c.forget(ctx)
	c.emit(provider.Event{Type: provider.EventSignedOut, At: c.now()})
	return err
}

// DeleteUser removes the user through the admin API.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	if c.cfg.ServiceKey == "" {
		return provider.NewError(provider.CodeUnexpected, 0, "service key required to delete users")
	}
	if err := c.do(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(id), nil, c.cfg.ServiceKey, nil, nil); err != nil {
		return err
	}
	c.mu.Lock()
	held := c.current != nil && c.current.Identity.ID == id
	c.mu.Unlock()
	if held {
		c.forget(ctx)
	}
	return nil
}

func (c *Client) OnAuthStateChange(fn func(provider.Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
		})
	}
}

func (c *Client) grant(ctx context.Context, grantType string, body map[string]any) (*provider.AuthResponse, error) {
	var out sessionJSON
	if err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {grantType}}, "", body, &out); err != nil {
		return nil, err
	}
	resp := out.response(c.now())
	if resp.Session == nil {
		return nil, provider.NewError(provider.CodeUnexpected, 0, "token grant returned no session")
	}
	if err := c.verify(resp.Session); err != nil {
		return nil, err
	}
	c.install(ctx, resp.Session, provider.EventSignedIn)
	return resp, nil
}

// verify checks s.AccessToken against the configured verifier and that its
// subject is the session's user.
func (c *Client) verify(s *session.Session) error {
	if c.cfg.Verifier == nil {
		return nil
	}
	claims, err := c.cfg.Verifier.Parse(s.AccessToken)
	if err != nil {
		return &provider.Error{Code: provider.CodeUnexpected, Message: "access token failed verification", Cause: err}
	}
	if claims.Subject != s.Identity.ID {
		return provider.NewError(provider.CodeUnexpected, 0, "access token subject mismatch")
	}
	return nil
}

func (c *Client) accessToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.AccessToken == "" {
		return "", provider.NewError(provider.CodeSessionNotFound, http.StatusUnauthorized, "Auth session missing")
	}
	return c.current.AccessToken, nil
}

func (c *Client) install(ctx context.Context, s *session.Session, evt provider.EventType) {
	c.mu.Lock()
	c.current = s.Clone()
	c.loaded = true
	c.mu.Unlock()
	c.save(ctx, s)
	c.emit(provider.Event{Type: evt, Session: s, At: c.now()})
}

func (c *Client) forget(ctx context.Context) {
	c.mu.Lock()
	c.current = nil
	c.loaded = true
	c.mu.Unlock()
	if err := c.cache.Clear(ctx); err != nil {
		c.logger.WarnContext(ctx, "session cache clear failed", "error", err)
	}
}

func (c *Client) save(ctx context.Context, s *session.Session) {
	if err := c.cache.Save(ctx, s); err != nil {
		c.logger.WarnContext(ctx, "session cache save failed", "error", err)
	}
}

func (c *Client) emit(evt provider.Event) {
	c.mu.Lock()
	subs := make([]func(provider.Event), 0, len(c.subs))
	for id := 0; id < c.nextSub; id++ {
		if fn, ok := c.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range subs {
		fn(provider.Event{Type: evt.Type, Session: evt.Session.Clone(), At: evt.At})
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, bearer string, body, out any) error {
	u := *c.base
	u.Path += path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &provider.Error{Code: provider.CodeUnexpected, Message: "encode request", Cause: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return &provider.Error{Code: provider.CodeUnexpected, Message: "build request", Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("apikey", c.cfg.APIKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &provider.Error{Code: provider.CodeNetwork, Message: err.Error(), Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &provider.Error{Code: provider.CodeNetwork, Status: resp.StatusCode, Message: "read response", Cause: err}
	}
	if resp.StatusCode >= 500 {
		perr := decodeError(resp.StatusCode, data)
		if perr.Code == provider.CodeUnexpected {
			perr.Code = provider.CodeNetwork
		}
		return perr
	}
	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &provider.Error{Code: provider.CodeUnexpected, Status: resp.StatusCode, Message: "decode response", Cause: err}
	}
	return nil
}
