// Package providertest provides an in-memory [provider.Gateway] for tests and
// the demo CLI.
package providertest

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/provider"
	"github.com/MrEthical07/goSession/session"
)

// Method names accepted by Fail and Calls.
const (
	MethodGetSession            = "GetSession"
	MethodSignUp                = "SignUp"
	MethodSignInWithPassword    = "SignInWithPassword"
	MethodSignInWithOTP         = "SignInWithOTP"
	MethodVerifyOTP             = "VerifyOTP"
	MethodRefreshSession        = "RefreshSession"
	MethodUpdateUser            = "UpdateUser"
	MethodResetPasswordForEmail = "ResetPasswordForEmail"
	MethodSignOut               = "SignOut"
	MethodDeleteUser            = "DeleteUser"
)

// DefaultOTPCode is the code the fake accepts unless WithOTPCode overrides it.
const DefaultOTPCode = "123456"

type fakeUser struct {
	identity session.Identity
	password string
}

// Fake is a thread-safe in-memory identity provider. Events are delivered
// synchronously on the calling goroutine after the fake's lock is released.
type Fake struct {
	now         func() time.Time
	ttl         time.Duration
	autoConfirm bool
	otpCode     string
	signer      *jwt.Manager
	omitExpiry  bool

	mu         sync.Mutex
	users      map[string]*fakeUser
	pendingOTP map[string]string
	current    *session.Session
	subs       map[int]func(provider.Event)
	nextSub    int
	calls      map[string]int
	failures   map[string][]error
	seq        int
}

// Option configures a [Fake].
type Option func(*Fake)

// WithNow sets the fake's time source.
func WithNow(now func() time.Time) Option {
	return func(f *Fake) { f.now = now }
}

// WithSessionTTL sets the lifetime of issued access tokens.
func WithSessionTTL(ttl time.Duration) Option {
	return func(f *Fake) { f.ttl = ttl }
}

// WithAutoConfirm makes SignUp return a session immediately.
func WithAutoConfirm(enabled bool) Option {
	return func(f *Fake) { f.autoConfirm = enabled }
}

// WithOTPCode sets the one-time code the fake accepts.
func WithOTPCode(code string) Option {
	return func(f *Fake) { f.otpCode = code }
}

// WithSigner issues signed JWT access tokens instead of opaque strings.
func WithSigner(m *jwt.Manager) Option {
	return func(f *Fake) { f.signer = m }
}

// WithoutExpiry leaves Session.ExpiresAt zero so callers must read the
// token's exp claim. Only meaningful together with WithSigner.
func WithoutExpiry() Option {
	return func(f *Fake) { f.omitExpiry = true }
}

// New returns an empty [Fake].
func New(opts ...Option) *Fake {
	f := &Fake{
		now:        time.Now,
		ttl:        time.Hour,
		otpCode:    DefaultOTPCode,
		users:      make(map[string]*fakeUser),
		pendingOTP: make(map[string]string),
		subs:       make(map[int]func(provider.Event)),
		calls:      make(map[string]int),
		failures:   make(map[string][]error),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var _ provider.Gateway = (*Fake)(nil)

// AddUser registers a user and returns its identity.
func (f *Fake) AddUser(email, password string, confirmed bool) session.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addUserLocked(email, password, confirmed, nil).identity
}

// SetSession replaces the current session without emitting an event, which
// models a session restored from storage before anyone subscribed.
func (f *Fake) SetSession(s *session.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = s.Clone()
}

// Current returns a copy of the current session.
func (f *Fake) Current() *session.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current.Clone()
}

// User looks up a registered user by email.
func (f *Fake) User(email string) (session.Identity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[normalize(email)]
	if !ok {
		return session.Identity{}, false
	}
	return *u.identity.Clone(), true
}

// PendingOTP returns the code awaiting verification for email.
func (f *Fake) PendingOTP(email string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	code, ok := f.pendingOTP[normalize(email)]
	return code, ok
}

// Fail queues err as the result of the next call to method.
func (f *Fake) Fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = append(f.failures[method], err)
}

// Calls returns how often method has been called.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Subscribers returns the number of live subscriptions.
func (f *Fake) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Emit delivers evt to every subscriber.
func (f *Fake) Emit(evt provider.Event) {
	f.mu.Lock()
	subs := f.subscribersLocked()
	f.mu.Unlock()
	deliver(subs, evt)
}

// ExpireCurrent moves the current session's expiry to at.
func (f *Fake) ExpireCurrent(at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current != nil {
		f.current.ExpiresAt = at
	}
}

func (f *Fake) GetSession(ctx context.Context) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.beginLocked(ctx, MethodGetSession); err != nil {
		return nil, err
	}
	return f.current.Clone(), nil
}

func (f *Fake) SignUp(ctx context.Context, email, password string, opts provider.SignUpOptions) (*provider.AuthResponse, error) {
	f.mu.Lock()
	if err := f.beginLocked(ctx, MethodSignUp); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	if _, exists := f.users[normalize(email)]; exists {
		f.mu.Unlock()
		return nil, provider.NewError(provider.CodeUserAlreadyExists, 422, "User already registered")
	}

	u := f.addUserLocked(email, password, f.autoConfirm, opts.Metadata)
	if !f.autoConfirm {
		f.pendingOTP[normalize(email)] = f.otpCode
		f.mu.Unlock()
		return &provider.AuthResponse{Identity: u.identity.Clone()}, nil
	}

	sess, err := f.issueLocked(u)
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	subs := f.subscribersLocked()
	f.mu.Unlock()

	deliver(subs, provider.Event{Type: provider.EventSignedIn, Session: sess, At: f.now()})
	return &provider.AuthResponse{Identity: sess.Identity.Clone(), Session: sess.Clone()}, nil
}

func (f *Fake) SignInWithPassword(ctx context.Context, email, password string) (*provider.AuthResponse, error) {
	f.mu.Lock()
	if err := f.beginLocked(ctx, MethodSignInWithPassword); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	u, ok := f.users[normalize(email)]
	if !ok || u.password != password {
		f.mu.Unlock()
		return nil, provider.NewError(provider.CodeInvalidCredentials, 400, "Invalid login credentials")
	}
	if !u.identity.EmailConfirmed() {
		f.mu.Unlock()
		return nil, provider.NewError(provider.CodeEmailNotConfirmed, 400, "Email not confirmed")
	}

	sess, err := f.issueLocked(u)
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	subs := f.subscribersLocked()
	f.mu.Unlock()

	deliver(subs, provider.Event{Type: provider.EventSignedIn, Session: sess, At: f.now()})
	return &provider.AuthResponse{Identity: sess.Identity.Clone(), Session: sess.Clone()}, nil
}

func (f *Fake) SignInWithOTP(ctx context.Context, email string, opts provider.OTPOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.beginLocked(ctx, MethodSignInWithOTP); err != nil {
		return err
	}
	key := normalize(email)
	if _, ok := f.users[key]; !ok {
		if !opts.CreateUser {
			return provider.NewError(provider.CodeUserNotFound, 400, "Signups not allowed for otp")
		}
		f.addUserLocked(email, "", false, nil)
	}
	f.pendingOTP[key] = f.otpCode
	return nil
}

func (f *Fake) VerifyOTP(ctx context.Context, email, token string, purpose provider.OTPPurpose) (*provider.AuthResponse, error) {
	f.mu.Lock()
	if err := f.beginLocked(ctx, MethodVerifyOTP); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	key := normalize(email)
	u, ok := f.users[key]
	code, pending := f.pendingOTP[key]
	if !ok || !pending || code != token || !purpose.Valid() {
		f.mu.Unlock()
		return nil, provider.NewError(provider.CodeOTPExpired, 403, "Token has expired or is invalid")
	}
	delete(f.pendingOTP, key)

	if !u.identity.EmailConfirmed() {
		at := f.now()
		u.identity.EmailConfirmedAt = &at
	}
	sess, err := f.issueLocked(u)
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	subs := f.subscribersLocked()
	f.mu.Unlock()

	deliver(subs, provider.Event{Type: provider.EventSignedIn, Session: sess, At: f.now()})
	return &provider.AuthResponse{Identity: sess.Identity.Clone(), Session: sess.Clone()}, nil
}

func (f *Fake) RefreshSession(ctx context.Context) (*session.Session, error) {
	f.mu.Lock()
	if err := f.beginLocked(ctx, MethodRefreshSession); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	if f.current == nil {
		f.mu.Unlock()
		return nil, provider.NewError(provider.CodeSessionNotFound, 400, "Refresh Token Not Found")
	}
	u, ok := f.userByIDLocked(f.current.Identity.ID)
	if !ok {
		f.mu.Unlock()
		return nil, provider.NewError(provider.CodeUserNotFound, 404, "User not found")
	}
	sess, err := f.issueLocked(u)
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	subs := f.subscribersLocked()
	f.mu.Unlock()

	deliver(subs, provider.Event{Type: provider.EventTokenRefreshed, Session: sess, At: f.now()})
	return sess.Clone(), nil
}

func (f *Fake) UpdateUser(ctx context.Context, update provider.UserUpdate) (*session.Identity, error) {
	f.mu.Lock()
	if err := f.beginLocked(ctx, MethodUpdateUser); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	if f.current == nil {
		f.mu.Unlock()
		return nil, provider.NewError(provider.CodeSessionNotFound, 401, "Auth session missing")
	}
	u, ok := f.userByIDLocked(f.current.Identity.ID)
	if !ok {
		f.mu.Unlock()
		return nil, provider.NewError(provider.CodeUserNotFound, 404, "User not found")
	}
	if update.Password != "" {
		if update.Password == u.password {
			f.mu.Unlock()
			return nil, provider.NewError(provider.CodeSamePassword, 422, "New password should be different from the old password.")
		}
		u.password = update.Password
	}
	if update.Email != "" {
		delete(f.users, normalize(u.identity.Email))
		u.identity.Email = update.Email
		f.users[normalize(update.Email)] = u
	}
	if len(update.Metadata) > 0 {
		if u.identity.Metadata == nil {
			u.identity.Metadata = map[string]any{}
		}
		maps.Copy(u.identity.Metadata, update.Metadata)
	}

	f.current.Identity = *u.identity.Clone()
	sess := f.current.Clone()
	subs := f.subscribersLocked()
	f.mu.Unlock()

	deliver(subs, provider.Event{Type: provider.EventUserUpdated, Session: sess, At: f.now()})
	return sess.Identity.Clone(), nil
}

func (f *Fake) ResetPasswordForEmail(ctx context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.beginLocked(ctx, MethodResetPasswordForEmail)
}

func (f *Fake) SignOut(ctx context.Context) error {
	f.mu.Lock()
	err := f.beginLocked(ctx, MethodSignOut)
	f.current = nil
	subs := f.subscribersLocked()
	f.mu.Unlock()

	deliver(subs, provider.Event{Type: provider.EventSignedOut, At: f.now()})
	return err
}

func (f *Fake) DeleteUser(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.beginLocked(ctx, MethodDeleteUser); err != nil {
		return err
	}
	u, ok := f.userByIDLocked(id)
	if !ok {
		return provider.NewError(provider.CodeUserNotFound, 404, "User not found")
	}
	delete(f.users, normalize(u.identity.Email))
	if f.current != nil && f.current.Identity.ID == id {
		f.current = nil
	}
	return nil
}

func (f *Fake) OnAuthStateChange(fn func(provider.Event)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs, id)
		})
	}
}

func (f *Fake) beginLocked(ctx context.Context, method string) error {
	f.calls[method]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if queued := f.failures[method]; len(queued) > 0 {
		err := queued[0]
		f.failures[method] = queued[1:]
		return err
	}
	return nil
}

func (f *Fake) addUserLocked(email, password string, confirmed bool, metadata map[string]any) *fakeUser {
	u := &fakeUser{
		identity: session.Identity{
			ID:    uuid.NewString(),
			Email: strings.TrimSpace(email),
		},
		password: password,
	}
	if confirmed {
		at := f.now()
		u.identity.EmailConfirmedAt = &at
	}
	if metadata != nil {
		u.identity.Metadata = maps.Clone(metadata)
	}
	f.users[normalize(email)] = u
	return u
}

func (f *Fake) userByIDLocked(id string) (*fakeUser, bool) {
	for _, u := range f.users {
		if u.identity.ID == id {
			return u, true
		}
	}
	return nil, false
}

func (f *Fake) issueLocked(u *fakeUser) (*session.Session, error) {
	now := f.now()
	f.seq++
	u.identity.LastSignInAt = &now

	expiresAt := now.Add(f.ttl)
	access := fmt.Sprintf("access-%d", f.seq)
	if f.signer != nil {
		token, err := f.signer.Sign(jwt.Claims{
			Email: u.identity.Email,
			Role:  "authenticated",
			RegisteredClaims: gojwt.RegisteredClaims{
				Subject:   u.identity.ID,
				ExpiresAt: gojwt.NewNumericDate(expiresAt),
				IssuedAt:  gojwt.NewNumericDate(now),
			},
		})
		if err != nil {
			return nil, &provider.Error{Code: provider.CodeUnexpected, Status: 500, Message: "token signing failed", Cause: err}
		}
		access = token
	}

	sess := &session.Session{
		AccessToken:  access,
		RefreshToken: fmt.Sprintf("refresh-%d", f.seq),
		TokenType:    "bearer",
		ExpiresAt:    expiresAt,
		Identity:     *u.identity.Clone(),
	}
	if f.omitExpiry {
		sess.ExpiresAt = time.Time{}
	}
	f.current = sess.Clone()
	return sess, nil
}

func (f *Fake) subscribersLocked() []func(provider.Event) {
	out := make([]func(provider.Event), 0, len(f.subs))
	for id := 0; id < f.nextSub; id++ {
		if fn, ok := f.subs[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func deliver(subs []func(provider.Event), evt provider.Event) {
	for _, fn := range subs {
		fn(provider.Event{Type: evt.Type, Session: evt.Session.Clone(), At: evt.At})
	}
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
