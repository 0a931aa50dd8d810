package goSession

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/MrEthical07/goSession/access"
	"github.com/MrEthical07/goSession/clock"
	"github.com/MrEthical07/goSession/internal/notify"
	"github.com/MrEthical07/goSession/profile"
	"github.com/MrEthical07/goSession/profile/memstore"
	"github.com/MrEthical07/goSession/provider"
	"github.com/MrEthical07/goSession/provider/providertest"
	"github.com/MrEthical07/goSession/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

type testEngine struct {
	*Engine
	clk     *clock.Manual
	fake    *providertest.Fake
	store   *memstore.Store
	notices *notify.ChannelSink
}

func newTestEngine(t *testing.T, mutate func(*Config), opts ...providertest.Option) *testEngine {
	t.Helper()
	clk := clock.NewManual(epoch)
	fake := providertest.New(append([]providertest.Option{providertest.WithNow(clk.Now)}, opts...)...)
	return buildTestEngine(t, clk, fake, fake, mutate)
}

func buildTestEngine(t *testing.T, clk *clock.Manual, fake *providertest.Fake, gw provider.Gateway, mutate func(*Config)) *testEngine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Profile.FetchAttempts = 1
	cfg.Notify = NotifyConfig{Enabled: true, BufferSize: 64, DropIfFull: true}
	if mutate != nil {
		mutate(&cfg)
	}

	te := &testEngine{
		clk:     clk,
		fake:    fake,
		store:   memstore.New(),
		notices: NewChannelNotifier(256),
	}
	engine, err := New().
		WithConfig(cfg).
		WithProvider(gw).
		WithProfileStore(te.store).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithNotifier(te.notices).
		WithClock(clk).
		Build()
	require.NoError(t, err)
	te.Engine = engine
	t.Cleanup(engine.Close)
	return te
}

func (te *testEngine) ready(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, te.WaitReady(ctx))
}

func (te *testEngine) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, te.manager.Flush(ctx))
}

func (te *testEngine) waitNotice(t *testing.T, kind string) Notice {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case n := <-te.notices.Notices():
			if n.Kind == kind {
				return n
			}
		case <-timeout:
			t.Fatalf("no %s notice delivered", kind)
			return Notice{}
		}
	}
}

func (te *testEngine) seedUser(t *testing.T, email, pw string) session.Identity {
	t.Helper()
	id := te.fake.AddUser(email, pw, true)
	te.store.Put(&profile.Profile{
		ID:               id.ID,
		Email:            email,
		FullName:         "Ada Lovelace",
		BusinessName:     "Analytical Engines",
		Role:             "manager",
		SubscriptionTier: "pro",
		CreatedAt:        epoch,
		UpdatedAt:        epoch,
	})
	return id
}

func TestBuildRequiresCollaborators(t *testing.T) {
	_, err := New().WithProfileStore(memstore.New()).Build()
	assert.Error(t, err)

	_, err = New().WithProvider(providertest.New()).Build()
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.RateLimits.SignIn.MaxAttempts = 0
	_, err = New().WithConfig(cfg).WithProvider(providertest.New()).WithProfileStore(memstore.New()).Build()
	assert.Error(t, err)
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithProvider(providertest.New()).WithProfileStore(memstore.New()).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	e, err := b.Build()
	require.NoError(t, err)
	defer e.Close()

	_, err = b.Build()
	assert.Error(t, err)
}

func TestSixthSignInWithinMinuteIsRateLimited(t *testing.T) {
	te := newTestEngine(t, nil)
	te.ready(t)
	te.fake.AddUser("ada@example.com", "Correct-horse1", true)

	var results []Result
	for i := 0; i < 6; i++ {
		results = append(results, te.SignIn(context.Background(), "ada@example.com", "wrong-password"))
		te.clk.Advance(10 * time.Second)
	}

	for i, res := range results[:5] {
		assert.False(t, res.Success, "attempt %d", i+1)
		assert.ErrorIs(t, res.Err, ErrProvider, "attempt %d", i+1)
	}
	last := results[5]
	assert.False(t, last.Success)
	assert.ErrorIs(t, last.Err, ErrRateLimited)
	assert.Greater(t, last.RetryAfter, time.Duration(0))
	assert.NotEmpty(t, last.Error)
	assert.Equal(t, 5, te.fake.Calls(providertest.MethodSignInWithPassword))
	assert.Equal(t, uint64(1), te.MetricsSnapshot().Counters[MetricRateLimited])
}

func TestSuspiciousActivityLagsOneAttempt(t *testing.T) {
	te := newTestEngine(t, nil)
	te.ready(t)
	te.fake.AddUser("ada@example.com", "Correct-horse1", true)

	var flags []bool
	for i := 0; i < 4; i++ {
		res := te.SignIn(context.Background(), "ada@example.com", "nope")
		flags = append(flags, res.Suspicious)
	}
	assert.Equal(t, []bool{false, false, false, true}, flags)
	te.waitNotice(t, NoticeSuspiciousActivity)
	assert.Len(t, te.SignInAttempts(), 4)
}

func TestSignInAppliesSessionProfileAndRefresh(t *testing.T) {
	te := newTestEngine(t, nil)
	te.ready(t)
	assert.Equal(t, StatusUnauthenticated, te.State().Status)
	id := te.seedUser(t, "ada@example.com", "Correct-horse1")

	res := te.SignIn(context.Background(), "ADA@example.com ", "Correct-horse1")
	require.True(t, res.Success, res.Error)
	assert.Empty(t, res.Error)
	assert.NotEmpty(t, res.OperationID)

	st := te.State()
	assert.Equal(t, StatusAuthenticated, st.Status)
	require.NotNil(t, st.Identity)
	assert.Equal(t, id.ID, st.Identity.ID)
	require.NotNil(t, st.Profile)
	assert.Equal(t, "manager", st.Role())

	at, ok := te.RefreshScheduledAt()
	require.True(t, ok)
	assert.Equal(t, epoch.Add(55*time.Minute), at)

	assert.True(t, te.HasRole("user"))
	assert.True(t, te.HasRole("manager"))
	assert.False(t, te.HasRole("admin"))
	assert.True(t, te.CanAccessFeature("analytics"))
	assert.False(t, te.CanAccessFeature("api_access"))
	assert.Equal(t, "pro", te.GetSubscriptionTier())
	assert.ElementsMatch(t, []string{"dashboard", "analytics", "reports", "integrations"}, te.Features())

	te.waitNotice(t, NoticeOperationSucceeded)
}

func TestSignInWithExpiredSessionFails(t *testing.T) {
	// The provider's clock runs two hours behind, so every issued session
	// has already expired by the engine's clock.
	te := newTestEngine(t, nil, providertest.WithNow(func() time.Time {
		return epoch.Add(-2 * time.Hour)
	}))
	te.ready(t)
	te.seedUser(t, "ada@example.com", "Correct-horse1")

	res := te.SignIn(context.Background(), "ada@example.com", "Correct-horse1")
	assert.False(t, res.Success)
	assert.Nil(t, res.Identity)
	assert.ErrorIs(t, res.Err, ErrProvider)
	var perr *ProviderError
	require.ErrorAs(t, res.Err, &perr)
	assert.Equal(t, provider.CodeSessionNotFound, perr.Code)
	assert.Equal(t, "Your session has expired. Please sign in again.", res.Error)
	assert.Equal(t, StatusUnauthenticated, te.State().Status)
}

func TestRefreshFiresBeforeExpiry(t *testing.T) {
	te := newTestEngine(t, func(c *Config) { c.Session.CheckInterval = 0 })
	te.ready(t)
	te.seedUser(t, "ada@example.com", "Correct-horse1")
	require.True(t, te.SignIn(context.Background(), "ada@example.com", "Correct-horse1").Success)

	te.clk.Advance(54 * time.Minute)
	te.flush(t)
	assert.Zero(t, te.fake.Calls(providertest.MethodRefreshSession))

	te.clk.Advance(time.Minute)
	te.flush(t)
	assert.Equal(t, 1, te.fake.Calls(providertest.MethodRefreshSession))
	assert.Equal(t, uint64(1), te.MetricsSnapshot().Counters[MetricSessionRefreshSuccess])

	at, ok := te.RefreshScheduledAt()
	require.True(t, ok)
	assert.Equal(t, epoch.Add(55*time.Minute+55*time.Minute), at)
	assert.True(t, te.State().Authenticated())
}

func TestSignOutCancelsRefreshTimer(t *testing.T) {
	te := newTestEngine(t, func(c *Config) { c.Session.CheckInterval = 0 })
	te.ready(t)
	te.seedUser(t, "ada@example.com", "Correct-horse1")
	require.True(t, te.SignIn(context.Background(), "ada@example.com", "Correct-horse1").Success)

	res := te.SignOut(context.Background())
	require.True(t, res.Success, res.Error)

	st := te.State()
	assert.Equal(t, StatusUnauthenticated, st.Status)
	assert.Nil(t, st.Identity)
	assert.Nil(t, st.Session)
	assert.Nil(t, st.Profile)
	_, armed := te.RefreshScheduledAt()
	assert.False(t, armed)

	te.clk.Advance(2 * time.Hour)
	te.flush(t)
	assert.Zero(t, te.fake.Calls(providertest.MethodRefreshSession))
	assert.Empty(t, te.SignInAttempts())
}

func TestSignOutClearsDespiteProviderError(t *testing.T) {
	te := newTestEngine(t, nil)
	te.ready(t)
	te.seedUser(t, "ada@example.com", "Correct-horse1")
	require.True(t, te.SignIn(context.Background(), "ada@example.com", "Correct-horse1").Success)

	te.fake.Fail(providertest.MethodSignOut, provider.NewError(provider.CodeUnexpected, 500, "boom"))
	res := te.SignOut(context.Background())
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrProvider)
	assert.Equal(t, StatusUnauthenticated, te.State().Status)

	again := te.SignOut(context.Background())
	assert.True(t, again.Success, again.Error)
}

func TestMalformedOTPNeverReachesProvider(t *testing.T) {
	te := newTestEngine(t, nil)
	te.ready(t)

	for _, token := range []string{"", "12345", "1234567", "12a456", " 123456"} {
		res := te.VerifyOTP(context.Background(), "ada@example.com", token, PurposeEmail)
		assert.False(t, res.Success, token)
		assert.ErrorIs(t, res.Err, ErrValidation, token)
	}
	assert.Zero(t, te.fake.Calls(providertest.MethodVerifyOTP))
}

func TestOTPResendCooldown(t *testing.T) {
	te := newTestEngine(t, nil)
	te.ready(t)
	te.fake.AddUser("ada@example.com", "Correct-horse1", true)

	first := te.SignInWithOTP(context.Background(), "ada@example.com")
	require.True(t, first.Success, first.Error)
	assert.Equal(t, 60*time.Second, te.OTPCooldownRemaining("Ada@Example.com"))

	te.clk.Advance(15 * time.Second)
	second := te.ResendOTP(context.Background(), "ada@example.com")
	assert.ErrorIs(t, second.Err, ErrRateLimited)
	assert.Equal(t, 45*time.Second, second.RetryAfter)
	assert.Equal(t, 1, te.fake.Calls(providertest.MethodSignInWithOTP))

	te.clk.Advance(45 * time.Second)
	ready := te.waitNotice(t, NoticeOTPResendReady)
	assert.Equal(t, "ada@example.com", ready.Metadata["email"])
	assert.Zero(t, te.OTPCooldownRemaining("ada@example.com"))

	third := te.ResendOTP(context.Background(), "ada@example.com")
	assert.True(t, third.Success, third.Error)
}

func TestOTPSignInNeverCreatesAccounts(t *testing.T) {
	te := newTestEngine(t, nil)
	te.ready(t)

	res := te.SignInWithOTP(context.Background(), "ghost@example.com")
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrProvider)
	_, exists := te.fake.User("ghost@example.com")
	assert.False(t, exists)
}

func TestSignUpThenVerifyCreatesSanitizedProfile(t *testing.T) {
	te := newTestEngine(t, nil)
	te.ready(t)

	res := te.SignUp(context.Background(), "new@example.com", "Str0ngPassword", SignUpMetadata{
		FullName:     "  Grace Hopper ",
		BusinessName: "<b>Cobol</b> Co<script>alert(1)</script>",
		Industry:     "Software",
	})
	require.True(t, res.Success, res.Error)
	assert.True(t, res.VerificationRequired)
	assert.Equal(t, StatusUnauthenticated, te.State().Status)
	n := te.waitNotice(t, NoticeOperationSucceeded)
	assert.Equal(t, "Check your email for a verification code.", n.Message)

	verified := te.VerifyOTP(context.Background(), "new@example.com", providertest.DefaultOTPCode, PurposeSignup)
	require.True(t, verified.Success, verified.Error)
	require.NotNil(t, verified.Profile)
	assert.Equal(t, "Cobol Co", verified.Profile.BusinessName)
	assert.Equal(t, "Grace Hopper", verified.Profile.FullName)
	assert.Equal(t, "user", verified.Profile.Role)
	assert.Equal(t, "free", verified.Profile.SubscriptionTier)

	st := te.State()
	assert.True(t, st.Authenticated())
	require.NotNil(t, st.Profile)
	assert.Equal(t, "Cobol Co", st.Profile.BusinessName)
}

func TestSignUpValidation(t *testing.T) {
	te := newTestEngine(t, nil)
	te.ready(t)

	cases := []struct {
		name  string
		email string
		pw    string
		meta  SignUpMetadata
	}{
		{name: "bad email", email: "not-an-email", pw: "Str0ngPassword"},
		{name: "weak password", email: "a@example.com", pw: "password"},
		{name: "blank business", email: "a@example.com", pw: "Str0ngPassword", meta: SignUpMetadata{BusinessName: "<i></i>"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := te.SignUp(context.Background(), tc.email, tc.pw, tc.meta)
			assert.False(t, res.Success)
			assert.ErrorIs(t, res.Err, ErrValidation)
			assert.NotEmpty(t, res.Error)
		})
	}
	assert.Zero(t, te.fake.Calls(providertest.MethodSignUp))
}

func TestDeleteAccountSucceedsDespiteProfileDeleteFailure(t *testing.T) {
	te := newTestEngine(t, nil)
	te.ready(t)
	te.seedUser(t, "ada@example.com", "Correct-horse1")
	require.True(t, te.SignIn(context.Background(), "ada@example.com", "Correct-horse1").Success)

	te.store.Fail("delete", errors.New("disk full"))
	res := te.DeleteAccount(context.Background(), "Correct-horse1")
	require.True(t, res.Success, res.Error)
	assert.Empty(t, res.Error)
	assert.ErrorIs(t, res.Partial, ErrPartialFailure)

	_, exists := te.fake.User("ada@example.com")
	assert.False(t, exists)
	assert.Equal(t, StatusUnauthenticated, te.State().Status)
	te.waitNotice(t, NoticePartialFailure)
}

func TestUpdateProfileRequiresSignIn(t *testing.T) {
	te := newTestEngine(t, nil)
	te.ready(t)

	name := "New Name"
	res := te.UpdateProfile(context.Background(), profile.Patch{FullName: &name})
	assert.ErrorIs(t, res.Err, ErrNotAuthenticated)

	te.seedUser(t, "ada@example.com", "Correct-horse1")
	require.True(t, te.SignIn(context.Background(), "ada@example.com", "Correct-horse1").Success)
	res = te.UpdateProfile(context.Background(), profile.Patch{FullName: &name})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "New Name", te.State().Profile.FullName)
}

func TestAuthorizeWaitsForProbe(t *testing.T) {
	clk := clock.NewManual(epoch)
	fake := providertest.New(providertest.WithNow(clk.Now))
	gw := &slowProbe{Fake: fake, release: make(chan struct{})}
	te := buildTestEngine(t, clk, fake, gw, nil)

	d := te.Authorize("/dashboard", access.Requirement{})
	assert.Equal(t, access.Pending, d.Outcome)
	assert.False(t, d.Redirect())

	close(gw.release)
	te.ready(t)

	d = te.Authorize("/dashboard", access.Requirement{})
	assert.Equal(t, access.RedirectSignIn, d.Outcome)
	assert.Equal(t, "/auth/signin?returnTo=%2Fdashboard", d.Location)
}

func TestAuthorizeByRoleAndTier(t *testing.T) {
	te := newTestEngine(t, nil)
	te.ready(t)
	te.seedUser(t, "ada@example.com", "Correct-horse1")
	require.True(t, te.SignIn(context.Background(), "ada@example.com", "Correct-horse1").Success)

	assert.Equal(t, access.Allow, te.Authorize("/reports", access.Requirement{Role: "manager", Feature: "reports"}).Outcome)
	assert.Equal(t, access.RedirectUnauthorized, te.Authorize("/admin", access.Requirement{Role: "admin"}).Outcome)
	assert.Equal(t, access.RedirectUpgrade, te.Authorize("/api", access.Requirement{Feature: "api_access"}).Outcome)
	assert.Equal(t, uint64(2), te.MetricsSnapshot().Counters[MetricAccessDenied])
}

func TestSubscribeSeesTransitionsInOrder(t *testing.T) {
	te := newTestEngine(t, nil)
	te.ready(t)
	te.seedUser(t, "ada@example.com", "Correct-horse1")

	var (
		mu     sync.Mutex
		states []AuthStatus
	)
	unsubscribe := te.Subscribe(func(s AuthState) {
		mu.Lock()
		states = append(states, s.Status)
		mu.Unlock()
	})
	defer unsubscribe()

	require.True(t, te.SignIn(context.Background(), "ada@example.com", "Correct-horse1").Success)
	require.True(t, te.SignOut(context.Background()).Success)
	te.flush(t)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, states)
	assert.Equal(t, StatusAuthenticated, states[0])
	assert.Equal(t, StatusUnauthenticated, states[len(states)-1])
}

func TestSecurityReport(t *testing.T) {
	te := newTestEngine(t, nil)
	te.ready(t)
	te.seedUser(t, "ada@example.com", "Correct-horse1")
	require.True(t, te.SignIn(context.Background(), "ada@example.com", "Correct-horse1").Success)

	report := te.SecurityReport()
	assert.Equal(t, 90, report.Score)
	assert.False(t, report.Suspicious)
	assert.Equal(t, 1, report.Attempts)
	assert.Empty(t, report.Alerts)
}

func TestCloseCancelsTimersAndRejectsOperations(t *testing.T) {
	te := newTestEngine(t, nil)
	te.ready(t)
	te.seedUser(t, "ada@example.com", "Correct-horse1")
	require.True(t, te.SignIn(context.Background(), "ada@example.com", "Correct-horse1").Success)
	require.True(t, te.SignInWithOTP(context.Background(), "ada@example.com").Success)
	assert.NotZero(t, te.clk.Pending())

	te.Close()
	te.Close()
	assert.Zero(t, te.clk.Pending())

	res := te.SignIn(context.Background(), "ada@example.com", "Correct-horse1")
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrClosed)
	assert.Zero(t, te.fake.Subscribers())
}

func TestNilEngineIsSafe(t *testing.T) {
	var e *Engine
	res := e.SignIn(context.Background(), "a@example.com", "pw")
	assert.ErrorIs(t, res.Err, ErrEngineNotReady)
	assert.Equal(t, StatusLoading, e.State().Status)
	assert.False(t, e.HasRole("user"))
	assert.Equal(t, access.Pending, e.Authorize("/", access.Requirement{}).Outcome)
	e.Close()
}

type slowProbe struct {
	*providertest.Fake
	release chan struct{}
}

func (g *slowProbe) GetSession(ctx context.Context) (*session.Session, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.Fake.GetSession(ctx)
}
