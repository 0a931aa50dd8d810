package providertest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignInEmitsSignedIn(t *testing.T) {
	f := New()
	f.AddUser("a@x.io", "Secret123", true)

	var events []provider.Event
	unsubscribe := f.OnAuthStateChange(func(e provider.Event) { events = append(events, e) })
	defer unsubscribe()

	resp, err := f.SignInWithPassword(context.Background(), "A@x.io", "Secret123")
	require.NoError(t, err)
	require.NotNil(t, resp.Session)
	require.Len(t, events, 1)
	assert.Equal(t, provider.EventSignedIn, events[0].Type)
	assert.Equal(t, resp.Session.AccessToken, events[0].Session.AccessToken)
}

func TestSignInRejectsBadPasswordAndUnconfirmed(t *testing.T) {
	f := New()
	f.AddUser("a@x.io", "Secret123", false)
	ctx := context.Background()

	_, err := f.SignInWithPassword(ctx, "a@x.io", "wrong")
	assert.Equal(t, provider.CodeInvalidCredentials, provider.CodeOf(err))

	_, err = f.SignInWithPassword(ctx, "a@x.io", "Secret123")
	assert.Equal(t, provider.CodeEmailNotConfirmed, provider.CodeOf(err))
}

func TestSignUpThenVerify(t *testing.T) {
	f := New()
	ctx := context.Background()

	resp, err := f.SignUp(ctx, "new@x.io", "Secret123", provider.SignUpOptions{CodeVerification: true})
	require.NoError(t, err)
	assert.Nil(t, resp.Session)

	code, ok := f.PendingOTP("new@x.io")
	require.True(t, ok)

	_, err = f.VerifyOTP(ctx, "new@x.io", "000000", provider.PurposeSignup)
	assert.Equal(t, provider.CodeOTPExpired, provider.CodeOf(err))

	verified, err := f.VerifyOTP(ctx, "new@x.io", code, provider.PurposeSignup)
	require.NoError(t, err)
	assert.True(t, verified.Identity.EmailConfirmed())
}

func TestOTPRequestForUnknownUserWithoutCreate(t *testing.T) {
	f := New()
	err := f.SignInWithOTP(context.Background(), "ghost@x.io", provider.OTPOptions{})
	assert.Equal(t, provider.CodeUserNotFound, provider.CodeOf(err))
}

func TestFailQueuesOneError(t *testing.T) {
	f := New()
	boom := errors.New("boom")
	f.Fail(MethodGetSession, boom)

	_, err := f.GetSession(context.Background())
	assert.ErrorIs(t, err, boom)
	_, err = f.GetSession(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, f.Calls(MethodGetSession))
}

func TestSignedTokensCarryExpiry(t *testing.T) {
	signer, err := jwt.NewManager(jwt.Config{SigningMethod: jwt.MethodHS256, PrivateKey: []byte("fake-provider-secret-0123456789ab")})
	require.NoError(t, err)

	now := time.Now().Truncate(time.Second)
	f := New(WithSigner(signer), WithoutExpiry(), WithNow(func() time.Time { return now }), WithSessionTTL(10*time.Minute))
	f.AddUser("a@x.io", "pw", true)

	resp, err := f.SignInWithPassword(context.Background(), "a@x.io", "pw")
	require.NoError(t, err)
	assert.True(t, resp.Session.ExpiresAt.IsZero())

	exp, err := jwt.ExpiryOf(resp.Session.AccessToken)
	require.NoError(t, err)
	assert.True(t, now.Add(10*time.Minute).Equal(exp))
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	f := New()
	count := 0
	unsubscribe := f.OnAuthStateChange(func(provider.Event) { count++ })
	unsubscribe()
	unsubscribe()

	require.NoError(t, f.SignOut(context.Background()))
	assert.Zero(t, count)
	assert.Zero(t, f.Subscribers())
}
