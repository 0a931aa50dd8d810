package gotrue

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/provider"
	"github.com/MrEthical07/goSession/session"
)

type userJSON struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	LastSignInAt     *time.Time     `json:"last_sign_in_at,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
}

func (u *userJSON) identity() *session.Identity {
	if u == nil || u.ID == "" {
		return nil
	}
	return &session.Identity{
		ID:               u.ID,
		Email:            u.Email,
		EmailConfirmedAt: u.EmailConfirmedAt,
		LastSignInAt:     u.LastSignInAt,
		Metadata:         u.UserMetadata,
	}
}

// sessionJSON is the token response. Sign-up without auto-confirm returns a
// bare user object, which decodes with only the embedded user fields set.
type sessionJSON struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
	User         *userJSON `json:"user"`
	userJSON
}

func (s *sessionJSON) session(now time.Time) *session.Session {
	if s.AccessToken == "" || s.User == nil {
		return nil
	}
	out := &session.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
	}
	switch {
	case s.ExpiresAt > 0:
		out.ExpiresAt = time.Unix(s.ExpiresAt, 0).UTC()
	case s.ExpiresIn > 0:
		out.ExpiresAt = now.Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	if id := s.User.identity(); id != nil {
		out.Identity = *id
	}
	return out
}

func (s *sessionJSON) response(now time.Time) *provider.AuthResponse {
	resp := &provider.AuthResponse{Session: s.session(now)}
	switch {
	case resp.Session != nil:
		resp.Identity = resp.Session.Identity.Clone()
	case s.User != nil:
		resp.Identity = s.User.identity()
	default:
		resp.Identity = s.userJSON.identity()
	}
	return resp
}

type errorJSON struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

var knownCodes = map[string]provider.Code{
	"invalid_credentials":        provider.CodeInvalidCredentials,
	"invalid_grant":              provider.CodeInvalidCredentials,
	"email_not_confirmed":        provider.CodeEmailNotConfirmed,
	"user_already_exists":        provider.CodeUserAlreadyExists,
	"email_exists":               provider.CodeUserAlreadyExists,
	"user_not_found":             provider.CodeUserNotFound,
	"otp_disabled":               provider.CodeUserNotFound,
	"otp_expired":                provider.CodeOTPExpired,
	"weak_password":              provider.CodeWeakPassword,
	"same_password":              provider.CodeSamePassword,
	"over_request_rate_limit":    provider.CodeOverRequestRateLimit,
	"over_email_send_rate_limit": provider.CodeOverEmailSendLimit,
	"session_not_found":          provider.CodeSessionNotFound,
	"refresh_token_not_found":    provider.CodeSessionNotFound,
	"signup_disabled":            provider.CodeSignupDisabled,
	"validation_failed":          provider.CodeValidationFailed,
}

func decodeError(status int, body []byte) *provider.Error {
	var e errorJSON
	_ = json.Unmarshal(body, &e)

	msg := firstNonEmpty(e.Msg, e.Message, e.ErrorDescription, e.Error, http.StatusText(status))
	name := e.ErrorCode
	if name == "" {
		// Older servers put the name in "error" and the status in "code".
		name = e.Error
	}
	if code, ok := knownCodes[strings.ToLower(name)]; ok {
		return provider.NewError(code, status, msg)
	}

	switch {
	case status == http.StatusTooManyRequests:
		return provider.NewError(provider.CodeOverRequestRateLimit, status, msg)
	case status == http.StatusUnauthorized:
		return provider.NewError(provider.CodeSessionNotFound, status, msg)
	case status == http.StatusNotFound:
		return provider.NewError(provider.CodeUserNotFound, status, msg)
	case status == http.StatusUnprocessableEntity:
		return provider.NewError(provider.CodeValidationFailed, status, msg)
	default:
		return provider.NewError(provider.CodeUnexpected, status, msg)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
