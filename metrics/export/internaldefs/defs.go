package internaldefs

import (
	"time"

	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricSignUpSuccess, Name: "gosession_sign_up_success_total", Help: "Successful sign-ups."},
	{ID: goSession.MetricSignUpFailure, Name: "gosession_sign_up_failure_total", Help: "Failed sign-ups."},
	{ID: goSession.MetricSignUpVerificationRequired, Name: "gosession_sign_up_verification_required_total", Help: "Sign-ups awaiting code verification."},
	{ID: goSession.MetricSignInSuccess, Name: "gosession_sign_in_success_total", Help: "Successful password sign-ins."},
	{ID: goSession.MetricSignInFailure, Name: "gosession_sign_in_failure_total", Help: "Failed password sign-ins."},
	{ID: goSession.MetricOTPRequested, Name: "gosession_otp_requested_total", Help: "One-time codes sent."},
	{ID: goSession.MetricOTPVerifySuccess, Name: "gosession_otp_verify_success_total", Help: "Successful one-time-code verifications."},
	{ID: goSession.MetricOTPVerifyFailure, Name: "gosession_otp_verify_failure_total", Help: "Failed one-time-code verifications."},
	{ID: goSession.MetricSignOut, Name: "gosession_sign_out_total", Help: "Sign-outs."},
	{ID: goSession.MetricPasswordResetRequest, Name: "gosession_password_reset_request_total", Help: "Password reset emails requested."},
	{ID: goSession.MetricPasswordUpdateSuccess, Name: "gosession_password_update_success_total", Help: "Successful password changes."},
	{ID: goSession.MetricPasswordUpdateFailure, Name: "gosession_password_update_failure_total", Help: "Failed password changes."},
	{ID: goSession.MetricAccountDeleted, Name: "gosession_account_deleted_total", Help: "Deleted accounts."},
	{ID: goSession.MetricAccountDeleteFailure, Name: "gosession_account_delete_failure_total", Help: "Failed account deletions."},
	{ID: goSession.MetricProfileUpdated, Name: "gosession_profile_updated_total", Help: "Profile updates."},
	{ID: goSession.MetricProfileRefreshed, Name: "gosession_profile_refreshed_total", Help: "Profile reloads."},
	{ID: goSession.MetricRateLimited, Name: "gosession_rate_limited_total", Help: "Operations rejected by a rate limit or resend cooldown."},
	{ID: goSession.MetricValidationRejected, Name: "gosession_validation_rejected_total", Help: "Operations rejected by input validation."},
	{ID: goSession.MetricProviderError, Name: "gosession_provider_error_total", Help: "Identity provider call failures."},
	{ID: goSession.MetricPartialFailure, Name: "gosession_partial_failure_total", Help: "Secondary steps that failed after a successful operation."},
	{ID: goSession.MetricSuspiciousActivity, Name: "gosession_suspicious_activity_total", Help: "Failed sign-ins flagged as suspicious."},
	{ID: goSession.MetricSessionRefreshSuccess, Name: "gosession_session_refresh_success_total", Help: "Successful scheduled session refreshes."},
	{ID: goSession.MetricSessionRefreshFailure, Name: "gosession_session_refresh_failure_total", Help: "Failed scheduled session refreshes."},
	{ID: goSession.MetricSessionExpired, Name: "gosession_session_expired_total", Help: "Sessions cleared by the expiry check."},
	{ID: goSession.MetricProviderEvent, Name: "gosession_provider_event_total", Help: "Provider auth events processed."},
	{ID: goSession.MetricAccessDenied, Name: "gosession_access_denied_total", Help: "Access gate decisions that redirected."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricOperationLatency, Name: "gosession_operation_latency_seconds", Help: "Engine operation latency."},
}

// NotifyDroppedName is the counter for notices dropped under backpressure.
const NotifyDroppedName = "gosession_notify_dropped_total"

// HistogramBounds are the finite bucket upper bounds in seconds.
var HistogramBounds = func() []float64 {
	out := make([]float64, 0, len(goSession.HistogramBucketBounds))
	for _, b := range goSession.HistogramBucketBounds {
		out = append(out, b.Seconds())
	}
	return out
}()

// HistogramBoundSuffix names each bucket, the unbounded one last.
var HistogramBoundSuffix = []string{
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

// SumSeconds converts a histogram sum to seconds.
func SumSeconds(d time.Duration) float64 {
	return d.Seconds()
}
