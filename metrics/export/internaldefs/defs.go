package internaldefs

import (
	"github.com/homefund/authkit"
)

// CounterDef binds a counter MetricID to its exported name and help text.
type CounterDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram MetricID to its exported name and help text.
type HistogramDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

// CounterDefs enumerates every exported counter, in MetricID order.
var CounterDefs = []CounterDef{
	{ID: authkit.MetricLoginSuccess, Name: "authkit_login_success_total", Help: "Successful login attempts."},
	{ID: authkit.MetricLoginFailure, Name: "authkit_login_failure_total", Help: "Failed login attempts."},
	{ID: authkit.MetricLoginRateLimited, Name: "authkit_login_rate_limited_total", Help: "Login attempts rejected by the lockout window."},
	{ID: authkit.MetricRefreshSuccess, Name: "authkit_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authkit.MetricRefreshFailure, Name: "authkit_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: authkit.MetricDeviceMismatch, Name: "authkit_device_mismatch_total", Help: "Refresh attempts rejected by device binding."},
	{ID: authkit.MetricSessionCreated, Name: "authkit_session_created_total", Help: "Created sessions."},
	{ID: authkit.MetricSessionInvalidated, Name: "authkit_session_invalidated_total", Help: "Invalidated sessions."},
	{ID: authkit.MetricLogout, Name: "authkit_logout_total", Help: "Single-session logout operations."},
	{ID: authkit.MetricLogoutAll, Name: "authkit_logout_all_total", Help: "Logout-all operations."},
	{ID: authkit.MetricRegisterRequest, Name: "authkit_register_request_total", Help: "Registration requests."},
	{ID: authkit.MetricRegisterDuplicate, Name: "authkit_register_duplicate_total", Help: "Registrations folded into the duplicate branch."},
	{ID: authkit.MetricVerificationRequest, Name: "authkit_email_verification_request_total", Help: "Verification codes issued."},
	{ID: authkit.MetricVerificationSuccess, Name: "authkit_email_verification_success_total", Help: "Successful email verifications."},
	{ID: authkit.MetricVerificationFailure, Name: "authkit_email_verification_failure_total", Help: "Failed email verifications."},
	{ID: authkit.MetricResetRequest, Name: "authkit_password_reset_request_total", Help: "Password reset requests."},
	{ID: authkit.MetricResetSuccess, Name: "authkit_password_reset_success_total", Help: "Successful password resets."},
	{ID: authkit.MetricResetFailure, Name: "authkit_password_reset_failure_total", Help: "Failed password reset confirmations."},
}

// HistogramDefs enumerates every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authkit.MetricLoginLatency, Name: "authkit_login_latency_seconds", Help: "Login latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, matching the
// millisecond buckets recorded by the engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix holds filesystem- and OTel-safe variants of the
// bounds, index-aligned with HistogramBounds.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed
// 8-bucket layout.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// Prometheus histograms expose.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
