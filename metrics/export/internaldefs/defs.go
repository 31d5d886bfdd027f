package internaldefs

import (
	tokenward "github.com/averano/tokenward"
)

// CounterDef binds a tokenward counter ID to a stable exported name.
type CounterDef struct {
	ID   tokenward.MetricID
	Name string
	Help string
}

// HistogramDef binds a tokenward histogram ID to a stable exported name.
type HistogramDef struct {
	ID   tokenward.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter the service records, in a fixed order so
// exporter output is deterministic.
var CounterDefs = []CounterDef{
	{ID: tokenward.MetricIssueSuccess, Name: "tokenward_issue_success_total", Help: "Issued token pairs."},
	{ID: tokenward.MetricIssueFailure, Name: "tokenward_issue_failure_total", Help: "Failed issuance attempts."},
	{ID: tokenward.MetricLoginSuccess, Name: "tokenward_login_success_total", Help: "Successful password logins."},
	{ID: tokenward.MetricLoginFailure, Name: "tokenward_login_failure_total", Help: "Rejected password logins."},
	{ID: tokenward.MetricVerifySuccess, Name: "tokenward_verify_success_total", Help: "Verifications that returned an identity."},
	{ID: tokenward.MetricVerifyInvalid, Name: "tokenward_verify_invalid_total", Help: "Undecodable, tampered, or wrong-type tokens."},
	{ID: tokenward.MetricVerifyExpired, Name: "tokenward_verify_expired_total", Help: "Expired tokens and epoch mismatches."},
	{ID: tokenward.MetricVerifyRevoked, Name: "tokenward_verify_revoked_total", Help: "Tokens found in the revocation registry."},
	{ID: tokenward.MetricVerifyAccountMissing, Name: "tokenward_verify_account_missing_total", Help: "Tokens for missing or inactive accounts."},
	{ID: tokenward.MetricVerifyUnavailable, Name: "tokenward_verify_unavailable_total", Help: "Fail-closed rejections during registry or store outages."},
	{ID: tokenward.MetricRefreshSuccess, Name: "tokenward_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: tokenward.MetricRefreshFailure, Name: "tokenward_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: tokenward.MetricRefreshReuseDetected, Name: "tokenward_refresh_reuse_detected_total", Help: "Refresh attempts with an already-rotated token."},
	{ID: tokenward.MetricRevoke, Name: "tokenward_revoke_total", Help: "Single-token revocations."},
	{ID: tokenward.MetricRevokeExpiredNoop, Name: "tokenward_revoke_expired_noop_total", Help: "Revocations of already-expired tokens."},
	{ID: tokenward.MetricRevokeAll, Name: "tokenward_revoke_all_total", Help: "Epoch-bump revoke-everywhere operations."},
	{ID: tokenward.MetricSessionLimitExceeded, Name: "tokenward_session_limit_exceeded_total", Help: "Issuances denied by the per-account session cap."},
}

// HistogramDefs lists the exported histograms.
var HistogramDefs = []HistogramDef{
	{ID: tokenward.MetricVerifyLatency, Name: "tokenward_verify_latency_seconds", Help: "Verify latency histogram."},
}

// HistogramBounds are the upper bounds of the latency buckets, as Prometheus
// le label values. Must stay aligned with the core histogram layout.
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

// HistogramBoundSuffix holds the bounds as name-safe suffixes for backends
// that cannot carry labels.
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

// NormalizeBuckets copies a snapshot bucket slice into the fixed layout,
// tolerating short or nil input.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form both
// Prometheus and OTel expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
