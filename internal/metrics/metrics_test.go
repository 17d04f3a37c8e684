package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return New(prometheus.NewRegistry())
}

func TestRecordWebhook(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordWebhook("image", "success", 1.2)
	m.RecordWebhook("image", "success", 0.3)
	m.RecordWebhook("postback", "error", 0.1)

	if got := testutil.ToFloat64(m.WebhookRequestsTotal.WithLabelValues("image", "success")); got != 2 {
		t.Errorf("image/success count = %f, want 2", got)
	}
	if got := testutil.ToFloat64(m.WebhookRequestsTotal.WithLabelValues("postback", "error")); got != 1 {
		t.Errorf("postback/error count = %f, want 1", got)
	}
}

func TestRecordExternalCall(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordExternalCall("vision", "success", 0.8)
	m.RecordExternalCall("vision", "auth", 0.2)

	if got := testutil.ToFloat64(m.ExternalRequestsTotal.WithLabelValues("vision", "success")); got != 1 {
		t.Errorf("vision/success count = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.ExternalRequestsTotal.WithLabelValues("vision", "auth")); got != 1 {
		t.Errorf("vision/auth count = %f, want 1", got)
	}
}

func TestRecordClassificationBranch(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordClassificationBranch("carousel")
	m.RecordClassificationBranch("carousel")
	m.RecordClassificationBranch("neither")

	if got := testutil.ToFloat64(m.ClassificationBranchTotal.WithLabelValues("carousel")); got != 2 {
		t.Errorf("carousel count = %f, want 2", got)
	}
}

func TestGauges(t *testing.T) {
	m := newTestMetrics(t)

	m.SetRateLimiterUsers(7)
	if got := testutil.ToFloat64(m.RateLimiterUsers); got != 7 {
		t.Errorf("RateLimiterUsers = %f, want 7", got)
	}

	m.SetCacheSize("celebs", 1234)
	if got := testutil.ToFloat64(m.CacheSize.WithLabelValues("celebs")); got != 1234 {
		t.Errorf("CacheSize = %f, want 1234", got)
	}
}

func TestRecordKeyRotation(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordKeyRotation()
	m.RecordKeyRotation()

	if got := testutil.ToFloat64(m.VisionKeyRotationsTotal); got != 2 {
		t.Errorf("VisionKeyRotationsTotal = %f, want 2", got)
	}
}
