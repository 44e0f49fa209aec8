package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Check(t *testing.T) {
	m := New(nil)
	m.Check(ModeFull, true, time.Millisecond)
	m.Check(ModeFull, false, time.Millisecond)
	m.Check(ModeFull, false, time.Millisecond)
	m.Check(ModeQuick, true, time.Microsecond)

	assert.InDelta(t, 1, testutil.ToFloat64(m.checks.WithLabelValues(ModeFull, "pass")), 0.001)
	assert.InDelta(t, 2, testutil.ToFloat64(m.checks.WithLabelValues(ModeFull, "reject")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.checks.WithLabelValues(ModeQuick, "pass")), 0.001)
	assert.InDelta(t, 0, testutil.ToFloat64(m.checks.WithLabelValues(ModeQuick, "reject")), 0.001)
}

func TestMetrics_Submission(t *testing.T) {
	m := New(nil)
	m.Submission(SubmissionAccepted)
	m.Submission(SubmissionRejected)
	m.Submission(SubmissionRejected)

	assert.InDelta(t, 1, testutil.ToFloat64(m.submissions.WithLabelValues(SubmissionAccepted)), 0.001)
	assert.InDelta(t, 2, testutil.ToFloat64(m.submissions.WithLabelValues(SubmissionRejected)), 0.001)
	assert.InDelta(t, 0, testutil.ToFloat64(m.submissions.WithLabelValues(SubmissionFailed)), 0.001)
}

func TestMetrics_Handler(t *testing.T) {
	size := 7
	m := New(func() int { return size })
	m.Check(ModeQuick, false, time.Millisecond)
	m.Submission(SubmissionFailed)

	ts := httptest.NewServer(m.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `prayers_checks_total{mode="quick",result="reject"} 1`)
	assert.Contains(t, string(body), `prayers_submissions_total{result="failed"} 1`)
	assert.Contains(t, string(body), "prayers_filter_cache_entries 7")
	assert.Contains(t, string(body), "prayers_check_duration_seconds_bucket")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	m1, m2 := New(nil), New(nil)
	m1.Submission(SubmissionAccepted)
	assert.InDelta(t, 0, testutil.ToFloat64(m2.submissions.WithLabelValues(SubmissionAccepted)), 0.001)
	assert.NotSame(t, m1.Registry(), m2.Registry())
}
