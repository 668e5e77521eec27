package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve_CountsByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveSession("ok")
	m.ObserveSession("ok")
	m.ObserveSubmission("done")
	m.ObserveNotification("failed")
	m.ObserveBackOffice("create_order", 120*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CheckoutSessions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("failed")))
}

func TestObserve_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveSession("ok")
	m.ObserveSubmission("failed")
	m.ObserveNotification("sent")
	m.ObserveBackOffice("add_item", time.Second)
}

func TestHandler_ServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveSubmission("done")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `kundeklubb_order_submissions_total{state="done"} 1`))
}
