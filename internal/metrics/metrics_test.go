package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDropped(t *testing.T) {
	before := testutil.ToFloat64(messagesDroppedTotal.WithLabelValues("q", "buffer_full"))
	RecordDropped("q", "buffer_full")
	assert.Equal(t, before+1, testutil.ToFloat64(messagesDroppedTotal.WithLabelValues("q", "buffer_full")))
}

func TestRecordNotification(t *testing.T) {
	RecordNotification("buyer", true)
	RecordNotification("buyer", false)
	assert.GreaterOrEqual(t, testutil.ToFloat64(notificationsTotal.WithLabelValues("buyer", "failed")), 1.0)
}

func TestHandlerExposesCollectors(t *testing.T) {
	RecordOperation("checkout", "applied")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "qbcart_reconciler_operations_total")
}
