package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/items/{itemId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/items/{itemId}", "204"))
	for _, id := range []string{"a", "b", "c"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
		require.Equal(t, http.StatusNoContent, rr.Code)
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/items/{itemId}", "204"))

	require.Equal(t, 3.0, after-before)
}

func TestRecordUploadOnlyCountsAcceptedBytes(t *testing.T) {
	before := testutil.ToFloat64(uploadBytes)
	RecordUpload(100, true)
	RecordUpload(50, false)
	require.Equal(t, 100.0, testutil.ToFloat64(uploadBytes)-before)
}

func TestWebsocketGauge(t *testing.T) {
	before := testutil.ToFloat64(wsConnectionsActive)
	WebsocketConnected()
	WebsocketConnected()
	WebsocketDisconnected()
	require.Equal(t, 1.0, testutil.ToFloat64(wsConnectionsActive)-before)
}
