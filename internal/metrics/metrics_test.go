package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordTransferCountsCommittedAmount(t *testing.T) {
	before := testutil.ToFloat64(transferredBaseUnits)

	RecordTransfer("ok", 666_666_666)
	RecordTransfer("insufficient_balance", 10)

	require.Equal(t, before+666_666_666, testutil.ToFloat64(transferredBaseUnits))
	require.GreaterOrEqual(t, testutil.ToFloat64(transfers.WithLabelValues("insufficient_balance")), 1.0)
}

func TestHandlerExposesConversions(t *testing.T) {
	RecordConversion("twap", "stale_price")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), `fiatsend_conversion_total{mode="twap",outcome="stale_price"}`))
}

func TestInstrumentHandlerRecordsStatus(t *testing.T) {
	h := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/quote", nil))

	require.Equal(t, 1.0, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "unmatched", "418")))
}
