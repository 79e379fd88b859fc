package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()
	require.NotNil(t, fetchesTotal)
	require.NotNil(t, backoffsTotal)
}

func TestHelpersDoNotPanic(t *testing.T) {
	Init()
	RecordFetchOutcome("valuation", "success")
	RecordPage("catalog", "200")
	IncBackoff()
	IncCooldown()
	ObserveThrottleDelay(2 * time.Second)
	RecordUpserts("sets", 5)
	RecordUpserts("sets", 0)
}

func TestHandlerServesMetrics(t *testing.T) {
	Init()
	RecordFetchOutcome("valuation", "success")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "brickscout_fetches_total")
}
