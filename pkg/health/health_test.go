package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticCheck(status Status, message string) Check {
	return func(context.Context) ComponentHealth {
		return ComponentHealth{Status: status, Message: message}
	}
}

func TestRunAggregatesWorstStatus(t *testing.T) {
	c := NewChecker()
	c.Register("store", staticCheck(StatusUp, ""))
	c.Register("cache", staticCheck(StatusDegraded, "slow"))

	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	require.Len(t, report.Components, 2)
	assert.Equal(t, StatusUp, report.Components["store"].Status)
	assert.Equal(t, "slow", report.Components["cache"].Message)

	c.Register("stream", staticCheck(StatusDown, "broker unreachable"))
	assert.Equal(t, StatusDown, c.Run(context.Background()).Status)
}

func TestRunWithoutChecks(t *testing.T) {
	report := NewChecker().Run(context.Background())
	assert.Equal(t, StatusUp, report.Status)
	assert.Empty(t, report.Components)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("store", staticCheck(StatusUp, ""))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusUp, report.Status)

	c.Register("store", staticCheck(StatusDown, "connection refused"))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLiveHandlerSkipsChecks(t *testing.T) {
	c := NewChecker()
	c.Register("store", staticCheck(StatusDown, "connection refused"))

	rec := httptest.NewRecorder()
	c.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
