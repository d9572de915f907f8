package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/crossarb/coordinator"
	"github.com/michaelpento.lv/crossarb/types"
	"github.com/michaelpento.lv/crossarb/utils/metrics"
)

func seededHistory() *coordinator.ProfitHistory {
	h := coordinator.NewProfitHistory()
	h.Append(types.ArbitrageAttempt{ID: 1, Status: types.StatusSuccess, Profit: decimal.NewFromFloat(0.4)})
	h.Append(types.ArbitrageAttempt{ID: 2, Status: types.StatusPartialSuccess, Profit: decimal.NewFromFloat(0.1)})
	h.Append(types.ArbitrageAttempt{ID: 3, Status: types.StatusFailed})
	return h
}

func TestGetHistory(t *testing.T) {
	s := New(":0", seededHistory(), metrics.NewRegistry(), zaptest.NewLogger(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	s.httpServer.Handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Attempts    []types.ArbitrageAttempt `json:"attempts"`
		TotalProfit decimal.Decimal          `json:"total_profit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Attempts, 3)
	assert.True(t, body.TotalProfit.Equal(decimal.NewFromFloat(0.5)))
}

func TestGetStatus(t *testing.T) {
	s := New(":0", seededHistory(), nil, zaptest.NewLogger(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	s.httpServer.Handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"attempts":3`)
}

func TestMetricsEndpointOnlyWithRegistry(t *testing.T) {
	withReg := New(":0", seededHistory(), metrics.NewRegistry(), zaptest.NewLogger(t))
	w := httptest.NewRecorder()
	withReg.httpServer.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	withoutReg := New(":0", seededHistory(), nil, zaptest.NewLogger(t))
	w = httptest.NewRecorder()
	withoutReg.httpServer.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
