package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"depthpipe/internal/iceberg"
	"depthpipe/internal/liquidity"
	"depthpipe/internal/model"
	"depthpipe/internal/orderbook"
)

func newTestServer() *Server {
	gin.SetMode(gin.TestMode)
	keeper := orderbook.New()
	keeper.ApplySnapshot(model.Snapshot{
		LastUpdateID: 1,
		Bids:         []model.PriceLevel{{Price: 100, Quantity: 1}},
		Asks:         []model.PriceLevel{{Price: 101, Quantity: 1}},
	})
	lt := liquidity.New(liquidity.DefaultConfig(), 16)
	id := iceberg.New("BTCUSDT", 16)
	return New(keeper, lt, id)
}

func TestHealthzReturns200(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsReturns200(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "best_bid")
}

func TestDepthReturns200(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/depth", nil)
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "bids")
}
