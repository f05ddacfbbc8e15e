package handler

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func TestRouterHealthAndFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewLedgerHandler(&mockLedgerCommander{}, &mockLedgerQuerier{}, nil)
	router := NewRouter(h, zap.NewNop(), time.Second, func() any { return map[string]int{"accounts": 2} })

	w := doRequest(router, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) || !strings.Contains(w.Body.String(), `"accounts":2`) {
		t.Errorf("unexpected health body: %s", w.Body.String())
	}

	w = doRequest(router, http.MethodGet, "/api/v2/accounts", nil)
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), `"status":"failure"`) {
		t.Errorf("expected enveloped 404, got %d: %s", w.Code, w.Body.String())
	}
}
