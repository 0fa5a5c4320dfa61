package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"judgemicro/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
)

type traceResponse struct {
	TraceID      string `json:"trace_id"`
	RequestID    string `json:"request_id"`
	CtxTraceID   string `json:"ctx_trace_id"`
	CtxRequestID string `json:"ctx_request_id"`
}

func newTraceRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(TraceContextMiddleware())
	router.GET("/trace", func(c *gin.Context) {
		ctx := c.Request.Context()
		c.JSON(http.StatusOK, traceResponse{
			TraceID:      c.GetString("trace_id"),
			RequestID:    c.GetString("request_id"),
			CtxTraceID:   ctxString(ctx.Value(contextkey.TraceID)),
			CtxRequestID: ctxString(ctx.Value(contextkey.RequestID)),
		})
	})
	return router
}

func ctxString(value any) string {
	s, _ := value.(string)
	return s
}

func TestTraceContextMiddlewareGenerates(t *testing.T) {
	router := newTraceRouter()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trace", nil))

	var resp traceResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if resp.TraceID == "" || resp.RequestID == "" {
		t.Fatalf("expected generated ids, got %+v", resp)
	}
	if resp.CtxTraceID != resp.TraceID || resp.CtxRequestID != resp.RequestID {
		t.Fatalf("request context ids diverge from gin context: %+v", resp)
	}
	if rec.Header().Get("X-Trace-Id") != resp.TraceID || rec.Header().Get("X-Request-Id") != resp.RequestID {
		t.Fatalf("response headers do not echo the ids")
	}
}

func TestTraceContextMiddlewarePreserves(t *testing.T) {
	router := newTraceRouter()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/trace", nil)
	req.Header.Set("X-Trace-Id", "trace-123")
	req.Header.Set("X-Request-Id", "req-123")
	router.ServeHTTP(rec, req)

	var resp traceResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if resp.TraceID != "trace-123" || resp.CtxTraceID != "trace-123" {
		t.Fatalf("incoming trace id not preserved: %+v", resp)
	}
	if resp.RequestID != "req-123" || resp.CtxRequestID != "req-123" {
		t.Fatalf("incoming request id not preserved: %+v", resp)
	}
	if rec.Header().Get("X-Trace-Id") != "trace-123" {
		t.Fatalf("trace header not echoed")
	}
}
