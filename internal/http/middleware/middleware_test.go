package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(log logrus.FieldLogger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Logging(log), Recovery(log))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, RequestID(c)) })
	r.GET("/boom", func(c *gin.Context) { panic("boom") })
	return r
}

func TestLogging_AssignsRequestID(t *testing.T) {
	log, _ := test.NewNullLogger()
	r := newEngine(log)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.Equal(t, http.StatusOK, w.Code)
	id := w.Header().Get(RequestIDHeader)
	assert.Len(t, id, 36)
	assert.Equal(t, id, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestRecovery_PanicBecomes500(t *testing.T) {
	log, hook := test.NewNullLogger()
	r := newEngine(log)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, w.Body.String())

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Message == "handler panic" {
			found = true
			assert.Equal(t, "boom", e.Data["panic"])
		}
	}
	assert.True(t, found)
}
