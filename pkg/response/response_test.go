package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(write func(*gin.Context)) (*httptest.ResponseRecorder, Body) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	write(c)
	var body Body
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestOK(t *testing.T) {
	w, body := perform(func(c *gin.Context) { OK(c, gin.H{"id": "abc"}) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, body.Success)
	assert.Empty(t, body.Error)
	data, ok := body.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "abc", data["id"])
}

func TestErrorEnvelopes(t *testing.T) {
	tests := []struct {
		name  string
		write func(*gin.Context)
		code  int
	}{
		{"bad request", func(c *gin.Context) { BadRequest(c, "nope") }, http.StatusBadRequest},
		{"unauthorized", func(c *gin.Context) { Unauthorized(c, "nope") }, http.StatusUnauthorized},
		{"forbidden", func(c *gin.Context) { Forbidden(c, "nope") }, http.StatusForbidden},
		{"not found", func(c *gin.Context) { NotFound(c, "nope") }, http.StatusNotFound},
		{"conflict", func(c *gin.Context) { Conflict(c, "nope") }, http.StatusConflict},
		{"too many requests", func(c *gin.Context) { TooManyRequests(c, "nope") }, http.StatusTooManyRequests},
		{"service unavailable", func(c *gin.Context) { ServiceUnavailable(c, "nope") }, http.StatusServiceUnavailable},
		{"internal", func(c *gin.Context) { Internal(c, "nope") }, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := perform(tt.write)
			assert.Equal(t, tt.code, w.Code)
			assert.False(t, body.Success)
			assert.Equal(t, "nope", body.Error)
		})
	}
}

func TestNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	NoContent(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.Bytes())
}
