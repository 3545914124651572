package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	err := New(KindDataFetch, "search failed", context.DeadlineExceeded)
	wrapped := fmt.Errorf("pipeline: %w", err)

	assert.Equal(t, KindDataFetch, KindOf(wrapped))
	assert.True(t, Is(wrapped, context.DeadlineExceeded))
	assert.Equal(t, "data_fetch_failure", KindOf(wrapped).FrameTag())
	assert.Equal(t, KindUnknown, KindOf(stderrors.New("plain")))
	assert.Equal(t, "search failed: context deadline exceeded", err.Error())
}

func TestFrameTag(t *testing.T) {
	assert.Equal(t, "planning_failure", KindPlanning.FrameTag())
	assert.Equal(t, "internal_failure", KindUnknown.FrameTag())
}

func TestSanitizeError(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	assert.Equal(t, "database operation failed", sanitizeError(stderrors.New("sql: connection reset")))
	assert.Equal(t, "request timed out", sanitizeError(context.DeadlineExceeded))
	assert.Equal(t, "", sanitizeError(nil))

	t.Setenv("ENVIRONMENT", "development")
	assert.Equal(t, "boom", sanitizeError(stderrors.New("boom")))
}

func TestBadRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	BadRequest(c, "", nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"bad_request","message":"invalid request"}`, w.Body.String())
}
