package errors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestErrorHandler_WritesMoosyncErrorResponse(t *testing.T) {
	c, w := newTestContext(t)
	handler := ErrorHandler()

	c.Error(ValidationError("bad request body"))
	handler(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "bad request body")
}

func TestErrorHandler_NoErrorsIsANoop(t *testing.T) {
	c, w := newTestContext(t)
	handler := ErrorHandler()
	handler(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestErrorHandler_UnknownErrorFallsBackTo500(t *testing.T) {
	c, w := newTestContext(t)
	handler := ErrorHandler()

	c.Error(assertPlainError("boom"))
	handler(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRecovery_RecoversPanicAsInternalError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Recovery())
	router.GET("/boom", func(c *gin.Context) {
		panic("unexpected failure")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)

	require.NotPanics(t, func() { router.ServeHTTP(w, req) })
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleError_MoosyncErrorUsesItsOwnStatusCode(t *testing.T) {
	c, w := newTestContext(t)
	HandleError(c, AuthError("token expired"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleError_PlainErrorWrapsAsIO(t *testing.T) {
	c, w := newTestContext(t)
	HandleError(c, assertPlainError("disk full"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

type plainError string

func (p plainError) Error() string { return string(p) }

func assertPlainError(msg string) error { return plainError(msg) }
