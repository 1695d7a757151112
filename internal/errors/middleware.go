package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ErrorHandler converts a MoosyncError collected via c.Error into the
// standard JSON error response, logging 5xx at error level and 4xx at warn.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last()
		if me, ok := err.Err.(*MoosyncError); ok {
			if me.StatusCode >= 500 {
				log.Error().Str("kind", string(me.Kind)).Str("details", me.Details).Msg(me.Message)
			} else {
				log.Warn().Str("kind", string(me.Kind)).Msg(me.Message)
			}
			c.JSON(me.StatusCode, me.ToResponse())
			return
		}

		log.Error().Err(err.Err).Msg("unhandled error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   string(KindIO),
			Message: "an unexpected error occurred",
		})
	}
}

// Recovery recovers from panics in handlers, matching the "plugin trap does
// not kill the host" posture at the HTTP boundary.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("recovered from panic")
				c.JSON(http.StatusInternalServerError, ErrorResponse{
					Error:   string(KindIO),
					Message: "an unexpected error occurred",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// HandleError is a helper for handlers to respond with a MoosyncError.
func HandleError(c *gin.Context, err error) {
	if me, ok := err.(*MoosyncError); ok {
		c.Error(me)
		c.JSON(me.StatusCode, me.ToResponse())
		return
	}
	wrapped := IOError(err)
	c.Error(wrapped)
	c.JSON(wrapped.StatusCode, wrapped.ToResponse())
}

// AbortWithError aborts the request with a MoosyncError response.
func AbortWithError(c *gin.Context, err *MoosyncError) {
	c.Error(err)
	c.AbortWithStatusJSON(err.StatusCode, err.ToResponse())
}
