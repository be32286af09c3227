// Package response renders coded errors as a JSON envelope. File and
// CGI handlers write their own legacy bodies; this envelope is for the
// management surface and middleware rejections.
package response

import (
	"gamezipserver/pkg/errors"
	"gamezipserver/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Envelope is the JSON body sent for coded errors.
type Envelope struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Details interface{}      `json:"details,omitempty"`
	TraceID string           `json:"trace_id,omitempty"`
}

// Error logs err and writes it as an Envelope with the HTTP status
// derived from its code.
func Error(c *gin.Context, err error) {
	coded := errors.GetError(err)

	logger.Error(c.Request.Context(), "request error",
		zap.Int("code", int(coded.Code)),
		zap.String("message", coded.Error()),
		zap.Any("details", coded.Details),
	)

	c.JSON(coded.Code.HTTPStatus(), Envelope{
		Code:    coded.Code,
		Message: coded.Error(),
		Details: coded.Details,
		TraceID: traceID(c),
	})
}

// AbortWithError writes the error envelope and stops the handler chain.
func AbortWithError(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

func traceID(c *gin.Context) string {
	if id, ok := c.Get("trace_id"); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
