// Package response writes the {success, data, message} envelope used by
// every endpoint.
package response

import (
	"github.com/gin-gonic/gin"
	"github.com/tubeline/user-service/pkg/apperr"
	"github.com/tubeline/user-service/pkg/logger"
)

// Envelope is the JSON body of every response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

// OK writes a success envelope with the given status.
func OK(c *gin.Context, status int, data interface{}, message string) {
	c.JSON(status, Envelope{Success: true, Data: data, Message: message})
}

// Fail aborts the request with an error envelope. The status comes from the
// error kind; causes are logged but never rendered.
func Fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= 500 {
		logger.WithFields(logger.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"kind":   kind.String(),
		}).Errorf("request failed: %v", err)
	}
	c.AbortWithStatusJSON(status, Envelope{Success: false, Data: nil, Message: apperr.PublicMessage(err)})
}
