// Package response writes JSON bodies for the v1 API.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/presensia/presensia-core/internal/apperr"
)

// Error writes err with the status of its kind. Errors outside the taxonomy
// are reported as UNKNOWN_ERROR without their text.
func Error(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	msg := apperr.MessageOf(err)
	if kind == apperr.KindUnknown {
		msg = "internal error"
	}
	body := gin.H{
		"ok":    false,
		"code":  kind,
		"error": msg,
	}
	var fe fieldErrors
	if errors.As(err, &fe) {
		body["fields"] = fe.Fields()
	}
	c.AbortWithStatusJSON(apperr.HTTPStatus(kind), body)
}

// fieldErrors is implemented by per-field validation failures.
type fieldErrors interface {
	error
	Fields() map[string]string
}

// BadRequest reports a body or query that could not be decoded.
func BadRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"ok":      false,
		"code":    apperr.KindValidation,
		"error":   "invalid request body",
		"details": err.Error(),
	})
}

func OK(c *gin.Context, key string, v any) {
	c.JSON(http.StatusOK, gin.H{"ok": true, key: v})
}

func Created(c *gin.Context, key string, v any) {
	c.JSON(http.StatusCreated, gin.H{"ok": true, key: v})
}
