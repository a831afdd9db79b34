// Package apierr turns service errors into JSON error responses
package apierr

import (
	"context"
	"errors"
	"net/http"

	"filmforge/media-library/internal/cloud"
	"filmforge/media-library/internal/service"
	"filmforge/media-library/pkg/medialib"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type mapping struct {
	err    error
	status int
	code   string
}

var mappings = []mapping{
	{service.ErrNotFound, http.StatusNotFound, medialib.CodeNotFound},
	{service.ErrObjectNotVisible, http.StatusConflict, medialib.CodeObjectNotVisible},
	{service.ErrDuplicateName, http.StatusConflict, medialib.CodeDuplicateName},
	{service.ErrFolderNotEmpty, http.StatusConflict, medialib.CodeFolderNotEmpty},
	{service.ErrNoCloudConnection, http.StatusConflict, medialib.CodeNoCloudConnection},
	{service.ErrQuotaExceeded, http.StatusRequestEntityTooLarge, medialib.CodeQuotaExceeded},
	{service.ErrInvalidRequest, http.StatusBadRequest, medialib.CodeInvalidRequest},
	{service.ErrGrantExpired, http.StatusBadRequest, medialib.CodeInvalidRequest},
	{cloud.ErrBadCredentials, http.StatusBadRequest, medialib.CodeInvalidRequest},
	{cloud.ErrUnknownProvider, http.StatusBadRequest, medialib.CodeInvalidRequest},
}

// Respond writes err as a JSON error. Unknown errors are logged with msg
// and reported as an internal error without details.
func Respond(c *gin.Context, err error, msg string) {
	requestID := c.GetString("requestID")

	for _, m := range mappings {
		if errors.Is(err, m.err) {
			c.JSON(m.status, medialib.ErrorResponse{
				Error:     err.Error(),
				Code:      m.code,
				RequestID: requestID,
			})
			return
		}
	}

	if errors.Is(err, context.Canceled) {
		c.Status(499)
		return
	}

	c.JSON(http.StatusInternalServerError, medialib.ErrorResponse{
		Error:     "Internal server error",
		RequestID: requestID,
	})

	zap.L().Error(msg, zap.Error(err), zap.String("requestID", requestID))
}

// BadRequest reports a malformed request.
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, medialib.ErrorResponse{
		Error:     msg,
		Code:      medialib.CodeInvalidRequest,
		RequestID: c.GetString("requestID"),
	})
}
