package file

import (
	"net/http"

	"filmforge/media-library/app/apierr"
	"filmforge/media-library/internal"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FileDelete removes a file and its stored object.
func FileDelete(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	f, err := d.Catalog.DeleteFile(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		apierr.Respond(c, err, "Failed to delete file")
		return
	}

	zap.L().Debug("Deleted file", zap.String("key", f.ObjectKey), zap.String("requestID", requestID))

	c.Status(http.StatusNoContent)
}
