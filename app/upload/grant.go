// Package upload hands out direct-to-store upload grants
package upload

import (
	"net/http"

	"filmforge/media-library/app/apierr"
	"filmforge/media-library/internal"
	"filmforge/media-library/pkg/medialib"

	"github.com/gin-gonic/gin"
)

func UploadGrant(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	var req medialib.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "Invalid request body")
		return
	}

	grant, err := d.Uploads.Grant(c.Request.Context(), userID, c.Param("project"), req)
	if err != nil {
		apierr.Respond(c, err, "Failed to issue upload grant")
		return
	}

	c.JSON(http.StatusCreated, grant)
}
