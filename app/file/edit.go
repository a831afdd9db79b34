package file

import (
	"net/http"

	"filmforge/media-library/app/apierr"
	"filmforge/media-library/internal"
	"filmforge/media-library/pkg/medialib"

	"github.com/gin-gonic/gin"
)

// FileEdit renames and/or moves a file.
func FileEdit(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	var req medialib.FileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "Invalid request body")
		return
	}

	f, err := d.Catalog.UpdateFile(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		apierr.Respond(c, err, "Failed to update file")
		return
	}

	c.JSON(http.StatusOK, f.ToMedia())
}
