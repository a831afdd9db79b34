package cloud

import (
	"net/http"

	"filmforge/media-library/app/apierr"
	"filmforge/media-library/internal"
	"filmforge/media-library/pkg/medialib"

	"github.com/gin-gonic/gin"
)

// Sync pushes a file or a folder tree of a project to a linked provider and
// answers with the counts once every file was attempted.
func Sync(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	var req medialib.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "Invalid request body")
		return
	}

	report, err := d.Sync.Run(c.Request.Context(), userID, c.Param("project"), req)
	if err != nil {
		apierr.Respond(c, err, "Failed to sync")
		return
	}

	c.JSON(http.StatusOK, report)
}
