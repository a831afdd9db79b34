package file

import (
	"net/http"

	"filmforge/media-library/app/apierr"
	"filmforge/media-library/internal"
	"filmforge/media-library/pkg/medialib"

	"github.com/gin-gonic/gin"
)

// FileRegister creates the catalog entry of an object uploaded with a grant.
func FileRegister(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	var req medialib.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "Invalid request body")
		return
	}

	f, err := d.Uploads.Register(c.Request.Context(), userID, c.Param("project"), req)
	if err != nil {
		apierr.Respond(c, err, "Failed to register upload")
		return
	}

	c.JSON(http.StatusCreated, f.ToMedia())
}
