package cloud

import (
	"net/http"

	"filmforge/media-library/app/apierr"
	"filmforge/media-library/internal"
	"filmforge/media-library/pkg/medialib"

	"github.com/gin-gonic/gin"
)

// Files lists a provider folder, either one of the well-known folders or a
// provider-native id. Cloud listings are always read live.
func Files(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	p, ok := provider(c)
	if !ok {
		return
	}

	folder := c.Query("folder_id")
	if folder == "" {
		apierr.BadRequest(c, "folder_id is required")
		return
	}

	client, err := d.Connections.Open(c.Request.Context(), userID, p)
	if err != nil {
		apierr.Respond(c, err, "Failed to open provider")
		return
	}

	files, err := client.List(c.Request.Context(), folder)
	if err != nil {
		apierr.Respond(c, err, "Failed to list cloud files")
		return
	}

	if files == nil {
		files = []medialib.MediaFile{}
	}

	c.JSON(http.StatusOK, files)
}

// FileURL returns a fresh link for a cloud file whose direct link expired.
func FileURL(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	p, ok := provider(c)
	if !ok {
		return
	}

	client, err := d.Connections.Open(c.Request.Context(), userID, p)
	if err != nil {
		apierr.Respond(c, err, "Failed to open provider")
		return
	}

	signed, err := client.URL(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Respond(c, err, "Failed to get cloud file link")
		return
	}

	c.JSON(http.StatusOK, signed)
}
