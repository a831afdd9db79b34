// Package file serves the authoritative files of a project
package file

import (
	"net/http"

	"filmforge/media-library/app/apierr"
	"filmforge/media-library/internal"
	"filmforge/media-library/pkg/medialib"

	"github.com/gin-gonic/gin"
)

func FileList(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	var folderID *string
	if v := c.Query("folder_id"); v != "" {
		folderID = &v
	}

	files, err := d.Catalog.ListFiles(c.Request.Context(), userID, c.Param("project"), folderID)
	if err != nil {
		apierr.Respond(c, err, "Failed to list files")
		return
	}

	out := make([]medialib.MediaFile, len(files))
	for i := range files {
		out[i] = files[i].ToMedia()
	}

	c.JSON(http.StatusOK, out)
}
