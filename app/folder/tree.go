// Package folder serves the folder tree of a project
package folder

import (
	"net/http"
	"strconv"

	"filmforge/media-library/app/apierr"
	"filmforge/media-library/internal"
	"filmforge/media-library/pkg/medialib"

	"github.com/gin-gonic/gin"
)

func FolderTree(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	tree, err := d.Catalog.FolderTree(c.Request.Context(), userID, c.Param("project"))
	if err != nil {
		apierr.Respond(c, err, "Failed to build folder tree")
		return
	}

	c.JSON(http.StatusOK, tree)
}

func FolderCreate(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	var req medialib.FolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "Invalid request body")
		return
	}

	f, err := d.Catalog.CreateFolder(c.Request.Context(), userID, c.Param("project"), req)
	if err != nil {
		apierr.Respond(c, err, "Failed to create folder")
		return
	}

	c.JSON(http.StatusCreated, f)
}

func FolderRename(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	var req medialib.FolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "Invalid request body")
		return
	}

	f, err := d.Catalog.RenameFolder(c.Request.Context(), userID, c.Param("project"), c.Param("id"), req.Name)
	if err != nil {
		apierr.Respond(c, err, "Failed to rename folder")
		return
	}

	c.JSON(http.StatusOK, f)
}

// FolderDelete deletes a folder without subfolders. With move_to_parent its
// files survive in the parent folder, otherwise they are deleted too.
func FolderDelete(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	move := false
	if v := c.Query("move_to_parent"); v != "" {
		var err error
		if move, err = strconv.ParseBool(v); err != nil {
			apierr.BadRequest(c, "move_to_parent must be a boolean")
			return
		}
	}

	_, err := d.Catalog.DeleteFolder(c.Request.Context(), userID, c.Param("project"), c.Param("id"), move)
	if err != nil {
		apierr.Respond(c, err, "Failed to delete folder")
		return
	}

	c.Status(http.StatusNoContent)
}
