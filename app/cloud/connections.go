// Package cloud serves linked cloud providers and syncing into them
package cloud

import (
	"net/http"

	"filmforge/media-library/app/apierr"
	"filmforge/media-library/internal"
	"filmforge/media-library/pkg/medialib"

	"github.com/gin-gonic/gin"
)

func provider(c *gin.Context) (medialib.Provider, bool) {
	p := medialib.Provider(c.Param("provider"))
	if !p.Valid() {
		apierr.BadRequest(c, "Unknown provider")
		return "", false
	}

	return p, true
}

func Connections(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	conns, err := d.Connections.List(c.Request.Context(), userID)
	if err != nil {
		apierr.Respond(c, err, "Failed to list connections")
		return
	}

	c.JSON(http.StatusOK, conns)
}

func Connect(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	p, ok := provider(c)
	if !ok {
		return
	}

	var req medialib.ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "Invalid request body")
		return
	}

	if err := d.Connections.Connect(c.Request.Context(), userID, p, req.Credentials); err != nil {
		apierr.Respond(c, err, "Failed to connect provider")
		return
	}

	c.Status(http.StatusNoContent)
}

func Disconnect(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	p, ok := provider(c)
	if !ok {
		return
	}

	if err := d.Connections.Disconnect(c.Request.Context(), userID, p); err != nil {
		apierr.Respond(c, err, "Failed to disconnect provider")
		return
	}

	c.Status(http.StatusNoContent)
}

// Providers lists what can be linked. The answer is static and cached.
func Providers(c *gin.Context, d *internal.Deps) {
	c.JSON(http.StatusOK, d.Registry.Providers())
}
