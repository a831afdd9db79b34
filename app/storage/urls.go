// Package storage exchanges object keys for access URLs and reports quota
package storage

import (
	"net/http"
	"time"

	"filmforge/media-library/app/apierr"
	"filmforge/media-library/internal"
	"filmforge/media-library/pkg/medialib"

	"github.com/gin-gonic/gin"
)

func URLExchange(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	var req medialib.ExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "Invalid request body")
		return
	}

	signed, err := d.URLs.Exchange(c.Request.Context(), userID, req.Key, time.Duration(req.LifetimeSeconds)*time.Second)
	if err != nil {
		apierr.Respond(c, err, "Failed to exchange key")
		return
	}

	c.JSON(http.StatusOK, signed)
}

func URLExchangeBulk(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	var req medialib.BulkExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "Invalid request body")
		return
	}

	if len(req.Keys) > medialib.MaxExchangeBatch {
		apierr.BadRequest(c, "Too many keys in one request")
		return
	}

	resp, err := d.URLs.ExchangeMany(c.Request.Context(), userID, req.Keys, time.Duration(req.LifetimeSeconds)*time.Second)
	if err != nil {
		apierr.Respond(c, err, "Failed to exchange keys")
		return
	}

	c.JSON(http.StatusOK, resp)
}

func Quota(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	stats, err := d.Catalog.Quota(c.Request.Context(), userID)
	if err != nil {
		apierr.Respond(c, err, "Failed to get quota")
		return
	}

	c.JSON(http.StatusOK, medialib.Quota{
		Used:  stats.UsedStorage,
		Total: stats.MaxStorage,
	})
}
