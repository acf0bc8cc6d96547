package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h HandlerSet) AdminListScreenshots(c *gin.Context) {
	limit, offset := pagination(c, 50)

	shots, err := h.screenshots.List(c.Request.Context(), limit, offset)
	if err != nil {
		failure(c, http.StatusInternalServerError, err.Error())
		return
	}

	items := make([]map[string]interface{}, 0, len(shots))
	for _, s := range shots {
		items = append(items, map[string]interface{}{
			"id":                 s.ID,
			"userId":             s.UserID,
			"originalFilename":   s.OriginalFilename,
			"mimeType":           s.MimeType,
			"sizeBytes":          s.SizeBytes,
			"sha256Hash":         s.SHA256,
			"verificationStatus": s.Status,
			"createdAt":          s.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"items":   items,
	})
}
