package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type createShareRequest struct {
	ExpiresAt *time.Time `json:"expiresAt"`
}

// CreateShareLink mints a public token for a screenshot the caller owns.
func (h HandlerSet) CreateShareLink(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		failure(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req createShareRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			failure(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	result, err := h.shareService.CreateLink(c.Request.Context(), user.ID, c.Param("id"), req.ExpiresAt)
	if err != nil {
		h.log.Warn().Err(err).Str("user_id", user.ID).Str("screenshot_id", c.Param("id")).Msg("share link creation failed")
		pipelineFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"shareUrl": result.ShareURL,
		"token":    result.Link.Token,
	})
}

// ResolveShare is the public, unauthenticated token lookup. Anyone holding
// the token can view the record; ownership is not re-checked.
func (h HandlerSet) ResolveShare(c *gin.Context) {
	shot, err := h.shareService.Resolve(c.Request.Context(), c.Param("token"))
	if err != nil {
		pipelineFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"screenshot": toScreenshotResponse(shot),
	})
}

// GenerateReport returns the verification report payload; document layout is
// the caller's concern.
func (h HandlerSet) GenerateReport(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		failure(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	payload, err := h.shareService.Report(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		pipelineFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"report": gin.H{
			"screenshot":  toScreenshotResponse(payload.Screenshot),
			"generatedAt": payload.GeneratedAt,
			"reportId":    payload.ReportID,
		},
	})
}
