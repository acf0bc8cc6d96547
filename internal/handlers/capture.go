package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/thebookish/proofsnap/internal/editor"
	"github.com/thebookish/proofsnap/internal/fingerprint"
	"github.com/thebookish/proofsnap/internal/service"
)

// OpenCapture starts an editing session over a snapshotted frame. The
// client grabs one frame from its screen stream, releases the stream, and
// posts the frame here together with the on-screen overlay dimensions.
func (h HandlerSet) OpenCapture(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		failure(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	header, err := c.FormFile("frame")
	if err != nil {
		failure(c, http.StatusBadRequest, "No capture frame provided")
		return
	}
	data, err := readMultipartFile(header)
	if err != nil {
		failure(c, http.StatusBadRequest, "read frame: "+err.Error())
		return
	}

	displayW, _ := strconv.ParseFloat(c.PostForm("displayWidth"), 64)
	displayH, _ := strconv.ParseFloat(c.PostForm("displayHeight"), 64)

	sess, err := h.captureService.Open(user.ID, data, displayW, displayH)
	if err != nil {
		captureFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"sessionId": sess.ID,
	})
}

type gestureRequest struct {
	Tool        string         `json:"tool" binding:"required"`
	Color       string         `json:"color"`
	StrokeWidth float64        `json:"strokeWidth"`
	Points      []editor.Point `json:"points"`
	Text        string         `json:"text"`
}

// CaptureGesture feeds one pointer interaction into the session's editor:
// down at the first point, samples through the middle, up at the last.
func (h HandlerSet) CaptureGesture(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		failure(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req gestureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, err.Error())
		return
	}

	err := h.captureService.Gesture(c.Param("id"), user.ID, service.GestureInput{
		Tool:        editor.Tool(req.Tool),
		Color:       req.Color,
		StrokeWidth: req.StrokeWidth,
		Points:      req.Points,
		Text:        req.Text,
	})
	if err != nil {
		captureFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type finalizeRequest struct {
	Mode    string `json:"mode"`
	Project string `json:"project"`
	Tags    string `json:"tags"`
}

// FinalizeCapture burns in all committed edits and hands the flattened PNG
// to the upload pipeline.
func (h HandlerSet) FinalizeCapture(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		failure(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req finalizeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			failure(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	mode := service.CaptureModeFull
	if req.Mode == string(service.CaptureModeSelection) {
		mode = service.CaptureModeSelection
	}

	result, err := h.captureService.Finalize(c.Request.Context(), c.Param("id"), user.ID, service.FinalizeInput{
		Mode:    mode,
		Project: req.Project,
		RawTags: req.Tags,
		Client:  fingerprint.FromHeaders(c.Request.Header),
	})
	if err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Str("session_id", c.Param("id")).Msg("capture finalize failed")
		captureFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"screenshot": toScreenshotResponse(result.Screenshot),
	})
}

// CancelCapture aborts a session before finalize; all accumulated state is
// discarded, nothing was uploaded.
func (h HandlerSet) CancelCapture(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		failure(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if err := h.captureService.Cancel(c.Param("id"), user.ID); err != nil {
		captureFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// captureFailure maps each capture failure class onto its own user-facing
// message.
func captureFailure(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCaptureNotFound):
		failure(c, http.StatusNotFound, "Capture session not found")
	case errors.Is(err, service.ErrNoFrame):
		failure(c, http.StatusBadRequest, "No capture frame provided")
	case errors.Is(err, service.ErrFrameTooLarge):
		failure(c, http.StatusRequestEntityTooLarge, "Capture frame is too large")
	case errors.Is(err, service.ErrFrameDecode):
		failure(c, http.StatusBadRequest, "Capture frame could not be decoded. Please try capturing again.")
	case errors.Is(err, service.ErrSelectionNotChosen):
		failure(c, http.StatusBadRequest, "Selection mode requires a selection rectangle")
	case errors.Is(err, service.ErrCaptureInProgress):
		failure(c, http.StatusConflict, "Capture session already finalized")
	case errors.Is(err, editor.ErrUnknownTool):
		failure(c, http.StatusBadRequest, "Unknown editor tool")
	case errors.Is(err, editor.ErrEmptyText):
		failure(c, http.StatusBadRequest, "Text annotation is empty")
	case errors.Is(err, editor.ErrNotDrawing), errors.Is(err, editor.ErrBusyDrawing):
		failure(c, http.StatusBadRequest, "Invalid gesture")
	default:
		pipelineFailure(c, err)
	}
}
