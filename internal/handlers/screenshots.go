package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thebookish/proofsnap/internal/fingerprint"
	"github.com/thebookish/proofsnap/internal/media/sniffer"
	"github.com/thebookish/proofsnap/internal/models"
	"github.com/thebookish/proofsnap/internal/service"
)

type screenshotResponse struct {
	ID               string    `json:"id"`
	StorageKey       string    `json:"storageKey"`
	OriginalFilename string    `json:"originalFilename"`
	SizeBytes        int64     `json:"sizeBytes"`
	MimeType         string    `json:"mimeType"`
	PublicURL        string    `json:"publicUrl"`
	SHA256           string    `json:"sha256Hash"`
	IPAddress        string    `json:"ipAddress"`
	UserAgent        string    `json:"userAgent"`
	Project          *string   `json:"project"`
	Tags             []string  `json:"tags"`
	Status           string    `json:"verificationStatus"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func toScreenshotResponse(s models.Screenshot) screenshotResponse {
	return screenshotResponse{
		ID:               s.ID,
		StorageKey:       s.StorageKey,
		OriginalFilename: s.OriginalFilename,
		SizeBytes:        s.SizeBytes,
		MimeType:         s.MimeType,
		PublicURL:        s.PublicURL,
		SHA256:           s.SHA256,
		IPAddress:        s.IPAddress,
		UserAgent:        s.UserAgent,
		Project:          s.Project,
		Tags:             s.Tags,
		Status:           string(s.Status),
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

// Every pipeline endpoint answers in the uniform result shape: callers
// branch on success, never on transport faults.
func failure(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

func pipelineFailure(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		failure(c, http.StatusUnauthorized, "User not authenticated")
	case errors.Is(err, service.ErrNoFile):
		failure(c, http.StatusBadRequest, "No file provided")
	case errors.Is(err, service.ErrRecordNotFound):
		failure(c, http.StatusNotFound, "Screenshot not found")
	case errors.Is(err, service.ErrShareLinkNotFound):
		failure(c, http.StatusNotFound, "Share link not found")
	case errors.Is(err, sniffer.ErrUnknownType):
		failure(c, http.StatusBadRequest, "Unsupported image type")
	case errors.Is(err, service.ErrTypeMismatch):
		failure(c, http.StatusBadRequest, "File content does not match its declared type")
	default:
		// StorageError and PersistFailure carry their stage prefix in the
		// message already.
		failure(c, http.StatusInternalServerError, err.Error())
	}
}

type fileResult struct {
	Filename   string              `json:"filename"`
	Success    bool                `json:"success"`
	Error      string              `json:"error,omitempty"`
	Screenshot *screenshotResponse `json:"screenshot,omitempty"`
}

// UploadScreenshots accepts one or more multipart files and runs each
// through the upload pipeline sequentially. A failure in one file does not
// abort the remaining files.
func (h HandlerSet) UploadScreenshots(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		failure(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		failure(c, http.StatusBadRequest, "No file provided")
		return
	}
	files := form.File["file"]
	if len(files) == 0 {
		failure(c, http.StatusBadRequest, "No file provided")
		return
	}

	project := c.PostForm("project")
	tags := c.PostForm("tags")
	client := fingerprint.FromHeaders(c.Request.Header)

	results := make([]fileResult, 0, len(files))
	allOK := true
	for _, header := range files {
		res := fileResult{Filename: header.Filename}

		data, err := readMultipartFile(header)
		if err != nil {
			res.Error = "read file: " + err.Error()
			allOK = false
			results = append(results, res)
			continue
		}

		uploaded, err := h.uploadService.Upload(c.Request.Context(), service.UploadInput{
			OwnerID:      user.ID,
			Data:         data,
			Filename:     header.Filename,
			DeclaredMIME: sniffer.MimeTypeFromHTTP(http.Header(header.Header)),
			Project:      project,
			RawTags:      tags,
			Client:       client,
		})
		if err != nil {
			h.log.Error().Err(err).Str("user_id", user.ID).Str("filename", header.Filename).Msg("upload failed")
			res.Error = err.Error()
			allOK = false
			results = append(results, res)
			continue
		}

		shot := toScreenshotResponse(uploaded.Screenshot)
		res.Success = true
		res.Screenshot = &shot
		results = append(results, res)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": allOK,
		"results": results,
	})
}

func readMultipartFile(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h HandlerSet) ListScreenshots(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		failure(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	limit, offset := pagination(c, 50)
	shots, err := h.uploadService.ListByOwner(c.Request.Context(), user.ID, limit, offset)
	if err != nil {
		pipelineFailure(c, err)
		return
	}

	items := make([]screenshotResponse, 0, len(shots))
	for _, s := range shots {
		items = append(items, toScreenshotResponse(s))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "screenshots": items})
}

func (h HandlerSet) GetScreenshot(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		failure(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	shot, err := h.uploadService.GetOwned(c.Request.Context(), c.Param("id"), user.ID)
	if err != nil {
		pipelineFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "screenshot": toScreenshotResponse(shot)})
}

func (h HandlerSet) DeleteScreenshot(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		failure(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if err := h.uploadService.Delete(c.Request.Context(), c.Param("id"), user.ID); err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Str("screenshot_id", c.Param("id")).Msg("delete failed")
		pipelineFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func pagination(c *gin.Context, defaultLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	if page := c.Query("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 1 {
			offset = (v - 1) * limit
		}
	}
	return limit, offset
}
