package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskflow/internal/storage"
)

type UploadHandler struct {
	files    storage.FileStorage
	maxBytes int64
	log      *zap.Logger
}

func NewUploadHandler(files storage.FileStorage, maxUploadMB int64, log *zap.Logger) *UploadHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &UploadHandler{files: files, maxBytes: maxUploadMB << 20, log: log}
}

// @Summary      Upload a file
// @Description  Stores a file for a file-type field; previousUrl is removed when given
// @Tags         Files
// @Accept       multipart/form-data
// @Produce      json
// @Param        file         formData  file    true   "File"
// @Param        previousUrl  formData  string  false  "File to replace"
// @Success      201          {object}  storage.StoredFile
// @Failure      400          {object}  map[string]string
// @Router       /upload [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	src, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	defer src.Close()

	stored, err := h.files.Save(fh.Filename, src)
	if err != nil {
		h.log.Error("[upload][save][err]", zap.String("name", fh.Filename), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
		return
	}

	if prev := c.PostForm("previousUrl"); prev != "" {
		if err := h.files.Delete(prev); err != nil {
			h.log.Warn("[upload][replace][err]", zap.String("url", prev), zap.Error(err))
		}
	}
	h.log.Info("[upload][ok]", zap.String("file", stored.FileName), zap.Int64("size", fh.Size))
	c.JSON(http.StatusCreated, stored)
}

type deleteUploadRequest struct {
	FileURL string `json:"fileUrl" binding:"required"`
}

// @Summary  Delete an uploaded file
// @Tags     Files
// @Accept   json
// @Param    file  body  deleteUploadRequest  true  "File URL"
// @Success  204
// @Failure  400  {object}  map[string]string
// @Router   /upload [delete]
func (h *UploadHandler) Delete(c *gin.Context) {
	var req deleteUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.files.Delete(req.FileURL); err != nil {
		if errors.Is(err, storage.ErrInvalidPath) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file path"})
			return
		}
		h.log.Error("[upload][delete][err]", zap.String("url", req.FileURL), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete file"})
		return
	}
	c.Status(http.StatusNoContent)
}
