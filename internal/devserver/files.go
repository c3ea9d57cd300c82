package devserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// handleUpload serves POST /files. The file body is accepted and
// discarded; only the metadata is kept so request attachments can link
// to a real id.
func (s *Server) handleUpload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "multipart field \"file\" is required", "INVALID_PAYLOAD")
		return
	}

	stored := StoredFile{
		ID:        uuid.NewString(),
		Filename:  header.Filename,
		Size:      header.Size,
		CreatedAt: time.Now(),
	}
	if err := s.db.Create(&stored).Error; err != nil {
		errorJSON(c, http.StatusInternalServerError, "store failed", "INTERNAL")
		return
	}

	dataJSON(c, http.StatusOK, gin.H{
		"id":                stored.ID,
		"filename_download": stored.Filename,
	})
}
