package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// FilesService uploads attachments for service requests.
type FilesService struct {
	c *Client
}

// Upload sends one file and returns its server-assigned id, to be linked
// onto a request via a FileRelation. The whole file is buffered so the
// fetch policy can replay the request after a token refresh.
func (s *FilesService) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("api: build upload form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("api: read upload %s: %w", filename, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("api: finish upload form: %w", err)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := s.c.do(ctx, http.MethodPost, "/files", nil, buf.Bytes(), w.FormDataContentType(), &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", requestErrorf(0, "upload %s: no file id in response", filename)
	}
	return out.ID, nil
}
