package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

// UploadFile stages a local file with the provider's file API using a
// multipart upload (metadata JSON + raw bytes). The returned FileInfo is
// usually still PROCESSING; callers poll GetFile until it settles.
func (c *client) UploadFile(ctx context.Context, localPath string, mimeType string, displayName string) (*FileInfo, error) {
	localPath = strings.TrimSpace(localPath)
	if localPath == "" {
		return nil, fmt.Errorf("gemini upload: empty path")
	}
	if strings.TrimSpace(mimeType) == "" {
		return nil, fmt.Errorf("gemini upload: empty mime type")
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = filepath.Base(localPath)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("gemini upload: open %q: %w", localPath, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := mw.CreatePart(metaHeader)
	if err != nil {
		return nil, fmt.Errorf("gemini upload: metadata part: %w", err)
	}
	meta := map[string]any{
		"file": map[string]any{"display_name": displayName},
	}
	if err := json.NewEncoder(metaPart).Encode(meta); err != nil {
		return nil, fmt.Errorf("gemini upload: encode metadata: %w", err)
	}

	fileHeader := textproto.MIMEHeader{}
	fileHeader.Set("Content-Type", mimeType)
	filePart, err := mw.CreatePart(fileHeader)
	if err != nil {
		return nil, fmt.Errorf("gemini upload: file part: %w", err)
	}
	if _, err := io.Copy(filePart, f); err != nil {
		return nil, fmt.Errorf("gemini upload: copy bytes: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("gemini upload: finalize multipart: %w", err)
	}

	uploadURL := c.baseURL + "/upload/v1beta/files?uploadType=multipart"
	contentType := "multipart/related; boundary=" + mw.Boundary()

	var resp struct {
		File FileInfo `json:"file"`
	}
	if err := c.doWithClient(ctx, c.uploadClient, http.MethodPost, uploadURL, contentType, body.Bytes(), &resp); err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.File.Name) == "" {
		return nil, fmt.Errorf("gemini upload: response missing file name")
	}
	return &resp.File, nil
}
