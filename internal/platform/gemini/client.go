package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gradeflow/gradeflow-backend/internal/pkg/envutil"
	"github.com/gradeflow/gradeflow-backend/internal/pkg/httpx"
	"github.com/gradeflow/gradeflow-backend/internal/platform/logger"
)

// Part is one unit of multimodal request content. Exactly one field is set.
type Part struct {
	Text       string    `json:"text,omitempty"`
	InlineData *Blob     `json:"inlineData,omitempty"`
	FileData   *FileData `json:"fileData,omitempty"`
}

// Blob carries inline payload bytes. encoding/json base64-encodes Data, which
// is exactly the wire format the API expects.
type Blob struct {
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// FileData references a previously staged file by URI.
type FileData struct {
	MimeType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

func TextPart(text string) Part             { return Part{Text: text} }
func InlinePart(mime string, b []byte) Part { return Part{InlineData: &Blob{MimeType: mime, Data: b}} }
func FilePart(mime, uri string) Part        { return Part{FileData: &FileData{MimeType: mime, FileURI: uri}} }

// File states reported by the provider's file API.
const (
	FileStateProcessing = "PROCESSING"
	FileStateActive     = "ACTIVE"
	FileStateFailed     = "FAILED"
)

// FileInfo is the provider's record of a staged file. URI goes into FileData
// parts; Name is the handle for status polling.
type FileInfo struct {
	Name           string `json:"name"`
	URI            string `json:"uri"`
	MimeType       string `json:"mimeType"`
	State          string `json:"state"`
	SizeBytes      string `json:"sizeBytes,omitempty"`
	ExpirationTime string `json:"expirationTime,omitempty"`
}

// Client is the Gemini API client used by the grading pipeline.
type Client interface {
	// Plain text generation.
	GenerateText(ctx context.Context, system string, user string) (string, error)

	// Multimodal generation: system instructions plus arbitrary parts.
	GenerateParts(ctx context.Context, system string, parts []Part) (string, error)

	// File staging API. Uploaded files are retained by the provider for 48
	// hours and must reach ACTIVE state before use.
	UploadFile(ctx context.Context, localPath string, mimeType string, displayName string) (*FileInfo, error)
	GetFile(ctx context.Context, name string) (*FileInfo, error)

	// Model reports the configured generation model id.
	Model() string
}

type client struct {
	log          *logger.Logger
	baseURL      string
	apiKey       string
	model        string
	httpClient   *http.Client
	uploadClient *http.Client

	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
	}
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("GEMINI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(os.Getenv("GEMINI_MODEL"))
	if model == "" {
		model = "gemini-2.5-flash"
	}

	timeoutSec := envutil.GetEnvAsInt("GEMINI_TIMEOUT_SECONDS", 120, log)
	if timeoutSec <= 0 {
		timeoutSec = 120
	}

	uploadTimeoutSec := envutil.GetEnvAsInt("GEMINI_UPLOAD_TIMEOUT_SECONDS", 0, log)
	if uploadTimeoutSec <= 0 {
		uploadTimeoutSec = timeoutSec
		if uploadTimeoutSec < 300 {
			uploadTimeoutSec = 300
		}
	}

	maxRetries := envutil.GetEnvAsInt("GEMINI_MAX_RETRIES", 4, log)
	if maxRetries < 0 {
		maxRetries = 4
	}

	return &client{
		log:          log.With("service", "GeminiClient"),
		baseURL:      baseURL,
		apiKey:       apiKey,
		model:        model,
		httpClient:   &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		uploadClient: &http.Client{Timeout: time.Duration(uploadTimeoutSec) * time.Second},
		maxRetries:   maxRetries,
	}, nil
}

func (c *client) Model() string { return c.model }

type geminiHTTPError struct {
	StatusCode int
	Body       string
}

func (e *geminiHTTPError) Error() string {
	return fmt.Sprintf("gemini http %d: %s", e.StatusCode, truncateForLog(e.Body, 600))
}

func (e *geminiHTTPError) HTTPStatusCode() int { return e.StatusCode }

func truncateForLog(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ---- request/response shapes (minimal fields) ----

type genContent struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type genRequest struct {
	SystemInstruction *genContent  `json:"systemInstruction,omitempty"`
	Contents          []genContent `json:"contents"`
}

type genResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	ModelVersion string `json:"modelVersion"`
}

func (c *client) GenerateText(ctx context.Context, system string, user string) (string, error) {
	return c.GenerateParts(ctx, system, []Part{TextPart(user)})
}

func (c *client) GenerateParts(ctx context.Context, system string, parts []Part) (string, error) {
	if len(parts) == 0 {
		return "", fmt.Errorf("gemini generate: no parts")
	}
	body := genRequest{
		Contents: []genContent{{Role: "user", Parts: parts}},
	}
	if strings.TrimSpace(system) != "" {
		body.SystemInstruction = &genContent{Parts: []Part{TextPart(system)}}
	}

	path := fmt.Sprintf("/v1beta/models/%s:generateContent", c.model)
	var resp genResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini generate: empty candidates")
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("gemini generate: empty text (finish_reason=%s)", resp.Candidates[0].FinishReason)
	}
	return out, nil
}

func (c *client) GetFile(ctx context.Context, name string) (*FileInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("gemini get file: empty name")
	}
	if !strings.HasPrefix(name, "files/") {
		name = "files/" + name
	}
	var info FileInfo
	if err := c.do(ctx, http.MethodGet, "/v1beta/"+name, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ---- transport ----

func (c *client) doOnce(ctx context.Context, httpClient *http.Client, method, rawURL string, contentType string, payload []byte) (*http.Response, []byte, error) {
	var reader *bytes.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := readAllAndClose(resp)
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &geminiHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func readAllAndClose(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	return buf.Bytes(), err
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	contentType := ""
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gemini encode request: %w", err)
		}
		contentType = "application/json"
	}
	return c.doWithClient(ctx, c.httpClient, method, c.baseURL+path, contentType, payload, out)
}

func (c *client) doWithClient(ctx context.Context, httpClient *http.Client, method, rawURL, contentType string, payload []byte, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, httpClient, method, rawURL, contentType, payload)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("gemini decode error: %w; raw=%s", uErr, truncateForLog(string(raw), 600))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) {
			return err
		}
		if attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("Gemini request retrying",
			"url", rawURL,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		time.Sleep(sleepFor)
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}
