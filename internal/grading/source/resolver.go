package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gradeflow/gradeflow-backend/internal/domain"
	"github.com/gradeflow/gradeflow-backend/internal/pkg/apperr"
	"github.com/gradeflow/gradeflow-backend/internal/pkg/envutil"
	"github.com/gradeflow/gradeflow-backend/internal/platform/gcp"
	"github.com/gradeflow/gradeflow-backend/internal/platform/logger"
)

const (
	defaultMaxFetchBytes = 1 << 30
	signedURLTTL         = 15 * time.Minute
)

// Resolver normalizes a submission's origin into an in-memory artifact.
// Remote bytes are additionally staged to a temp file so every downstream
// stage can treat the artifact as a local path; the returned cleanup func
// removes that staging file and must always run, success or failure.
type Resolver struct {
	log        *logger.Logger
	bucket     gcp.BucketService
	httpClient *http.Client
	maxBytes   int64

	// gs:// URLs must name this bucket; empty skips the check.
	allowedBucket string
}

func NewResolver(baseLog *logger.Logger, bucket gcp.BucketService) *Resolver {
	log := baseLog.With("component", "FileSourceResolver")
	return &Resolver{
		log:           log,
		bucket:        bucket,
		httpClient:    &http.Client{Timeout: 2 * time.Minute},
		maxBytes:      defaultMaxFetchBytes,
		allowedBucket: envutil.GetEnv("SUBMISSION_GCS_BUCKET_NAME", "", log),
	}
}

// Resolve turns a descriptor into a ProcessedArtifact. The artifact's
// Category and ExtractedText are left for later stages. Failures are always
// apperr.ErrSourceUnavailable with context.
func (r *Resolver) Resolve(ctx context.Context, fd domain.FileDescriptor) (*domain.ProcessedArtifact, func(), error) {
	noop := func() {}

	if err := fd.Source.Validate(); err != nil {
		return nil, noop, fmt.Errorf("%v: %w", err, apperr.ErrSourceUnavailable)
	}

	switch fd.Source.Kind {
	case domain.SourceKindBuffer:
		return &domain.ProcessedArtifact{
			Bytes:    fd.Source.Bytes,
			MimeType: fd.DeclaredMime,
		}, noop, nil

	case domain.SourceKindLocal:
		return r.resolveLocal(fd)

	case domain.SourceKindRemote:
		return r.resolveRemote(ctx, fd)

	default:
		return nil, noop, fmt.Errorf("source kind %q: %w", fd.Source.Kind, apperr.ErrSourceUnavailable)
	}
}

func (r *Resolver) resolveLocal(fd domain.FileDescriptor) (*domain.ProcessedArtifact, func(), error) {
	noop := func() {}
	path := fd.Source.Path

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, noop, fmt.Errorf("read local file %q: %v: %w", path, err, apperr.ErrSourceUnavailable)
	}
	return &domain.ProcessedArtifact{
		Bytes:     data,
		MimeType:  fd.DeclaredMime,
		LocalPath: path,
	}, noop, nil
}

func (r *Resolver) resolveRemote(ctx context.Context, fd domain.FileDescriptor) (*domain.ProcessedArtifact, func(), error) {
	noop := func() {}
	rawURL := strings.TrimSpace(fd.Source.URL)

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(rawURL, "gs://") {
		data, err = r.fetchObjectStore(ctx, rawURL)
	} else {
		data, err = r.fetchHTTP(ctx, rawURL)
	}
	if err != nil {
		return nil, noop, err
	}

	stagePath, cleanup, err := r.stageToTemp(data, fd.OriginalName)
	if err != nil {
		return nil, noop, fmt.Errorf("stage remote bytes: %v: %w", err, apperr.ErrSourceUnavailable)
	}

	return &domain.ProcessedArtifact{
		Bytes:     data,
		MimeType:  fd.DeclaredMime,
		LocalPath: stagePath,
	}, cleanup, nil
}

func (r *Resolver) fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("unsupported remote url %q: %w", rawURL, apperr.ErrSourceUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build remote request: %v: %w", err, apperr.ErrSourceUnavailable)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch remote url: %v: %w", err, apperr.ErrSourceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch remote url: status=%d: %w", resp.StatusCode, apperr.ErrSourceUnavailable)
	}

	data, err := r.readCapped(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read remote body: %v: %w", err, apperr.ErrSourceUnavailable)
	}
	return data, nil
}

// readCapped reads at most maxBytes and fails rather than truncating when
// the payload is larger.
func (r *Resolver) readCapped(src io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(src, r.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("payload exceeds %d byte limit", r.maxBytes)
	}
	return data, nil
}

// fetchObjectStore resolves gs://bucket/key references. A short-lived signed
// read URL is tried first; if signing fails (common without service-account
// credentials), it falls back to a direct storage-API download.
func (r *Resolver) fetchObjectStore(ctx context.Context, gsURL string) ([]byte, error) {
	if r.bucket == nil {
		return nil, fmt.Errorf("object store not configured for %q: %w", gsURL, apperr.ErrSourceUnavailable)
	}

	rest := strings.TrimPrefix(gsURL, "gs://")
	bucketName, key, found := strings.Cut(rest, "/")
	if !found || key == "" {
		return nil, fmt.Errorf("empty object key in %q: %w", gsURL, apperr.ErrSourceUnavailable)
	}
	if r.allowedBucket != "" && bucketName != r.allowedBucket {
		return nil, fmt.Errorf("bucket %q is not the submission bucket: %w", bucketName, apperr.ErrSourceUnavailable)
	}

	if signed, err := r.bucket.SignedReadURL(gcp.BucketCategorySubmission, key, signedURLTTL); err == nil {
		data, fetchErr := r.fetchHTTP(ctx, signed)
		if fetchErr == nil {
			return data, nil
		}
		r.log.Warn("Signed URL fetch failed, falling back to storage API download",
			"key", key,
			"error", fetchErr.Error(),
		)
	} else {
		r.log.Debug("Signed URL unavailable, using storage API download",
			"key", key,
			"error", err.Error(),
		)
	}

	rc, err := r.bucket.DownloadFile(ctx, gcp.BucketCategorySubmission, key)
	if err != nil {
		return nil, fmt.Errorf("download object %q: %v: %w", key, err, apperr.ErrSourceUnavailable)
	}
	defer rc.Close()

	data, err := r.readCapped(rc)
	if err != nil {
		return nil, fmt.Errorf("read object %q: %v: %w", key, err, apperr.ErrSourceUnavailable)
	}
	return data, nil
}

// stageToTemp writes bytes under a randomized directory name so concurrent
// requests never collide.
func (r *Resolver) stageToTemp(data []byte, originalName string) (string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "gf_submission_"+uuid.NewString()[:8]+"_*")
	if err != nil {
		return "", func() {}, fmt.Errorf("temp dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = ".bin"
	}
	path := filepath.Join(tmpDir, "original"+ext)

	if err := os.WriteFile(path, data, 0o600); err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", func() {}, fmt.Errorf("write temp file: %w", err)
	}

	cleanup := func() { _ = os.RemoveAll(tmpDir) }
	return path, cleanup, nil
}
