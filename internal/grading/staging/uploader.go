package staging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/gradeflow/gradeflow-backend/internal/domain"
	"github.com/gradeflow/gradeflow-backend/internal/grading/uploadcache"
	"github.com/gradeflow/gradeflow-backend/internal/pkg/apperr"
	"github.com/gradeflow/gradeflow-backend/internal/platform/gemini"
	"github.com/gradeflow/gradeflow-backend/internal/platform/logger"
)

const (
	pollAttempts = 10
	pollDelay    = 2 * time.Second
)

// Uploader stages payloads with the provider file API, deduplicating through
// the upload cache so identical bytes upload once per retention window.
type Uploader struct {
	log      *logger.Logger
	provider gemini.Client
	cache    uploadcache.Cache

	// overridable in tests
	attempts int
	delay    time.Duration
	sleep    func(time.Duration)
}

func NewUploader(baseLog *logger.Logger, provider gemini.Client, cache uploadcache.Cache) *Uploader {
	return &Uploader{
		log:      baseLog.With("component", "RemoteFileUploader"),
		provider: provider,
		cache:    cache,
		attempts: pollAttempts,
		delay:    pollDelay,
		sleep:    time.Sleep,
	}
}

// GetOrUpload returns an active provider file handle for the artifact,
// reusing a cached handle when the same bytes and MIME type were uploaded
// within the retention window. Cache failures are logged and treated as
// misses; upload and processing failures return apperr.ErrUploadFailed.
func (u *Uploader) GetOrUpload(ctx context.Context, art *domain.ProcessedArtifact, displayName string) (*gemini.FileInfo, error) {
	key := uploadcache.Key(art.Bytes, art.MimeType)

	if u.cache != nil {
		entry, ok, err := u.cache.Get(ctx, key)
		if err != nil {
			u.log.Warn("Upload cache lookup failed, re-uploading", "error", err.Error())
		} else if ok {
			u.log.Debug("Upload cache hit", "file_uri", entry.FileURI)
			return &gemini.FileInfo{
				Name:     entry.FileName,
				URI:      entry.FileURI,
				MimeType: entry.MimeType,
				State:    gemini.FileStateActive,
			}, nil
		}
	}

	localPath := art.LocalPath
	if localPath == "" {
		staged, cleanup, err := u.writeTemp(art, displayName)
		if err != nil {
			return nil, fmt.Errorf("stage payload for upload: %v: %w", err, apperr.ErrUploadFailed)
		}
		defer cleanup()
		localPath = staged
	}

	info, err := u.provider.UploadFile(ctx, localPath, art.MimeType, displayName)
	if err != nil {
		return nil, fmt.Errorf("provider upload %q: %v: %w", displayName, err, apperr.ErrUploadFailed)
	}

	info, err = u.waitActive(ctx, info)
	if err != nil {
		return nil, err
	}

	if u.cache != nil {
		entry := &uploadcache.Entry{
			FileURI:  info.URI,
			FileName: info.Name,
			MimeType: art.MimeType,
			StoredAt: time.Now(),
		}
		if err := u.cache.Put(ctx, key, entry, uploadcache.DefaultTTL); err != nil {
			u.log.Warn("Upload cache store failed", "error", err.Error())
		}
	}
	return info, nil
}

func (u *Uploader) waitActive(ctx context.Context, info *gemini.FileInfo) (*gemini.FileInfo, error) {
	for attempt := 0; attempt < u.attempts; attempt++ {
		switch info.State {
		case gemini.FileStateActive:
			return info, nil
		case gemini.FileStateFailed:
			return nil, fmt.Errorf("provider processing failed for %q: %w", info.Name, apperr.ErrUploadFailed)
		}

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("wait for file %q: %v: %w", info.Name, err, apperr.ErrUploadFailed)
		}
		u.sleep(u.delay)

		refreshed, err := u.provider.GetFile(ctx, info.Name)
		if err != nil {
			return nil, fmt.Errorf("poll file %q: %v: %w", info.Name, err, apperr.ErrUploadFailed)
		}
		info = refreshed
	}
	return nil, fmt.Errorf("file %q still processing after %d polls: %w", info.Name, u.attempts, apperr.ErrUploadFailed)
}

func (u *Uploader) writeTemp(art *domain.ProcessedArtifact, displayName string) (string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "gf_upload_"+uuid.NewString()[:8]+"_*")
	if err != nil {
		return "", func() {}, err
	}
	name := filepath.Base(displayName)
	if name == "" || name == "." {
		name = "payload.bin"
	}
	path := filepath.Join(tmpDir, name)
	if err := os.WriteFile(path, art.Bytes, 0o600); err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", func() {}, err
	}
	return path, func() { _ = os.RemoveAll(tmpDir) }, nil
}
