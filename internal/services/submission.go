// Package services holds the application-level services that sit between
// transport and the grading pipeline.
package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gradeflow/gradeflow-backend/internal/data/repos"
	"github.com/gradeflow/gradeflow-backend/internal/domain"
	"github.com/gradeflow/gradeflow-backend/internal/grading/filetypes"
	"github.com/gradeflow/gradeflow-backend/internal/pkg/envutil"
	"github.com/gradeflow/gradeflow-backend/internal/platform/gcp"
	"github.com/gradeflow/gradeflow-backend/internal/platform/logger"
)

const persistConcurrency = 4

// IncomingFile is one uploaded payload before persistence.
type IncomingFile struct {
	OriginalName string
	MimeType     string
	Extension    string
	Data         []byte
}

// SubmissionStorage persists original submission payloads durably before any
// AI processing touches them. Object storage is primary; when it is
// unreachable the payload lands on local disk and the row records that, so a
// later backfill can move it.
type SubmissionStorage struct {
	log      *logger.Logger
	bucket   gcp.BucketService
	repo     repos.SubmissionFileRepo
	localDir string
}

func NewSubmissionStorage(baseLog *logger.Logger, bucket gcp.BucketService, repo repos.SubmissionFileRepo) *SubmissionStorage {
	log := baseLog.With("component", "SubmissionStorage")
	return &SubmissionStorage{
		log:      log,
		bucket:   bucket,
		repo:     repo,
		localDir: envutil.GetEnv("LOCAL_SUBMISSION_DIR", filepath.Join(os.TempDir(), "gradeflow-submissions"), log),
	}
}

// PersistFiles stores every payload and records one SubmissionFile row per
// file. Files persist concurrently; the whole batch fails if any file could
// be stored nowhere at all.
func (s *SubmissionStorage) PersistFiles(ctx context.Context, submissionID uuid.UUID, files []IncomingFile) ([]*domain.SubmissionFile, error) {
	if len(files) == 0 {
		return nil, nil
	}

	rows := make([]*domain.SubmissionFile, len(files))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(persistConcurrency)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			row, err := s.persistOne(gctx, submissionID, f)
			if err != nil {
				return err
			}
			mu.Lock()
			rows[i] = row
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("record submission files: %w", err)
	}
	return created, nil
}

func (s *SubmissionStorage) persistOne(ctx context.Context, submissionID uuid.UUID, f IncomingFile) (*domain.SubmissionFile, error) {
	sum := sha256.Sum256(f.Data)
	digest := hex.EncodeToString(sum[:])

	key := storageKey(submissionID, f)
	mode := domain.StorageModeGCS

	err := s.uploadToBucket(ctx, key, f)
	if err == nil {
		err = s.verifyUpload(ctx, key, int64(len(f.Data)))
	}
	if err != nil {
		s.log.Warn("Object storage upload failed, falling back to local disk",
			"key", key,
			"error", err.Error(),
		)
		localPath, localErr := s.writeLocal(key, f.Data)
		if localErr != nil {
			return nil, fmt.Errorf("persist %q: object storage: %v; local disk: %w", f.OriginalName, err, localErr)
		}
		key = localPath
		mode = domain.StorageModeLocal
	}

	return &domain.SubmissionFile{
		ID:            uuid.New(),
		SubmissionID:  submissionID,
		OriginalName:  f.OriginalName,
		MimeType:      f.MimeType,
		Extension:     strings.TrimPrefix(strings.ToLower(f.Extension), "."),
		SizeBytes:     int64(len(f.Data)),
		StorageKey:    key,
		StorageMode:   mode,
		ContentSHA256: digest,
		Category:      filetypes.Classify(f.Extension, f.MimeType),
	}, nil
}

func (s *SubmissionStorage) uploadToBucket(ctx context.Context, key string, f IncomingFile) error {
	if s.bucket == nil {
		return fmt.Errorf("object storage not configured")
	}
	return s.bucket.UploadFile(ctx, gcp.BucketCategorySubmission, key, bytes.NewReader(f.Data), f.MimeType)
}

// verifyUpload reads the stored object's attrs back and checks the size, so
// a row never points at a partial write.
func (s *SubmissionStorage) verifyUpload(ctx context.Context, key string, wantSize int64) error {
	attrs, err := s.bucket.GetObjectAttrs(ctx, gcp.BucketCategorySubmission, key)
	if err != nil {
		return fmt.Errorf("verify upload %q: %w", key, err)
	}
	if attrs.Size != wantSize {
		return fmt.Errorf("verify upload %q: stored %d bytes, want %d", key, attrs.Size, wantSize)
	}
	return nil
}

// DeleteFiles removes a submission's stored payloads and soft-deletes their
// rows. Object deletion is best-effort per file; the rows are only
// soft-deleted once every removable payload has been attempted.
func (s *SubmissionStorage) DeleteFiles(ctx context.Context, submissionID uuid.UUID) error {
	rows, err := s.repo.GetBySubmissionID(ctx, submissionID)
	if err != nil {
		return fmt.Errorf("load submission files: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
		switch row.StorageMode {
		case domain.StorageModeGCS:
			if s.bucket == nil {
				continue
			}
			if err := s.bucket.DeleteFile(ctx, gcp.BucketCategorySubmission, row.StorageKey); err != nil {
				s.log.Warn("Delete stored object failed",
					"key", row.StorageKey,
					"error", err.Error(),
				)
			}
		case domain.StorageModeLocal:
			if err := os.Remove(row.StorageKey); err != nil && !os.IsNotExist(err) {
				s.log.Warn("Delete local payload failed",
					"path", row.StorageKey,
					"error", err.Error(),
				)
			}
		}
	}

	if err := s.repo.SoftDeleteByIDs(ctx, ids); err != nil {
		return fmt.Errorf("soft delete submission files: %w", err)
	}
	return nil
}

// FileURL returns a URL for a stored payload: the bucket's public URL for
// object-storage rows, a file URL for local-disk fallbacks.
func (s *SubmissionStorage) FileURL(row *domain.SubmissionFile) string {
	if row.StorageMode == domain.StorageModeGCS && s.bucket != nil {
		return s.bucket.GetPublicURL(gcp.BucketCategorySubmission, row.StorageKey)
	}
	return "file://" + row.StorageKey
}

func (s *SubmissionStorage) writeLocal(key string, data []byte) (string, error) {
	path := filepath.Join(s.localDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func storageKey(submissionID uuid.UUID, f IncomingFile) string {
	ext := strings.TrimPrefix(strings.ToLower(f.Extension), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("submissions/%s/%s.%s", submissionID, uuid.NewString(), ext)
}
