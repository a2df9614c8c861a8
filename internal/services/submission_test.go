package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gradeflow/gradeflow-backend/internal/domain"
	"github.com/gradeflow/gradeflow-backend/internal/platform/gcp"
	"github.com/gradeflow/gradeflow-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

type fakeBucket struct {
	uploads   map[string][]byte
	deleted   []string
	fail      bool
	corruptBy int64
}

func newFakeBucket() *fakeBucket { return &fakeBucket{uploads: map[string][]byte{}} }

func (b *fakeBucket) UploadFile(_ context.Context, _ gcp.BucketCategory, key string, file io.Reader, _ string) error {
	if b.fail {
		return errors.New("bucket unreachable")
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	b.uploads[key] = data
	return nil
}
func (b *fakeBucket) DownloadFile(context.Context, gcp.BucketCategory, string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}
func (b *fakeBucket) DeleteFile(_ context.Context, _ gcp.BucketCategory, key string) error {
	b.deleted = append(b.deleted, key)
	delete(b.uploads, key)
	return nil
}
func (b *fakeBucket) GetObjectAttrs(_ context.Context, _ gcp.BucketCategory, key string) (*gcp.ObjectAttrs, error) {
	data, ok := b.uploads[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return &gcp.ObjectAttrs{Size: int64(len(data)) + b.corruptBy, ContentType: "application/octet-stream"}, nil
}
func (b *fakeBucket) Exists(context.Context, gcp.BucketCategory, string) (bool, error) {
	return false, nil
}
func (b *fakeBucket) SignedReadURL(gcp.BucketCategory, string, time.Duration) (string, error) {
	return "", errors.New("not implemented")
}
func (b *fakeBucket) GetPublicURL(_ gcp.BucketCategory, key string) string {
	return "https://cdn.example/" + key
}

type fakeFileRepo struct {
	created     []*domain.SubmissionFile
	stored      []*domain.SubmissionFile
	softDeleted []uuid.UUID
}

func (r *fakeFileRepo) Create(_ context.Context, files []*domain.SubmissionFile) ([]*domain.SubmissionFile, error) {
	r.created = append(r.created, files...)
	return files, nil
}
func (r *fakeFileRepo) GetByID(context.Context, uuid.UUID) (*domain.SubmissionFile, error) {
	return nil, errors.New("not implemented")
}
func (r *fakeFileRepo) GetBySubmissionID(_ context.Context, submissionID uuid.UUID) ([]*domain.SubmissionFile, error) {
	var out []*domain.SubmissionFile
	for _, row := range r.stored {
		if row.SubmissionID == submissionID {
			out = append(out, row)
		}
	}
	return out, nil
}
func (r *fakeFileRepo) GetByContentSHA256(context.Context, string) ([]*domain.SubmissionFile, error) {
	return nil, errors.New("not implemented")
}
func (r *fakeFileRepo) SoftDeleteByIDs(_ context.Context, ids []uuid.UUID) error {
	r.softDeleted = append(r.softDeleted, ids...)
	return nil
}

func TestPersistFilesUploadsAndRecords(t *testing.T) {
	bucket := newFakeBucket()
	repo := &fakeFileRepo{}
	s := NewSubmissionStorage(testLogger(t), bucket, repo)

	data := []byte("print('hello')")
	wantSum := sha256.Sum256(data)

	rows, err := s.PersistFiles(context.Background(), uuid.New(), []IncomingFile{
		{OriginalName: "main.py", MimeType: "text/x-python", Extension: ".py", Data: data},
		{OriginalName: "essay.pdf", MimeType: "application/pdf", Extension: "pdf", Data: []byte("%PDF-1.7")},
	})
	if err != nil {
		t.Fatalf("PersistFiles: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows: want=2 got=%d", len(rows))
	}
	if len(bucket.uploads) != 2 {
		t.Fatalf("bucket uploads: want=2 got=%d", len(bucket.uploads))
	}
	if len(repo.created) != 2 {
		t.Fatalf("repo rows: want=2 got=%d", len(repo.created))
	}

	py := rows[0]
	if py.StorageMode != domain.StorageModeGCS {
		t.Fatalf("storage mode: want=%q got=%q", domain.StorageModeGCS, py.StorageMode)
	}
	if py.ContentSHA256 != hex.EncodeToString(wantSum[:]) {
		t.Fatalf("sha256 mismatch: %s", py.ContentSHA256)
	}
	if py.Extension != "py" {
		t.Fatalf("extension should be normalized, got %q", py.Extension)
	}
	if py.Category != domain.CategoryText {
		t.Fatalf("category: want=%s got=%s", domain.CategoryText, py.Category)
	}
	if rows[1].Category != domain.CategoryDocument {
		t.Fatalf("pdf category: want=%s got=%s", domain.CategoryDocument, rows[1].Category)
	}
	if !strings.HasPrefix(py.StorageKey, "submissions/") {
		t.Fatalf("unexpected storage key %q", py.StorageKey)
	}
}

func TestPersistFilesFallsBackToLocalDisk(t *testing.T) {
	t.Setenv("LOCAL_SUBMISSION_DIR", t.TempDir())

	bucket := newFakeBucket()
	bucket.fail = true
	repo := &fakeFileRepo{}
	s := NewSubmissionStorage(testLogger(t), bucket, repo)

	rows, err := s.PersistFiles(context.Background(), uuid.New(), []IncomingFile{
		{OriginalName: "notes.txt", MimeType: "text/plain", Extension: "txt", Data: []byte("fallback me")},
	})
	if err != nil {
		t.Fatalf("PersistFiles should fall back, got %v", err)
	}

	row := rows[0]
	if row.StorageMode != domain.StorageModeLocal {
		t.Fatalf("storage mode: want=%q got=%q", domain.StorageModeLocal, row.StorageMode)
	}
	got, readErr := os.ReadFile(row.StorageKey)
	if readErr != nil {
		t.Fatalf("local file should exist: %v", readErr)
	}
	if string(got) != "fallback me" {
		t.Fatalf("local content mismatch: %q", got)
	}
}

func TestPersistFilesVerifiesStoredSize(t *testing.T) {
	t.Setenv("LOCAL_SUBMISSION_DIR", t.TempDir())

	bucket := newFakeBucket()
	bucket.corruptBy = 3
	s := NewSubmissionStorage(testLogger(t), bucket, &fakeFileRepo{})

	rows, err := s.PersistFiles(context.Background(), uuid.New(), []IncomingFile{
		{OriginalName: "essay.txt", MimeType: "text/plain", Extension: "txt", Data: []byte("short")},
	})
	if err != nil {
		t.Fatalf("PersistFiles: %v", err)
	}
	if rows[0].StorageMode != domain.StorageModeLocal {
		t.Fatalf("size mismatch should fall back to local, got mode %q", rows[0].StorageMode)
	}
}

func TestDeleteFilesRemovesPayloadsAndSoftDeletes(t *testing.T) {
	dir := t.TempDir()
	localPath := dir + "/orphan.txt"
	if err := os.WriteFile(localPath, []byte("local copy"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	submissionID := uuid.New()
	gcsRow := &domain.SubmissionFile{
		ID:           uuid.New(),
		SubmissionID: submissionID,
		StorageKey:   "submissions/abc/def.pdf",
		StorageMode:  domain.StorageModeGCS,
	}
	localRow := &domain.SubmissionFile{
		ID:           uuid.New(),
		SubmissionID: submissionID,
		StorageKey:   localPath,
		StorageMode:  domain.StorageModeLocal,
	}

	bucket := newFakeBucket()
	bucket.uploads[gcsRow.StorageKey] = []byte("%PDF")
	repo := &fakeFileRepo{stored: []*domain.SubmissionFile{gcsRow, localRow}}
	s := NewSubmissionStorage(testLogger(t), bucket, repo)

	if err := s.DeleteFiles(context.Background(), submissionID); err != nil {
		t.Fatalf("DeleteFiles: %v", err)
	}

	if len(bucket.deleted) != 1 || bucket.deleted[0] != gcsRow.StorageKey {
		t.Fatalf("bucket delete calls: %v", bucket.deleted)
	}
	if _, err := os.Stat(localPath); !os.IsNotExist(err) {
		t.Fatalf("local payload should be removed, stat err=%v", err)
	}
	if len(repo.softDeleted) != 2 {
		t.Fatalf("soft deleted rows: want=2 got=%d", len(repo.softDeleted))
	}
}

func TestFileURL(t *testing.T) {
	s := NewSubmissionStorage(testLogger(t), newFakeBucket(), &fakeFileRepo{})

	gcsRow := &domain.SubmissionFile{StorageKey: "submissions/a/b.pdf", StorageMode: domain.StorageModeGCS}
	if got := s.FileURL(gcsRow); got != "https://cdn.example/submissions/a/b.pdf" {
		t.Fatalf("gcs url: got %q", got)
	}

	localRow := &domain.SubmissionFile{StorageKey: "/var/tmp/x.txt", StorageMode: domain.StorageModeLocal}
	if got := s.FileURL(localRow); got != "file:///var/tmp/x.txt" {
		t.Fatalf("local url: got %q", got)
	}
}

func TestPersistFilesEmptyBatch(t *testing.T) {
	s := NewSubmissionStorage(testLogger(t), newFakeBucket(), &fakeFileRepo{})
	rows, err := s.PersistFiles(context.Background(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("PersistFiles: %v", err)
	}
	if rows != nil {
		t.Fatalf("want nil rows, got %v", rows)
	}
}
