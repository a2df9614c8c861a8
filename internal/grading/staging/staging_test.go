package staging

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gradeflow/gradeflow-backend/internal/domain"
	"github.com/gradeflow/gradeflow-backend/internal/grading/uploadcache"
	"github.com/gradeflow/gradeflow-backend/internal/pkg/apperr"
	"github.com/gradeflow/gradeflow-backend/internal/platform/gemini"
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

func TestShouldStageRemotely(t *testing.T) {
	cases := []struct {
		category domain.ContentCategory
		size     int64
		want     bool
	}{
		{domain.CategoryDocument, 10, true},
		{domain.CategoryAudio, 10, true},
		{domain.CategoryVideo, 10, true},
		{domain.CategoryImage, 1 << 20, false},
		{domain.CategoryImage, 5 << 20, false},
		{domain.CategoryImage, (5 << 20) + 1, true},
		{domain.CategoryText, 100 << 20, false},
	}
	for _, tc := range cases {
		if got := ShouldStageRemotely(tc.category, tc.size); got != tc.want {
			t.Errorf("ShouldStageRemotely(%s, %d): want=%v got=%v", tc.category, tc.size, got, tc.want)
		}
	}
}

type fakeProvider struct {
	uploads   int
	getCalls  int
	states    []string
	uploadErr error
}

func (f *fakeProvider) GenerateText(context.Context, string, string) (string, error) {
	return "", errors.New("not implemented")
}
func (f *fakeProvider) GenerateParts(context.Context, string, []gemini.Part) (string, error) {
	return "", errors.New("not implemented")
}
func (f *fakeProvider) Model() string { return "fake-model" }

func (f *fakeProvider) UploadFile(_ context.Context, _ string, mimeType string, displayName string) (*gemini.FileInfo, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploads++
	state := gemini.FileStateProcessing
	if len(f.states) == 0 {
		state = gemini.FileStateActive
	}
	return &gemini.FileInfo{
		Name:     fmt.Sprintf("files/upload-%d", f.uploads),
		URI:      fmt.Sprintf("https://files.example/upload-%d", f.uploads),
		MimeType: mimeType,
		State:    state,
	}, nil
}

func (f *fakeProvider) GetFile(_ context.Context, name string) (*gemini.FileInfo, error) {
	f.getCalls++
	state := gemini.FileStateActive
	if f.getCalls <= len(f.states) {
		state = f.states[f.getCalls-1]
	}
	return &gemini.FileInfo{Name: name, URI: "https://files.example/" + name, State: state}, nil
}

func newTestUploader(t *testing.T, p gemini.Client, c uploadcache.Cache) *Uploader {
	u := NewUploader(testLogger(t), p, c)
	u.delay = 0
	u.sleep = func(time.Duration) {}
	return u
}

func TestGetOrUploadCachesSecondCall(t *testing.T) {
	provider := &fakeProvider{}
	cache := uploadcache.NewMemoryCache()
	u := newTestUploader(t, provider, cache)

	art := &domain.ProcessedArtifact{Bytes: []byte("%PDF-1.7 fake"), MimeType: "application/pdf"}

	first, err := u.GetOrUpload(context.Background(), art, "essay.pdf")
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	second, err := u.GetOrUpload(context.Background(), art, "renamed.pdf")
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}

	if provider.uploads != 1 {
		t.Fatalf("uploads: want=1 got=%d", provider.uploads)
	}
	if first.URI != second.URI {
		t.Fatalf("cached handle mismatch: %q vs %q", first.URI, second.URI)
	}
}

func TestGetOrUploadPollsUntilActive(t *testing.T) {
	provider := &fakeProvider{states: []string{gemini.FileStateProcessing, gemini.FileStateProcessing, gemini.FileStateActive}}
	u := newTestUploader(t, provider, uploadcache.NewMemoryCache())

	art := &domain.ProcessedArtifact{Bytes: []byte("audio bytes"), MimeType: "audio/mpeg"}
	info, err := u.GetOrUpload(context.Background(), art, "recording.mp3")
	if err != nil {
		t.Fatalf("GetOrUpload: %v", err)
	}
	if info.State != gemini.FileStateActive {
		t.Fatalf("state: want=%s got=%s", gemini.FileStateActive, info.State)
	}
	if provider.getCalls != 3 {
		t.Fatalf("poll calls: want=3 got=%d", provider.getCalls)
	}
}

func TestGetOrUploadFailedState(t *testing.T) {
	provider := &fakeProvider{states: []string{gemini.FileStateFailed}}
	u := newTestUploader(t, provider, nil)

	art := &domain.ProcessedArtifact{Bytes: []byte("corrupt"), MimeType: "video/mp4"}
	_, err := u.GetOrUpload(context.Background(), art, "clip.mp4")
	if !errors.Is(err, apperr.ErrUploadFailed) {
		t.Fatalf("want ErrUploadFailed, got %v", err)
	}
}

func TestGetOrUploadNeverBecomesActive(t *testing.T) {
	states := make([]string, 20)
	for i := range states {
		states[i] = gemini.FileStateProcessing
	}
	provider := &fakeProvider{states: states}
	u := newTestUploader(t, provider, nil)

	art := &domain.ProcessedArtifact{Bytes: []byte("slow"), MimeType: "video/mp4"}
	_, err := u.GetOrUpload(context.Background(), art, "clip.mp4")
	if !errors.Is(err, apperr.ErrUploadFailed) {
		t.Fatalf("want ErrUploadFailed, got %v", err)
	}
}

type failingPutCache struct {
	inner uploadcache.Cache
}

func (c *failingPutCache) Get(ctx context.Context, key string) (*uploadcache.Entry, bool, error) {
	return c.inner.Get(ctx, key)
}
func (c *failingPutCache) Put(context.Context, string, *uploadcache.Entry, time.Duration) error {
	return errors.New("redis down")
}

func TestGetOrUploadCachePutFailureIsNonFatal(t *testing.T) {
	provider := &fakeProvider{}
	u := newTestUploader(t, provider, &failingPutCache{inner: uploadcache.NewMemoryCache()})

	art := &domain.ProcessedArtifact{Bytes: []byte("doc"), MimeType: "application/pdf"}
	if _, err := u.GetOrUpload(context.Background(), art, "essay.pdf"); err != nil {
		t.Fatalf("cache store failure must not fail the upload: %v", err)
	}
}

func TestGetOrUploadUploadError(t *testing.T) {
	provider := &fakeProvider{uploadErr: errors.New("503 backend")}
	u := newTestUploader(t, provider, nil)

	art := &domain.ProcessedArtifact{Bytes: []byte("doc"), MimeType: "application/pdf"}
	_, err := u.GetOrUpload(context.Background(), art, "essay.pdf")
	if !errors.Is(err, apperr.ErrUploadFailed) {
		t.Fatalf("want ErrUploadFailed, got %v", err)
	}
}
