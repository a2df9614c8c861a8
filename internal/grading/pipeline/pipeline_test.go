package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/gradeflow/gradeflow-backend/internal/domain"
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

type allowAllPolicy struct{}

func (allowAllPolicy) Check(context.Context, domain.ContentCategory, string, int64) error {
	return nil
}

type rejectPolicy struct{ err error }

func (p rejectPolicy) Check(context.Context, domain.ContentCategory, string, int64) error {
	return p.err
}

type fakeResolver struct {
	failFor  map[string]error
	cleanups int
}

func (r *fakeResolver) Resolve(_ context.Context, fd domain.FileDescriptor) (*domain.ProcessedArtifact, func(), error) {
	if err, ok := r.failFor[fd.OriginalName]; ok {
		return nil, func() {}, err
	}
	return &domain.ProcessedArtifact{
		Bytes:    fd.Source.Bytes,
		MimeType: fd.DeclaredMime,
	}, func() { r.cleanups++ }, nil
}

type fakeUploader struct {
	calls int
	err   error
}

func (u *fakeUploader) GetOrUpload(_ context.Context, art *domain.ProcessedArtifact, displayName string) (*gemini.FileInfo, error) {
	if u.err != nil {
		return nil, u.err
	}
	u.calls++
	return &gemini.FileInfo{
		Name:     "files/" + displayName,
		URI:      "https://files.example/" + displayName,
		MimeType: art.MimeType,
		State:    gemini.FileStateActive,
	}, nil
}

type fakeModel struct {
	system string
	parts  []gemini.Part
	reply  string
}

func (m *fakeModel) GenerateText(ctx context.Context, system, user string) (string, error) {
	return m.GenerateParts(ctx, system, []gemini.Part{gemini.TextPart(user)})
}
func (m *fakeModel) GenerateParts(_ context.Context, system string, parts []gemini.Part) (string, error) {
	m.system = system
	m.parts = parts
	if m.reply == "" {
		return "Good work overall.", nil
	}
	return m.reply, nil
}
func (m *fakeModel) UploadFile(context.Context, string, string, string) (*gemini.FileInfo, error) {
	return nil, errors.New("not implemented")
}
func (m *fakeModel) GetFile(context.Context, string) (*gemini.FileInfo, error) {
	return nil, errors.New("not implemented")
}
func (m *fakeModel) Model() string { return "fake-model-1" }

func bufferFile(name, mime, ext string, data []byte) domain.FileDescriptor {
	return domain.FileDescriptor{
		OriginalName: name,
		DeclaredMime: mime,
		Extension:    ext,
		SizeBytes:    int64(len(data)),
		Source:       domain.SubmissionSource{Kind: domain.SourceKindBuffer, Bytes: data},
	}
}

func TestGradeSmallCodeFileRidesInline(t *testing.T) {
	resolver := &fakeResolver{}
	uploader := &fakeUploader{}
	model := &fakeModel{}
	svc := NewService(testLogger(t), allowAllPolicy{}, resolver, uploader, model)

	code := []byte(strings.Repeat("def solve():\n    return 42\n", 40))
	req := GradeRequest{
		SubmissionID: uuid.New(),
		Prompt: domain.PromptContext{
			AssignmentTitle: "Problem Set 3",
			Rubric:          []domain.RubricCriterion{{Name: "Correctness", MaxScore: 20}},
		},
		Files: []domain.FileDescriptor{bufferFile("solution.py", "text/x-python", "py", code)},
	}

	resp, err := svc.Grade(context.Background(), req)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if resp.Degraded {
		t.Fatal("healthy run must not be degraded")
	}
	if resp.ModelVersion != "fake-model-1" {
		t.Fatalf("model version: want=%q got=%q", "fake-model-1", resp.ModelVersion)
	}
	if uploader.calls != 0 {
		t.Fatalf("small text file should never stage, uploads=%d", uploader.calls)
	}
	if resolver.cleanups != 1 {
		t.Fatalf("resolver cleanup: want=1 got=%d", resolver.cleanups)
	}

	if !strings.Contains(model.system, "Problem Set 3") || !strings.Contains(model.system, "Correctness") {
		t.Fatalf("assignment and rubric should ride in the system prompt:\n%s", model.system)
	}

	found := false
	for _, p := range model.parts {
		if strings.Contains(p.Text, "def solve()") {
			found = true
		}
	}
	if !found {
		t.Fatal("code should appear inline in the request")
	}
}

func TestGradeDocumentIsStaged(t *testing.T) {
	resolver := &fakeResolver{}
	uploader := &fakeUploader{}
	model := &fakeModel{}
	svc := NewService(testLogger(t), allowAllPolicy{}, resolver, uploader, model)

	req := GradeRequest{
		SubmissionID: uuid.New(),
		Prompt:       domain.PromptContext{AssignmentTitle: "Essay"},
		Files:        []domain.FileDescriptor{bufferFile("essay.pdf", "application/pdf", "pdf", []byte("%PDF-1.7 tiny"))},
	}

	if _, err := svc.Grade(context.Background(), req); err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if uploader.calls != 1 {
		t.Fatalf("documents always stage regardless of size, uploads=%d", uploader.calls)
	}

	staged := false
	for _, p := range model.parts {
		if p.FileData != nil && p.FileData.FileURI == "https://files.example/essay.pdf" {
			staged = true
		}
	}
	if !staged {
		t.Fatal("staged file handle missing from request parts")
	}
}

func TestGradeDegradesWhenSourceUnavailable(t *testing.T) {
	resolver := &fakeResolver{
		failFor: map[string]error{
			"demo.mp4": fmt.Errorf("fetch: %w", apperr.ErrSourceUnavailable),
		},
	}
	model := &fakeModel{}
	svc := NewService(testLogger(t), allowAllPolicy{}, resolver, &fakeUploader{}, model)

	req := GradeRequest{
		SubmissionID: uuid.New(),
		Prompt:       domain.PromptContext{AssignmentTitle: "Demo"},
		Files: []domain.FileDescriptor{
			bufferFile("notes.txt", "text/plain", "txt", []byte("my design notes")),
			{
				OriginalName: "demo.mp4",
				DeclaredMime: "video/mp4",
				Extension:    "mp4",
				Source:       domain.SubmissionSource{Kind: domain.SourceKindRemote, URL: "https://dead.example/demo.mp4"},
			},
		},
	}

	resp, err := svc.Grade(context.Background(), req)
	if err != nil {
		t.Fatalf("Grade should degrade, not fail: %v", err)
	}
	if !resp.Degraded {
		t.Fatal("response should be marked degraded")
	}
	if len(model.parts) != 1 {
		t.Fatalf("degraded request should be text-only, parts=%d", len(model.parts))
	}
	if !strings.Contains(model.system, "Demo") {
		t.Fatal("assignment context should ride in the system prompt")
	}
	body := model.parts[0].Text
	if !strings.Contains(body, "my design notes") {
		t.Fatal("available text missing from degraded prompt")
	}
	if !strings.Contains(body, `"demo.mp4"`) {
		t.Fatal("unavailable file should be named in degraded prompt")
	}
}

func TestGradePolicyRejectionSurfaces(t *testing.T) {
	svc := NewService(testLogger(t), rejectPolicy{err: apperr.ErrTypeDisabled}, &fakeResolver{}, &fakeUploader{}, &fakeModel{})

	req := GradeRequest{
		SubmissionID: uuid.New(),
		Prompt:       domain.PromptContext{AssignmentTitle: "X"},
		Files:        []domain.FileDescriptor{bufferFile("clip.mp4", "video/mp4", "mp4", []byte("v"))},
	}
	_, err := svc.Grade(context.Background(), req)
	if !errors.Is(err, apperr.ErrTypeDisabled) {
		t.Fatalf("want ErrTypeDisabled, got %v", err)
	}
}

func TestGradeUploadFailureSurfaces(t *testing.T) {
	uploader := &fakeUploader{err: fmt.Errorf("poll: %w", apperr.ErrUploadFailed)}
	svc := NewService(testLogger(t), allowAllPolicy{}, &fakeResolver{}, uploader, &fakeModel{})

	req := GradeRequest{
		SubmissionID: uuid.New(),
		Prompt:       domain.PromptContext{AssignmentTitle: "X"},
		Files:        []domain.FileDescriptor{bufferFile("essay.pdf", "application/pdf", "pdf", []byte("%PDF"))},
	}
	_, err := svc.Grade(context.Background(), req)
	if !errors.Is(err, apperr.ErrUploadFailed) {
		t.Fatalf("want ErrUploadFailed, got %v", err)
	}
}

func TestGradeNoFiles(t *testing.T) {
	svc := NewService(testLogger(t), allowAllPolicy{}, &fakeResolver{}, &fakeUploader{}, &fakeModel{})
	_, err := svc.Grade(context.Background(), GradeRequest{SubmissionID: uuid.New()})
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}
