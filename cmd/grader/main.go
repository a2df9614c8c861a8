package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/gradeflow/gradeflow-backend/internal/data/repos"
	"github.com/gradeflow/gradeflow-backend/internal/domain"
	"github.com/gradeflow/gradeflow-backend/internal/grading/filetypes"
	"github.com/gradeflow/gradeflow-backend/internal/grading/pipeline"
	"github.com/gradeflow/gradeflow-backend/internal/grading/source"
	"github.com/gradeflow/gradeflow-backend/internal/grading/staging"
	"github.com/gradeflow/gradeflow-backend/internal/grading/uploadcache"
	"github.com/gradeflow/gradeflow-backend/internal/platform/gcp"
	"github.com/gradeflow/gradeflow-backend/internal/platform/gemini"
	"github.com/gradeflow/gradeflow-backend/internal/platform/logger"
	"github.com/gradeflow/gradeflow-backend/internal/services"
)

type fileList []string

func (l *fileList) String() string { return strings.Join(*l, ",") }
func (l *fileList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v != "" {
		*l = append(*l, v)
	}
	return nil
}

func main() {
	var files fileList
	var title, description, contextPath, rubricPath, submissionIDFlag string
	flag.Var(&files, "file", "submission file: a local path, http(s) URL, or gs:// URL (repeatable)")
	flag.StringVar(&title, "title", "", "assignment title")
	flag.StringVar(&description, "description", "", "assignment description")
	flag.StringVar(&contextPath, "context", "", "path to a file with instructor-only grading context")
	flag.StringVar(&rubricPath, "rubric", "", "path to a JSON rubric file")
	flag.StringVar(&submissionIDFlag, "submission-id", "", "submission id (default: random)")
	flag.Parse()

	if len(files) == 0 || title == "" {
		fmt.Println("usage: grader -title <assignment> -file <path-or-url> [-file ...]")
		os.Exit(2)
	}

	log, err := logger.New(os.Getenv("APP_ENV"))
	if err != nil {
		fmt.Printf("init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	submissionID := uuid.New()
	if submissionIDFlag != "" {
		parsed, err := uuid.Parse(submissionIDFlag)
		if err != nil {
			log.Fatal("Invalid submission id", "value", submissionIDFlag)
		}
		submissionID = parsed
	}

	pctx, err := buildPromptContext(title, description, contextPath, rubricPath)
	if err != nil {
		log.Fatal("Build prompt context", "error", err.Error())
	}

	model, err := gemini.NewClient(log)
	if err != nil {
		log.Fatal("Init model client", "error", err.Error())
	}

	var bucket gcp.BucketService
	if os.Getenv("SUBMISSION_GCS_BUCKET_NAME") != "" {
		bucket, err = gcp.NewBucketService(log)
		if err != nil {
			log.Fatal("Init object storage", "error", err.Error())
		}
	}

	var cache uploadcache.Cache = uploadcache.NewMemoryCache()
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		cache = uploadcache.NewRedisCache(rdb)
	}

	var policyRepo repos.FileTypePolicyRepo
	var fileRepo repos.SubmissionFileRepo
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			log.Fatal("Connect database", "error", err.Error())
		}
		policyRepo = repos.NewFileTypePolicyRepo(db, log)
		fileRepo = repos.NewSubmissionFileRepo(db, log)
	}

	ctx := context.Background()

	descriptors, payloads, err := loadFiles(files)
	if err != nil {
		log.Fatal("Load submission files", "error", err.Error())
	}

	if fileRepo != nil && len(payloads) > 0 {
		storage := services.NewSubmissionStorage(log, bucket, fileRepo)
		if _, err := storage.PersistFiles(ctx, submissionID, payloads); err != nil {
			log.Warn("Persist submission files failed, grading anyway", "error", err.Error())
		}
	}

	svc := pipeline.NewService(
		log,
		filetypes.NewPolicyService(log, policyRepo),
		source.NewResolver(log, bucket),
		staging.NewUploader(log, model, cache),
		model,
	)

	resp, err := svc.Grade(ctx, pipeline.GradeRequest{
		SubmissionID: submissionID,
		Prompt:       pctx,
		Files:        descriptors,
	})
	if err != nil {
		log.Fatal("Grade submission", "error", err.Error())
	}

	if resp.Degraded {
		fmt.Println("[degraded: some files could not be retrieved]")
	}
	fmt.Printf("model: %s\n\n%s\n", resp.ModelVersion, resp.Feedback)
}

func buildPromptContext(title, description, contextPath, rubricPath string) (domain.PromptContext, error) {
	pctx := domain.PromptContext{
		AssignmentTitle:       title,
		AssignmentDescription: description,
	}
	if contextPath != "" {
		raw, err := os.ReadFile(contextPath)
		if err != nil {
			return pctx, fmt.Errorf("read instructor context: %w", err)
		}
		pctx.InstructorContext = string(raw)
	}
	if rubricPath != "" {
		raw, err := os.ReadFile(rubricPath)
		if err != nil {
			return pctx, fmt.Errorf("read rubric: %w", err)
		}
		if err := json.Unmarshal(raw, &pctx.Rubric); err != nil {
			return pctx, fmt.Errorf("parse rubric: %w", err)
		}
	}
	return pctx, nil
}

// loadFiles builds a descriptor per input. Local paths are also read into
// memory so they can be persisted before grading; remote inputs are left for
// the resolver to fetch.
func loadFiles(paths []string) ([]domain.FileDescriptor, []services.IncomingFile, error) {
	var descriptors []domain.FileDescriptor
	var payloads []services.IncomingFile

	for _, p := range paths {
		name := baseName(p)
		ext := extensionOf(name)
		mime := mimeFor(ext)

		if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") || strings.HasPrefix(p, "gs://") {
			descriptors = append(descriptors, domain.FileDescriptor{
				OriginalName: name,
				DeclaredMime: mime,
				Extension:    ext,
				Source:       domain.SubmissionSource{Kind: domain.SourceKindRemote, URL: p},
			})
			continue
		}

		info, err := os.Stat(p)
		if err != nil {
			return nil, nil, fmt.Errorf("stat %q: %w", p, err)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, nil, fmt.Errorf("read %q: %w", p, err)
		}
		descriptors = append(descriptors, domain.FileDescriptor{
			OriginalName: name,
			DeclaredMime: mime,
			Extension:    ext,
			SizeBytes:    info.Size(),
			Source:       domain.SubmissionSource{Kind: domain.SourceKindLocal, Path: p},
		})
		payloads = append(payloads, services.IncomingFile{
			OriginalName: name,
			MimeType:     mime,
			Extension:    ext,
			Data:         data,
		})
	}
	return descriptors, payloads, nil
}

func baseName(p string) string {
	p = strings.TrimSuffix(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

func extensionOf(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 && i < len(name)-1 {
		return strings.ToLower(name[i+1:])
	}
	return ""
}

func mimeFor(ext string) string {
	switch ext {
	case "txt", "md", "py", "go", "java", "c", "cpp", "js", "ts":
		return "text/plain"
	case "csv":
		return "text/csv"
	case "pdf":
		return "application/pdf"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "mp4":
		return "video/mp4"
	case "mov":
		return "video/quicktime"
	default:
		return "application/octet-stream"
	}
}
