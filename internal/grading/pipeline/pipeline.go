// Package pipeline orchestrates a grading run end to end: classify each
// submission file, enforce type policy, resolve bytes, extract text, stage
// heavy payloads with the provider, assemble the prompt, and generate
// feedback.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gradeflow/gradeflow-backend/internal/domain"
	"github.com/gradeflow/gradeflow-backend/internal/grading/extract"
	"github.com/gradeflow/gradeflow-backend/internal/grading/filetypes"
	"github.com/gradeflow/gradeflow-backend/internal/grading/prompt"
	"github.com/gradeflow/gradeflow-backend/internal/grading/staging"
	"github.com/gradeflow/gradeflow-backend/internal/pkg/apperr"
	"github.com/gradeflow/gradeflow-backend/internal/platform/gemini"
	"github.com/gradeflow/gradeflow-backend/internal/platform/logger"
)

// Resolver fetches a descriptor's bytes. The cleanup func removes any temp
// staging and must be called even on later failures.
type Resolver interface {
	Resolve(ctx context.Context, fd domain.FileDescriptor) (*domain.ProcessedArtifact, func(), error)
}

// Uploader stages a payload with the provider file API.
type Uploader interface {
	GetOrUpload(ctx context.Context, art *domain.ProcessedArtifact, displayName string) (*gemini.FileInfo, error)
}

// GradeRequest is one grading run over a student's submission files.
type GradeRequest struct {
	SubmissionID uuid.UUID
	Prompt       domain.PromptContext
	Files        []domain.FileDescriptor
}

type Service struct {
	log       *logger.Logger
	policy    filetypes.PolicyService
	resolver  Resolver
	uploader  Uploader
	assembler *prompt.Assembler
	model     gemini.Client
}

func NewService(baseLog *logger.Logger, policy filetypes.PolicyService, resolver Resolver, uploader Uploader, model gemini.Client) *Service {
	return &Service{
		log:       baseLog.With("component", "GradingPipeline"),
		policy:    policy,
		resolver:  resolver,
		uploader:  uploader,
		assembler: prompt.NewAssembler(),
		model:     model,
	}
}

// Grade runs the full pipeline. Policy rejections (ErrTypeDisabled,
// ErrFileTooLarge) and staging failures (ErrUploadFailed) surface to the
// caller. An unreachable source (ErrSourceUnavailable) does not: the run
// degrades to a text-only prompt built from whatever could be extracted, and
// the response is marked accordingly.
func (s *Service) Grade(ctx context.Context, req GradeRequest) (*domain.FeedbackResponse, error) {
	if len(req.Files) == 0 {
		return nil, fmt.Errorf("grade submission: no files: %w", apperr.ErrInvalidArgument)
	}

	log := s.log.With("submission_id", req.SubmissionID.String())

	parts := make([]prompt.SubmissionPart, 0, len(req.Files))
	degraded := false

	for _, fd := range req.Files {
		category := filetypes.Classify(fd.Extension, fd.DeclaredMime)

		if err := s.policy.Check(ctx, category, fd.Extension, fd.SizeBytes); err != nil {
			return nil, fmt.Errorf("file %q: %w", fd.OriginalName, err)
		}

		art, cleanup, err := s.resolver.Resolve(ctx, fd)
		if err != nil {
			if errors.Is(err, apperr.ErrSourceUnavailable) {
				log.Warn("Submission file unreachable, degrading to text-only grading",
					"file", fd.OriginalName,
					"error", err.Error(),
				)
				degraded = true
				parts = append(parts, prompt.SubmissionPart{DisplayName: fd.OriginalName})
				continue
			}
			return nil, fmt.Errorf("resolve %q: %w", fd.OriginalName, err)
		}

		part, err := s.prepare(ctx, fd, art, category)
		cleanup()
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}

	var modelReq *prompt.ModelRequest
	if degraded {
		modelReq = s.assembler.BuildDegraded(req.Prompt, parts)
	} else {
		built, err := s.assembler.Build(req.Prompt, parts)
		if err != nil {
			return nil, fmt.Errorf("assemble prompt: %w", err)
		}
		modelReq = built
	}

	feedback, err := s.model.GenerateParts(ctx, modelReq.System, modelReq.Parts)
	if err != nil {
		return nil, fmt.Errorf("generate feedback: %w", err)
	}

	log.Info("Graded submission",
		"files", len(req.Files),
		"degraded", degraded,
		"model", s.model.Model(),
	)
	return &domain.FeedbackResponse{
		Feedback:     feedback,
		ModelVersion: s.model.Model(),
		Degraded:     degraded,
	}, nil
}

// prepare finishes a resolved artifact: text extraction, then the inline vs
// staged decision. Upload failures always surface, even for a single file.
func (s *Service) prepare(ctx context.Context, fd domain.FileDescriptor, art *domain.ProcessedArtifact, category domain.ContentCategory) (prompt.SubmissionPart, error) {
	art.Category = category
	art.ExtractedText = extract.Extract(art.Bytes, category, fd.OriginalName, art.MimeType, fd.Extension)

	part := prompt.SubmissionPart{DisplayName: fd.OriginalName, Artifact: art}

	if staging.ShouldStageRemotely(category, int64(len(art.Bytes))) {
		info, err := s.uploader.GetOrUpload(ctx, art, fd.OriginalName)
		if err != nil {
			return prompt.SubmissionPart{}, fmt.Errorf("stage %q: %w", fd.OriginalName, err)
		}
		part.Staged = info
	}
	return part, nil
}
