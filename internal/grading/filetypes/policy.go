package filetypes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gradeflow/gradeflow-backend/internal/data/repos"
	"github.com/gradeflow/gradeflow-backend/internal/domain"
	"github.com/gradeflow/gradeflow-backend/internal/pkg/apperr"
	"github.com/gradeflow/gradeflow-backend/internal/platform/logger"
)

// PolicyService answers "may this upload be processed at all" before any
// pipeline work starts. It is read-only: administrators manage the rows
// elsewhere. A category with no stored policy is treated as enabled with no
// size cap.
type PolicyService interface {
	Check(ctx context.Context, category domain.ContentCategory, extension string, sizeBytes int64) error
}

type policyService struct {
	log  *logger.Logger
	repo repos.FileTypePolicyRepo
}

func NewPolicyService(baseLog *logger.Logger, repo repos.FileTypePolicyRepo) PolicyService {
	return &policyService{
		log:  baseLog.With("service", "FileTypePolicyService"),
		repo: repo,
	}
}

func (s *policyService) Check(ctx context.Context, category domain.ContentCategory, extension string, sizeBytes int64) error {
	if !domain.IsValidContentCategory(category) {
		return fmt.Errorf("category %q: %w", category, apperr.ErrTypeDisabled)
	}
	if s.repo == nil {
		return nil
	}

	policy, err := s.repo.GetByCategory(ctx, category)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.log.Debug("No policy row for category, allowing", "category", category)
			return nil
		}
		return fmt.Errorf("load file type policy: %w", err)
	}

	if !policy.Enabled {
		return fmt.Errorf("category %q disabled by policy: %w", category, apperr.ErrTypeDisabled)
	}

	ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(extension), "."))
	if ext != "" && policy.DisabledExtensions != "" {
		for _, blocked := range strings.Split(policy.DisabledExtensions, ",") {
			if ext == strings.ToLower(strings.TrimSpace(blocked)) {
				return fmt.Errorf("extension %q disabled by policy: %w", ext, apperr.ErrTypeDisabled)
			}
		}
	}

	if policy.MaxSizeBytes > 0 && sizeBytes > policy.MaxSizeBytes {
		return fmt.Errorf("size %d exceeds limit %d for category %q: %w",
			sizeBytes, policy.MaxSizeBytes, category, apperr.ErrFileTooLarge)
	}

	return nil
}
