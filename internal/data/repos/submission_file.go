package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gradeflow/gradeflow-backend/internal/domain"
	"github.com/gradeflow/gradeflow-backend/internal/pkg/apperr"
	"github.com/gradeflow/gradeflow-backend/internal/platform/logger"
)

type SubmissionFileRepo interface {
	Create(ctx context.Context, files []*domain.SubmissionFile) ([]*domain.SubmissionFile, error)
	GetByID(ctx context.Context, fileID uuid.UUID) (*domain.SubmissionFile, error)
	GetBySubmissionID(ctx context.Context, submissionID uuid.UUID) ([]*domain.SubmissionFile, error)
	GetByContentSHA256(ctx context.Context, sha string) ([]*domain.SubmissionFile, error)
	SoftDeleteByIDs(ctx context.Context, fileIDs []uuid.UUID) error
}

type submissionFileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubmissionFileRepo(db *gorm.DB, baseLog *logger.Logger) SubmissionFileRepo {
	repoLog := baseLog.With("repo", "SubmissionFileRepo")
	return &submissionFileRepo{db: db, log: repoLog}
}

func (r *submissionFileRepo) Create(ctx context.Context, files []*domain.SubmissionFile) ([]*domain.SubmissionFile, error) {
	if len(files) == 0 {
		return []*domain.SubmissionFile{}, nil
	}
	if err := r.db.WithContext(ctx).Create(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}

func (r *submissionFileRepo) GetByID(ctx context.Context, fileID uuid.UUID) (*domain.SubmissionFile, error) {
	var result domain.SubmissionFile
	if err := r.db.WithContext(ctx).
		Where("id = ?", fileID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *submissionFileRepo) GetBySubmissionID(ctx context.Context, submissionID uuid.UUID) ([]*domain.SubmissionFile, error) {
	var results []*domain.SubmissionFile
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *submissionFileRepo) GetByContentSHA256(ctx context.Context, sha string) ([]*domain.SubmissionFile, error) {
	var results []*domain.SubmissionFile
	if sha == "" {
		return results, nil
	}
	if err := r.db.WithContext(ctx).
		Where("content_sha256 = ?", sha).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *submissionFileRepo) SoftDeleteByIDs(ctx context.Context, fileIDs []uuid.UUID) error {
	if len(fileIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("id IN ?", fileIDs).
		Delete(&domain.SubmissionFile{}).Error
}
