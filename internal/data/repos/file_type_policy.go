package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/gradeflow/gradeflow-backend/internal/domain"
	"github.com/gradeflow/gradeflow-backend/internal/pkg/apperr"
	"github.com/gradeflow/gradeflow-backend/internal/platform/logger"
)

type FileTypePolicyRepo interface {
	GetByCategory(ctx context.Context, category domain.ContentCategory) (*domain.FileTypePolicy, error)
	List(ctx context.Context) ([]*domain.FileTypePolicy, error)
}

type fileTypePolicyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFileTypePolicyRepo(db *gorm.DB, baseLog *logger.Logger) FileTypePolicyRepo {
	repoLog := baseLog.With("repo", "FileTypePolicyRepo")
	return &fileTypePolicyRepo{db: db, log: repoLog}
}

func (r *fileTypePolicyRepo) GetByCategory(ctx context.Context, category domain.ContentCategory) (*domain.FileTypePolicy, error) {
	var result domain.FileTypePolicy
	if err := r.db.WithContext(ctx).
		Where("category = ?", category).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *fileTypePolicyRepo) List(ctx context.Context) ([]*domain.FileTypePolicy, error) {
	var results []*domain.FileTypePolicy
	if err := r.db.WithContext(ctx).
		Order("category ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
