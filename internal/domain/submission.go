package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SubmissionFile records the durably persisted original artifact. Persistence
// happens before and independently of AI processing, so a failed grading run
// never loses the student's upload.
type SubmissionFile struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SubmissionID uuid.UUID `gorm:"type:uuid;not null;index" json:"submission_id"`

	OriginalName string `gorm:"column:original_name;not null" json:"original_name"`
	MimeType     string `gorm:"column:mime_type" json:"mime_type"`
	Extension    string `gorm:"column:extension" json:"extension"`
	SizeBytes    int64  `gorm:"column:size_bytes" json:"size_bytes"`

	StorageKey    string `gorm:"column:storage_key;not null" json:"storage_key"`
	StorageMode   string `gorm:"column:storage_mode;not null;default:'gcs'" json:"storage_mode"`
	ContentSHA256 string `gorm:"column:content_sha256;index" json:"content_sha256"`

	Category ContentCategory `gorm:"column:category;index" json:"category"`
	Metadata datatypes.JSON  `gorm:"column:metadata;type:jsonb" json:"metadata"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (SubmissionFile) TableName() string { return "submission_file" }

const (
	StorageModeGCS   = "gcs"
	StorageModeLocal = "local"
)
