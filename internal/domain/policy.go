package domain

import (
	"time"

	"github.com/google/uuid"
)

// FileTypePolicy is the administrator-controlled switch per content category:
// whether uploads of that category are accepted at all, and how large they
// may be. MaxSizeBytes <= 0 means no cap.
type FileTypePolicy struct {
	ID       uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Category ContentCategory `gorm:"column:category;uniqueIndex;not null" json:"category"`

	Enabled      bool  `gorm:"column:enabled;not null;default:true" json:"enabled"`
	MaxSizeBytes int64 `gorm:"column:max_size_bytes;not null;default:0" json:"max_size_bytes"`

	// DisabledExtensions lists extensions rejected even when the category is
	// enabled (lowercase, no leading dot), comma separated.
	DisabledExtensions string `gorm:"column:disabled_extensions" json:"disabled_extensions"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (FileTypePolicy) TableName() string { return "file_type_policy" }
