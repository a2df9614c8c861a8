// Package staging decides which submission payloads ride inline in the model
// request and which are first uploaded to the provider's file API, and
// performs the dedup-cached upload for the latter.
package staging

import (
	"github.com/gradeflow/gradeflow-backend/internal/domain"
)

// Images at or under this size are embedded inline; larger ones are staged.
const inlineImageLimitBytes = 5 << 20

// ShouldStageRemotely reports whether a payload must go through the provider
// file API instead of being embedded in the request body. Documents, audio
// and video always stage regardless of size.
func ShouldStageRemotely(category domain.ContentCategory, sizeBytes int64) bool {
	switch category {
	case domain.CategoryDocument, domain.CategoryAudio, domain.CategoryVideo:
		return true
	case domain.CategoryImage:
		return sizeBytes > inlineImageLimitBytes
	default:
		return false
	}
}
