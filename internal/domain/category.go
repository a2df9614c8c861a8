package domain

// ContentCategory is the coarse classification that drives how a submission
// artifact is extracted, staged, and presented to the model.
type ContentCategory string

const (
	CategoryText     ContentCategory = "text"
	CategoryImage    ContentCategory = "image"
	CategoryDocument ContentCategory = "document"
	CategoryAudio    ContentCategory = "audio"
	CategoryVideo    ContentCategory = "video"
)

func AllContentCategories() []ContentCategory {
	return []ContentCategory{
		CategoryText,
		CategoryImage,
		CategoryDocument,
		CategoryAudio,
		CategoryVideo,
	}
}

func IsValidContentCategory(c ContentCategory) bool {
	switch c {
	case CategoryText, CategoryImage, CategoryDocument, CategoryAudio, CategoryVideo:
		return true
	default:
		return false
	}
}
