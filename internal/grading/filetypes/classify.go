package filetypes

import (
	"strings"

	"github.com/gradeflow/gradeflow-backend/internal/domain"
)

// Extension sets backing Classify. Lowercase, no leading dot. Fixed at
// process start; Classify never mutates them.
var textExtensions = map[string]bool{
	"txt": true, "md": true, "markdown": true, "rst": true, "log": true,
	"html": true, "htm": true, "css": true, "xml": true, "json": true,
	"yaml": true, "yml": true, "toml": true, "ini": true, "sql": true,
	"go": true, "py": true, "js": true, "jsx": true, "ts": true, "tsx": true,
	"java": true, "c": true, "h": true, "cpp": true, "hpp": true, "cc": true,
	"cs": true, "rb": true, "rs": true, "php": true, "swift": true,
	"kt": true, "scala": true, "sh": true, "bash": true, "pl": true,
	"r": true, "m": true, "lua": true, "dart": true, "tex": true,
}

var imageExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "webp": true,
	"bmp": true, "svg": true, "tiff": true, "heic": true, "heif": true,
}

var documentExtensions = map[string]bool{
	"pdf": true, "doc": true, "docx": true, "xls": true, "xlsx": true,
	"ppt": true, "pptx": true, "odt": true, "ods": true, "odp": true,
	"rtf": true, "csv": true,
}

var audioExtensions = map[string]bool{
	"mp3": true, "wav": true, "ogg": true, "m4a": true, "flac": true,
	"aac": true, "opus": true, "wma": true,
}

var videoExtensions = map[string]bool{
	"mp4": true, "mov": true, "webm": true, "avi": true, "mkv": true,
	"m4v": true, "wmv": true, "flv": true, "mpeg": true, "mpg": true,
}

var textMimeTypes = map[string]bool{
	"application/json":         true,
	"application/xml":          true,
	"application/javascript":   true,
	"application/typescript":   true,
	"application/x-sh":         true,
	"application/x-python":     true,
	"application/x-httpd-php":  true,
	"application/x-yaml":       true,
	"application/toml":         true,
	"application/sql":          true,
	"application/x-ruby":       true,
	"application/x-perl":       true,
	"application/ecmascript":   true,
	"application/x-javascript": true,
}

var documentMimeMarkers = []string{
	"pdf",
	"msword",
	"wordprocessingml",
	"ms-excel",
	"spreadsheetml",
	"ms-powerpoint",
	"presentationml",
	"opendocument",
	"rtf",
}

// Classify maps a file extension and declared MIME type onto exactly one
// content category. Total: every input yields a category, unrecognized inputs
// default to text. Precedence is ordered and first-match-wins; the CSV rule
// runs before the general text/ prefix rule because spreadsheet semantics
// matter more than plain-text handling.
func Classify(extension, mimeType string) domain.ContentCategory {
	ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(extension), "."))
	m := strings.ToLower(strings.TrimSpace(mimeType))

	if ext == "csv" || m == "text/csv" {
		return domain.CategoryDocument
	}
	if textExtensions[ext] || strings.HasPrefix(m, "text/") || textMimeTypes[m] {
		return domain.CategoryText
	}
	if imageExtensions[ext] || strings.HasPrefix(m, "image/") {
		return domain.CategoryImage
	}
	if documentExtensions[ext] || hasDocumentMime(m) {
		return domain.CategoryDocument
	}
	if audioExtensions[ext] || strings.HasPrefix(m, "audio/") {
		return domain.CategoryAudio
	}
	if videoExtensions[ext] || strings.HasPrefix(m, "video/") {
		return domain.CategoryVideo
	}
	return domain.CategoryText
}

func hasDocumentMime(m string) bool {
	if m == "" {
		return false
	}
	for _, marker := range documentMimeMarkers {
		if strings.Contains(m, marker) {
			return true
		}
	}
	return false
}
