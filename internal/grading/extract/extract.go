package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gradeflow/gradeflow-backend/internal/domain"
)

// Extract derives human-readable text from submission bytes, best effort.
// It never fails: nil means no text could be produced, which downstream
// treats as "send the raw artifact to the model instead".
//
// Real parsing of binary document formats is deliberately not attempted —
// those flow to the model as staged multimodal input, and the placeholder
// text only exists so a text-only fallback still has something to say.
func Extract(data []byte, category domain.ContentCategory, originalName, mimeType, extension string) *string {
	if isCSV(mimeType, extension) {
		if s := csvSummary(data); s != "" {
			return &s
		}
		return nil
	}

	switch category {
	case domain.CategoryText:
		if len(data) == 0 {
			return nil
		}
		s := sanitizeUTF8(string(data))
		if strings.TrimSpace(s) == "" {
			return nil
		}
		return &s

	case domain.CategoryDocument:
		s := fmt.Sprintf(
			"[Document: %s (%s). Full-content text extraction is not available for this format; the original file is provided to the model directly.]",
			displayName(originalName), displayMime(mimeType),
		)
		return &s

	case domain.CategoryAudio, domain.CategoryVideo:
		s := fmt.Sprintf(
			"[%s submission: %s, %s. No transcript was produced; the original media is provided to the model directly.]",
			capitalize(string(category)), displayName(originalName), humanSize(int64(len(data))),
		)
		return &s

	default:
		// Images carry no extractable text; they go multimodal.
		return nil
	}
}

func isCSV(mimeType, extension string) bool {
	ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(extension), "."))
	m := strings.ToLower(strings.TrimSpace(mimeType))
	return ext == "csv" || m == "text/csv"
}

func displayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unnamed file"
	}
	return name
}

func displayMime(m string) string {
	m = strings.TrimSpace(m)
	if m == "" {
		return "unknown type"
	}
	return m
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/float64(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/float64(1<<10))
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func sanitizeUTF8(s string) string {
	if s == "" || utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, " ")
}
