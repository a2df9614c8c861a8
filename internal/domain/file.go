package domain

import "fmt"

// SourceKind is an explicit tag for where submission bytes live. Callers must
// say what they have; the pipeline never infers local-vs-remote from the shape
// of a string.
type SourceKind string

const (
	SourceKindLocal  SourceKind = "local"
	SourceKindBuffer SourceKind = "buffer"
	SourceKindRemote SourceKind = "remote"
)

// SubmissionSource is a tagged union: exactly one of Path, Bytes, or URL is
// meaningful, selected by Kind. URL accepts http(s) URLs and gs://bucket/key
// object references.
type SubmissionSource struct {
	Kind  SourceKind
	Path  string
	Bytes []byte
	URL   string
}

func (s SubmissionSource) Validate() error {
	switch s.Kind {
	case SourceKindLocal:
		if s.Path == "" {
			return fmt.Errorf("local source requires a path")
		}
	case SourceKindBuffer:
		if s.Bytes == nil {
			return fmt.Errorf("buffer source requires bytes")
		}
	case SourceKindRemote:
		if s.URL == "" {
			return fmt.Errorf("remote source requires a url")
		}
	default:
		return fmt.Errorf("unknown source kind %q", s.Kind)
	}
	return nil
}

// FileDescriptor describes an uploaded artifact as received from the intake
// layer. It is created once at upload time and never mutated afterward.
type FileDescriptor struct {
	OriginalName string
	DeclaredMime string
	Extension    string
	SizeBytes    int64
	Source       SubmissionSource
}

// ProcessedArtifact is the resolved, classified form of a descriptor. It is
// owned by the request that produced it and discarded once the model call
// completes.
type ProcessedArtifact struct {
	Bytes    []byte
	MimeType string
	Category ContentCategory

	// LocalPath points at a readable copy of the bytes (the original local
	// file, or a temp staging file for remote sources). Empty for pure
	// buffer sources.
	LocalPath string

	// ExtractedText is best-effort; nil means extraction produced nothing,
	// which is not an error.
	ExtractedText *string
}
