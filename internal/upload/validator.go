package upload

import (
	"path/filepath"
	"sort"
	"strings"
)

// Reason tags why an upload was rejected.
type Reason string

const (
	MissingFile         Reason = "missing_file"
	EmptyFilename       Reason = "empty_filename"
	DisallowedExtension Reason = "disallowed_extension"
)

var allowedExtensions = map[string]bool{
	"wav":  true,
	"mp3":  true,
	"m4a":  true,
	"flac": true,
	"ogg":  true,
}

// Request describes the file part of a multipart upload before any bytes
// are written to disk.
type Request struct {
	Filename    string
	ContentType string
	Size        int64
}

type ValidationError struct {
	Reason  Reason
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks an upload against the accepted-audio rules. A nil request
// means the form carried no file part at all. Rules are checked in order and
// the first violation wins.
func Validate(req *Request) *ValidationError {
	if req == nil {
		return &ValidationError{Reason: MissingFile, Message: "No file provided"}
	}
	if req.Filename == "" {
		return &ValidationError{Reason: EmptyFilename, Message: "No file selected"}
	}
	if !AllowedExtension(req.Filename) {
		return &ValidationError{Reason: DisallowedExtension, Message: "File type not allowed"}
	}
	return nil
}

// AllowedExtension reports whether the filename ends in one of the accepted
// audio extensions. The check is case-insensitive and requires a dot followed
// by a non-empty suffix.
func AllowedExtension(filename string) bool {
	ext := filepath.Ext(filename)
	if ext == "" {
		return false
	}
	return allowedExtensions[strings.ToLower(strings.TrimPrefix(ext, "."))]
}

// Extensions returns the accepted extensions, for logs and error detail.
func Extensions() []string {
	out := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
