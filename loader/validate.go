package loader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/poiesic/harvest/core"
)

// MaxFileSize is the largest accepted upload.
const MaxFileSize = 50 << 20

// AllowedExtensions lists the accepted file extensions, lower case.
var AllowedExtensions = []string{".pdf", ".docx", ".md", ".markdown", ".txt"}

// Ext returns the lower-cased extension of filename.
func Ext(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// Validate checks an upload's name and size before anything is stored.
func Validate(filename string, size int64) error {
	if strings.TrimSpace(filename) == "" {
		return fmt.Errorf("%w: filename is required", core.ErrInvalidRequest)
	}
	if size > MaxFileSize {
		return fmt.Errorf("%w: %.1fMB exceeds %dMB", ErrFileTooLarge, float64(size)/(1<<20), MaxFileSize>>20)
	}
	if SourceType(filename) == "" {
		return fmt.Errorf("%w: %q, allowed: %s", ErrUnsupportedType, Ext(filename), strings.Join(AllowedExtensions, ", "))
	}
	if size == 0 {
		return ErrEmptyFile
	}
	return nil
}

// SourceType maps a filename to its chunk source type, or "" if unsupported.
func SourceType(filename string) string {
	switch Ext(filename) {
	case ".pdf":
		return core.SourceTypePDF
	case ".docx":
		return core.SourceTypeWord
	case ".md", ".markdown":
		return core.SourceTypeMarkdown
	case ".txt":
		return core.SourceTypeText
	default:
		return ""
	}
}

// ContentType returns the MIME type recorded for an accepted extension.
func ContentType(filename string) string {
	switch Ext(filename) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".md", ".markdown":
		return "text/markdown"
	default:
		return "text/plain"
	}
}

// SafeName replaces every character outside [A-Za-z0-9._-] with '_'.
func SafeName(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
