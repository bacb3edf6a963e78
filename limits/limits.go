package limits

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	// ErrTooManyFiles indicates the queue's file-count ceiling was reached.
	ErrTooManyFiles = errors.New("file count limit reached")

	// ErrFileTooSmall indicates a file below the configured size floor.
	ErrFileTooSmall = errors.New("file smaller than minimum size")

	// ErrFileTooLarge indicates a file above the configured size ceiling.
	ErrFileTooLarge = errors.New("file larger than maximum size")

	// ErrTypeNotAllowed indicates a file outside the type allow-list.
	ErrTypeNotAllowed = errors.New("file type not allowed")
)

// ViolationKind identifies which admission rule a file failed.
type ViolationKind uint8

const (
	// ViolationMaxFiles is a file-count ceiling violation.
	ViolationMaxFiles ViolationKind = iota
	// ViolationMinSize is a size-floor violation.
	ViolationMinSize
	// ViolationMaxSize is a size-ceiling violation.
	ViolationMaxSize
	// ViolationFileType is a type allow-list violation.
	ViolationFileType
)

// Violation describes a failed admission check. It wraps the matching
// sentinel error so callers can test with errors.Is.
type Violation struct {
	Kind    ViolationKind
	sent    error
	Message string
}

// Error implements the error interface.
func (v *Violation) Error() string { return v.Message }

// Unwrap exposes the sentinel error behind the violation.
func (v *Violation) Unwrap() error { return v.sent }

// Rules is the admission policy for a queue. Zero values disable the
// corresponding check.
type Rules struct {
	// MaxFiles caps how many files the queue tracks at once. 0 = unlimited.
	MaxFiles int
	// MinFileSize is the admission size floor in bytes. 0 = no floor.
	MinFileSize int64
	// MaxFileSize is the admission size ceiling in bytes. 0 = no ceiling.
	MaxFileSize int64
	// FileTypes is the allow-list. Entries are either file-extension
	// patterns (".png", "png") matched case-insensitively against the file
	// name suffix, or type/subtype MIME patterns matched exactly or with a
	// wildcard subtype ("image/*"). Empty = all types allowed.
	FileTypes []string
}

// CheckCount validates the file-count ceiling against the number of files
// already tracked.
func (r Rules) CheckCount(tracked int) *Violation {
	if r.MaxFiles <= 0 {
		return nil
	}
	if tracked >= r.MaxFiles {
		return &Violation{
			Kind:    ViolationMaxFiles,
			sent:    ErrTooManyFiles,
			Message: fmt.Sprintf("%v: %d files tracked, limit %d", ErrTooManyFiles, tracked, r.MaxFiles),
		}
	}
	return nil
}

// CheckSize validates a file size against the configured window.
func (r Rules) CheckSize(size int64) *Violation {
	if r.MinFileSize > 0 && size < r.MinFileSize {
		return &Violation{
			Kind:    ViolationMinSize,
			sent:    ErrFileTooSmall,
			Message: fmt.Sprintf("%v: size %d below floor %d", ErrFileTooSmall, size, r.MinFileSize),
		}
	}
	if r.MaxFileSize > 0 && size > r.MaxFileSize {
		return &Violation{
			Kind:    ViolationMaxSize,
			sent:    ErrFileTooLarge,
			Message: fmt.Sprintf("%v: size %d above ceiling %d", ErrFileTooLarge, size, r.MaxFileSize),
		}
	}
	return nil
}

// CheckType validates a file against the type allow-list. name is matched
// against extension patterns; mimeType, when known, against MIME patterns.
func (r Rules) CheckType(name, mimeType string) *Violation {
	if len(r.FileTypes) == 0 {
		return nil
	}
	for _, pattern := range r.FileTypes {
		if MatchesType(pattern, name, mimeType) {
			return nil
		}
	}
	return &Violation{
		Kind:    ViolationFileType,
		sent:    ErrTypeNotAllowed,
		Message: fmt.Sprintf("%v: %q does not match any of %v", ErrTypeNotAllowed, name, r.FileTypes),
	}
}

// MatchesType reports whether a single allow-list pattern admits the file.
// Patterns containing a "/" are MIME patterns ("image/png", "image/*"),
// matched against mimeType; anything else is an extension pattern matched
// case-insensitively against the name suffix.
func MatchesType(pattern, name, mimeType string) bool {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return false
	}

	if strings.Contains(pattern, "/") {
		if mimeType == "" {
			return false
		}
		ok, err := doublestar.Match(pattern, strings.ToLower(mimeType))
		return err == nil && ok
	}

	if !strings.HasPrefix(pattern, ".") {
		pattern = "." + pattern
	}
	return strings.HasSuffix(strings.ToLower(name), pattern)
}
