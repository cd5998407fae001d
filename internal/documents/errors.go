package documents

import (
	"errors"
	"fmt"
	"strings"

	"cv-ranker/internal/extract"
)

var (
	// ErrNotFound is returned for records that do not exist, are not owned by
	// the caller, or are archived where an active record is required.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned for requests that fail validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoOriginal is returned when a record has no stored upload, such as
	// pasted text or a store that was unavailable at upload time.
	ErrNoOriginal = fmt.Errorf("%w: original file not stored", ErrNotFound)
)

// FileFailure reports one upload that could not be read.
type FileFailure struct {
	FileName string `json:"filename"`
	Error    string `json:"error"`
}

// UnreadableError is returned when none of the uploaded files yielded text.
type UnreadableError struct {
	Failures []FileFailure
}

func (e *UnreadableError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, f.FileName)
	}
	return fmt.Sprintf("no readable files: %s", strings.Join(names, ", "))
}

func (e *UnreadableError) Unwrap() error { return extract.ErrExtractionFailed }

// MissingError lists requested ids that were not found.
type MissingError struct {
	Kind string
	IDs  []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, strings.Join(e.IDs, ", "))
}

func (e *MissingError) Unwrap() error { return ErrNotFound }
