package documents

import (
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// State is the soft-delete state shared by every stored record.
type State string

const (
	StateActive   State = "active"
	StateArchived State = "archived"
)

// DescriptionRunes is how much of a JD's content is kept as its summary.
const DescriptionRunes = 500

// ListLimit caps every listing.
const ListLimit = 50

// JobDescription is an uploaded job description and its extracted text.
type JobDescription struct {
	ID             string
	UserID         string
	Title          string
	Description    string
	Content        string
	FileName       string
	MimeType       string
	StorageKey     string
	SizeBytes      int64
	State          State
	RankedCVsCount int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CV is an uploaded candidate document and its extracted text.
type CV struct {
	ID            string
	UserID        string
	FileName      string
	CandidateName string
	Content       string
	MimeType      string
	StorageKey    string
	SizeBytes     int64
	State         State
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// baseName strips the directory and extension from a file name.
func baseName(fileName string) string {
	name := filepath.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if ext := filepath.Ext(name); ext != "" && ext != name {
		name = strings.TrimSuffix(name, ext)
	}
	if name == "." || name == "/" {
		return ""
	}
	return name
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
