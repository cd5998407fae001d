package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const (
	MimePDF  = "application/pdf"
	MimeText = "text/plain"

	mimeOctetStream = "application/octet-stream"
)

var (
	// ErrUnsupportedType is returned for anything other than PDF or plain text.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrExtractionFailed wraps parser failures and documents with no text.
	ErrExtractionFailed = errors.New("text extraction failed")
)

// Extract returns the text content of data. PDF text is trimmed; plain text
// is returned unchanged apart from NUL bytes and invalid UTF-8, which
// Postgres TEXT columns reject.
func Extract(ctx context.Context, data []byte, mimeType string) (string, error) {
	return ExtractFile(ctx, data, mimeType, "")
}

// ExtractFile is Extract with a file name used to resolve generic or missing
// MIME types by extension.
func ExtractFile(ctx context.Context, data []byte, mimeType, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch resolve(mimeType, fileName) {
	case MimePDF:
		text, err := extractPDF(data)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrExtractionFailed, err)
		}
		text = strings.TrimSpace(sanitize(text))
		if text == "" {
			return "", fmt.Errorf("%w: no text layer", ErrExtractionFailed)
		}
		return text, nil
	case MimeText:
		text := sanitize(string(data))
		if strings.TrimSpace(text) == "" {
			return "", fmt.Errorf("%w: empty document", ErrExtractionFailed)
		}
		return text, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, normalizeMimeType(mimeType))
	}
}

// Supported reports whether ExtractFile would attempt the file.
func Supported(mimeType, fileName string) bool {
	switch resolve(mimeType, fileName) {
	case MimePDF, MimeText:
		return true
	default:
		return false
	}
}

// ResolveMimeType returns the effective type used for extraction.
func ResolveMimeType(mimeType, fileName string) string {
	return resolve(mimeType, fileName)
}

func resolve(mimeType, fileName string) string {
	clean := normalizeMimeType(mimeType)
	if clean != "" && clean != mimeOctetStream {
		return clean
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return MimePDF
	case ".txt":
		return MimeText
	default:
		return clean
	}
}

// sanitize drops NUL bytes and replaces invalid UTF-8 sequences.
func sanitize(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	if utf8.ValidString(text) {
		return text
	}
	return strings.ToValidUTF8(text, string(utf8.RuneError))
}

func normalizeMimeType(mimeType string) string {
	return strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
}

func extractPDF(data []byte) (text string, err error) {
	// the parser panics on some malformed xref tables
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdf parser panic: %v", rec)
		}
	}()
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
