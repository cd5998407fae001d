package object

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"cv-ranker/internal/shared/util"
)

var (
	// ErrInvalidKey is returned for storage keys that escape the store root.
	ErrInvalidKey = errors.New("invalid storage key")
	// ErrNotFound is returned by Open when nothing is stored under the key.
	ErrNotFound = errors.New("object not found")
)

// Object describes a stored original upload.
type Object struct {
	Key         string
	Size        int64
	ContentType string
}

// ObjectStore keeps the original bytes of uploaded job descriptions and CVs.
type ObjectStore interface {
	Put(ctx context.Context, userID, folder, fileName, contentType string, r io.Reader) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// BuildKey returns "<hashed user>/<folder>/<random>_<file name>".
func BuildKey(userID, folder, fileName, randomID string) (string, error) {
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" || strings.Contains(folder, "..") {
		return "", ErrInvalidKey
	}
	return path.Join(util.HashUserKey(userID), folder, randomID+"_"+name), nil
}

// Sniff resolves the content type from the first 512 bytes when none is
// given. The returned reader yields the full original stream.
func Sniff(contentType string, r io.Reader) (string, io.Reader, error) {
	if ct := strings.TrimSpace(contentType); ct != "" && ct != "application/octet-stream" {
		return ct, r, nil
	}
	var head [512]byte
	n, err := io.ReadFull(r, head[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, fmt.Errorf("read sniff: %w", err)
	}
	return http.DetectContentType(head[:n]), io.MultiReader(bytes.NewReader(head[:n]), r), nil
}
