package documents

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"golang.org/x/sync/errgroup"

	"cv-ranker/internal/extract"
)

// File is an upload that has not been read yet.
type File struct {
	Name     string
	MimeType string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// Source is a fully read upload.
type Source struct {
	Name     string
	MimeType string
	Data     []byte
}

// FromMultipart wraps a multipart file header.
func FromMultipart(fh *multipart.FileHeader) File {
	return File{
		Name:     fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// TextFile wraps pasted text as a plain-text upload.
func TextFile(name, text string) File {
	return File{
		Name:     name,
		MimeType: extract.MimeText,
		Size:     int64(len(text)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(text)), nil
		},
	}
}

// Read loads the file, refusing more than maxBytes.
func (f File) Read(maxBytes int64) (Source, error) {
	if f.Open == nil {
		return Source{}, fmt.Errorf("%w: %s has no content", ErrInvalidInput, f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return Source{}, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	r := io.Reader(rc)
	if maxBytes > 0 {
		r = io.LimitReader(rc, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Source{}, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return Source{}, fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidInput, f.Name, maxBytes)
	}
	return Source{
		Name:     f.Name,
		MimeType: extract.ResolveMimeType(f.MimeType, f.Name),
		Data:     data,
	}, nil
}

// Validate checks names, sizes, and types before any credit is touched.
func Validate(files []File, maxBytes int64) error {
	for _, f := range files {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("%w: file name is required", ErrInvalidInput)
		}
		if maxBytes > 0 && f.Size > maxBytes {
			return fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidInput, f.Name, maxBytes)
		}
		if !extract.Supported(f.MimeType, f.Name) {
			return fmt.Errorf("%w: %s", extract.ErrUnsupportedType, f.Name)
		}
	}
	return nil
}

// Extracted is the outcome of reading and extracting one File.
type Extracted struct {
	Source Source
	Text   string
	Err    error
}

// ExtractAll reads and extracts files with at most concurrency in flight.
// Each outcome stays at its input index. Per-file failures are reported in
// Extracted.Err; the returned error is non-nil only when ctx is done.
func ExtractAll(ctx context.Context, files []File, maxBytes int64, concurrency int) ([]Extracted, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	out := make([]Extracted, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = ExtractOne(gctx, f, maxBytes)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, ctx.Err()
}

// ExtractOne reads and extracts a single file. Failures land in Err.
func ExtractOne(ctx context.Context, f File, maxBytes int64) Extracted {
	src, err := f.Read(maxBytes)
	if err != nil {
		return Extracted{Source: Source{Name: f.Name, MimeType: f.MimeType}, Err: err}
	}
	text, err := extract.ExtractFile(ctx, src.Data, src.MimeType, src.Name)
	return Extracted{Source: src, Text: text, Err: err}
}
