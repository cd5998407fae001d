package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExtractPlainTextUnchanged(t *testing.T) {
	in := "  Senior Go engineer\nDistributed systems  "
	got, err := Extract(context.Background(), []byte(in), "text/plain; charset=utf-8")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != in {
		t.Fatalf("expected text unchanged, got %q", got)
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	data := []byte("Go, Postgres, Kubernetes")
	first, err := Extract(context.Background(), data, "text/plain")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	second, err := Extract(context.Background(), data, "text/plain")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical output, got %q and %q", first, second)
	}
}

func TestExtractRejectsUnsupportedType(t *testing.T) {
	_, err := Extract(context.Background(), []byte("PK..."), "application/zip")
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestExtractCorruptPDFFails(t *testing.T) {
	_, err := Extract(context.Background(), []byte("%PDF-1.4 not really a pdf"), "application/pdf")
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestExtractWhitespaceOnlyFails(t *testing.T) {
	_, err := Extract(context.Background(), []byte(" \n\t "), "text/plain")
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestExtractFileFallsBackToExtension(t *testing.T) {
	got, err := ExtractFile(context.Background(), []byte("hello"), "application/octet-stream", "cv.TXT")
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	if got != "hello" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Extract(ctx, []byte("x"), "text/plain"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSupported(t *testing.T) {
	tests := []struct {
		mime, name string
		want       bool
	}{
		{"application/pdf", "a.pdf", true},
		{"TEXT/PLAIN", "a.txt", true},
		{"", "a.pdf", true},
		{"application/octet-stream", "a.docx", false},
		{"image/png", "a.png", false},
	}
	for _, tt := range tests {
		if got := Supported(tt.mime, tt.name); got != tt.want {
			t.Fatalf("Supported(%q, %q) = %v, want %v", tt.mime, tt.name, got, tt.want)
		}
	}
}

func TestExtractPlainTextDropsNULAndInvalidUTF8(t *testing.T) {
	got, err := Extract(context.Background(), []byte("r\xe9sum\xe9 Go\x00 engineer"), "text/plain")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !utf8.ValidString(got) || strings.ContainsRune(got, 0) {
		t.Fatalf("expected valid UTF-8 without NUL, got %q", got)
	}
	if got != "r\uFFFDsum\uFFFD Go engineer" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractOnlyNULBytesFails(t *testing.T) {
	_, err := Extract(context.Background(), []byte("\x00\x00 \x00"), "text/plain")
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}
