package service

import (
	"bytes"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/feedback-service/internal/config"
	apperrors "github.com/spec-kit/feedback-service/pkg/util/errorutil"
)

func fileHeaders(t *testing.T, files map[string]string) []*multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := writer.CreateFormFile("attachments", name)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	form, err := multipart.NewReader(&body, writer.Boundary()).ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["attachments"]
}

func TestAttachmentStore(t *testing.T) {
	dir := t.TempDir()
	store := NewAttachmentStore(config.UploadConfig{
		Dir:               dir,
		PublicPath:        "/uploads/feedback/",
		MaxFiles:          2,
		MaxFileBytes:      16,
		AllowedExtensions: []string{".png", "pdf"},
	}, zap.NewNop())

	saved, err := store.Save(fileHeaders(t, map[string]string{"shot.PNG": "png-bytes", "doc.pdf": "pdf"}))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("saved %v", saved)
	}
	for _, p := range saved {
		if !strings.HasPrefix(p, "/uploads/feedback/") {
			t.Fatalf("unexpected public path %s", p)
		}
		if _, err := os.Stat(filepath.Join(dir, filepath.Base(p))); err != nil {
			t.Fatalf("file missing on disk: %v", err)
		}
	}

	store.Remove(saved)
	for _, p := range saved {
		if _, err := os.Stat(filepath.Join(dir, filepath.Base(p))); !os.IsNotExist(err) {
			t.Fatalf("file %s should be removed", p)
		}
	}

	tests := []struct {
		name  string
		files map[string]string
	}{
		{name: "too many files", files: map[string]string{"a.png": "1", "b.png": "2", "c.png": "3"}},
		{name: "extension not allowed", files: map[string]string{"run.exe": "x"}},
		{name: "file too large", files: map[string]string{"big.pdf": strings.Repeat("x", 17)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.Save(fileHeaders(t, tc.files))
			if apperrors.CodeOf(err) != apperrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			entries, _ := os.ReadDir(dir)
			if len(entries) != 0 {
				t.Fatalf("nothing should be written on rejection, found %d files", len(entries))
			}
		})
	}
}
