package service

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/feedback-service/internal/config"
	apperrors "github.com/spec-kit/feedback-service/pkg/util/errorutil"
)

// AttachmentStore writes uploaded files to local disk and returns the public
// paths they are served from.
type AttachmentStore struct {
	dir        string
	publicPath string
	maxFiles   int
	maxBytes   int64
	allowed    map[string]struct{}
	logger     *zap.Logger
}

// NewAttachmentStore builds the store from upload settings.
func NewAttachmentStore(cfg config.UploadConfig, logger *zap.Logger) *AttachmentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	return &AttachmentStore{
		dir:        cfg.Dir,
		publicPath: strings.TrimRight(cfg.PublicPath, "/"),
		maxFiles:   cfg.MaxFiles,
		maxBytes:   cfg.MaxFileBytes,
		allowed:    allowed,
		logger:     logger,
	}
}

// Save validates every file first, then writes them under random names.
// On a write failure the files already written are removed.
func (s *AttachmentStore) Save(files []*multipart.FileHeader) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if s.maxFiles > 0 && len(files) > s.maxFiles {
		return nil, apperrors.NewValidationError(fmt.Sprintf("at most %d attachments are allowed", s.maxFiles), nil)
	}
	for _, fh := range files {
		if err := s.check(fh); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("create upload dir: %w", err))
	}

	saved := make([]string, 0, len(files))
	for _, fh := range files {
		name := uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
		if err := s.write(fh, filepath.Join(s.dir, name)); err != nil {
			s.Remove(saved)
			return nil, apperrors.NewInternalError(err)
		}
		saved = append(saved, path.Join(s.publicPath, name))
	}
	return saved, nil
}

// Remove deletes previously saved attachments. Missing files are ignored.
func (s *AttachmentStore) Remove(publicPaths []string) {
	for _, p := range publicPaths {
		name := path.Base(p)
		if name == "." || name == "/" {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("remove attachment failed", zap.String("path", p), zap.Error(err))
		}
	}
}

func (s *AttachmentStore) check(fh *multipart.FileHeader) error {
	details := map[string]any{"file": fh.Filename}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if _, ok := s.allowed[ext]; !ok {
		return apperrors.NewValidationError("file type not allowed", details)
	}
	if s.maxBytes > 0 && fh.Size > s.maxBytes {
		return apperrors.NewValidationError(fmt.Sprintf("file exceeds %d bytes", s.maxBytes), details)
	}
	return nil
}

func (s *AttachmentStore) write(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return out.Close()
}
