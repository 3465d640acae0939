package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/colorvariant-harvester/internal/entity"
	"github.com/user/colorvariant-harvester/internal/repository"
	"github.com/user/colorvariant-harvester/pkg/utils"
)

// ImageStoreImpl writes images to <root>/<group>/<NNN>.png.
type ImageStoreImpl struct {
	root   string
	logger *zap.Logger
}

var _ repository.ImageStore = (*ImageStoreImpl)(nil)

// NewImageStore creates a store rooted at root. The root itself is never created.
func NewImageStore(root string, logger *zap.Logger) *ImageStoreImpl {
	return &ImageStoreImpl{root: root, logger: logger}
}

// CheckRoot verifies that the output root exists and is a directory.
func (s *ImageStoreImpl) CheckRoot() error {
	info, err := os.Stat(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", repository.ErrOutputDirMissing, s.root)
		}
		return fmt.Errorf("failed to stat output directory %s: %w", s.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", repository.ErrOutputDirMissing, s.root)
	}
	return nil
}

// Save writes data for d, creating the group directory when it is missing.
func (s *ImageStoreImpl) Save(_ context.Context, d entity.ImageDescriptor, data []byte) (*entity.SavedImage, error) {
	dir := s.GroupDir(d.Group)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		if err := os.Mkdir(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create group directory %s: %w", dir, err)
		}
		s.logger.Debug("created group directory", zap.String("group", d.Group), zap.String("dir", dir))
	}

	path := filepath.Join(dir, d.FileName())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}

	return &entity.SavedImage{
		Descriptor: d,
		Path:       path,
		Bytes:      int64(len(data)),
		SHA256:     utils.HashBytes(data),
		SavedAt:    time.Now(),
	}, nil
}

// GroupDir returns the directory that holds a group's images.
func (s *ImageStoreImpl) GroupDir(group string) string {
	return filepath.Join(s.root, DirName(group))
}

var dirNameReplacer = strings.NewReplacer("/", "_", `\`, "_", "\x00", "_")

// DirName maps a group name to a single path element. Names that would
// resolve to the root or its parent are prefixed with "_".
func DirName(group string) string {
	name := dirNameReplacer.Replace(group)
	if name == "" || name == "." || name == ".." {
		name = "_" + name
	}
	return name
}
