package repository

import (
	"context"

	"github.com/user/colorvariant-harvester/internal/entity"
)

// ImageStore persists downloaded images below an output root.
type ImageStore interface {
	// CheckRoot verifies that the output root exists and is a directory.
	CheckRoot() error
	// Save writes the image for a descriptor, creating its group directory if needed.
	// An existing file at the same path is overwritten.
	Save(ctx context.Context, d entity.ImageDescriptor, data []byte) (*entity.SavedImage, error)
}
