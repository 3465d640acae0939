package repository

import (
	"context"

	"github.com/user/colorvariant-harvester/internal/entity"
)

// CatalogRepository records harvest runs and the images they saved outside the
// file tree.
type CatalogRepository interface {
	// StartRun registers a run before any image is saved.
	StartRun(ctx context.Context, run *entity.RunSummary) error
	// RecordImage stores one saved image under the given run.
	RecordImage(ctx context.Context, runID string, img *entity.SavedImage) error
	// FinishRun stores the final counters of a run.
	FinishRun(ctx context.Context, run *entity.RunSummary) error
}
