package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/colorvariant-harvester/internal/entity"
	"github.com/user/colorvariant-harvester/internal/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS harvest_runs (
	run_id      UUID PRIMARY KEY,
	page_url    TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	groups      INTEGER NOT NULL DEFAULT 0,
	images      INTEGER NOT NULL DEFAULT 0,
	bytes       BIGINT NOT NULL DEFAULT 0,
	dry_run     BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS harvested_images (
	group_name  TEXT NOT NULL,
	image_index INTEGER NOT NULL,
	source_url  TEXT NOT NULL,
	file_path   TEXT NOT NULL,
	bytes       BIGINT NOT NULL,
	sha256      TEXT NOT NULL,
	saved_at    TIMESTAMPTZ NOT NULL,
	run_id      UUID NOT NULL REFERENCES harvest_runs (run_id),
	PRIMARY KEY (group_name, image_index)
);
`

// CatalogRepoImpl records runs and saved images in PostgreSQL.
type CatalogRepoImpl struct {
	db *pgxpool.Pool
}

var _ repository.CatalogRepository = (*CatalogRepoImpl)(nil)

// NewCatalogRepo connects to connStr and makes sure the catalog tables exist.
func NewCatalogRepo(ctx context.Context, connStr string) (*CatalogRepoImpl, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}
	if _, err := db.Exec(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create catalog schema: %w", err)
	}
	return &CatalogRepoImpl{db: db}, nil
}

// StartRun inserts the run row.
func (r *CatalogRepoImpl) StartRun(ctx context.Context, run *entity.RunSummary) error {
	query := `
		INSERT INTO harvest_runs (run_id, page_url, started_at, dry_run)
		VALUES ($1, $2, $3, $4);
	`
	id, err := uuid.Parse(run.RunID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", run.RunID, err)
	}
	_, err = r.db.Exec(ctx, query, id, run.PageURL, run.StartedAt, run.DryRun)
	return err
}

// RecordImage upserts the image row; a re-run replaces the previous record of
// the same group and index, as the file on disk is overwritten too.
func (r *CatalogRepoImpl) RecordImage(ctx context.Context, runID string, img *entity.SavedImage) error {
	query := `
		INSERT INTO harvested_images (group_name, image_index, source_url, file_path, bytes, sha256, saved_at, run_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (group_name, image_index) DO UPDATE SET
			source_url = EXCLUDED.source_url,
			file_path = EXCLUDED.file_path,
			bytes = EXCLUDED.bytes,
			sha256 = EXCLUDED.sha256,
			saved_at = EXCLUDED.saved_at,
			run_id = EXCLUDED.run_id;
	`
	id, err := uuid.Parse(runID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", runID, err)
	}
	_, err = r.db.Exec(ctx, query,
		img.Descriptor.Group,
		img.Descriptor.Index,
		img.Descriptor.SourceURL,
		img.Path,
		img.Bytes,
		img.SHA256,
		img.SavedAt,
		id,
	)
	return err
}

// FinishRun stores the final counters of the run.
func (r *CatalogRepoImpl) FinishRun(ctx context.Context, run *entity.RunSummary) error {
	query := `
		UPDATE harvest_runs
		SET finished_at = $2, groups = $3, images = $4, bytes = $5
		WHERE run_id = $1;
	`
	id, err := uuid.Parse(run.RunID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", run.RunID, err)
	}
	tag, err := r.db.Exec(ctx, query, id, run.FinishedAt, run.Groups, run.Images, run.Bytes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s not found in catalog", run.RunID)
	}
	return nil
}

// ImagesByGroup returns the catalogued images of one group ordered by index.
func (r *CatalogRepoImpl) ImagesByGroup(ctx context.Context, group string) ([]*entity.SavedImage, error) {
	query := `
		SELECT group_name, image_index, source_url, file_path, bytes, sha256, saved_at
		FROM harvested_images
		WHERE group_name = $1
		ORDER BY image_index ASC;
	`
	rows, err := r.db.Query(ctx, query, group)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.SavedImage, error) {
		var img entity.SavedImage
		err := row.Scan(
			&img.Descriptor.Group,
			&img.Descriptor.Index,
			&img.Descriptor.SourceURL,
			&img.Path,
			&img.Bytes,
			&img.SHA256,
			&img.SavedAt,
		)
		return &img, err
	})
}

func (r *CatalogRepoImpl) Close() {
	r.db.Close()
}
