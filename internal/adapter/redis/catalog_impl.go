package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/colorvariant-harvester/internal/entity"
	"github.com/user/colorvariant-harvester/internal/repository"
	"github.com/user/colorvariant-harvester/pkg/utils"
)

const (
	groupsKey      = "harvest:groups"
	runKeyPrefix   = "harvest:run:"
	groupKeyPrefix = "harvest:group:"
	imageKeyPrefix = "harvest:image:"
)

// CatalogRepoImpl records runs and saved images in Redis hashes.
type CatalogRepoImpl struct {
	client *redis.Client
}

var _ repository.CatalogRepository = (*CatalogRepoImpl)(nil)

// NewCatalogRepo creates a new instance of CatalogRepoImpl.
func NewCatalogRepo(client *redis.Client) *CatalogRepoImpl {
	return &CatalogRepoImpl{client: client}
}

func runKey(runID string) string { return runKeyPrefix + runID }

// GroupKey is the hash mapping zero-padded image indices to file paths.
func GroupKey(group string) string { return groupKeyPrefix + group }

// ImageKey is the hash describing the image fetched from sourceURL.
func ImageKey(sourceURL string) string {
	return fmt.Sprintf("%s%s", imageKeyPrefix, utils.HashURL(sourceURL))
}

// StartRun stores the run header.
func (r *CatalogRepoImpl) StartRun(ctx context.Context, run *entity.RunSummary) error {
	return r.client.HSet(ctx, runKey(run.RunID),
		"page_url", run.PageURL,
		"started_at", run.StartedAt.Format(time.RFC3339),
		"dry_run", strconv.FormatBool(run.DryRun),
	).Err()
}

// RecordImage indexes the image by group and by source URL in one transaction.
func (r *CatalogRepoImpl) RecordImage(ctx context.Context, runID string, img *entity.SavedImage) error {
	d := img.Descriptor
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, groupsKey, d.Group)
		pipe.HSet(ctx, GroupKey(d.Group), fmt.Sprintf("%03d", d.Index), img.Path)
		pipe.HSet(ctx, ImageKey(d.SourceURL),
			"group", d.Group,
			"index", d.Index,
			"source_url", d.SourceURL,
			"path", img.Path,
			"bytes", img.Bytes,
			"sha256", img.SHA256,
			"saved_at", img.SavedAt.Format(time.RFC3339),
			"run_id", runID,
		)
		return nil
	})
	return err
}

// FinishRun stores the final counters of the run.
func (r *CatalogRepoImpl) FinishRun(ctx context.Context, run *entity.RunSummary) error {
	return r.client.HSet(ctx, runKey(run.RunID),
		"finished_at", run.FinishedAt.Format(time.RFC3339),
		"groups", run.Groups,
		"images", run.Images,
		"bytes", run.Bytes,
	).Err()
}

// Groups returns every group that has at least one catalogued image.
func (r *CatalogRepoImpl) Groups(ctx context.Context) ([]string, error) {
	return r.client.SMembers(ctx, groupsKey).Result()
}

// GroupImages returns the zero-padded index to path mapping of a group.
func (r *CatalogRepoImpl) GroupImages(ctx context.Context, group string) (map[string]string, error) {
	return r.client.HGetAll(ctx, GroupKey(group)).Result()
}
