package usecase

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/user/colorvariant-harvester/internal/entity"
	"github.com/user/colorvariant-harvester/internal/gallery"
	"github.com/user/colorvariant-harvester/internal/repository"
	"github.com/user/colorvariant-harvester/pkg/metrics"
)

// Harvester runs the fetch, extract and download pipeline once.
type Harvester interface {
	Run(ctx context.Context) (*entity.RunSummary, error)
}

// GalleryExtractor turns a fetched page into image descriptors.
type GalleryExtractor interface {
	Extract(page []byte) (*gallery.Result, error)
}

// HarvestOptions are the per-run settings of the pipeline.
type HarvestOptions struct {
	PageURL string
	// DryRun stops after extraction and only logs what would be downloaded.
	DryRun bool
	// Progress receives the progress bar; nil disables it.
	Progress io.Writer
}

type harvestUseCase struct {
	opts         HarvestOptions
	pageFetcher  repository.Fetcher
	imageFetcher repository.Fetcher
	extractor    GalleryExtractor
	store        repository.ImageStore
	catalogs     []repository.CatalogRepository
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewHarvestUseCase creates a new instance of the harvest use case. Catalogs
// may be empty.
func NewHarvestUseCase(
	opts HarvestOptions,
	pageFetcher repository.Fetcher,
	imageFetcher repository.Fetcher,
	extractor GalleryExtractor,
	store repository.ImageStore,
	catalogs []repository.CatalogRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) Harvester {
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	return &harvestUseCase{
		opts:         opts,
		pageFetcher:  pageFetcher,
		imageFetcher: imageFetcher,
		extractor:    extractor,
		store:        store,
		catalogs:     catalogs,
		metrics:      m,
		logger:       logger,
	}
}

// Run executes the pipeline. Any returned error is fatal for the run; images
// saved before the failure stay on disk.
func (uc *harvestUseCase) Run(ctx context.Context) (*entity.RunSummary, error) {
	summary := &entity.RunSummary{
		RunID:     uuid.NewString(),
		PageURL:   uc.opts.PageURL,
		StartedAt: time.Now(),
		DryRun:    uc.opts.DryRun,
	}
	log := uc.logger.With(zap.String("run_id", summary.RunID))

	if err := uc.store.CheckRoot(); err != nil {
		return nil, fmt.Errorf("create the output directory beforehand: %w", err)
	}

	page, err := uc.fetchPage(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("page fetched", zap.String("url", uc.opts.PageURL), zap.Int("bytes", len(page)))

	res, err := uc.extractor.Extract(page)
	if err != nil {
		return nil, fmt.Errorf("failed to extract galleries: %w", err)
	}
	for i := 0; i < res.Galleries; i++ {
		uc.metrics.ObserveGallery(true)
	}
	for i := 0; i < res.SkippedLists; i++ {
		uc.metrics.ObserveGallery(false)
	}
	summary.Groups = len(res.Groups())
	log.Info("images found", zap.Int("images", len(res.Descriptors)), zap.Int("groups", summary.Groups))

	if err := uc.eachCatalog(func(c repository.CatalogRepository) error { return c.StartRun(ctx, summary) }); err != nil {
		return nil, fmt.Errorf("failed to register run in catalog: %w", err)
	}

	if uc.opts.DryRun {
		for _, d := range res.Descriptors {
			log.Info("would download", zap.Stringer("image", d), zap.String("url", d.SourceURL))
		}
	} else if err := uc.downloadAll(ctx, log, summary, res.Descriptors); err != nil {
		return nil, err
	}

	summary.FinishedAt = time.Now()
	if err := uc.eachCatalog(func(c repository.CatalogRepository) error { return c.FinishRun(ctx, summary) }); err != nil {
		return nil, fmt.Errorf("failed to finish run in catalog: %w", err)
	}
	uc.metrics.MarkSuccess(summary.FinishedAt)

	log.Info("download complete",
		zap.Int("images", summary.Images),
		zap.Int64("bytes", summary.Bytes),
		zap.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, nil
}

func (uc *harvestUseCase) fetchPage(ctx context.Context) ([]byte, error) {
	startTime := time.Now()
	page, err := uc.pageFetcher.Fetch(ctx, uc.opts.PageURL)
	uc.metrics.ObservePage(err == nil, time.Since(startTime))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	return page, nil
}

func (uc *harvestUseCase) downloadAll(ctx context.Context, log *zap.Logger, summary *entity.RunSummary, descriptors []entity.ImageDescriptor) error {
	if len(descriptors) == 0 {
		return nil
	}
	bar := progressbar.NewOptions(len(descriptors),
		progressbar.OptionSetWriter(uc.opts.Progress),
		progressbar.OptionSetDescription("downloading"),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(uc.opts.Progress) }),
	)

	for _, d := range descriptors {
		if err := ctx.Err(); err != nil {
			return err
		}

		saved, err := uc.download(ctx, d)
		if err != nil {
			return err
		}
		log.Debug("saved image", zap.Stringer("image", d), zap.String("path", saved.Path))

		summary.Images++
		summary.Bytes += saved.Bytes

		if err := uc.eachCatalog(func(c repository.CatalogRepository) error { return c.RecordImage(ctx, summary.RunID, saved) }); err != nil {
			return fmt.Errorf("failed to record %s in catalog: %w", d, err)
		}
		_ = bar.Add(1)
	}
	return bar.Finish()
}

// download fetches one image and writes it below the output root.
func (uc *harvestUseCase) download(ctx context.Context, d entity.ImageDescriptor) (*entity.SavedImage, error) {
	startTime := time.Now()
	data, err := uc.imageFetcher.Fetch(ctx, d.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", d, err)
	}

	saved, err := uc.store.Save(ctx, d, data)
	if err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", d, err)
	}
	uc.metrics.ObserveImage(saved.Bytes, time.Since(startTime))
	return saved, nil
}

func (uc *harvestUseCase) eachCatalog(fn func(repository.CatalogRepository) error) error {
	for _, c := range uc.catalogs {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}
