package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/colorvariant-harvester/internal/adapter/chromedp_fetcher"
	"github.com/user/colorvariant-harvester/internal/adapter/filesystem"
	"github.com/user/colorvariant-harvester/internal/adapter/http_fetcher"
	"github.com/user/colorvariant-harvester/internal/adapter/postgres"
	redis_adapter "github.com/user/colorvariant-harvester/internal/adapter/redis"
	"github.com/user/colorvariant-harvester/internal/gallery"
	"github.com/user/colorvariant-harvester/internal/repository"
	"github.com/user/colorvariant-harvester/internal/usecase"
	"github.com/user/colorvariant-harvester/pkg/config"
	"github.com/user/colorvariant-harvester/pkg/logger"
	"github.com/user/colorvariant-harvester/pkg/metrics"
)

// loggedError marks an error that has already been written to the log.
type loggedError struct{ error }

func (e loggedError) Unwrap() error { return e.error }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	if err != nil {
		var logged loggedError
		if !errors.As(err, &logged) {
			fmt.Fprintln(os.Stderr, "ERROR:", err)
		}
		os.Exit(1)
	}
}

// run executes the command line; it is separate from main for tests.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Download every fighter's colour variations from the wiki",
		Long: `harvester fetches the colour-variation page, finds one eight-image gallery per
fighter heading and saves the images as <output>/<fighter>/<NNN>.png.
The output directory must exist before the run.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			cfg, err := config.Load(envFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("could not load config: %w", err)
			}
			return harvest(cmd.Context(), cfg, stdout, stderr)
		},
	}

	flags := cmd.Flags()
	flags.String("env-file", ".env", "optional .env file with configuration")
	flags.String("page-url", config.DefaultPageURL, "wiki page listing the colour variations")
	flags.String("base-url", config.DefaultBaseURL, "base URL image sources are resolved against")
	flags.StringP("output", "o", "./data", "existing directory to save images into")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("fetch-mode", config.FetchModeHTTP, "page fetch mode (http, browser)")
	flags.String("user-agent", "", "User-Agent header sent with every request")
	flags.Bool("dry-run", false, "list the images without downloading them")
	return cmd
}

func harvest(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) (err error) {
	// --- Logger ---
	log, err := logger.New(stdout, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	// --- Metrics ---
	m := metrics.New()
	defer flushMetrics(cfg, m, log)

	defer func() {
		if err != nil {
			log.Error("harvest failed", zap.Error(err))
			err = loggedError{err}
		}
	}()

	// --- Fetchers ---
	httpFetcher, err := http_fetcher.NewHTTPFetcher(http_fetcher.Options{
		Timeout:       cfg.HTTPTimeoutDuration(),
		UserAgent:     cfg.UserAgent,
		ProxyURL:      cfg.ProxyURL,
		WrapTransport: m.InstrumentTransport,
	})
	if err != nil {
		return err
	}
	defer httpFetcher.Close()

	var pageFetcher repository.Fetcher = httpFetcher
	if cfg.FetchMode == config.FetchModeBrowser {
		browser := chromedp_fetcher.NewChromedpFetcher(cfg.UserAgent, cfg.BrowserTimeoutDuration(), log)
		defer browser.Close()
		pageFetcher = browser
		log.Debug("using headless browser for the page fetch")
	}

	// --- Extractor & Store ---
	extractor, err := gallery.NewExtractor(cfg.BaseURL, log)
	if err != nil {
		return err
	}
	store := filesystem.NewImageStore(cfg.OutputDir, log)

	// --- Catalogs ---
	catalogs, closeCatalogs, err := openCatalogs(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCatalogs()

	harvester := usecase.NewHarvestUseCase(
		usecase.HarvestOptions{
			PageURL:  cfg.PageURL,
			DryRun:   cfg.DryRun,
			Progress: stderr,
		},
		pageFetcher,
		httpFetcher,
		extractor,
		store,
		catalogs,
		m,
		log,
	)

	_, err = harvester.Run(ctx)
	return err
}

func openCatalogs(ctx context.Context, cfg *config.Config, log *zap.Logger) ([]repository.CatalogRepository, func(), error) {
	var (
		catalogs []repository.CatalogRepository
		closers  []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.PostgresURL != "" {
		pg, err := postgres.NewCatalogRepo(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		catalogs = append(catalogs, pg)
		closers = append(closers, pg.Close)
		log.Info("PostgreSQL catalog enabled")
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		closers = append(closers, func() { rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("unable to connect to Redis: %w", err)
		}
		catalogs = append(catalogs, redis_adapter.NewCatalogRepo(rdb))
		log.Info("Redis catalog enabled")
	}

	return catalogs, closeAll, nil
}

func flushMetrics(cfg *config.Config, m *metrics.Metrics, log *zap.Logger) {
	if cfg.MetricsTextfile != "" {
		if err := m.WriteTextfile(cfg.MetricsTextfile); err != nil {
			log.Warn("could not write metrics", zap.Error(err))
		}
	}
	if cfg.PushgatewayURL != "" {
		if err := m.Push(cfg.PushgatewayURL); err != nil {
			log.Warn("could not push metrics", zap.Error(err))
		}
	}
}
