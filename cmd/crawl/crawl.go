// Package crawl implements the crawl subcommand, the entry point of the
// catalog ingestion pipeline.
package crawl

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fridgecat/fridgecat-go/internal/conf"
	"github.com/fridgecat/fridgecat-go/internal/datastore"
	"github.com/fridgecat/fridgecat-go/internal/edamam"
	"github.com/fridgecat/fridgecat-go/internal/errors"
	"github.com/fridgecat/fridgecat-go/internal/foodtext"
	"github.com/fridgecat/fridgecat-go/internal/logging"
	"github.com/fridgecat/fridgecat-go/internal/mealdb"
	"github.com/fridgecat/fridgecat-go/internal/pipeline"
	"github.com/fridgecat/fridgecat-go/internal/resolver"
	"github.com/fridgecat/fridgecat-go/internal/scheduler"
	"github.com/fridgecat/fridgecat-go/internal/stilltasty"
)

// Command returns the crawl subcommand
func Command(settings *conf.Settings) *cobra.Command {
	var letters string
	var keywords []string

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl upstream food sources and populate the catalog",
		Long: `Crawl discovers recipes from TheMealDB by first letter (or searches
Edamam directly with keywords), verifies each recipe still exists at its
source, and resolves every ingredient's shelf life from StillTasty.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings, letters, keywords)
		},
	}

	cmd.Flags().StringVar(&letters, "letter", "a", "letter or letter range for discovery seeding, like a or a-c")
	cmd.Flags().StringSliceVar(&keywords, "keywords", nil, "comma-separated keywords to search directly, bypassing discovery")

	return cmd
}

func run(settings *conf.Settings, letters string, keywords []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if settings.Main.Log.Enabled {
		mainLogger, closeMainLogger, err := logging.NewFileLogger(settings.Main.Log.Path, "main", nil)
		if err == nil {
			logging.SetDefault(mainLogger)
			defer func() {
				_ = closeMainLogger()
			}()
		}
	}

	store := datastore.New(settings)
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	engine := foodtext.NewRuleEngine()

	meals := mealdb.NewClient(mealdb.Config{
		BaseURL:     settings.Sources.MealDB.BaseURL,
		Timeout:     settings.Sources.MealDB.Timeout,
		CacheTTL:    settings.Sources.MealDB.CacheTTL,
		RateLimitMS: settings.Sources.MealDB.RateLimitMS,
		UserAgent:   settings.Crawler.UserAgent,
		Debug:       settings.Debug,
	})
	defer meals.Close()

	recipes, err := edamam.NewClient(edamam.Config{
		AppID:       settings.Sources.Edamam.AppID,
		AppKey:      settings.Sources.Edamam.AppKey,
		BaseURL:     settings.Sources.Edamam.BaseURL,
		Timeout:     settings.Sources.Edamam.Timeout,
		CacheTTL:    settings.Sources.Edamam.CacheTTL,
		RateLimitMS: settings.Sources.Edamam.RateLimitMS,
		UserAgent:   settings.Crawler.UserAgent,
		Debug:       settings.Debug,
	})
	if err != nil {
		return err
	}
	defer recipes.Close()

	shelf := stilltasty.NewClient(stilltasty.Config{
		BaseURL:     settings.Sources.StillTasty.BaseURL,
		Timeout:     settings.Sources.StillTasty.Timeout,
		CacheTTL:    settings.Sources.StillTasty.CacheTTL,
		RateLimitMS: settings.Sources.StillTasty.RateLimitMS,
		UserAgent:   settings.Crawler.UserAgent,
		Debug:       settings.Debug,
	})
	defer shelf.Close()

	res := resolver.New(store, shelf, engine, resolver.Config{
		SimilarityThreshold: settings.NLP.SimilarityThreshold,
		StorageBonus:        settings.NLP.StorageBonus,
	})

	sched := scheduler.New(scheduler.Config{
		MaxConcurrentPerDomain: settings.Crawler.MaxConcurrentPerDomain,
		DownloadDelay:          settings.Crawler.DownloadDelay,
		MaxDelay:               settings.Crawler.MaxDelay,
		AutoThrottle:           settings.Crawler.AutoThrottle,
		DepthLimit:             settings.Crawler.DepthLimit,
	})
	defer sched.Close()

	pipe := pipeline.New(store, meals, recipes, shelf, res, engine, sched, pipeline.Config{
		UserAgent:         settings.Crawler.UserAgent,
		FetchTimeout:      30 * time.Second,
		ReseedIngredients: settings.Crawler.ReseedIngredients,
	})
	defer pipe.Close()

	if len(keywords) > 0 {
		if err := pipe.SeedKeywords(keywords); err != nil {
			return err
		}
	} else {
		if err := pipe.SeedLetters(letters); err != nil {
			return err
		}
	}

	runErr := sched.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	printSummary(sched.Stats(), runErr != nil)
	return nil
}

func printSummary(stats scheduler.Stats, interrupted bool) {
	status := "complete"
	if interrupted {
		status = "interrupted"
	}
	fmt.Printf("Crawl %s.\n", status)
	fmt.Printf("  enqueued:       %d\n", stats.Enqueued)
	fmt.Printf("  deduplicated:   %d\n", stats.Deduplicated)
	fmt.Printf("  executed:       %d\n", stats.Executed)
	fmt.Printf("  succeeded:      %d\n", stats.Succeeded)
	fmt.Printf("  dropped (net):  %d\n", stats.DroppedNetwork)
	fmt.Printf("  dropped (http): %d\n", stats.DroppedHTTP)
	fmt.Printf("  dropped (depth):%d\n", stats.DroppedDepth)
	fmt.Printf("  dropped (other):%d\n", stats.DroppedOther+stats.DroppedPanic)
}
