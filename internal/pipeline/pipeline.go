// Package pipeline wires the crawl stages together: recipe discovery,
// detail search, source page verification, image checks, and ingredient
// resolution, each running as a scheduler stage handler.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"path/filepath"
	"regexp"
	"time"

	"github.com/fridgecat/fridgecat-go/internal/datastore"
	"github.com/fridgecat/fridgecat-go/internal/edamam"
	"github.com/fridgecat/fridgecat-go/internal/errors"
	"github.com/fridgecat/fridgecat-go/internal/foodtext"
	"github.com/fridgecat/fridgecat-go/internal/logging"
	"github.com/fridgecat/fridgecat-go/internal/mealdb"
	"github.com/fridgecat/fridgecat-go/internal/resolver"
	"github.com/fridgecat/fridgecat-go/internal/scheduler"
	"github.com/fridgecat/fridgecat-go/internal/stilltasty"
)

// Package-level logger specific to pipeline service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "pipeline.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "pipeline", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize pipeline file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "pipeline")
		closeLogger = func() error { return nil }
	}
}

// Crawl stages, in discovery order
const (
	StageDiscover       scheduler.Stage = "discover"
	StageDetail         scheduler.Stage = "detail"
	StageVerify         scheduler.Stage = "verify"
	StageIngredient     scheduler.Stage = "ingredient"
	StageIngredientItem scheduler.Stage = "ingredient_item"
	StageImageCheck     scheduler.Stage = "image_check"
)

// Stage priorities mirror the crawl's depth-first bias: work closer to
// a finished recipe always preempts fresh discovery.
const (
	prioritySeed       = 5
	priorityDetail     = 10
	priorityVerify     = 15
	priorityIngredient = 20
	priorityReseed     = 0
)

// tagCategories maps upstream label fields to tag category names
var tagCategories = []struct {
	category string
	labels   func(r *edamam.Recipe) []string
}{
	{"diet", func(r *edamam.Recipe) []string { return r.DietLabels }},
	{"health", func(r *edamam.Recipe) []string { return r.HealthLabels }},
	{"cuisine", func(r *edamam.Recipe) []string { return r.CuisineType }},
	{"meal", func(r *edamam.Recipe) []string { return r.MealType }},
	{"dish", func(r *edamam.Recipe) []string { return r.DishType }},
}

// Config controls pipeline behavior
type Config struct {
	UserAgent         string
	FetchTimeout      time.Duration
	ReseedIngredients bool // feed resolved ingredient names back into discovery
}

// Pipeline owns the stage handlers and their shared dependencies
type Pipeline struct {
	store      datastore.Interface
	meals      *mealdb.Client
	recipes    *edamam.Client
	shelf      *stilltasty.Client
	resolver   *resolver.Resolver
	engine     foodtext.Engine
	sched      *scheduler.Scheduler
	httpClient *http.Client
	cfg        Config
}

// New creates a pipeline and registers its handlers on the scheduler
func New(store datastore.Interface, meals *mealdb.Client, recipes *edamam.Client, shelf *stilltasty.Client, res *resolver.Resolver, engine foodtext.Engine, sched *scheduler.Scheduler, cfg Config) *Pipeline {
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 30 * time.Second
	}

	p := &Pipeline{
		store:    store,
		meals:    meals,
		recipes:  recipes,
		shelf:    shelf,
		resolver: res,
		engine:   engine,
		sched:    sched,
		httpClient: &http.Client{
			Timeout: cfg.FetchTimeout,
		},
		cfg: cfg,
	}

	sched.RegisterHandler(StageDiscover, p.handleDiscover)
	sched.RegisterHandler(StageDetail, p.handleDetail)
	sched.RegisterHandler(StageVerify, p.handleVerify)
	sched.RegisterHandler(StageImageCheck, p.handleImageCheck)
	sched.RegisterHandler(StageIngredient, p.handleIngredient)
	sched.RegisterHandler(StageIngredientItem, p.handleIngredientItem)

	return p
}

var letterRangeRe = regexp.MustCompile(`^[a-z](-[a-z])?$`)

// SeedLetters enqueues discovery tasks for a letter or letter range,
// "a" or "a-c" style.
func (p *Pipeline) SeedLetters(letters string) error {
	if len(letters) == 1 {
		letters = letters + "-" + letters
	}
	if !letterRangeRe.MatchString(letters) {
		return errors.Newf("letter argument %q is ill-formed, want a letter or range like a-c", letters).
			Category(errors.CategoryValidation).
			Context("letters", letters).
			Component("pipeline").
			Build()
	}

	first, last := rune(letters[0]), rune(letters[len(letters)-1])
	if first > last {
		return errors.Newf("letter range %q runs backwards", letters).
			Category(errors.CategoryValidation).
			Context("letters", letters).
			Component("pipeline").
			Build()
	}

	for letter := first; letter <= last; letter++ {
		task := scheduler.NewTask(StageDiscover, p.meals.SearchURL(letter), prioritySeed)
		task.Payload = discoverPayload{Letter: letter}
		if err := p.sched.Enqueue(task); err != nil {
			return err
		}
	}
	logger.Info("seeded letter discovery", "letters", letters)
	return nil
}

// SeedKeywords enqueues detail searches directly for the given keywords
func (p *Pipeline) SeedKeywords(keywords []string) error {
	for _, keyword := range keywords {
		query := foodtext.SearchKeyword(keyword)
		if query == "" {
			continue
		}
		task := scheduler.NewTask(StageDetail, p.recipes.SearchURL(query), prioritySeed)
		task.Payload = detailPayload{Query: query}
		if err := p.sched.Enqueue(task); err != nil {
			return err
		}
	}
	logger.Info("seeded keyword searches", "keywords", len(keywords))
	return nil
}

// Close releases the pipeline's log file
func (p *Pipeline) Close() {
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing pipeline logger: %v", err)
		}
	}
}

// fetch performs a plain GET with the configured user agent and returns
// the response body. Non-2xx statuses are reported as HTTP failures.
func (p *Pipeline) fetch(ctx context.Context, fetchURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, errors.Newf("failed to create HTTP request: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", fetchURL).
			Component("pipeline").
			Build()
	}
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Newf("HTTP request failed: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", fetchURL).
			Component("pipeline").
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Newf("failed to read response body: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", fetchURL).
			Component("pipeline").
			Build()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Newf("fetch returned status %d", resp.StatusCode).
			Category(errors.CategoryHTTP).
			Context("status_code", resp.StatusCode).
			Context("url", fetchURL).
			Component("pipeline").
			Build()
	}
	return body, nil
}

func payloadError(task *scheduler.Task, want string) error {
	return errors.Newf("task payload is not a %s", want).
		Category(errors.CategoryValidation).
		Context("stage", string(task.Stage)).
		Context("url", task.URL).
		Context("payload", fmt.Sprintf("%T", task.Payload)).
		Component("pipeline").
		Build()
}
