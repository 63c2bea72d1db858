// Package runner walks a dataset one example at a time: scrape the answer,
// grade it, accumulate results, and report them to the tracking service.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/use-agent/chateval/cache"
	"github.com/use-agent/chateval/config"
	"github.com/use-agent/chateval/models"
	"github.com/use-agent/chateval/webhook"
)

// passThreshold is the judge score at or above which an example passes.
const passThreshold = 0.5

// ChatScraper produces a scraped answer record for one prompt.
type ChatScraper interface {
	Ask(ctx context.Context, prompt string) (*models.ChatResponse, error)
}

// Grader scores a scraped answer against the reference answer.
type Grader interface {
	Grade(ctx context.Context, question, actual, expected string) (*models.Verdict, error)
}

// Tracker records datasets, experiments and per-example results in the
// external tracking service.
type Tracker interface {
	StartExperiment(ctx context.Context, ds *models.Dataset) (*models.Experiment, error)
	LogResult(ctx context.Context, exp *models.Experiment, res *models.ExampleResult) error
}

// Runner drives one evaluation run. Execution is strictly sequential: one
// scrape and one grading call at a time, one example at a time.
type Runner struct {
	scraper ChatScraper
	grader  Grader
	tracker Tracker
	cfg     *config.Config
	limiter *rate.Limiter
	answers *cache.Cache
}

// New assembles a Runner. tracker may be nil; the run then reports locally
// only.
func New(scraper ChatScraper, grader Grader, tracker Tracker, cfg *config.Config) *Runner {
	limit := rate.Limit(cfg.Runner.ScrapeRPS)
	if cfg.Runner.ScrapeRPS <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Runner.Burst
	if burst < 1 {
		burst = 1
	}
	r := &Runner{
		scraper: scraper,
		grader:  grader,
		tracker: tracker,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
	}
	if cfg.Cache.Enabled {
		r.answers = cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	}
	return r
}

// Run evaluates every example in the dataset.
//
// Failure semantics: a scrape failure is recorded on its example and the
// run continues (unless ContinueOnScrapeError is false); any grader error
// aborts the remaining run. In both abort cases the returned summary still
// carries every example finished before the error.
func (r *Runner) Run(ctx context.Context, ds *models.Dataset) (*models.RunSummary, error) {
	summary := &models.RunSummary{
		RunName:     r.cfg.Tracking.ExperimentPrefix,
		DatasetName: ds.Name,
		StartedAt:   time.Now(),
		Total:       len(ds.Examples),
		Results:     make([]models.ExampleResult, 0, len(ds.Examples)),
	}

	exp := r.startExperiment(ctx, ds)
	if exp != nil {
		summary.RunName = exp.Name
		summary.ExperimentURL = exp.URL
	}

	runErr := r.runExamples(ctx, ds, exp, summary)

	summary.Duration = time.Since(summary.StartedAt)
	if summary.Graded > 0 {
		var sum float64
		for _, res := range summary.Results {
			if res.Error == nil {
				sum += res.Score
			}
		}
		summary.MeanScore = sum / float64(summary.Graded)
	}

	r.notify(summary, runErr)
	return summary, runErr
}

func (r *Runner) runExamples(ctx context.Context, ds *models.Dataset, exp *models.Experiment, summary *models.RunSummary) error {
	for i, ex := range ds.Examples {
		if err := r.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("run interrupted: %w", err)
		}

		res, err := r.runExample(ctx, i, ex)
		summary.Results = append(summary.Results, *res)

		if err != nil {
			// Grader failure: nothing further can be scored. The example
			// carries the judge error so the summary never shows it as a
			// judged FAIL.
			slog.Error("grader failed, aborting run", "index", i, "error", err)
			r.logResult(ctx, exp, res)
			return fmt.Errorf("example %d: %w", i, err)
		}

		if res.Error != nil {
			summary.ScrapeFailures++
			slog.Warn("example failed at scrape stage",
				"index", i,
				"question", ex.Question,
				"code", res.Error.Code,
				"message", res.Error.Message,
			)
			r.logResult(ctx, exp, res)
			if !r.cfg.Runner.ContinueOnScrapeError {
				return fmt.Errorf("example %d: scrape failed: %s", i, res.Error.Message)
			}
			continue
		}

		summary.Graded++
		if res.Passed {
			summary.Passed++
		}
		slog.Info("example graded",
			"index", i,
			"score", res.Score,
			"passed", res.Passed,
			"answerChars", len(res.Answer),
		)
		r.logResult(ctx, exp, res)
	}
	return nil
}

// runExample scrapes and grades one example. A scrape failure is reported
// on the result only (err nil); a grader failure marks the result and is
// also returned as err so the caller aborts.
func (r *Runner) runExample(ctx context.Context, index int, ex models.Example) (*models.ExampleResult, error) {
	start := time.Now()
	res := &models.ExampleResult{
		Index:    index,
		Question: ex.Question,
		Expected: ex.Expected,
	}

	resp, scrapeErr := r.ask(ctx, ex.Question)
	res.Duration = time.Since(start)
	if scrapeErr != nil {
		res.Error = models.Detail(scrapeErr)
		return res, nil
	}
	res.Answer = resp.Text
	res.Source = resp.Source

	verdict, gradeErr := r.grader.Grade(ctx, ex.Question, resp.Text, ex.Expected)
	res.Duration = time.Since(start)
	if gradeErr != nil {
		res.Error = models.Detail(gradeErr)
		return res, gradeErr
	}
	res.Score = verdict.Score
	res.Reasoning = verdict.Reasoning
	res.Passed = verdict.Score >= passThreshold
	return res, nil
}

// ask consults the answer cache before hitting the browser.
func (r *Runner) ask(ctx context.Context, question string) (*models.ChatResponse, error) {
	var key string
	if r.answers != nil {
		key = cache.Key(r.cfg.Scraper.TargetURL, question)
		if resp, ok := r.answers.Get(key); ok {
			slog.Debug("answer served from cache", "question", question)
			return resp, nil
		}
	}

	resp, err := r.scraper.Ask(ctx, question)
	if err != nil {
		return nil, err
	}
	if r.answers != nil {
		r.answers.Set(key, resp)
	}
	return resp, nil
}

// startExperiment registers the run in the tracking service. Tracking is a
// write-only collaborator: a failure here downgrades the run to local
// reporting instead of aborting it.
func (r *Runner) startExperiment(ctx context.Context, ds *models.Dataset) *models.Experiment {
	if r.tracker == nil {
		return nil
	}
	exp, err := r.tracker.StartExperiment(ctx, ds)
	if err != nil {
		slog.Warn("tracking unavailable, continuing with local reporting only", "error", err)
		return nil
	}
	slog.Info("experiment registered", "name", exp.Name, "url", exp.URL)
	return exp
}

func (r *Runner) logResult(ctx context.Context, exp *models.Experiment, res *models.ExampleResult) {
	if r.tracker == nil || exp == nil {
		return
	}
	if err := r.tracker.LogResult(ctx, exp, res); err != nil {
		slog.Warn("failed to record result in tracking service", "index", res.Index, "error", err)
	}
}

// notify delivers the completion webhook when one is configured.
func (r *Runner) notify(summary *models.RunSummary, runErr error) {
	if r.cfg.Webhook.URL == "" {
		return
	}
	eventType := webhook.EventRunCompleted
	if runErr != nil {
		eventType = webhook.EventRunFailed
	}
	event := &webhook.Event{
		Type:      eventType,
		RunName:   summary.RunName,
		Timestamp: time.Now().Unix(),
		Data:      summary,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := webhook.Deliver(ctx, r.cfg.Webhook.URL, r.cfg.Webhook.Secret, event); err != nil {
		slog.Warn("run webhook delivery failed", "error", err)
	}
}
