package runner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/chateval/config"
	"github.com/use-agent/chateval/models"
)

// fakeScraper serves canned answers, failing for questions listed in fail.
type fakeScraper struct {
	answers map[string]string
	fail    map[string]error
	calls   int
}

func (f *fakeScraper) Ask(_ context.Context, prompt string) (*models.ChatResponse, error) {
	f.calls++
	if err, ok := f.fail[prompt]; ok {
		return nil, err
	}
	resp := models.NewChatResponse(f.answers[prompt])
	return resp, nil
}

// fakeGrader scores by exact match, failing for answers listed in fail.
type fakeGrader struct {
	fail  map[string]error
	calls int
}

func (f *fakeGrader) Grade(_ context.Context, _, actual, expected string) (*models.Verdict, error) {
	f.calls++
	if err, ok := f.fail[actual]; ok {
		return nil, err
	}
	score := 0.0
	if actual == expected {
		score = 1.0
	}
	return &models.Verdict{Score: score, Reasoning: "exact match check"}, nil
}

// fakeTracker records what the runner reports.
type fakeTracker struct {
	startErr error
	logged   []models.ExampleResult
}

func (f *fakeTracker) StartExperiment(_ context.Context, _ *models.Dataset) (*models.Experiment, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &models.Experiment{ID: "sess-1", Name: "chateval-test", URL: "https://smith.example.com/x"}, nil
}

func (f *fakeTracker) LogResult(_ context.Context, _ *models.Experiment, res *models.ExampleResult) error {
	f.logged = append(f.logged, *res)
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Scraper.TargetURL = "https://chat.example.com"
	cfg.Runner.ContinueOnScrapeError = true
	cfg.Runner.ScrapeRPS = 0 // no pacing in tests
	cfg.Tracking.ExperimentPrefix = "chateval"
	return cfg
}

func twoExampleDataset() *models.Dataset {
	return &models.Dataset{
		Name: "test",
		Examples: []models.Example{
			{Question: "q1", Expected: "a1"},
			{Question: "q2", Expected: "a2"},
		},
	}
}

func TestRun_AllPass(t *testing.T) {
	scraper := &fakeScraper{answers: map[string]string{"q1": "a1", "q2": "a2"}}
	tracker := &fakeTracker{}
	r := New(scraper, &fakeGrader{}, tracker, testConfig())

	summary, err := r.Run(context.Background(), twoExampleDataset())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Total != 2 || summary.Graded != 2 || summary.Passed != 2 {
		t.Errorf("total/graded/passed = %d/%d/%d, want 2/2/2",
			summary.Total, summary.Graded, summary.Passed)
	}
	if summary.MeanScore != 1.0 {
		t.Errorf("mean score = %v, want 1.0", summary.MeanScore)
	}
	if summary.RunName != "chateval-test" {
		t.Errorf("run name = %q, want experiment name", summary.RunName)
	}
	if summary.ExperimentURL == "" {
		t.Error("experiment URL missing from summary")
	}
	if len(tracker.logged) != 2 {
		t.Errorf("tracked results = %d, want 2", len(tracker.logged))
	}
}

func TestRun_WrongAnswerFailsExample(t *testing.T) {
	scraper := &fakeScraper{answers: map[string]string{"q1": "a1", "q2": "wrong"}}
	r := New(scraper, &fakeGrader{}, &fakeTracker{}, testConfig())

	summary, err := r.Run(context.Background(), twoExampleDataset())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Graded != 2 || summary.Passed != 1 {
		t.Errorf("graded/passed = %d/%d, want 2/1", summary.Graded, summary.Passed)
	}
	if summary.MeanScore != 0.5 {
		t.Errorf("mean score = %v, want 0.5", summary.MeanScore)
	}
}

func TestRun_ScrapeFailureContinues(t *testing.T) {
	scraper := &fakeScraper{
		answers: map[string]string{"q2": "a2"},
		fail: map[string]error{
			"q1": models.NewScrapeError(models.ErrCodeTimeout, "timed out", nil),
		},
	}
	grader := &fakeGrader{}
	tracker := &fakeTracker{}
	r := New(scraper, grader, tracker, testConfig())

	summary, err := r.Run(context.Background(), twoExampleDataset())
	if err != nil {
		t.Fatalf("scrape failures should not abort by default: %v", err)
	}

	if summary.ScrapeFailures != 1 || summary.Graded != 1 || summary.Passed != 1 {
		t.Errorf("scrapeFailures/graded/passed = %d/%d/%d, want 1/1/1",
			summary.ScrapeFailures, summary.Graded, summary.Passed)
	}
	if grader.calls != 1 {
		t.Errorf("grader called %d times, want 1 (failed scrape never graded)", grader.calls)
	}

	first := summary.Results[0]
	if first.Error == nil || first.Error.Code != models.ErrCodeTimeout {
		t.Errorf("first result error = %+v", first.Error)
	}
	// Failed examples are still reported to tracking.
	if len(tracker.logged) != 2 {
		t.Errorf("tracked results = %d, want 2", len(tracker.logged))
	}
}

func TestRun_ScrapeFailureAbortsWhenConfigured(t *testing.T) {
	scraper := &fakeScraper{
		fail: map[string]error{
			"q1": models.NewScrapeError(models.ErrCodeInputNotFound, "no input", nil),
		},
	}
	cfg := testConfig()
	cfg.Runner.ContinueOnScrapeError = false
	r := New(scraper, &fakeGrader{}, nil, cfg)

	summary, err := r.Run(context.Background(), twoExampleDataset())
	if err == nil {
		t.Fatal("expected abort error")
	}
	if scraper.calls != 1 {
		t.Errorf("scraper called %d times after abort, want 1", scraper.calls)
	}
	if len(summary.Results) != 1 {
		t.Errorf("summary should keep the failed example: %d results", len(summary.Results))
	}
}

func TestRun_GraderFailureAborts(t *testing.T) {
	scraper := &fakeScraper{answers: map[string]string{"q1": "a1", "q2": "a2"}}
	grader := &fakeGrader{
		fail: map[string]error{
			"a2": models.NewScrapeError(models.ErrCodeJudgeAuthFailure, "bad key", nil),
		},
	}
	r := New(scraper, grader, nil, testConfig())

	summary, err := r.Run(context.Background(), twoExampleDataset())
	if err == nil {
		t.Fatal("expected abort error")
	}
	if !strings.Contains(err.Error(), "example 1") {
		t.Errorf("error should name the failing example: %v", err)
	}
	if code := models.ErrorCode(err); code != models.ErrCodeJudgeAuthFailure {
		t.Errorf("code = %q, want %q", code, models.ErrCodeJudgeAuthFailure)
	}
	// Example 0 finished before the abort and stays in the summary.
	if summary.Graded != 1 || len(summary.Results) != 2 {
		t.Errorf("graded = %d, results = %d", summary.Graded, len(summary.Results))
	}

	// The aborted example carries the judge error instead of posing as a
	// judged failure, and does not count as a scrape failure.
	last := summary.Results[1]
	if last.Error == nil || last.Error.Code != models.ErrCodeJudgeAuthFailure {
		t.Errorf("aborted example error = %+v", last.Error)
	}
	if last.Passed {
		t.Error("aborted example must not count as passed")
	}
	if summary.ScrapeFailures != 0 {
		t.Errorf("scrape failures = %d, want 0", summary.ScrapeFailures)
	}
	if summary.MeanScore != 1.0 {
		t.Errorf("mean score = %v, want 1.0 over the one graded example", summary.MeanScore)
	}
}

func TestRun_TrackingFailureIsLocalOnly(t *testing.T) {
	scraper := &fakeScraper{answers: map[string]string{"q1": "a1", "q2": "a2"}}
	tracker := &fakeTracker{startErr: errors.New("service down")}
	r := New(scraper, &fakeGrader{}, tracker, testConfig())

	summary, err := r.Run(context.Background(), twoExampleDataset())
	if err != nil {
		t.Fatalf("tracking outage must not abort the run: %v", err)
	}
	if summary.Graded != 2 {
		t.Errorf("graded = %d, want 2", summary.Graded)
	}
	if summary.ExperimentURL != "" {
		t.Error("no experiment URL without a registered experiment")
	}
	if summary.RunName != "chateval" {
		t.Errorf("run name = %q, want prefix fallback", summary.RunName)
	}
}

func TestRun_CacheHitSkipsScraper(t *testing.T) {
	scraper := &fakeScraper{answers: map[string]string{"q1": "a1"}}
	cfg := testConfig()
	cfg.Cache.Enabled = true
	cfg.Cache.MaxEntries = 16
	cfg.Cache.TTL = time.Hour
	r := New(scraper, &fakeGrader{}, nil, cfg)

	ds := &models.Dataset{
		Name: "repeat",
		Examples: []models.Example{
			{Question: "q1", Expected: "a1"},
			{Question: "q1", Expected: "a1"},
		},
	}

	summary, err := r.Run(context.Background(), ds)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if scraper.calls != 1 {
		t.Errorf("scraper called %d times, want 1 (second hit cached)", scraper.calls)
	}
	if summary.Passed != 2 {
		t.Errorf("passed = %d, want 2", summary.Passed)
	}
}
