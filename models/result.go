package models

import "time"

// JudgeUsage reports token consumption of a single grading call.
type JudgeUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Verdict is the judge's assessment of one scraped answer.
type Verdict struct {
	// Score is 1.0 when the answer is judged correct, 0.0 otherwise.
	Score float64 `json:"score"`

	// Reasoning is the judge's rationale for the score.
	Reasoning string `json:"reasoning"`

	// Usage is the grading call's token usage, when reported.
	Usage *JudgeUsage `json:"usage,omitempty"`
}

// ExampleResult is the outcome of running one dataset example end to end.
// Created once, not mutated afterwards.
type ExampleResult struct {
	Index    int    `json:"index"`
	Question string `json:"question"`
	Expected string `json:"expected"`

	// Answer is the scraped answer text; empty when the scrape failed.
	Answer string `json:"answer"`

	// Source identifies which backend produced the answer.
	Source string `json:"source,omitempty"`

	// Score and Reasoning come from the judge. Only meaningful when
	// Error is nil.
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning,omitempty"`
	Passed    bool    `json:"passed"`

	// Error is populated when the scrape for this example failed.
	Error *ErrorDetail `json:"error,omitempty"`

	Duration time.Duration `json:"duration_ns"`
}

// Experiment references the run record created in the tracking service.
type Experiment struct {
	ID        string `json:"id"`
	DatasetID string `json:"dataset_id"`
	Name      string `json:"name"`

	// URL is the hosted detail view for this experiment.
	URL string `json:"url"`
}

// RunSummary aggregates a whole evaluation run. It always carries the
// results of every example finished before a fatal error, if one occurred.
type RunSummary struct {
	RunName     string    `json:"run_name"`
	DatasetName string    `json:"dataset_name"`
	StartedAt   time.Time `json:"started_at"`

	Duration time.Duration `json:"duration_ns"`

	// Total is the number of examples in the dataset; Graded is how many
	// reached the judge; Passed is how many the judge accepted.
	Total          int `json:"total"`
	Graded         int `json:"graded"`
	Passed         int `json:"passed"`
	ScrapeFailures int `json:"scrape_failures"`

	// MeanScore is the mean judge score over graded examples.
	MeanScore float64 `json:"mean_score"`

	// ExperimentURL links to the hosted results view, when tracking
	// succeeded.
	ExperimentURL string `json:"experiment_url,omitempty"`

	Results []ExampleResult `json:"results"`
}
