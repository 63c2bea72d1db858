// Package tracking uploads datasets, experiments and per-example feedback
// to a LangSmith-compatible results-tracking service. The service is a
// write-only collaborator: every failure here is logged and skipped, never
// fatal to the run.
package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/chateval/config"
	"github.com/use-agent/chateval/models"
)

// Client talks to one tracking service project.
type Client struct {
	httpClient *http.Client
	cfg        config.TrackingConfig
}

// NewClient creates a tracking client. Pass nil to use a default http.Client.
func NewClient(httpClient *http.Client, cfg config.TrackingConfig) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{httpClient: httpClient, cfg: cfg}
}

// Wire shapes for the tracking API.

type apiDataset struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type apiExample struct {
	ID        string         `json:"id"`
	DatasetID string         `json:"dataset_id"`
	Inputs    map[string]any `json:"inputs"`
	Outputs   map[string]any `json:"outputs"`
}

type apiSession struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	ReferenceDatasetID string `json:"reference_dataset_id,omitempty"`
}

type apiRun struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	RunType     string         `json:"run_type"`
	SessionID   string         `json:"session_id"`
	Inputs      map[string]any `json:"inputs"`
	Outputs     map[string]any `json:"outputs,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartTime   time.Time      `json:"start_time"`
	EndTime     time.Time      `json:"end_time"`
	ReferenceID string         `json:"reference_example_id,omitempty"`
}

type apiFeedback struct {
	ID      string  `json:"id"`
	RunID   string  `json:"run_id"`
	Key     string  `json:"key"`
	Score   float64 `json:"score"`
	Comment string  `json:"comment,omitempty"`
}

// StartExperiment registers the dataset (find-or-create by name, seeding
// examples on first creation) and opens a new experiment session for this
// run. The returned Experiment carries the hosted results-view URL.
func (c *Client) StartExperiment(ctx context.Context, ds *models.Dataset) (*models.Experiment, error) {
	name := c.cfg.DatasetName
	if name == "" {
		name = ds.Name
	}

	datasetID, created, err := c.findOrCreateDataset(ctx, name, ds.Description)
	if err != nil {
		return nil, err
	}
	if created {
		if err := c.createExamples(ctx, datasetID, ds.Examples); err != nil {
			return nil, err
		}
	}

	session := apiSession{
		ID:                 uuid.NewString(),
		Name:               fmt.Sprintf("%s-%s", c.cfg.ExperimentPrefix, uuid.NewString()[:8]),
		ReferenceDatasetID: datasetID,
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/sessions", session, nil); err != nil {
		return nil, err
	}

	return &models.Experiment{
		ID:        session.ID,
		DatasetID: datasetID,
		Name:      session.Name,
		URL: fmt.Sprintf("%s/datasets/%s/compare?selectedSessions=%s",
			strings.TrimRight(c.cfg.AppURL, "/"), datasetID, session.ID),
	}, nil
}

// LogResult records one example's run and its correctness feedback under
// the experiment session.
func (c *Client) LogResult(ctx context.Context, exp *models.Experiment, res *models.ExampleResult) error {
	now := time.Now()
	run := apiRun{
		ID:        uuid.NewString(),
		Name:      "ask_chat",
		RunType:   "chain",
		SessionID: exp.ID,
		Inputs: map[string]any{
			"messages": []map[string]any{{"role": "user", "content": res.Question}},
		},
		StartTime: now.Add(-res.Duration),
		EndTime:   now,
	}
	if res.Error != nil {
		run.Error = fmt.Sprintf("%s: %s", res.Error.Code, res.Error.Message)
	} else {
		run.Outputs = map[string]any{
			"messages": []map[string]any{{"role": "ai", "content": res.Answer}},
		}
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/runs", run, nil); err != nil {
		return err
	}

	if res.Error != nil {
		return nil
	}
	feedback := apiFeedback{
		ID:      uuid.NewString(),
		RunID:   run.ID,
		Key:     "correctness",
		Score:   res.Score,
		Comment: res.Reasoning,
	}
	return c.do(ctx, http.MethodPost, "/api/v1/feedback", feedback, nil)
}

// findOrCreateDataset looks the dataset up by name, creating it when absent.
// The boolean reports whether it was created by this call.
func (c *Client) findOrCreateDataset(ctx context.Context, name, description string) (string, bool, error) {
	var existing []apiDataset
	path := "/api/v1/datasets?limit=1&name=" + url.QueryEscape(name)
	if err := c.do(ctx, http.MethodGet, path, nil, &existing); err != nil {
		return "", false, err
	}
	if len(existing) > 0 {
		return existing[0].ID, false, nil
	}

	created := apiDataset{Name: name, Description: description}
	var out apiDataset
	if err := c.do(ctx, http.MethodPost, "/api/v1/datasets", created, &out); err != nil {
		return "", false, err
	}
	if out.ID == "" {
		return "", false, models.NewScrapeError(models.ErrCodeTracking,
			"tracking service created a dataset without an id", nil)
	}
	return out.ID, true, nil
}

func (c *Client) createExamples(ctx context.Context, datasetID string, examples []models.Example) error {
	payload := make([]apiExample, len(examples))
	for i, ex := range examples {
		payload[i] = apiExample{
			ID:        uuid.NewString(),
			DatasetID: datasetID,
			Inputs: map[string]any{
				"messages": []map[string]any{{"role": "user", "content": ex.Question}},
			},
			Outputs: map[string]any{
				"messages": []map[string]any{{"role": "ai", "content": ex.Expected}},
			},
		}
	}
	return c.do(ctx, http.MethodPost, "/api/v1/examples/bulk", payload, nil)
}

// do sends one authenticated request and decodes the response into out
// (when non-nil). Any transport or status failure becomes a tracking error.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal tracking request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create tracking request: %w", err)
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeTracking, "tracking request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeTracking, "failed to read tracking response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.NewScrapeError(models.ErrCodeTracking,
			fmt.Sprintf("tracking API %s %s returned %d", method, path, resp.StatusCode), nil)
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return models.NewScrapeError(models.ErrCodeTracking, "failed to parse tracking response", err)
		}
	}
	return nil
}
