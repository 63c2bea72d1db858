// Package judge grades scraped answers against reference answers with an
// LLM-as-judge over an OpenAI-compatible chat completions API.
// It uses net/http directly — no third-party SDK needed.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/use-agent/chateval/config"
	"github.com/use-agent/chateval/models"
)

// Client is a grading client bound to one provider configuration.
type Client struct {
	httpClient *http.Client
	cfg        config.JudgeConfig
}

// NewClient creates a judge client. Pass nil to use a default http.Client.
func NewClient(httpClient *http.Client, cfg config.JudgeConfig) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient, cfg: cfg}
}

// chatRequest is the OpenAI chat completion request body.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse is the minimal OpenAI chat completion response we need.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// chatErrorResponse captures an API error from the provider.
type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// rawVerdict is the JSON object the judge is instructed to emit.
// Score tolerates both booleans and numbers; models drift between them.
type rawVerdict struct {
	Score     json.RawMessage `json:"score"`
	Reasoning string          `json:"reasoning"`
}

const systemPrompt = `You are an expert data labeler evaluating model outputs for correctness.

You will be given a QUESTION, the ANSWER produced by the system under test, and a REFERENCE answer. Grade the answer against the reference:
- Focus on factual and conceptual accuracy relative to the reference.
- The answer may contain more detail than the reference; extra correct detail is fine.
- Penalize factual errors, contradictions of the reference, and answers that dodge the question.
- Style, length and formatting differences alone never make an answer incorrect.

Respond with ONLY a JSON object, no markdown fences:
{"score": true or false, "reasoning": "<one or two sentences explaining the grade>"}`

// Grade compares a scraped answer against the reference and returns the
// judge's verdict. Any failure here is fatal to the run: without a working
// grader no results can be produced.
func (c *Client) Grade(ctx context.Context, question, actual, expected string) (*models.Verdict, error) {
	user := fmt.Sprintf("QUESTION:\n%s\n\nANSWER:\n%s\n\nREFERENCE:\n%s", question, actual, expected)

	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
		Temperature:    0,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeJudgeFailure, "judge request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeJudgeFailure, "failed to read judge response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyJudgeError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeJudgeFailure, "failed to parse judge response", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeJudgeFailure, "judge returned no choices", nil)
	}

	verdict, err := parseVerdict(chatResp.Choices[0].Message.Content)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeJudgeFailure, "judge returned an unparseable verdict", err)
	}
	verdict.Usage = &models.JudgeUsage{
		PromptTokens:     chatResp.Usage.PromptTokens,
		CompletionTokens: chatResp.Usage.CompletionTokens,
		TotalTokens:      chatResp.Usage.TotalTokens,
	}
	return verdict, nil
}

// parseVerdict converts the judge's JSON output into a Verdict, coercing a
// boolean score to 1.0/0.0 and clamping numeric scores into [0, 1].
func parseVerdict(content string) (*models.Verdict, error) {
	var raw rawVerdict
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, err
	}
	if len(raw.Score) == 0 {
		return nil, fmt.Errorf("verdict has no score field")
	}

	var score float64
	var b bool
	if err := json.Unmarshal(raw.Score, &b); err == nil {
		if b {
			score = 1.0
		}
	} else if err := json.Unmarshal(raw.Score, &score); err != nil {
		return nil, fmt.Errorf("verdict score is neither boolean nor number: %s", raw.Score)
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return &models.Verdict{Score: score, Reasoning: strings.TrimSpace(raw.Reasoning)}, nil
}

// classifyJudgeError maps provider HTTP status codes to error codes.
// All of them abort the run; the distinction drives the operator message.
func classifyJudgeError(statusCode int, body []byte) *models.ScrapeError {
	var errResp chatErrorResponse
	msg := "judge API error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return models.NewScrapeError(models.ErrCodeJudgeAuthFailure, msg, nil)
	case statusCode == http.StatusTooManyRequests:
		return models.NewScrapeError(models.ErrCodeJudgeRateLimited, msg, nil)
	default:
		return models.NewScrapeError(models.ErrCodeJudgeFailure, fmt.Sprintf("judge API returned %d: %s", statusCode, msg), nil)
	}
}
