package models

import "time"

// SourceChatLangChain is the default source identifier for answers scraped
// from the hosted chat application.
const SourceChatLangChain = "chat.langchain.com"

// BaseResponse is the common shape shared by every scraped answer record.
//
// Text is always present once a record is constructed (possibly the empty
// string, never absent); every other field has a safe default. Records are
// built once per scrape call, never mutated afterwards, and never persisted.
type BaseResponse struct {
	// Text is the main text content of the answer.
	Text string `json:"text"`

	// Metadata carries additional information about the capture
	// (target URL, headless flag, timeout). Never nil.
	Metadata map[string]any `json:"metadata"`

	// Timestamp records when the answer was captured.
	Timestamp time.Time `json:"timestamp"`

	// Source identifies which site or backend produced the answer.
	Source string `json:"source"`
}

// NewBaseResponse constructs a record with all defaults filled in.
// Construction never fails.
func NewBaseResponse(text, source string) BaseResponse {
	return BaseResponse{
		Text:      text,
		Metadata:  map[string]any{},
		Timestamp: time.Now(),
		Source:    source,
	}
}

// ToEvalFormat converts the record into the messages-shaped map the
// grader consumes.
func (r BaseResponse) ToEvalFormat() map[string]any {
	return map[string]any{
		"messages": []map[string]any{
			{"role": "ai", "content": r.Text},
		},
	}
}

// ExtractText returns the text content for evaluation.
func (r BaseResponse) ExtractText() string {
	return r.Text
}

// ChatResponse is the answer record for the hosted chat application.
// New response variants embed BaseResponse and add their own fields.
type ChatResponse struct {
	BaseResponse

	// RawHTML is the inner HTML of the answer element, when available.
	RawHTML string `json:"raw_html,omitempty"`

	// MessageCount is the number of messages visible in the transcript.
	// Defaults to 1; reserved for future multi-turn tracking.
	MessageCount int `json:"message_count"`
}

// NewChatResponse constructs a chat answer record with defaults filled in.
func NewChatResponse(text string) *ChatResponse {
	return &ChatResponse{
		BaseResponse: NewBaseResponse(text, SourceChatLangChain),
		MessageCount: 1,
	}
}

// BrowserResponse is a record variant for generic browser-driven scenarios.
type BrowserResponse struct {
	BaseResponse

	// InteractionLog records the browser interactions that produced the answer.
	InteractionLog []string `json:"interaction_log,omitempty"`
}

// NewBrowserResponse constructs a browser answer record with defaults filled in.
func NewBrowserResponse(text string) *BrowserResponse {
	return &BrowserResponse{
		BaseResponse: NewBaseResponse(text, "browser"),
	}
}
