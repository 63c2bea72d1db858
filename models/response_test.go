package models

import (
	"encoding/json"
	"testing"
)

func TestNewChatResponse_Defaults(t *testing.T) {
	resp := NewChatResponse("hello")

	if resp.Text != "hello" {
		t.Errorf("text = %q, want %q", resp.Text, "hello")
	}
	if resp.Metadata == nil {
		t.Error("metadata should never be nil")
	}
	if resp.Timestamp.IsZero() {
		t.Error("timestamp should default to capture time")
	}
	if resp.Source != SourceChatLangChain {
		t.Errorf("source = %q, want %q", resp.Source, SourceChatLangChain)
	}
	if resp.MessageCount != 1 {
		t.Errorf("message count = %d, want 1", resp.MessageCount)
	}
}

func TestNewChatResponse_EmptyTextStillPresent(t *testing.T) {
	resp := NewChatResponse("")

	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded["text"]; !ok {
		t.Error("text field must be present even when empty")
	}
}

func TestResponses_AreIndependent(t *testing.T) {
	a := NewChatResponse("first")
	b := NewChatResponse("second")

	a.Metadata["url"] = "https://example.com"
	if _, leaked := b.Metadata["url"]; leaked {
		t.Error("metadata leaked between independently constructed records")
	}
}

func TestToEvalFormat(t *testing.T) {
	resp := NewChatResponse("the answer")

	got := resp.ToEvalFormat()
	messages, ok := got["messages"].([]map[string]any)
	if !ok || len(messages) != 1 {
		t.Fatalf("eval format messages = %#v, want one message", got["messages"])
	}
	if messages[0]["role"] != "ai" {
		t.Errorf("role = %v, want ai", messages[0]["role"])
	}
	if messages[0]["content"] != "the answer" {
		t.Errorf("content = %v, want %q", messages[0]["content"], "the answer")
	}
}

func TestExtractText(t *testing.T) {
	resp := NewBrowserResponse("browser text")
	if got := resp.ExtractText(); got != "browser text" {
		t.Errorf("ExtractText() = %q, want %q", got, "browser text")
	}
	if resp.Source != "browser" {
		t.Errorf("source = %q, want browser", resp.Source)
	}
}
