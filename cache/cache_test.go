package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/use-agent/chateval/models"
)

func TestKey(t *testing.T) {
	a := Key("https://chat.langchain.com", "What is LangChain?")
	b := Key("https://chat.langchain.com", "What is LangChain?")
	if a != b {
		t.Error("same inputs must produce the same key")
	}
	if len(a) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(a))
	}

	if Key("https://chat.langchain.com", "other") == a {
		t.Error("different prompts must produce different keys")
	}
	if Key("https://other.example.com", "What is LangChain?") == a {
		t.Error("different targets must produce different keys")
	}
	// The separator keeps url+prompt boundaries unambiguous.
	if Key("ab", "c") == Key("a", "bc") {
		t.Error("key must not be ambiguous across the url/prompt boundary")
	}
}

func TestGetSet(t *testing.T) {
	c := New(8, time.Hour)

	if _, ok := c.Get("missing"); ok {
		t.Error("empty cache should miss")
	}

	resp := models.NewChatResponse("LangChain is a framework.")
	c.Set("k1", resp)

	got, ok := c.Get("k1")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Text != "LangChain is a framework." {
		t.Errorf("text = %q", got.Text)
	}
}

func TestExpiry(t *testing.T) {
	c := New(8, 10*time.Millisecond)
	c.Set("k1", models.NewChatResponse("x"))

	if _, ok := c.Get("k1"); !ok {
		t.Fatal("fresh entry should hit")
	}

	time.Sleep(25 * time.Millisecond)
	if _, ok := c.Get("k1"); ok {
		t.Error("expired entry should miss")
	}
}

func TestCapacityEviction(t *testing.T) {
	c := New(4, time.Hour)
	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("k%d", i), models.NewChatResponse("x"))
	}

	c.mu.RLock()
	n := len(c.store)
	c.mu.RUnlock()
	if n > 4 {
		t.Errorf("store size = %d, want <= 4", n)
	}
}
