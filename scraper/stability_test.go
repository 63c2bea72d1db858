package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/use-agent/chateval/models"
)

func TestFingerprint(t *testing.T) {
	a := fingerprint("LangChain is a framework for building LLM applications")
	b := fingerprint("LangChain is a framework for building LLM applications")
	if a != b {
		t.Error("identical text must produce identical fingerprints")
	}
	if a == 0 {
		t.Error("non-empty text should not fingerprint to zero")
	}
	if fingerprint("") != 0 {
		t.Error("empty text should fingerprint to zero")
	}
	if fingerprint("   \n\t ") != 0 {
		t.Error("whitespace-only text should fingerprint to zero")
	}

	c := fingerprint("a completely different sentence about something else entirely")
	if distance(a, c) <= stabilityTolerance {
		t.Errorf("unrelated texts too close: distance = %d", distance(a, c))
	}
}

func TestDistance(t *testing.T) {
	if distance(0, 0) != 0 {
		t.Error("distance of equal values should be 0")
	}
	if distance(0b1011, 0b0010) != 2 {
		t.Errorf("distance = %d, want 2", distance(0b1011, 0b0010))
	}
}

func TestWaitForAnswer_CompleteMarker(t *testing.T) {
	states := []answerState{
		{Loading: true},
		{Loading: false, Text: "partial answ"},
		{Loading: false, Complete: true, Text: "partial answer, done"},
	}
	i := 0
	probe := func() (answerState, error) {
		s := states[i]
		if i < len(states)-1 {
			i++
		}
		return s, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := waitForAnswer(ctx, probe, time.Millisecond, 3); err != nil {
		t.Fatalf("waitForAnswer: %v", err)
	}
}

func TestWaitForAnswer_StableText(t *testing.T) {
	// No completion marker; the same text for enough consecutive polls
	// must count as done.
	probe := func() (answerState, error) {
		return answerState{Text: "LangGraph is a library for building stateful applications"}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := waitForAnswer(ctx, probe, time.Millisecond, 3); err != nil {
		t.Fatalf("waitForAnswer: %v", err)
	}
}

func TestWaitForAnswer_GrowingTextResetsStability(t *testing.T) {
	texts := []string{
		"LangChain is",
		"LangChain is a framework",
		"LangChain is a framework for building",
		"LangChain is a framework for building LLM applications with composable parts",
	}
	i := 0
	probe := func() (answerState, error) {
		s := answerState{Text: texts[i]}
		if i < len(texts)-1 {
			i++
		}
		return s, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := waitForAnswer(ctx, probe, time.Millisecond, 3); err != nil {
		t.Fatalf("waitForAnswer: %v", err)
	}
	// 4 growth samples, then 4 more to see the final text stable 3 times.
	if polls := time.Since(start) / time.Millisecond; polls < 7 {
		t.Logf("finished after ~%d polls", polls)
	}
}

func TestWaitForAnswer_Timeout(t *testing.T) {
	probe := func() (answerState, error) {
		return answerState{Loading: true}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := waitForAnswer(ctx, probe, time.Millisecond, 3)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if code := models.ErrorCode(err); code != models.ErrCodeTimeout {
		t.Errorf("code = %q, want %q", code, models.ErrCodeTimeout)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("timeout error should wrap context.DeadlineExceeded")
	}
}

func TestWaitForAnswer_CancellationIsNotATimeout(t *testing.T) {
	probe := func() (answerState, error) {
		return answerState{Loading: true}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := waitForAnswer(ctx, probe, time.Millisecond, 3)
	if err == nil {
		t.Fatal("expected error")
	}
	if code := models.ErrorCode(err); code == models.ErrCodeTimeout {
		t.Error("an interrupted wait must not be reported as a page timeout")
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("cancellation should be preserved in the chain")
	}
}

func TestWaitForAnswer_ProbeErrorsAreTransient(t *testing.T) {
	calls := 0
	probe := func() (answerState, error) {
		calls++
		if calls < 3 {
			return answerState{}, errors.New("node detached")
		}
		return answerState{Complete: true, Text: "done"}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := waitForAnswer(ctx, probe, time.Millisecond, 3); err != nil {
		t.Fatalf("probe errors should be retried: %v", err)
	}
}
