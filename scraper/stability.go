package scraper

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"math/bits"
	"strings"
	"time"

	"github.com/use-agent/chateval/models"
)

// stabilityTolerance is the SimHash bit distance under which two samples
// of the streaming answer count as "the same text". A couple of bits of
// slack absorbs the blinking cursor glyph some chat UIs append while
// streaming.
const stabilityTolerance = 2

// answerState is one sample of the page while waiting for the answer.
type answerState struct {
	Loading  bool
	Complete bool
	Text     string
}

// answerProbe samples the live page. Probe errors are treated as transient
// (the page re-renders mid-eval constantly while streaming).
type answerProbe func() (answerState, error)

// waitForAnswer polls until the answer has finished rendering or ctx
// expires. Completion is: no loading indicator, AND either the completion
// marker is visible or the answer text fingerprint has been stable for
// stablePolls consecutive samples. On deadline it returns the timeout
// error kind; it never blocks past ctx.
func waitForAnswer(ctx context.Context, probe answerProbe, interval time.Duration, stablePolls int) error {
	if stablePolls < 1 {
		stablePolls = 1
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prev uint64
	stable := 0

	for {
		select {
		case <-ctx.Done():
			// A canceled parent (SIGINT mid-run) is not a page timeout.
			if errors.Is(ctx.Err(), context.Canceled) {
				return models.NewScrapeError(
					models.ErrCodeNavigation,
					"scrape canceled while waiting for answer",
					ctx.Err(),
				)
			}
			return models.NewScrapeError(
				models.ErrCodeTimeout,
				"timed out waiting for answer to finish rendering",
				ctx.Err(),
			)
		case <-ticker.C:
		}

		state, err := probe()
		if err != nil {
			slog.Debug("answer probe failed, retrying", "error", err)
			continue
		}

		if state.Loading || state.Text == "" {
			prev, stable = 0, 0
			continue
		}

		if state.Complete {
			return nil
		}

		fp := fingerprint(state.Text)
		if prev != 0 && distance(fp, prev) <= stabilityTolerance {
			stable++
		} else {
			stable = 0
		}
		prev = fp

		if stable >= stablePolls {
			return nil
		}
	}
}

// fingerprint computes a 64-bit SimHash of the answer text: FNV-64a over
// word tokens accumulated into a bit vector. Near-identical samples of a
// streaming answer land within a few bits of each other, so comparing
// fingerprints instead of full strings keeps each poll cheap regardless of
// answer length.
func fingerprint(text string) uint64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	var vector [64]int
	for _, word := range words {
		h := fnv.New64a()
		h.Write([]byte(word))
		sum := h.Sum64()
		for i := 0; i < 64; i++ {
			if sum&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// distance is the Hamming distance between two fingerprints.
func distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
