package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/chateval/cleaner"
	"github.com/use-agent/chateval/models"
)

// probeJS samples the page state while waiting for the answer: whether a
// loading indicator is visible, whether the completion marker appeared, and
// the current text of the last answer container.
const probeJS = `(loadingSel, completeSel, answerSel) => {
	const last = (sel) => {
		const els = document.querySelectorAll(sel);
		return els.length ? els[els.length - 1] : null;
	};
	const el = last(answerSel);
	return {
		loading: document.querySelector(loadingSel) !== null,
		complete: document.querySelector(completeSel) !== null,
		text: el ? (el.innerText || el.textContent || "").trim() : "",
	};
}`

// Ask submits one prompt to the chat application and scrapes the rendered
// answer into a fresh response record.
//
// Lifecycle:
//
//	1. Acquire page           – borrow a tab from the pool
//	2. DEFER: cleanup         – about:blank + return to pool on every exit path
//	3. Stealth injection      – before navigation, or it has no effect
//	4. Hijack mount           – block images/fonts/media (before navigation)
//	5. Navigate + settle      – bounded by NavigationTimeout
//	6. Submit prompt          – locate input by selector, type, press Enter
//	7. Wait for completion    – bounded by the configured answer timeout only
//	8. Extract                – page HTML → answer element → markdown text
//
// Step 2 uses the ORIGINAL page reference (no request context), so cleanup
// succeeds even after the caller's context has expired. Every failure is a
// typed ScrapeError; nothing is retried here.
func (s *Scraper) Ask(ctx context.Context, prompt string) (*models.ChatResponse, error) {
	s.activePages.Add(1)
	defer s.activePages.Add(-1)

	page, acquireErr := s.acquirePage()
	if acquireErr != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeLaunch,
			"failed to acquire page from pool",
			acquireErr,
		)
	}

	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		s.pagePool.Put(page)
	}()

	if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
	}

	router := setupHijack(page, s.cfg.BlockedResourceTypes)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	if s.cfg.AcceptLanguage != "" {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{"Accept-Language": s.cfg.AcceptLanguage}),
		}.Call(page)
	}

	// ── Navigate and submit, bounded by the navigation timeout ──────
	navCtx, navCancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer navCancel()
	p := page.Context(navCtx)

	if navErr := p.Navigate(s.cfg.TargetURL); navErr != nil {
		return nil, categorizeNavError(navErr, "navigation to chat application failed")
	}
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("initial DOM did not settle, proceeding", "error", stableErr)
	}

	inputEl, inputErr := p.Element(s.cfg.InputSelector)
	if inputErr != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeInputNotFound,
			"prompt input control not found: "+s.cfg.InputSelector,
			inputErr,
		)
	}
	if typeErr := inputEl.Input(prompt); typeErr != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeInputNotFound,
			"failed to type prompt into input control",
			typeErr,
		)
	}
	if pressErr := inputEl.Type(input.Enter); pressErr != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeInputNotFound,
			"failed to submit prompt",
			pressErr,
		)
	}

	// ── Wait for the answer; this is the only step the configured
	//    timeout bounds ────────────────────────────────────────────────
	waitCtx, waitCancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer waitCancel()
	wp := page.Context(waitCtx)

	probe := func() (answerState, error) {
		res, err := wp.Eval(probeJS, s.cfg.LoadingSelector, s.cfg.CompleteSelector, s.cfg.AnswerSelector)
		if err != nil {
			return answerState{}, err
		}
		return answerState{
			Loading:  res.Value.Get("loading").Bool(),
			Complete: res.Value.Get("complete").Bool(),
			Text:     res.Value.Get("text").Str(),
		}, nil
	}
	if waitErr := waitForAnswer(waitCtx, probe, s.cfg.PollInterval, s.cfg.StablePolls); waitErr != nil {
		return nil, waitErr
	}

	// ── Extract under a fresh deadline; the wait budget may be spent ──
	extractCtx, extractCancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer extractCancel()
	ep := page.Context(extractCtx)

	rawHTML, htmlErr := ep.HTML()
	if htmlErr != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeAnswerNotFound,
			"failed to extract page HTML",
			htmlErr,
		)
	}

	answerHTML, ok := cleaner.ExtractAnswerHTML(rawHTML, s.cfg.AnswerSelector)
	if !ok {
		return nil, models.NewScrapeError(
			models.ErrCodeAnswerNotFound,
			"no element matched the answer selector after completion: "+s.cfg.AnswerSelector,
			nil,
		)
	}

	stripped := cleaner.StripChrome(answerHTML)
	text, mdErr := cleaner.AnswerMarkdown(s.conv, stripped)
	if mdErr != nil || text == "" {
		if mdErr != nil {
			slog.Debug("markdown conversion failed, falling back to plain text", "error", mdErr)
		}
		text = cleaner.PlainText(stripped)
	}
	if text == "" {
		return nil, models.NewScrapeError(
			models.ErrCodeAnswerNotFound,
			"answer element matched but contained no text",
			nil,
		)
	}

	resp := models.NewChatResponse(text)
	resp.RawHTML = answerHTML
	resp.MessageCount = cleaner.MessageCount(rawHTML, s.cfg.MessageSelector)
	resp.Metadata["url"] = evalStringOrEmpty(ep, `() => window.location.href`)
	resp.Metadata["headless"] = s.browserCfg.Headless
	resp.Metadata["timeout_ms"] = s.cfg.Timeout.Milliseconds()
	return resp, nil
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (used for optional metadata only).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeNavError wraps raw navigation errors into typed ScrapeErrors.
func categorizeNavError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeNavigation, msg+": deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeNavigation, "scrape canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
