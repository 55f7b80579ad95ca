package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Fire-Hyun/naverPost-sub000/internal/cdp"
	"github.com/Fire-Hyun/naverPost-sub000/internal/config"
	"github.com/Fire-Hyun/naverPost-sub000/internal/editor"
	"github.com/Fire-Hyun/naverPost-sub000/internal/failure"
	"github.com/Fire-Hyun/naverPost-sub000/internal/post"
	"github.com/Fire-Hyun/naverPost-sub000/internal/session"
	"github.com/google/uuid"
)

// Orchestrator owns the attempt-level retry loop: one browser session per
// attempt, adaptive timeouts, exponential backoff, CAPTCHA quarantine, a
// client-hang watchdog and a single automated relogin.
type Orchestrator struct {
	cfg      *config.Config
	catalog  *editor.Catalog
	attempts *AttemptLog

	// runAttempt and backoffSleep are swappable so the state machine is
	// testable without a browser.
	runAttempt   func(ctx context.Context, draft post.Draft, relogin bool) (*Result, failure.Signals, error)
	backoffSleep func(d time.Duration) bool

	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewOrchestrator builds an orchestrator over the given attempt log.
func NewOrchestrator(cfg *config.Config, catalog *editor.Catalog, attempts *AttemptLog) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		catalog:  catalog,
		attempts: attempts,
		shutdown: make(chan struct{}),
	}
	o.runAttempt = o.runBrowserAttempt
	o.backoffSleep = o.sleepUnlessShutdown
	return o
}

// RequestShutdown asks the orchestrator to stop before its next attempt.
// An in-flight attempt runs to its terminal outcome; mid-attempt
// cancellation is deliberately unsupported.
func (o *Orchestrator) RequestShutdown() {
	o.shutdownOnce.Do(func() { close(o.shutdown) })
}

// AdaptiveTimeout computes the per-attempt budget from the image count: a
// base allowance, a fixed per-image allowance and the login margin, clamped
// to the hard ceiling.
func AdaptiveTimeout(cfg *config.Config, images int) time.Duration {
	sec := cfg.UploadTimeoutSec + cfg.PerImageAllowance*images + cfg.LoginMarginSec
	if sec > cfg.UploadTimeoutCeil {
		sec = cfg.UploadTimeoutCeil
	}
	return time.Duration(sec) * time.Second
}

// Publish runs the retry loop for one draft until success, a terminal
// category, shutdown, or attempt exhaustion.
func (o *Orchestrator) Publish(ctx context.Context, draft post.Draft) (*Result, error) {
	if err := draft.Validate(); err != nil {
		return nil, cdp.NewError(cdp.CodeValidation, "invalid draft", err)
	}

	opID := uuid.NewString()
	reloginUsed := false
	pendingRelogin := false
	var lastRes *Result
	var lastErr error
	lastCategory := failure.AttemptGeneric

	for attempt := 1; attempt <= o.cfg.MaxRetries; attempt++ {
		select {
		case <-o.shutdown:
			return lastRes, cdp.NewError(cdp.CodeSession, "shutdown requested", nil)
		case <-ctx.Done():
			return lastRes, cdp.NewError(cdp.CodeSession, "canceled", ctx.Err())
		default:
		}

		budget := AdaptiveTimeout(o.cfg, len(draft.ImagePaths))
		slog.Info("publish attempt starting",
			"operation_id", opID, "attempt", attempt, "budget", budget,
			"images", len(draft.ImagePaths), "relogin", pendingRelogin)

		attemptCtx, cancel := context.WithTimeout(ctx, budget)
		start := time.Now()
		res, sig, err := o.runAttempt(attemptCtx, draft, pendingRelogin)
		cancel()
		pendingRelogin = false

		if res == nil {
			res = &Result{}
		}
		lastRes = res
		lastErr = err

		rec := AttemptRecord{
			Timestamp:   time.Now(),
			OperationID: opID,
			Attempt:     attempt,
			Title:       draft.Title,
			Images:      len(draft.ImagePaths),
			Success:     err == nil && res.Success,
			VerifiedVia: res.VerifiedVia,
			DurationMS:  time.Since(start).Milliseconds(),
			StageMS:     stageMillis(res.StageDurations),
		}
		if err != nil {
			rec.Error = err.Error()
		}

		if err == nil && res.Success {
			o.attempts.Append(rec)
			slog.Info("publish succeeded",
				"operation_id", opID, "attempt", attempt, "verified_via", res.VerifiedVia)
			return res, nil
		}

		category := failure.ClassifyAttempt(errText(err), sig)
		res.FailureCategory = category
		rec.Category = category
		lastCategory = category
		rec.Retried = attempt < o.cfg.MaxRetries && category.Retryable() &&
			!(category == failure.AttemptAuth && reloginUsed)
		o.attempts.Append(rec)

		slog.Warn("publish attempt failed",
			"operation_id", opID, "attempt", attempt,
			"category", category, "error", errText(err))

		switch {
		case category == failure.AttemptCaptcha:
			// Terminal, and never retried automatically: the service has
			// flagged this profile. Quarantine it so the next run starts
			// clean instead of deepening the block.
			if qErr := o.quarantineProfile(); qErr != nil {
				slog.Error("profile quarantine failed", "error", qErr)
			}
			return res, terminalError(category, err)

		case !category.Retryable():
			return res, terminalError(category, err)

		case category == failure.AttemptAuth:
			if reloginUsed {
				return res, terminalError(category, err)
			}
			reloginUsed = true
			pendingRelogin = true

		}

		if attempt == o.cfg.MaxRetries {
			break
		}
		delay := backoffDelay(attempt)
		slog.Info("backing off before retry", "delay", delay, "next_attempt", attempt+1)
		if !o.backoffSleep(delay) {
			return res, cdp.NewError(cdp.CodeSession, "shutdown requested", nil)
		}
	}

	return lastRes, terminalError(lastCategory, lastErr)
}

// stageMillis flattens per-stage durations for the attempt record.
func stageMillis(durations map[string]time.Duration) map[string]int64 {
	if len(durations) == 0 {
		return nil
	}
	ms := make(map[string]int64, len(durations))
	for stage, d := range durations {
		ms[stage] = d.Milliseconds()
	}
	return ms
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// terminalError wraps the raw cause with the category's actionable message.
// CAPTCHA keeps its own code so the API layer can map it to a distinct status.
func terminalError(category failure.AttemptCategory, cause error) error {
	code := cdp.CodeSession
	if category == failure.AttemptCaptcha {
		code = cdp.CodeCaptcha
	}
	return cdp.NewError(code,
		fmt.Sprintf("%s: %s", category, category.Message()), cause)
}

// backoffDelay is exponential with ±20% jitter, capped at 30s.
func backoffDelay(attempt int) time.Duration {
	base := 2 * time.Second << (attempt - 1)
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 5))
	if rand.Intn(2) == 0 {
		return base - jitter
	}
	return base + jitter
}

func (o *Orchestrator) sleepUnlessShutdown(d time.Duration) bool {
	select {
	case <-o.shutdown:
		return false
	case <-time.After(d):
		return true
	}
}

// quarantineProfile moves the profile directory aside so no future run
// reuses flagged credentials.
func (o *Orchestrator) quarantineProfile() error {
	src := o.cfg.ProfileDir
	if _, err := os.Stat(src); err != nil {
		return nil
	}
	dst := fmt.Sprintf("%s_%s", o.cfg.QuarantineDir(), time.Now().Format("20060102_150405"))
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move profile to quarantine: %w", err)
	}
	slog.Warn("profile quarantined", "from", src, "to", dst)
	return nil
}

// runBrowserAttempt executes one full attempt against a fresh browser
// session: open, optional relogin, pipeline, evidence capture on failure,
// teardown. The watchdog force-kills the browser process tree if the attempt
// wedges, so no hung renderer leaks into the next attempt.
func (o *Orchestrator) runBrowserAttempt(ctx context.Context, draft post.Draft, relogin bool) (*Result, failure.Signals, error) {
	var sig failure.Signals

	sess := session.New(o.cfg)
	if err := sess.Open(ctx); err != nil {
		return &Result{ErrorMessage: err.Error()}, sig, err
	}

	var watchdogFired atomic.Bool
	watchdog := time.AfterFunc(time.Duration(o.cfg.WatchdogSec)*time.Second, func() {
		watchdogFired.Store(true)
		slog.Error("watchdog fired, force-killing browser", "watchdog_sec", o.cfg.WatchdogSec)
		sess.ForceKill()
	})
	defer func() {
		watchdog.Stop()
		if !watchdogFired.Load() {
			sess.Close()
		}
	}()

	if relogin {
		status, err := sess.Relogin(ctx)
		if err != nil || !status.LoggedIn {
			sig.LoginRecheckTimedOut = isTimeout(err)
			if err == nil {
				err = cdp.NewError(cdp.CodeSession, "relogin did not restore the session", nil)
			}
			return &Result{ErrorMessage: err.Error()}, sig, err
		}
	}

	pipeline := NewPipeline(o.cfg, o.catalog)
	res, err := pipeline.Run(ctx, sess, draft)
	if err == nil {
		return res, sig, nil
	}

	sig.WatchdogFired = watchdogFired.Load()
	var sf *stageFailure
	failedStage := "unknown"
	if errors.As(err, &sf) {
		failedStage = sf.Stage
		if sf.Stage == "login check" && isTimeout(sf.Err) {
			sig.LoginRecheckTimedOut = true
		}
	}

	// Probe and capture only while the browser is still alive.
	if !sig.WatchdogFired {
		probeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		sig.CaptchaVisible = sess.DetectCaptcha(probeCtx)
		o.captureEvidence(probeCtx, sess, res, failedStage, err, sig)
		cancel()
	}

	return res, sig, err
}

func (o *Orchestrator) captureEvidence(ctx context.Context, sess *session.Session, res *Result, stage string, cause error, sig failure.Signals) {
	collector := failure.NewCollector(o.cfg.FailureDir, sess.Client())

	var snapshot json.RawMessage
	var pageURL string
	if status, err := sess.EnsureLoggedIn(ctx); err == nil {
		pageURL = status.URL
		snapshot, _ = json.Marshal(struct {
			session.LoginStatus
			LastActivity time.Time `json:"last_activity"`
		}{status, sess.LastActivity()})
	}

	ev, err := collector.Capture(ctx, stage,
		failure.ClassifyStage(cause, stage),
		failure.ClassifyAttempt(errText(cause), sig),
		cause, pageURL, snapshot)
	if err != nil {
		slog.Error("evidence capture failed", "error", err)
		return
	}
	res.ScreenshotPaths = ev.ScreenshotPaths
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var coded *cdp.CodedError
	return errors.As(err, &coded) && coded.Code == cdp.CodeEvalTimeout
}
