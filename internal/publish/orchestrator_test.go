package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Fire-Hyun/naverPost-sub000/internal/cdp"
	"github.com/Fire-Hyun/naverPost-sub000/internal/config"
	"github.com/Fire-Hyun/naverPost-sub000/internal/editor"
	"github.com/Fire-Hyun/naverPost-sub000/internal/failure"
	"github.com/Fire-Hyun/naverPost-sub000/internal/post"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		ProfileDir:        filepath.Join(t.TempDir(), "profile"),
		StageTimeoutSec:   5,
		UploadTimeoutSec:  180,
		PerImageAllowance: 25,
		LoginMarginSec:    45,
		UploadTimeoutCeil: 600,
		WatchdogSec:       540,
		MaxRetries:        3,
		FailureDir:        t.TempDir(),
		AttemptLogDir:     t.TempDir(),
	}
}

func testOrchestrator(t *testing.T, cfg *config.Config) *Orchestrator {
	t.Helper()
	log := NewAttemptLog(cfg.AttemptLogDir)
	t.Cleanup(func() { log.Close() })
	o := NewOrchestrator(cfg, editor.DefaultCatalog(), log)
	o.backoffSleep = func(time.Duration) bool { return true }
	return o
}

func validDraft() post.Draft {
	return post.Draft{Title: "테스트 제목입니다", Body: "본문 첫 줄\n본문 둘째 줄"}
}

func TestAdaptiveTimeoutMonotonicAndClamped(t *testing.T) {
	cfg := testConfig(t)

	prev := time.Duration(0)
	for images := 0; images <= 50; images++ {
		got := AdaptiveTimeout(cfg, images)
		if got < prev {
			t.Fatalf("AdaptiveTimeout(%d) = %v < previous %v, want monotonic", images, got, prev)
		}
		prev = got
	}

	ceil := time.Duration(cfg.UploadTimeoutCeil) * time.Second
	if got := AdaptiveTimeout(cfg, 10000); got != ceil {
		t.Fatalf("AdaptiveTimeout(10000) = %v, want clamped to %v", got, ceil)
	}

	want := time.Duration(cfg.UploadTimeoutSec+3*cfg.PerImageAllowance+cfg.LoginMarginSec) * time.Second
	if got := AdaptiveTimeout(cfg, 3); got != want {
		t.Fatalf("AdaptiveTimeout(3) = %v, want %v", got, want)
	}
}

func TestPublishRejectsInvalidDraft(t *testing.T) {
	o := testOrchestrator(t, testConfig(t))
	calls := 0
	o.runAttempt = func(context.Context, post.Draft, bool) (*Result, failure.Signals, error) {
		calls++
		return &Result{}, failure.Signals{}, nil
	}

	_, err := o.Publish(context.Background(), post.Draft{Title: "", Body: "body"})
	if err == nil {
		t.Fatal("Publish = nil, want validation error")
	}
	var coded *cdp.CodedError
	if !errors.As(err, &coded) || coded.Code != cdp.CodeValidation {
		t.Fatalf("error = %v, want code %s", err, cdp.CodeValidation)
	}
	if calls != 0 {
		t.Fatalf("runAttempt calls = %d, want 0", calls)
	}
}

func TestPublishCaptchaAbortsWithoutConsumingRetries(t *testing.T) {
	o := testOrchestrator(t, testConfig(t))
	calls := 0
	o.runAttempt = func(context.Context, post.Draft, bool) (*Result, failure.Signals, error) {
		calls++
		return &Result{}, failure.Signals{CaptchaVisible: true},
			errors.New("save commit never completed")
	}

	res, err := o.Publish(context.Background(), validDraft())
	if err == nil {
		t.Fatal("Publish = nil, want terminal captcha error")
	}
	if calls != 1 {
		t.Fatalf("runAttempt calls = %d, want 1 (captcha must not retry)", calls)
	}
	if res.FailureCategory != failure.AttemptCaptcha {
		t.Fatalf("FailureCategory = %q, want %q", res.FailureCategory, failure.AttemptCaptcha)
	}
	var coded *cdp.CodedError
	if !errors.As(err, &coded) || coded.Code != cdp.CodeCaptcha {
		t.Fatalf("terminal captcha error code = %v, want %s", err, cdp.CodeCaptcha)
	}
}

func TestPublishCaptchaQuarantinesProfile(t *testing.T) {
	cfg := testConfig(t)
	if err := os.MkdirAll(cfg.ProfileDir, 0o755); err != nil {
		t.Fatalf("create profile dir: %v", err)
	}
	o := testOrchestrator(t, cfg)
	o.runAttempt = func(context.Context, post.Draft, bool) (*Result, failure.Signals, error) {
		return &Result{}, failure.Signals{CaptchaVisible: true}, errors.New("blocked")
	}

	if _, err := o.Publish(context.Background(), validDraft()); err == nil {
		t.Fatal("Publish = nil, want terminal captcha error")
	}

	if _, err := os.Stat(cfg.ProfileDir); !os.IsNotExist(err) {
		t.Fatalf("profile dir still present after captcha, want it moved aside (stat err: %v)", err)
	}
	moved, err := filepath.Glob(cfg.QuarantineDir() + "_*")
	if err != nil || len(moved) != 1 {
		t.Fatalf("quarantine dirs = %v (err %v), want exactly one", moved, err)
	}
}

func TestPublishClientHangIsTerminal(t *testing.T) {
	o := testOrchestrator(t, testConfig(t))
	calls := 0
	o.runAttempt = func(context.Context, post.Draft, bool) (*Result, failure.Signals, error) {
		calls++
		return &Result{}, failure.Signals{WatchdogFired: true},
			errors.New("stage timeout during save commit")
	}

	res, err := o.Publish(context.Background(), validDraft())
	if err == nil {
		t.Fatal("Publish = nil, want terminal error")
	}
	if calls != 1 {
		t.Fatalf("runAttempt calls = %d, want 1 (hang must not retry)", calls)
	}
	if res.FailureCategory != failure.AttemptClientHang {
		t.Fatalf("FailureCategory = %q, want %q", res.FailureCategory, failure.AttemptClientHang)
	}
}

func TestPublishRetriesTransientFailures(t *testing.T) {
	o := testOrchestrator(t, testConfig(t))
	backoffs := 0
	o.backoffSleep = func(time.Duration) bool {
		backoffs++
		return true
	}
	calls := 0
	o.runAttempt = func(context.Context, post.Draft, bool) (*Result, failure.Signals, error) {
		calls++
		if calls < 3 {
			return &Result{}, failure.Signals{}, errors.New("dial tcp: connection refused")
		}
		return &Result{Success: true, VerifiedVia: editor.VerifiedToast}, failure.Signals{}, nil
	}

	res, err := o.Publish(context.Background(), validDraft())
	if err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if !res.Success {
		t.Fatal("Success = false, want true")
	}
	if calls != 3 {
		t.Fatalf("runAttempt calls = %d, want 3", calls)
	}
	if backoffs != 2 {
		t.Fatalf("backoff sleeps = %d, want 2", backoffs)
	}
}

func TestPublishAuthReloginOnce(t *testing.T) {
	o := testOrchestrator(t, testConfig(t))
	var reloginFlags []bool
	o.runAttempt = func(_ context.Context, _ post.Draft, relogin bool) (*Result, failure.Signals, error) {
		reloginFlags = append(reloginFlags, relogin)
		return &Result{}, failure.Signals{}, errors.New("session expired, redirected to nidlogin")
	}

	res, err := o.Publish(context.Background(), validDraft())
	if err == nil {
		t.Fatal("Publish = nil, want terminal auth error")
	}
	if len(reloginFlags) != 2 {
		t.Fatalf("runAttempt calls = %d, want 2 (one relogin retry, never more)", len(reloginFlags))
	}
	if reloginFlags[0] || !reloginFlags[1] {
		t.Fatalf("relogin flags = %v, want [false true]", reloginFlags)
	}
	if res.FailureCategory != failure.AttemptAuth {
		t.Fatalf("FailureCategory = %q, want %q", res.FailureCategory, failure.AttemptAuth)
	}
}

func TestPublishExhaustsRetries(t *testing.T) {
	cfg := testConfig(t)
	o := testOrchestrator(t, cfg)
	calls := 0
	o.runAttempt = func(context.Context, post.Draft, bool) (*Result, failure.Signals, error) {
		calls++
		return &Result{}, failure.Signals{}, errors.New("dial tcp: no such host")
	}

	if _, err := o.Publish(context.Background(), validDraft()); err == nil {
		t.Fatal("Publish = nil, want exhaustion error")
	}
	if calls != cfg.MaxRetries {
		t.Fatalf("runAttempt calls = %d, want %d", calls, cfg.MaxRetries)
	}
}

func TestPublishHonorsShutdownDuringBackoff(t *testing.T) {
	o := testOrchestrator(t, testConfig(t))
	o.backoffSleep = func(time.Duration) bool { return false }
	calls := 0
	o.runAttempt = func(context.Context, post.Draft, bool) (*Result, failure.Signals, error) {
		calls++
		return &Result{}, failure.Signals{}, errors.New("connection reset")
	}

	if _, err := o.Publish(context.Background(), validDraft()); err == nil {
		t.Fatal("Publish = nil, want shutdown error")
	}
	if calls != 1 {
		t.Fatalf("runAttempt calls = %d, want 1", calls)
	}
}

func TestBackoffDelayBounded(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffDelay(attempt)
		if d <= 0 {
			t.Fatalf("backoffDelay(%d) = %v, want positive", attempt, d)
		}
		if d > 36*time.Second {
			t.Fatalf("backoffDelay(%d) = %v, want <= 36s (30s cap + jitter)", attempt, d)
		}
	}
}
