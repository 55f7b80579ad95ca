// Package publish runs the end-to-end draft publishing pipeline and the
// attempt-level retry loop around it.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Fire-Hyun/naverPost-sub000/internal/cdp"
	"github.com/Fire-Hyun/naverPost-sub000/internal/config"
	"github.com/Fire-Hyun/naverPost-sub000/internal/editor"
	"github.com/Fire-Hyun/naverPost-sub000/internal/failure"
	"github.com/Fire-Hyun/naverPost-sub000/internal/post"
	"github.com/Fire-Hyun/naverPost-sub000/internal/session"
)

// Result is the per-attempt outcome handed back to callers.
type Result struct {
	Success         bool                     `json:"success"`
	VerifiedVia     editor.VerifiedVia       `json:"verified_via"`
	ToastMessage    string                   `json:"toast_message,omitempty"`
	DraftFound      bool                     `json:"draft_found"`
	DraftTitle      string                   `json:"draft_title,omitempty"`
	ErrorMessage    string                   `json:"error_message,omitempty"`
	FailureCategory failure.AttemptCategory  `json:"failure_category,omitempty"`
	ScreenshotPaths []string                 `json:"screenshot_paths,omitempty"`
	StageDurations  map[string]time.Duration `json:"-"`
}

// stageFailure carries which pipeline stage failed along with the cause, so
// the orchestrator can classify and evidence-capture with stage context.
// Timeout marks stages that ran out their window: the automation itself
// stopped progressing, which classifies as a client hang, not as whatever
// the stage's error text happens to resemble.
type stageFailure struct {
	Stage   string
	Err     error
	Timeout bool
}

func newStageFailure(stage string, err error) *stageFailure {
	return &stageFailure{Stage: stage, Err: err, Timeout: isTimeout(err)}
}

func (e *stageFailure) Error() string {
	if e.Timeout {
		return e.Stage + ": stage timeout: " + e.Err.Error()
	}
	return e.Stage + ": " + e.Err.Error()
}
func (e *stageFailure) Unwrap() error { return e.Err }

// Session is the browser-session surface one attempt drives.
// *session.Session satisfies it; pipeline tests substitute scripted fakes.
type Session interface {
	EnsureLoggedIn(ctx context.Context) (session.LoginStatus, error)
	NavigateToEditor(ctx context.Context) error
	Driver() editor.Driver
}

// Pipeline drives one publish attempt over an open session: login check,
// navigation, frame acquisition, injection, attachments, save and
// verification, in strict order. No stage starts before the previous one
// succeeded.
type Pipeline struct {
	cfg     *config.Config
	catalog *editor.Catalog
}

// NewPipeline builds a pipeline with the given selector catalog.
func NewPipeline(cfg *config.Config, catalog *editor.Catalog) *Pipeline {
	return &Pipeline{cfg: cfg, catalog: catalog}
}

// Run executes the attempt. On failure the returned error is a *stageFailure
// and the Result still carries whatever verification state was reached.
func (p *Pipeline) Run(ctx context.Context, sess Session, draft post.Draft) (*Result, error) {
	res := &Result{
		VerifiedVia:    editor.VerifiedSkipped,
		StageDurations: make(map[string]time.Duration),
	}
	stageTimeout := time.Duration(p.cfg.StageTimeoutSec) * time.Second
	var handle *editor.Handle

	stages := []struct {
		name    string
		timeout time.Duration
		run     func(ctx context.Context) error
	}{
		{"login check", stageTimeout, func(ctx context.Context) error {
			status, err := sess.EnsureLoggedIn(ctx)
			if err != nil {
				return err
			}
			if !status.LoggedIn {
				return cdp.NewError(cdp.CodeSession,
					fmt.Sprintf("not logged in (indicators: %v)", status.MatchedIndicators), nil)
			}
			return nil
		}},
		{"navigate to editor", stageTimeout, func(ctx context.Context) error {
			return sess.NavigateToEditor(ctx)
		}},
		{"frame acquisition", stageTimeout, func(ctx context.Context) error {
			h, err := editor.NewLocator(p.catalog).Acquire(ctx, sess.Driver())
			if err != nil {
				return err
			}
			handle = h
			return nil
		}},
		{"title injection", stageTimeout, func(ctx context.Context) error {
			in := editor.NewInjector(handle, p.cfg.EditorDebugDir)
			if err := in.DismissPopups(ctx); err != nil {
				return err
			}
			return in.InputTitle(ctx, draft.Title)
		}},
		{"body injection", stageTimeout, func(ctx context.Context) error {
			in := editor.NewInjector(handle, p.cfg.EditorDebugDir)
			if err := in.DismissPopups(ctx); err != nil {
				return err
			}
			return in.InputBody(ctx, draft)
		}},
		{"image upload", p.uploadTimeout(len(draft.ImagePaths)), func(ctx context.Context) error {
			if len(draft.ImagePaths) == 0 {
				return nil
			}
			in := editor.NewInjector(handle, p.cfg.EditorDebugDir)
			if err := in.DismissPopups(ctx); err != nil {
				return err
			}
			return editor.NewMediaAttacher(handle).Attach(ctx, draft.ImagePaths)
		}},
		{"place attachment", stageTimeout, func(ctx context.Context) error {
			if draft.PlaceName == "" {
				return nil
			}
			in := editor.NewInjector(handle, p.cfg.EditorDebugDir)
			if err := in.DismissPopups(ctx); err != nil {
				return err
			}
			return editor.NewPlaceAttacher(handle).Attach(ctx, draft.PlaceName)
		}},
		{"post options", stageTimeout, func(ctx context.Context) error {
			// Tags and visibility are best-effort extras; their absence in a
			// given editor build never fails the attempt.
			in := editor.NewInjector(handle, p.cfg.EditorDebugDir)
			if err := in.ApplyTags(ctx, draft.Tags); err != nil {
				slog.Warn("tag application failed", "error", err)
			}
			if err := in.ApplyVisibility(ctx, draft.Visibility); err != nil {
				slog.Warn("visibility application failed", "error", err)
			}
			return nil
		}},
		{"save commit", stageTimeout, func(ctx context.Context) error {
			return editor.NewSaveCommitter(handle).Commit(ctx)
		}},
		{"save verification", stageTimeout, func(ctx context.Context) error {
			vr := editor.NewVerifier(handle).Verify(ctx, draft.Title)
			res.VerifiedVia = vr.VerifiedVia
			res.ToastMessage = vr.ToastMessage
			res.DraftFound = vr.DraftFound
			res.DraftTitle = vr.DraftTitle
			if !vr.Success {
				// verifiedVia=none is a full failure, never a soft pass.
				return cdp.NewError(cdp.CodeSaveVerify, vr.ErrorMessage, nil)
			}
			res.Success = true
			return nil
		}},
	}

	for _, stage := range stages {
		start := time.Now()
		stageCtx, cancel := context.WithTimeout(ctx, stage.timeout)
		err := stage.run(stageCtx)
		cancel()
		res.StageDurations[stage.name] = time.Since(start)

		if err != nil {
			sf := newStageFailure(stage.name, err)
			slog.Error("pipeline stage failed",
				"stage", stage.name, "duration", time.Since(start),
				"timeout", sf.Timeout, "error", err)
			res.ErrorMessage = sf.Error()
			return res, sf
		}
		slog.Info("pipeline stage ok", "stage", stage.name, "duration", time.Since(start))
	}
	return res, nil
}

// uploadTimeout scales the image-upload stage budget with the image count,
// bounded by the configured ceiling.
func (p *Pipeline) uploadTimeout(images int) time.Duration {
	sec := p.cfg.UploadTimeoutSec + p.cfg.PerImageAllowance*images
	if sec > p.cfg.UploadTimeoutCeil {
		sec = p.cfg.UploadTimeoutCeil
	}
	return time.Duration(sec) * time.Second
}
