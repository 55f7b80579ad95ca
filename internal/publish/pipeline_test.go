package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Fire-Hyun/naverPost-sub000/internal/cdp"
	"github.com/Fire-Hyun/naverPost-sub000/internal/editor"
	"github.com/Fire-Hyun/naverPost-sub000/internal/failure"
	"github.com/Fire-Hyun/naverPost-sub000/internal/post"
	"github.com/Fire-Hyun/naverPost-sub000/internal/session"
)

// pipeDriver satisfies editor.Driver with scripted eval responses keyed by a
// substring of the evaluated JS, first match wins.
type pipeDriver struct {
	scripts  []pipeScript
	typed    []string
	inserted []string
	keys     []string
	files    [][]string
}

type pipeScript struct {
	substr string
	data   any
}

func (d *pipeDriver) Eval(_ context.Context, js string, out any) error {
	for _, s := range d.scripts {
		if !strings.Contains(js, s.substr) {
			continue
		}
		if out == nil || s.data == nil {
			return nil
		}
		b, err := json.Marshal(s.data)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, out)
	}
	return errors.New("no scripted response for eval")
}

func (d *pipeDriver) TypeText(_ context.Context, text string) error {
	d.typed = append(d.typed, text)
	return nil
}

func (d *pipeDriver) InsertText(_ context.Context, text string) error {
	d.inserted = append(d.inserted, text)
	return nil
}

func (d *pipeDriver) PressKey(_ context.Context, key, _ string, _, _ int) error {
	d.keys = append(d.keys, key)
	return nil
}

func (d *pipeDriver) SetFileInputExpr(_ context.Context, _ string, paths []string) error {
	d.files = append(d.files, paths)
	return nil
}

type fakeSession struct {
	drv      editor.Driver
	loggedIn bool
	calls    []string
}

func (s *fakeSession) EnsureLoggedIn(context.Context) (session.LoginStatus, error) {
	s.calls = append(s.calls, "login")
	return session.LoginStatus{LoggedIn: s.loggedIn}, nil
}

func (s *fakeSession) NavigateToEditor(context.Context) error {
	s.calls = append(s.calls, "navigate")
	return nil
}

func (s *fakeSession) Driver() editor.Driver { return s.drv }

// happyDriver scripts every eval a full zero-image attempt makes, through
// both verification channels.
func happyDriver(title string) *pipeDriver {
	return &pipeDriver{scripts: []pipeScript{
		{substr: "data:{ready:", data: map[string]bool{"ready": true}},
		{substr: "var overlays", data: map[string]int{"hidden": 0}},
		{substr: "hide(doc)", data: map[string]int{"hidden": 0}},
		{substr: "el.textContent || el.value", data: map[string]string{"text": title}},
		{substr: "doc.body.textContent", data: map[string]bool{"found": true}},
		{substr: "var signals =", data: map[string]bool{"found": true}},
		{substr: "collect(doc)", data: []string{"임시저장 완료"}},
		{substr: "outerHTML", data: "<ul><li>" + title + " 삭제</li></ul>"},
		{substr: "el.focus()", data: map[string]bool{"focused": true}},
		{substr: "el.click()", data: map[string]bool{"clicked": true}},
	}}
}

var pipelineStageNames = []string{
	"login check", "navigate to editor", "frame acquisition",
	"title injection", "body injection", "image upload",
	"place attachment", "post options", "save commit", "save verification",
}

func TestPipelineRunsEveryStageForZeroImageDraft(t *testing.T) {
	title := "파이프라인 통합 검증 제목"
	drv := happyDriver(title)
	sess := &fakeSession{drv: drv, loggedIn: true}
	p := NewPipeline(testConfig(t), editor.DefaultCatalog())

	res, err := p.Run(context.Background(), sess, post.Draft{
		Title: title,
		Body:  "본문 첫 줄\n본문 둘째 줄",
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !res.Success {
		t.Fatal("Success = false, want true")
	}
	if res.VerifiedVia == editor.VerifiedNone || res.VerifiedVia == editor.VerifiedSkipped {
		t.Fatalf("VerifiedVia = %q, want a confirming channel", res.VerifiedVia)
	}
	if len(drv.files) != 0 {
		t.Fatalf("file submissions = %v, want none for a zero-image draft", drv.files)
	}
	if len(sess.calls) < 2 || sess.calls[0] != "login" || sess.calls[1] != "navigate" {
		t.Fatalf("session calls = %v, want login before navigate", sess.calls)
	}
	for _, name := range pipelineStageNames {
		if _, ok := res.StageDurations[name]; !ok {
			t.Fatalf("StageDurations missing %q: %v", name, res.StageDurations)
		}
	}
}

func TestPipelineStopsAtFirstFailedStage(t *testing.T) {
	drv := &pipeDriver{}
	sess := &fakeSession{drv: drv, loggedIn: false}
	p := NewPipeline(testConfig(t), editor.DefaultCatalog())

	res, err := p.Run(context.Background(), sess, validDraft())
	if err == nil {
		t.Fatal("Run = nil, want login-check failure")
	}
	var sf *stageFailure
	if !errors.As(err, &sf) || sf.Stage != "login check" {
		t.Fatalf("error = %v, want stage failure at login check", err)
	}
	if res.VerifiedVia != editor.VerifiedSkipped {
		t.Fatalf("VerifiedVia = %q, want %q before verification ran", res.VerifiedVia, editor.VerifiedSkipped)
	}
	for _, call := range sess.calls {
		if call == "navigate" {
			t.Fatalf("session calls = %v: navigation ran after a failed login check", sess.calls)
		}
	}
	if len(drv.typed)+len(drv.inserted)+len(drv.keys) != 0 {
		t.Fatalf("driver touched after failed login check: typed=%v inserted=%v keys=%v",
			drv.typed, drv.inserted, drv.keys)
	}
	if _, ok := res.StageDurations["navigate to editor"]; ok {
		t.Fatal("navigate stage recorded a duration after the login check failed")
	}
}

func TestStageTimeoutClassifiesAsClientHang(t *testing.T) {
	tests := []struct {
		name  string
		stage string
		err   error
	}{
		{
			name:  "eval timeout during save commit",
			stage: "save commit",
			err:   cdp.NewError(cdp.CodeEvalTimeout, "evaluation timed out", context.DeadlineExceeded),
		},
		{
			name:  "raw deadline during save verification",
			stage: "save verification",
			err:   context.DeadlineExceeded,
		},
		{
			name:  "wrapped deadline during body injection",
			stage: "body injection",
			err:   fmt.Errorf("type line 3: %w", context.DeadlineExceeded),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sf := newStageFailure(tt.stage, tt.err)
			if !sf.Timeout {
				t.Fatalf("Timeout = false for %v, want true", tt.err)
			}
			got := failure.ClassifyAttempt(sf.Error(), failure.Signals{})
			if got != failure.AttemptClientHang {
				t.Fatalf("ClassifyAttempt(%q) = %q, want %q", sf.Error(), got, failure.AttemptClientHang)
			}
			if got.Retryable() {
				t.Fatal("Retryable() = true for client hang, want false")
			}
		})
	}
}

func TestStageFailureWithoutTimeoutKeepsStageClassification(t *testing.T) {
	sf := newStageFailure("save commit", cdp.NewError(cdp.CodeEditor,
		"save commit: all strategies exhausted", nil))
	if sf.Timeout {
		t.Fatal("Timeout = true for a non-timeout editor error")
	}
	got := failure.ClassifyAttempt(sf.Error(), failure.Signals{})
	if got != failure.AttemptEditorInsert {
		t.Fatalf("ClassifyAttempt = %q, want %q", got, failure.AttemptEditorInsert)
	}
}

func TestPublishStageTimeoutIsTerminal(t *testing.T) {
	o := testOrchestrator(t, testConfig(t))
	calls := 0
	o.runAttempt = func(context.Context, post.Draft, bool) (*Result, failure.Signals, error) {
		calls++
		return &Result{}, failure.Signals{}, newStageFailure("save commit",
			cdp.NewError(cdp.CodeEvalTimeout, "evaluation timed out", context.DeadlineExceeded))
	}

	res, err := o.Publish(context.Background(), validDraft())
	if err == nil {
		t.Fatal("Publish = nil, want terminal error")
	}
	if calls != 1 {
		t.Fatalf("runAttempt calls = %d, want 1 (stage timeout must not retry)", calls)
	}
	if res.FailureCategory != failure.AttemptClientHang {
		t.Fatalf("FailureCategory = %q, want %q", res.FailureCategory, failure.AttemptClientHang)
	}
}
