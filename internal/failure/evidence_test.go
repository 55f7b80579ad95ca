package failure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
)

type fakeCapturer struct {
	wsErr   error
	shot    []byte
	shotErr error
	shots   int
}

func (f *fakeCapturer) BrowserWSURL(context.Context) (string, error) {
	return "", f.wsErr
}

func (f *fakeCapturer) Screenshot(context.Context, string, int, bool) ([]byte, error) {
	f.shots++
	return f.shot, f.shotErr
}

func TestCaptureFallsBackToSessionScreenshot(t *testing.T) {
	pc := &fakeCapturer{
		wsErr: errors.New("browser endpoint gone"),
		shot:  []byte{0x89, 0x50, 0x4e, 0x47},
	}
	c := NewCollector(t.TempDir(), pc)

	ev, err := c.Capture(context.Background(), "save commit",
		CategoryEditorInteract, AttemptEditorInsert,
		errors.New("save click swallowed"), "https://blog.example.com/editor", nil)
	if err != nil {
		t.Fatalf("Capture error: %v", err)
	}
	if pc.shots != 1 {
		t.Fatalf("session screenshots taken = %d, want 1", pc.shots)
	}
	if ev.PageScreenshot == "" {
		t.Fatal("PageScreenshot empty, want fallback page.png")
	}
	data, err := os.ReadFile(ev.PageScreenshot)
	if err != nil {
		t.Fatalf("read fallback screenshot: %v", err)
	}
	if !bytes.Equal(data, pc.shot) {
		t.Fatalf("screenshot bytes = %v, want %v", data, pc.shot)
	}
	if len(ev.ScreenshotPaths) != 1 || ev.ScreenshotPaths[0] != ev.PageScreenshot {
		t.Fatalf("ScreenshotPaths = %v, want the fallback path only", ev.ScreenshotPaths)
	}

	raw, err := os.ReadFile(ev.ReportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var report Report
	if err := json.Unmarshal(raw, &report); err != nil {
		t.Fatalf("parse report: %v", err)
	}
	if len(report.Screenshots) != 1 || report.Screenshots[0] != ev.PageScreenshot {
		t.Fatalf("report screenshots = %v, want %v", report.Screenshots, ev.PageScreenshot)
	}
}

func TestCaptureWritesReportWhenBrowserIsGone(t *testing.T) {
	pc := &fakeCapturer{
		wsErr:   errors.New("browser endpoint gone"),
		shotErr: errors.New("connection reset"),
	}
	c := NewCollector(t.TempDir(), pc)

	ev, err := c.Capture(context.Background(), "frame acquisition",
		CategoryFrameAcquisition, AttemptGeneric,
		errors.New("iframe never appeared"), "", nil)
	if err != nil {
		t.Fatalf("Capture error: %v", err)
	}
	if ev.PageScreenshot != "" || len(ev.ScreenshotPaths) != 0 {
		t.Fatalf("unexpected screenshots: %+v", ev)
	}
	if _, err := os.Stat(ev.ReportPath); err != nil {
		t.Fatalf("report missing: %v", err)
	}
}

func TestCaptureWithoutCapturerStillReports(t *testing.T) {
	c := NewCollector(t.TempDir(), nil)

	ev, err := c.Capture(context.Background(), "login check",
		CategorySessionExpired, AttemptAuth, errors.New("redirected to login"), "", nil)
	if err != nil {
		t.Fatalf("Capture error: %v", err)
	}
	if _, err := os.Stat(ev.ReportPath); err != nil {
		t.Fatalf("report missing: %v", err)
	}
}
