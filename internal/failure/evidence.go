package failure

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
)

// PageCapturer is the slice of the pipeline's CDP client evidence capture
// relies on: the browser websocket URL for a fresh chromedp attachment, and a
// direct screenshot over the existing session as the fallback path.
type PageCapturer interface {
	BrowserWSURL(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, format string, quality int, fullPage bool) ([]byte, error)
}

// Evidence lists the artifacts one capture produced.
type Evidence struct {
	Dir             string   `json:"dir"`
	PageScreenshot  string   `json:"page_screenshot,omitempty"`
	FrameScreenshot string   `json:"frame_screenshot,omitempty"`
	HTMLDump        string   `json:"html_dump,omitempty"`
	ReportPath      string   `json:"report_path"`
	ScreenshotPaths []string `json:"screenshot_paths"`
}

// Report is the failure_report.json schema.
type Report struct {
	OperationID string          `json:"operation_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Stage       string          `json:"stage"`
	Category    Category        `json:"category"`
	Attempt     AttemptCategory `json:"attempt_category,omitempty"`
	Error       string          `json:"error"`
	PageURL     string          `json:"page_url,omitempty"`
	Artifacts   []string        `json:"artifacts"`
	Screenshots []string        `json:"screenshot_paths,omitempty"`
	HTMLDump    string          `json:"html_dump_path,omitempty"`
	Session     json.RawMessage `json:"session_snapshot,omitempty"`
}

// Collector captures evidence for raised failures. Capture attaches a fresh
// chromedp session through the remote allocator instead of reusing the
// pipeline's CDP session: the pipeline session may be the thing that is
// broken, and a second attachment can still screenshot a wedged page.
type Collector struct {
	baseDir  string
	capturer PageCapturer
}

// NewCollector builds a collector writing under baseDir.
func NewCollector(baseDir string, capturer PageCapturer) *Collector {
	return &Collector{baseDir: baseDir, capturer: capturer}
}

// Capture writes a directory-per-failure evidence bundle: full-page
// screenshot, outer-page HTML dump, a frame-only screenshot when an editor
// iframe exists, and failure_report.json referencing all artifacts. Artifact
// capture is best-effort; the report is always written. Directories are
// timestamp+id named and never overwritten.
func (c *Collector) Capture(ctx context.Context, stage string, category Category, attempt AttemptCategory, cause error, pageURL string, session json.RawMessage) (*Evidence, error) {
	opID := uuid.NewString()
	dir := filepath.Join(c.baseDir,
		fmt.Sprintf("%s_%s", time.Now().Format("20060102_150405"), opID[:8]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create evidence dir: %w", err)
	}

	ev := &Evidence{Dir: dir}
	c.captureBrowserArtifacts(ctx, dir, ev)

	report := Report{
		OperationID: opID,
		Timestamp:   time.Now(),
		Stage:       stage,
		Category:    category,
		Attempt:     attempt,
		PageURL:     pageURL,
		Session:     session,
	}
	if cause != nil {
		report.Error = cause.Error()
	}
	for _, p := range []string{ev.PageScreenshot, ev.FrameScreenshot, ev.HTMLDump} {
		if p != "" {
			report.Artifacts = append(report.Artifacts, p)
		}
	}
	report.Screenshots = ev.ScreenshotPaths
	report.HTMLDump = ev.HTMLDump

	ev.ReportPath = filepath.Join(dir, "failure_report.json")
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal failure report: %w", err)
	}
	if err := os.WriteFile(ev.ReportPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write failure report: %w", err)
	}

	slog.Info("failure evidence captured",
		"dir", dir, "stage", stage, "category", category, "operation_id", opID)
	return ev, nil
}

// captureBrowserArtifacts best-effort collects screenshots and the HTML dump
// through a dedicated chromedp attachment. When that attachment cannot be
// made or yields no page screenshot, the primary session's own screenshot
// command is the fallback: a page that still answers Runtime.evaluate can
// usually still answer Page.captureScreenshot.
func (c *Collector) captureBrowserArtifacts(ctx context.Context, dir string, ev *Evidence) {
	if c.capturer == nil {
		return
	}
	wsURL, err := c.capturer.BrowserWSURL(ctx)
	if err != nil {
		slog.Warn("evidence: browser websocket unavailable", "error", err)
	} else {
		c.captureViaAttachment(ctx, wsURL, dir, ev)
	}
	if ev.PageScreenshot != "" {
		return
	}

	shot, err := c.capturer.Screenshot(ctx, "png", 0, true)
	if err != nil {
		slog.Warn("evidence: fallback session screenshot failed", "error", err)
		return
	}
	path := filepath.Join(dir, "page.png")
	if err := os.WriteFile(path, shot, 0o644); err == nil {
		ev.PageScreenshot = path
		ev.ScreenshotPaths = append(ev.ScreenshotPaths, path)
	}
}

func (c *Collector) captureViaAttachment(ctx context.Context, wsURL, dir string, ev *Evidence) {
	captureCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(captureCtx, wsURL, chromedp.NoModifyURL)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var pageShot []byte
	var html string
	if err := chromedp.Run(browserCtx,
		chromedp.FullScreenshot(&pageShot, 80),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		slog.Warn("evidence: page capture failed", "error", err)
	}
	if len(pageShot) > 0 {
		path := filepath.Join(dir, "page.png")
		if err := os.WriteFile(path, pageShot, 0o644); err == nil {
			ev.PageScreenshot = path
			ev.ScreenshotPaths = append(ev.ScreenshotPaths, path)
		}
	}
	if html != "" {
		path := filepath.Join(dir, "page.html")
		if err := os.WriteFile(path, []byte(html), 0o644); err == nil {
			ev.HTMLDump = path
		}
	}

	var frameShot []byte
	if err := chromedp.Run(browserCtx,
		chromedp.Screenshot("iframe", &frameShot, chromedp.ByQuery),
	); err != nil {
		slog.Debug("evidence: no frame screenshot", "error", err)
	}
	if len(frameShot) > 0 {
		path := filepath.Join(dir, "frame.png")
		if err := os.WriteFile(path, frameShot, 0o644); err == nil {
			ev.FrameScreenshot = path
			ev.ScreenshotPaths = append(ev.ScreenshotPaths, path)
		}
	}
}
