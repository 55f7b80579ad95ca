package editor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Fire-Hyun/naverPost-sub000/internal/cdp"
)

// MediaAttacher uploads local images into the editor.
type MediaAttacher struct {
	handle             *Handle
	completionBase     time.Duration
	completionPerImage time.Duration
	completionPoll     time.Duration
}

// NewMediaAttacher builds an attacher over an acquired frame.
func NewMediaAttacher(handle *Handle) *MediaAttacher {
	return &MediaAttacher{
		handle:             handle,
		completionBase:     10 * time.Second,
		completionPerImage: 5 * time.Second,
		completionPoll:     time.Second,
	}
}

// Attach uploads the images at paths. Paths must exist and be absolute; the
// browser process resolves them, so a relative path would resolve against the
// browser's cwd, not ours. Upload completion is polled best-effort: a slow
// thumbnail render is logged, not fatal, since save verification is the
// authoritative check.
func (m *MediaAttacher) Attach(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	abs, err := resolveImagePaths(paths)
	if err != nil {
		return err
	}

	before, err := m.countImageComponents(ctx)
	if err != nil {
		slog.Debug("image component precount failed", "error", err)
		before = 0
	}

	if err := m.openPhotoTool(ctx); err != nil {
		return err
	}
	if err := m.submitFiles(ctx, abs); err != nil {
		return err
	}

	m.awaitCompletion(ctx, before, len(abs))

	// A finished upload can leave a confirmation layer over the canvas.
	if clicked, err := m.handle.clickFirst(ctx, m.handle.catalog.PopupCloseQuery); err == nil && clicked {
		slog.Debug("upload confirmation layer dismissed")
	}
	return nil
}

func resolveImagePaths(paths []string) ([]string, error) {
	abs := make([]string, 0, len(paths))
	for _, p := range paths {
		a, err := filepath.Abs(p)
		if err != nil {
			return nil, cdp.NewError(cdp.CodeValidation, "resolve image path "+p, err)
		}
		if _, err := os.Stat(a); err != nil {
			return nil, cdp.NewError(cdp.CodeValidation, "image not readable: "+a, err)
		}
		abs = append(abs, a)
	}
	return abs, nil
}

// openPhotoTool clicks the toolbar photo control, trying frame then page.
func (m *MediaAttacher) openPhotoTool(ctx context.Context) error {
	h := m.handle
	strategies := []Strategy{
		{Name: "photo-button-in-frame", Attempt: func(ctx context.Context) (bool, error) {
			return h.clickFirst(ctx, h.catalog.PhotoButtonQueries)
		}},
		{Name: "photo-button-on-page", Attempt: func(ctx context.Context) (bool, error) {
			return h.clickFirstOnPage(ctx, h.catalog.PhotoButtonQueries)
		}},
		{Name: "from-device-direct", Attempt: func(ctx context.Context) (bool, error) {
			// Some editor builds skip the photo menu and expose the local
			// upload affordance directly.
			return h.clickFirst(ctx, h.catalog.FromDeviceQueries)
		}},
	}
	return runStrategies(ctx, "photo tool open", strategies)
}

// submitFiles hands the file list to a file input. Clicking "upload from
// device" would open a native picker no CDP call can drive, so every strategy
// targets the hidden input element directly.
func (m *MediaAttacher) submitFiles(ctx context.Context, paths []string) error {
	h := m.handle
	strategies := []Strategy{
		{Name: "file-input-in-frame", Attempt: func(ctx context.Context) (bool, error) {
			expr := m.fileInputExpr(h.frameExpr)
			if err := h.drv.SetFileInputExpr(ctx, expr, paths); err != nil {
				return false, err
			}
			return true, nil
		}},
		{Name: "from-device-then-frame-input", Attempt: func(ctx context.Context) (bool, error) {
			if _, err := h.clickFirst(ctx, h.catalog.FromDeviceQueries); err != nil {
				return false, err
			}
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(700 * time.Millisecond):
			}
			expr := m.fileInputExpr(h.frameExpr)
			if err := h.drv.SetFileInputExpr(ctx, expr, paths); err != nil {
				return false, err
			}
			return true, nil
		}},
		{Name: "file-input-on-page", Attempt: func(ctx context.Context) (bool, error) {
			expr := m.fileInputExpr("document")
			if err := h.drv.SetFileInputExpr(ctx, expr, paths); err != nil {
				return false, err
			}
			return true, nil
		}},
	}
	return runStrategies(ctx, "file submission", strategies)
}

// fileInputExpr builds a JS expression resolving the first file input under
// the given document expression, preferring image-typed inputs.
func (m *MediaAttacher) fileInputExpr(docExpr string) string {
	return `(function(){
var root = (` + docExpr + `);
if (!root) return null;
var selectors = ` + cdp.JSJSON(m.handle.catalog.FileInputSelectors) + `;
for (var i = 0; i < selectors.length; i++) {
  var el = root.querySelector(selectors[i]);
  if (el) return el;
}
return null;
})()`
}

// awaitCompletion polls the frame for newly mounted image components. Bounded
// and non-fatal.
func (m *MediaAttacher) awaitCompletion(ctx context.Context, before, added int) {
	deadline := time.Now().Add(m.completionBase + time.Duration(added)*m.completionPerImage)
	for {
		count, err := m.countImageComponents(ctx)
		if err == nil && count >= before+added {
			slog.Info("image upload complete", "images", count-before)
			return
		}
		if time.Now().After(deadline) {
			slog.Warn("image upload completion not observed in window",
				"expected", before+added, "observed", count)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.completionPoll):
		}
	}
}

func (m *MediaAttacher) countImageComponents(ctx context.Context) (int, error) {
	var res struct {
		Count int `json:"count"`
	}
	body := `var selectors = ` + cdp.JSJSON(m.handle.catalog.ImageComponentSelectors) + `;
var imgs = doc.querySelectorAll(selectors.join(","));
return JSON.stringify({ok:true,data:{count: imgs.length}});`
	if err := m.handle.eval(ctx, body, &res); err != nil {
		return 0, fmt.Errorf("count image components: %w", err)
	}
	return res.Count, nil
}
