package editor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Fire-Hyun/naverPost-sub000/internal/cdp"
)

// frame resolution expressions. Each evaluates to the editor frame's document
// or null; the prelude in Handle turns null into a clean EDITOR error.

func frameExprByName(name string) string {
	return `(function(){
var f = document.getElementsByName(` + cdp.JSString(name) + `)[0];
try { return f && f.contentDocument ? f.contentDocument : null; } catch (e) { return null; }
})()`
}

func frameExprByURLFragment(fragment string) string {
	return `(function(){
var frames = document.querySelectorAll("iframe");
for (var i = 0; i < frames.length; i++) {
  var src = frames[i].src || "";
  if (src.indexOf(` + cdp.JSString(fragment) + `) === -1) continue;
  try { if (frames[i].contentDocument) return frames[i].contentDocument; } catch (e) {}
}
return null;
})()`
}

// Locator acquires the editor frame. The editor mounts asynchronously after
// page load, so every strategy polls rather than checking once.
type Locator struct {
	catalog      *Catalog
	pollInterval time.Duration
	shortWindow  time.Duration
	longWindow   time.Duration
}

// NewLocator builds a frame locator over the given catalog.
func NewLocator(catalog *Catalog) *Locator {
	return &Locator{
		catalog:      catalog,
		pollInterval: 400 * time.Millisecond,
		shortWindow:  6 * time.Second,
		longWindow:   15 * time.Second,
	}
}

// Acquire resolves the editor frame and confirms its editing surface has
// mounted. Strategies: frame by well-known name, frame by URL fragment, then
// one extended-wait rescan of both for slow loads.
func (l *Locator) Acquire(ctx context.Context, drv Driver) (*Handle, error) {
	var handle *Handle

	strategies := []Strategy{
		{Name: "frame-by-name", Attempt: func(ctx context.Context) (bool, error) {
			h, err := l.pollFrames(ctx, drv, l.nameExprs(), l.shortWindow)
			handle = h
			return h != nil, err
		}},
		{Name: "frame-by-url-fragment", Attempt: func(ctx context.Context) (bool, error) {
			h, err := l.pollFrames(ctx, drv, l.fragmentExprs(), l.shortWindow)
			handle = h
			return h != nil, err
		}},
		{Name: "extended-wait-rescan", Attempt: func(ctx context.Context) (bool, error) {
			exprs := append(l.nameExprs(), l.fragmentExprs()...)
			h, err := l.pollFrames(ctx, drv, exprs, l.longWindow)
			handle = h
			return h != nil, err
		}},
	}

	if err := runStrategies(ctx, "frame acquisition", strategies); err != nil {
		return nil, err
	}
	return handle, nil
}

func (l *Locator) nameExprs() []string {
	exprs := make([]string, 0, len(l.catalog.FrameNames))
	for _, name := range l.catalog.FrameNames {
		exprs = append(exprs, frameExprByName(name))
	}
	return exprs
}

func (l *Locator) fragmentExprs() []string {
	exprs := make([]string, 0, len(l.catalog.FrameURLFragments))
	for _, frag := range l.catalog.FrameURLFragments {
		exprs = append(exprs, frameExprByURLFragment(frag))
	}
	return exprs
}

// pollFrames cycles through candidate frame expressions until one resolves a
// document with a mounted editing surface or the window elapses.
func (l *Locator) pollFrames(ctx context.Context, drv Driver, exprs []string, window time.Duration) (*Handle, error) {
	deadline := time.Now().Add(window)
	for {
		for _, expr := range exprs {
			h := &Handle{drv: drv, frameExpr: expr, catalog: l.catalog}
			ready, err := h.surfaceReady(ctx)
			if err != nil {
				slog.Debug("frame probe failed", "error", err)
				continue
			}
			if ready {
				return h, nil
			}
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.pollInterval):
		}
	}
}

// surfaceReady reports whether the frame document exists and carries at least
// one contenteditable node, i.e. the editor has finished mounting.
func (h *Handle) surfaceReady(ctx context.Context) (bool, error) {
	var res struct {
		Ready bool `json:"ready"`
	}
	body := `var editable = doc.querySelector("[contenteditable=true], [contenteditable='']");
return JSON.stringify({ok:true,data:{ready: editable !== null}});`
	if err := h.eval(ctx, body, &res); err != nil {
		// The prelude reports an EDITOR error while the frame is absent;
		// that is a normal polling miss, not a failure.
		var coded *cdp.CodedError
		if errors.As(err, &coded) && coded.Code == cdp.CodeEditor {
			return false, nil
		}
		return false, err
	}
	return res.Ready, nil
}
