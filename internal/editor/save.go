package editor

import (
	"context"
	"log/slog"
	"time"

	"github.com/Fire-Hyun/naverPost-sub000/internal/cdp"
)

// SaveCommitter triggers the editor's temporary-save action.
type SaveCommitter struct {
	handle *Handle
}

// NewSaveCommitter builds a committer over an acquired frame.
func NewSaveCommitter(handle *Handle) *SaveCommitter {
	return &SaveCommitter{handle: handle}
}

// Commit clicks temp-save. Overlays are force-hidden first because a dim
// layer left by a prior stage would swallow the click without an error.
func (s *SaveCommitter) Commit(ctx context.Context) error {
	h := s.handle
	s.hideOverlays(ctx)

	strategies := []Strategy{
		{Name: "save-button-in-frame", Attempt: func(ctx context.Context) (bool, error) {
			return h.clickFirst(ctx, h.catalog.SaveButtonQueries)
		}},
		{Name: "save-button-forced", Attempt: func(ctx context.Context) (bool, error) {
			return s.forcedClick(ctx)
		}},
		{Name: "save-button-rescan", Attempt: func(ctx context.Context) (bool, error) {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(2 * time.Second):
			}
			s.hideOverlays(ctx)
			return h.clickFirst(ctx, h.catalog.SaveButtonQueries)
		}},
		{Name: "save-shortcut", Attempt: func(ctx context.Context) (bool, error) {
			// Ctrl+S maps to temp-save in the editor; modifiers bit 2 = Ctrl.
			if err := h.drv.PressKey(ctx, "s", "KeyS", 83, 2); err != nil {
				return false, err
			}
			return true, nil
		}},
		{Name: "save-button-on-page", Attempt: func(ctx context.Context) (bool, error) {
			return h.clickFirstOnPage(ctx, h.catalog.SaveButtonQueries)
		}},
	}
	return runStrategies(ctx, "save commit", strategies)
}

func (s *SaveCommitter) hideOverlays(ctx context.Context) {
	h := s.handle
	body := `var selectors = ` + cdp.JSJSON(h.catalog.OverlaySelectors) + `;
var n = 0;
function hide(root) {
  for (var i = 0; i < selectors.length; i++) {
    var els = root.querySelectorAll(selectors[i]);
    for (var j = 0; j < els.length; j++) {
      if (els[j].style.display !== "none") { els[j].style.display = "none"; n++; }
    }
  }
}
hide(doc);
hide(document);
return JSON.stringify({ok:true,data:{hidden:n}});`
	var res struct {
		Hidden int `json:"hidden"`
	}
	if err := h.eval(ctx, body, &res); err != nil {
		slog.Debug("overlay hide before save failed", "error", err)
		return
	}
	if res.Hidden > 0 {
		slog.Info("overlays hidden before save", "count", res.Hidden)
	}
}

// forcedClick dispatches a synthetic MouseEvent on the first save-button
// match, bypassing hit testing for controls a transparent layer still covers.
func (s *SaveCommitter) forcedClick(ctx context.Context) (bool, error) {
	h := s.handle
	for _, q := range h.catalog.SaveButtonQueries {
		var res clickResult
		body := `var el = ` + jsFindByQuery("doc", q) + `;
if (!el) { return JSON.stringify({ok:true,data:{clicked:false}}); }
var ev = new MouseEvent("click", {bubbles: true, cancelable: true, view: doc.defaultView});
el.dispatchEvent(ev);
return JSON.stringify({ok:true,data:{clicked:true}});`
		if err := h.eval(ctx, body, &res); err != nil {
			return false, err
		}
		if res.Clicked {
			return true, nil
		}
	}
	return false, nil
}
