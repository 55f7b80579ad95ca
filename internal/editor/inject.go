package editor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Fire-Hyun/naverPost-sub000/internal/cdp"
	"github.com/Fire-Hyun/naverPost-sub000/internal/post"
)

// Injector writes a draft's title and body into the acquired editor frame.
type Injector struct {
	handle   *Handle
	debugDir string
}

// NewInjector builds an injector. debugDir receives editable-node dumps when
// body injection exhausts all strategies; empty disables the dump.
func NewInjector(handle *Handle, debugDir string) *Injector {
	return &Injector{handle: handle, debugDir: debugDir}
}

// DismissPopups closes tooltips, help layers and dim overlays that would
// swallow clicks. Safe to call when nothing is showing; callers run it before
// every injection stage.
func (in *Injector) DismissPopups(ctx context.Context) error {
	h := in.handle
	closed := 0
	for _, q := range h.catalog.PopupCloseQuery {
		var res clickResult
		if err := h.eval(ctx, jsClickByQuery("doc", q), &res); err != nil {
			slog.Debug("popup close probe failed", "selector", q.Selector, "error", err)
			continue
		}
		if res.Clicked {
			closed++
		}
	}

	var hidden struct {
		Hidden int `json:"hidden"`
	}
	body := `var n = 0;
var selectors = ` + cdp.JSJSON(h.catalog.OverlaySelectors) + `;
for (var s = 0; s < selectors.length; s++) {
  var overlays = doc.querySelectorAll(selectors[s]);
  for (var i = 0; i < overlays.length; i++) {
    if (overlays[i].style.display !== "none") { overlays[i].style.display = "none"; n++; }
  }
}
return JSON.stringify({ok:true,data:{hidden:n}});`
	if err := h.eval(ctx, body, &hidden); err != nil {
		slog.Debug("overlay hide failed", "error", err)
	}

	if closed > 0 || hidden.Hidden > 0 {
		slog.Info("editor popups dismissed", "closed", closed, "overlays_hidden", hidden.Hidden)
	}
	return nil
}

// InputTitle types the title and confirms the editor accepted it by reading
// back the title region. Confirmation checks a short prefix rather than the
// whole string because the editor may decorate or truncate long titles.
func (in *Injector) InputTitle(ctx context.Context, title string) error {
	h := in.handle

	strategies := make([]Strategy, 0, len(h.catalog.TitleSelectors))
	for _, sel := range h.catalog.TitleSelectors {
		selector := sel
		strategies = append(strategies, Strategy{
			Name: "title " + selector,
			Attempt: func(ctx context.Context) (bool, error) {
				focused, err := h.focusSelector(ctx, selector)
				if err != nil || !focused {
					return false, err
				}
				// Insert first: one CDP call. Editor builds that only commit
				// text on key events get the per-character fallback.
				for _, write := range []func(context.Context, string) error{
					h.drv.InsertText,
					h.drv.TypeText,
				} {
					if err := in.clearFocused(ctx); err != nil {
						return false, err
					}
					if err := write(ctx, title); err != nil {
						return false, err
					}
					ok, err := in.confirmTitle(ctx, selector, title)
					if err != nil {
						return false, err
					}
					if ok {
						return true, nil
					}
				}
				return false, nil
			},
		})
	}
	return runStrategies(ctx, "title injection", strategies)
}

// clearFocused removes existing content from the focused editable via
// select-all + delete key events, so retries never append to stale text.
func (in *Injector) clearFocused(ctx context.Context) error {
	if err := in.handle.drv.PressKey(ctx, "a", "KeyA", 65, 2); err != nil {
		return err
	}
	return in.handle.drv.PressKey(ctx, "Delete", "Delete", 46, 0)
}

func (in *Injector) confirmTitle(ctx context.Context, selector, title string) (bool, error) {
	h := in.handle
	var res struct {
		Text string `json:"text"`
	}
	body := `var el = doc.querySelector(` + cdp.JSString(selector) + `);
var text = el ? (el.textContent || el.value || "") : "";
return JSON.stringify({ok:true,data:{text:text}});`
	if err := h.eval(ctx, body, &res); err != nil {
		return false, err
	}
	prefix := titlePrefix(title)
	if !strings.Contains(res.Text, prefix) {
		slog.Warn("title confirmation mismatch", "want_prefix", prefix, "got", res.Text)
		return false, nil
	}
	return true, nil
}

// titlePrefix returns the first 8 runes of the title (or all of it when
// shorter) for read-back confirmation.
func titlePrefix(title string) string {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) <= 8 {
		return title
	}
	runes := []rune(title)
	return string(runes[:8])
}

// InputBody moves the caret into the body area and types the draft body line
// by line. The primary path presses Enter from the end of the title, which the
// editor treats as "advance to body"; the fallback focuses a body editable
// directly, excluding nodes inside the title component.
func (in *Injector) InputBody(ctx context.Context, draft post.Draft) error {
	h := in.handle

	strategies := []Strategy{
		{Name: "enter-from-title", Attempt: func(ctx context.Context) (bool, error) {
			focused := false
			for _, sel := range h.catalog.TitleSelectors {
				ok, err := h.focusSelector(ctx, sel)
				if err == nil && ok {
					focused = true
					break
				}
			}
			if !focused {
				return false, nil
			}
			if err := h.drv.PressKey(ctx, "Enter", "Enter", 13, 0); err != nil {
				return false, err
			}
			if err := in.typeLines(ctx, draft.BodyLines()); err != nil {
				return false, err
			}
			return in.confirmBody(ctx, draft)
		}},
		{Name: "focus-body-editable", Attempt: func(ctx context.Context) (bool, error) {
			ok, err := in.focusBodyEditable(ctx)
			if err != nil || !ok {
				return false, err
			}
			if err := in.typeLines(ctx, draft.BodyLines()); err != nil {
				return false, err
			}
			return in.confirmBody(ctx, draft)
		}},
	}

	err := runStrategies(ctx, "body injection", strategies)
	if err != nil && in.debugDir != "" {
		if path, dumpErr := in.DumpEditableNodes(ctx); dumpErr == nil {
			slog.Info("editable node dump written", "path", path)
		} else {
			slog.Warn("editable node dump failed", "error", dumpErr)
		}
	}
	return err
}

func (in *Injector) typeLines(ctx context.Context, lines []string) error {
	for i, line := range lines {
		if i > 0 {
			if err := in.handle.drv.PressKey(ctx, "Enter", "Enter", 13, 0); err != nil {
				return fmt.Errorf("line break before line %d: %w", i+1, err)
			}
		}
		if line == "" {
			continue
		}
		if err := in.handle.drv.TypeText(ctx, line); err != nil {
			return fmt.Errorf("type line %d: %w", i+1, err)
		}
		// Let the editor's input handlers settle between lines.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil
}

// focusBodyEditable focuses the first visible editable node that is not a
// descendant of the title component, so body text can never land in the title.
func (in *Injector) focusBodyEditable(ctx context.Context) (bool, error) {
	h := in.handle
	var res struct {
		Focused bool `json:"focused"`
	}
	body := `var titleSelectors = ` + cdp.JSJSON(h.catalog.TitleSelectors) + `;
function inTitle(el) {
  for (var i = 0; i < titleSelectors.length; i++) {
    var roots = doc.querySelectorAll(titleSelectors[i]);
    for (var j = 0; j < roots.length; j++) {
      if (roots[j] === el || roots[j].contains(el) || el.contains(roots[j])) return true;
    }
  }
  return false;
}
var bodySelectors = ` + cdp.JSJSON(h.catalog.BodySelectors) + `;
for (var s = 0; s < bodySelectors.length; s++) {
  var nodes = doc.querySelectorAll(bodySelectors[s]);
  for (var i = 0; i < nodes.length; i++) {
    var el = nodes[i];
    var r = el.getBoundingClientRect();
    if (r.width === 0 && r.height === 0) continue;
    if (inTitle(el)) continue;
    if (doc.defaultView) doc.defaultView.focus();
    el.focus();
    var sel = doc.getSelection();
    var range = doc.createRange();
    range.selectNodeContents(el);
    range.collapse(false);
    sel.removeAllRanges();
    sel.addRange(range);
    return JSON.stringify({ok:true,data:{focused:true}});
  }
}
return JSON.stringify({ok:true,data:{focused:false}});`
	if err := h.eval(ctx, body, &res); err != nil {
		return false, err
	}
	return res.Focused, nil
}

// confirmBody spot-checks that the first non-empty body line made it into the
// frame. A full-text diff is pointless: the editor rewrites whitespace.
func (in *Injector) confirmBody(ctx context.Context, draft post.Draft) (bool, error) {
	var probe string
	for _, line := range draft.BodyLines() {
		if s := strings.TrimSpace(line); s != "" {
			probe = titlePrefix(s)
			break
		}
	}
	if probe == "" {
		return true, nil
	}
	h := in.handle
	var res struct {
		Found bool `json:"found"`
	}
	body := `var probe = ` + cdp.JSString(probe) + `;
var found = (doc.body.textContent || "").indexOf(probe) !== -1;
return JSON.stringify({ok:true,data:{found:found}});`
	if err := h.eval(ctx, body, &res); err != nil {
		return false, err
	}
	if !res.Found {
		slog.Warn("body confirmation probe not found", "probe", probe)
	}
	return res.Found, nil
}

// ApplyTags types tags into the tag input when one exists. Best-effort: a
// missing tag UI is not an error.
func (in *Injector) ApplyTags(ctx context.Context, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	h := in.handle
	for _, sel := range h.catalog.TagInputSelectors {
		focused, err := h.focusSelector(ctx, sel)
		if err != nil || !focused {
			continue
		}
		for _, tag := range tags {
			if err := h.drv.TypeText(ctx, strings.TrimSpace(tag)); err != nil {
				return err
			}
			if err := h.drv.PressKey(ctx, "Enter", "Enter", 13, 0); err != nil {
				return err
			}
		}
		slog.Info("tags applied", "count", len(tags))
		return nil
	}
	slog.Debug("no tag input found, skipping tags")
	return nil
}

// ApplyVisibility selects the visibility radio when the control exists.
// Best-effort like ApplyTags.
func (in *Injector) ApplyVisibility(ctx context.Context, v post.Visibility) error {
	if v == "" {
		return nil
	}
	h := in.handle
	selector := fmt.Sprintf(h.catalog.VisibilityRadioFormat, string(v))
	var res clickResult
	if err := h.eval(ctx, jsClickByQuery("doc", Query{Selector: selector}), &res); err != nil {
		return err
	}
	if !res.Clicked {
		slog.Debug("no visibility control found, skipping", "visibility", v)
	}
	return nil
}
