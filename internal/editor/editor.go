// Package editor drives the iframe-embedded rich-text post editor: frame
// acquisition, content injection, media and place attachment, temp-save and
// two-channel save verification. Every DOM interaction goes through ordered
// fallback strategies because the editor's markup shifts between releases.
package editor

import (
	"context"
	"strings"

	"github.com/Fire-Hyun/naverPost-sub000/internal/cdp"
)

// Driver is the browser capability surface the editor needs. *cdp.Client
// satisfies it; tests substitute scripted fakes.
type Driver interface {
	Eval(ctx context.Context, js string, out any) error
	TypeText(ctx context.Context, text string) error
	InsertText(ctx context.Context, text string) error
	PressKey(ctx context.Context, key, code string, keyCode, modifiers int) error
	SetFileInputExpr(ctx context.Context, expr string, paths []string) error
}

// Handle is an acquired editor frame: a driver plus the JS expression that
// resolves the frame's document from the outer page. All editor JS runs in
// the outer page context and reaches the frame through this expression
// (same-origin contentDocument access).
type Handle struct {
	drv       Driver
	frameExpr string
	catalog   *Catalog
}

// Driver exposes the underlying browser driver.
func (h *Handle) Driver() Driver { return h.drv }

// Catalog exposes the selector catalog the handle was acquired with.
func (h *Handle) Catalog() *Catalog { return h.catalog }

// FrameExpr returns the JS expression resolving the editor frame document.
func (h *Handle) FrameExpr() string { return h.frameExpr }

// prelude binds `doc` (editor frame document) and fails the envelope early
// when the frame is gone, so callers see a clean EDITOR error instead of a
// null-dereference exception.
func (h *Handle) prelude() string {
	return `var doc = (` + h.frameExpr + `);
if (!doc) { return JSON.stringify({ok:false,error_code:"` + cdp.CodeEditor + `",error_message:"editor frame not reachable"}); }
`
}

// eval runs a JS body inside the envelope IIFE with the frame prelude bound.
func (h *Handle) eval(ctx context.Context, body string, out any) error {
	return h.drv.Eval(ctx, cdp.WrapEval(h.prelude()+body), out)
}

// evalPage runs a JS body against the outer page only, without the frame.
func (h *Handle) evalPage(ctx context.Context, body string, out any) error {
	return h.drv.Eval(ctx, cdp.WrapEval(body), out)
}

// jsFindByQuery builds a JS expression that resolves the first visible
// element in root matching the query. Text patterns match on textContent.
func jsFindByQuery(root string, q Query) string {
	var b strings.Builder
	b.WriteString(`(function(root){
var nodes = root.querySelectorAll(` + cdp.JSString(q.Selector) + `);
for (var i = 0; i < nodes.length; i++) {
  var el = nodes[i];
  var r = el.getBoundingClientRect();
  if (r.width === 0 && r.height === 0) continue;
`)
	if q.TextPattern != "" {
		b.WriteString(`  if ((el.textContent || "").indexOf(` + cdp.JSString(q.TextPattern) + `) === -1) continue;
`)
	}
	b.WriteString(`  return el;
}
return null;
})(` + root + `)`)
	return b.String()
}

// jsClickByQuery builds a JS body that clicks the first match of q in the
// given root expression and returns {clicked:bool} in the envelope.
func jsClickByQuery(root string, q Query) string {
	return `var el = ` + jsFindByQuery(root, q) + `;
if (!el) { return JSON.stringify({ok:true,data:{clicked:false}}); }
el.click();
return JSON.stringify({ok:true,data:{clicked:true}});`
}

type clickResult struct {
	Clicked bool `json:"clicked"`
}

// clickFirst tries queries in order against the frame document and reports
// whether any of them produced a click.
func (h *Handle) clickFirst(ctx context.Context, queries []Query) (bool, error) {
	for _, q := range queries {
		var res clickResult
		if err := h.eval(ctx, jsClickByQuery("doc", q), &res); err != nil {
			return false, err
		}
		if res.Clicked {
			return true, nil
		}
	}
	return false, nil
}

// clickFirstOnPage is clickFirst against the outer page document.
func (h *Handle) clickFirstOnPage(ctx context.Context, queries []Query) (bool, error) {
	for _, q := range queries {
		var res clickResult
		if err := h.evalPage(ctx, jsClickByQuery("document", q), &res); err != nil {
			return false, err
		}
		if res.Clicked {
			return true, nil
		}
	}
	return false, nil
}

// focusSelector focuses the first match of selector in the frame, collapsing
// the caret to the end of existing content. Returns false when nothing matches.
func (h *Handle) focusSelector(ctx context.Context, selector string) (bool, error) {
	var res struct {
		Focused bool `json:"focused"`
	}
	body := `var el = doc.querySelector(` + cdp.JSString(selector) + `);
if (!el) { return JSON.stringify({ok:true,data:{focused:false}}); }
// Trusted key events land on the page's focused element, so the frame's
// window must take focus before the element does.
if (doc.defaultView) doc.defaultView.focus();
el.focus();
if (el.isContentEditable || el.getAttribute("contenteditable") === "true") {
  var sel = doc.getSelection();
  var range = doc.createRange();
  range.selectNodeContents(el);
  range.collapse(false);
  sel.removeAllRanges();
  sel.addRange(range);
}
return JSON.stringify({ok:true,data:{focused:true}});`
	if err := h.eval(ctx, body, &res); err != nil {
		return false, err
	}
	return res.Focused, nil
}
