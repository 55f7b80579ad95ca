package editor

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Fire-Hyun/naverPost-sub000/internal/cdp"
	"github.com/PuerkitoBio/goquery"
)

// VerifiedVia names the verification channel(s) that confirmed the save.
type VerifiedVia string

const (
	VerifiedBoth      VerifiedVia = "both"
	VerifiedToast     VerifiedVia = "toast"
	VerifiedDraftList VerifiedVia = "draft_list"
	VerifiedNone      VerifiedVia = "none"
	// VerifiedSkipped marks attempts that failed before verification ran.
	VerifiedSkipped VerifiedVia = "skipped"
)

// VerificationResult is the outcome of two-channel save verification.
type VerificationResult struct {
	Success      bool        `json:"success"`
	VerifiedVia  VerifiedVia `json:"verified_via"`
	ToastMessage string      `json:"toast_message,omitempty"`
	DraftFound   bool        `json:"draft_found"`
	DraftTitle   string      `json:"draft_title,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// Verifier confirms a temp-save through two independent channels: the
// transient toast notification and the persistent draft list. Either channel
// alone confirms; agreement upgrades confidence, disagreement of both fails.
type Verifier struct {
	handle           *Handle
	toastPolls       int
	pollInterval     time.Duration
	panelRetries     int
	panelWait        time.Duration
	panelSettle      time.Duration
	savedSignalPolls int
}

// NewVerifier builds a verifier over an acquired frame.
func NewVerifier(handle *Handle) *Verifier {
	return &Verifier{
		handle:           handle,
		toastPolls:       8,
		pollInterval:     500 * time.Millisecond,
		panelRetries:     3,
		panelWait:        time.Second,
		panelSettle:      800 * time.Millisecond,
		savedSignalPolls: 6,
	}
}

// Verify runs both channels concurrently and joins their outcomes. The toast
// window is short (toasts vanish in seconds) while the draft list tolerates a
// slower panel open, so neither channel waits on the other.
func (v *Verifier) Verify(ctx context.Context, expectedTitle string) VerificationResult {
	var (
		wg         sync.WaitGroup
		toastOK    bool
		toastMsg   string
		toastErr   string
		draftOK    bool
		draftTitle string
		draftErr   string
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		toastOK, toastMsg, toastErr = v.verifyToast(ctx)
	}()
	go func() {
		defer wg.Done()
		draftOK, draftTitle, draftErr = v.verifyDraftList(ctx, expectedTitle)
	}()
	wg.Wait()

	res := VerificationResult{
		ToastMessage: toastMsg,
		DraftFound:   draftOK,
		DraftTitle:   draftTitle,
	}
	switch {
	case toastOK && draftOK:
		res.Success = true
		res.VerifiedVia = VerifiedBoth
	case draftOK:
		res.Success = true
		res.VerifiedVia = VerifiedDraftList
	case toastOK:
		res.Success = true
		res.VerifiedVia = VerifiedToast
	default:
		res.VerifiedVia = VerifiedNone
		res.ErrorMessage = joinNonEmpty(toastErr, draftErr)
	}

	slog.Info("save verification joined",
		"verified_via", res.VerifiedVia,
		"toast_ok", toastOK,
		"draft_ok", draftOK)
	return res
}

// verifyToast polls the notification regions for a save toast. A failure
// phrase is a hard negative; the window expiring without any toast is a soft
// negative (toasts are easy to miss).
func (v *Verifier) verifyToast(ctx context.Context) (bool, string, string) {
	h := v.handle
	for i := 0; i < v.toastPolls; i++ {
		texts, err := v.collectToastTexts(ctx)
		if err != nil {
			slog.Debug("toast poll failed", "error", err)
		}
		for _, text := range texts {
			if phrase := containsAny(text, h.catalog.FailurePhrases); phrase != "" {
				return false, text, "save toast reported failure: " + text
			}
			if containsAny(text, h.catalog.SuccessPhrases) != "" {
				return true, text, ""
			}
		}
		select {
		case <-ctx.Done():
			return false, "", "toast polling canceled"
		case <-time.After(v.pollInterval):
		}
	}
	return false, "", "no save toast observed"
}

func (v *Verifier) collectToastTexts(ctx context.Context) ([]string, error) {
	h := v.handle
	var texts []string
	body := `var selectors = ` + cdp.JSJSON(h.catalog.ToastSelectors) + `;
var out = [];
function collect(root) {
  if (!root) return;
  for (var i = 0; i < selectors.length; i++) {
    var els = root.querySelectorAll(selectors[i]);
    for (var j = 0; j < els.length; j++) {
      var t = (els[j].textContent || "").trim();
      if (t) out.push(t);
    }
  }
}
collect(doc);
collect(document);
return JSON.stringify({ok:true,data:out});`
	if err := h.eval(ctx, body, &texts); err != nil {
		return nil, err
	}
	return texts, nil
}

// verifyDraftList waits for the editor's own saved indicator, then opens the
// saved-drafts panel and looks for the expected title. The panel's open
// control doubles as the save button in some builds, so opening may need more
// than one attempt.
func (v *Verifier) verifyDraftList(ctx context.Context, expectedTitle string) (bool, string, string) {
	if !v.waitForSavedSignal(ctx) {
		slog.Debug("saved signal not observed, opening panel anyway")
	}
	for attempt := 1; attempt <= v.panelRetries; attempt++ {
		titles, err := v.readDraftTitles(ctx)
		if err != nil {
			slog.Debug("draft panel read failed", "attempt", attempt, "error", err)
		} else if len(titles) > 0 {
			if matched, ok := MatchDraftTitle(expectedTitle, titles); ok {
				return true, matched, ""
			}
			return false, "", "draft list open but title not present"
		}
		select {
		case <-ctx.Done():
			return false, "", "draft list polling canceled"
		case <-time.After(v.panelWait):
		}
	}
	return false, "", "draft list did not open"
}

// waitForSavedSignal polls for the editor's saved caption (the save control's
// "saved"/timestamp text) so the panel is not opened while the save request is
// still in flight. Absence is soft: the panel loop is its own bounded retry.
func (v *Verifier) waitForSavedSignal(ctx context.Context) bool {
	h := v.handle
	body := `var signals = ` + cdp.JSJSON(h.catalog.SavedSignalTexts) + `;
function scan(root) {
  if (!root || !root.body) return false;
  var text = root.body.textContent || "";
  for (var i = 0; i < signals.length; i++) {
    if (text.indexOf(signals[i]) !== -1) return true;
  }
  return false;
}
return JSON.stringify({ok:true,data:{found: scan(doc) || scan(document)}});`
	for i := 0; i < v.savedSignalPolls; i++ {
		var res struct {
			Found bool `json:"found"`
		}
		if err := h.eval(ctx, body, &res); err != nil {
			slog.Debug("saved signal probe failed", "error", err)
		} else if res.Found {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(v.pollInterval):
		}
	}
	return false
}

// readDraftTitles clicks the panel open control, captures the panel HTML and
// parses item titles out of it. Chrome labels (delete, close, ...) are
// excluded so panel buttons never masquerade as draft titles.
func (v *Verifier) readDraftTitles(ctx context.Context) ([]string, error) {
	h := v.handle
	if _, err := h.clickFirst(ctx, h.catalog.DraftPanelQueries); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(v.panelSettle):
	}

	var html string
	body := `var selectors = ` + cdp.JSJSON(h.catalog.DraftItemSelector) + `;
for (var i = 0; i < selectors.length; i++) {
  var items = doc.querySelectorAll(selectors[i]);
  if (items.length === 0) continue;
  var parent = items[0].parentElement;
  return JSON.stringify({ok:true,data: parent ? parent.outerHTML : ""});
}
return JSON.stringify({ok:true,data:""});`
	if err := h.eval(ctx, body, &html); err != nil {
		return nil, err
	}
	if html == "" {
		return nil, nil
	}
	count, titles, err := v.parseDraftTitles(html)
	if err != nil {
		return nil, err
	}
	slog.Debug("draft panel parsed", "items", count, "titles", len(titles))
	return titles, nil
}

// parseDraftTitles counts the panel's draft rows and extracts their titles.
// Pure chrome rows (delete-all, close, ...) are not drafts and count for
// nothing; a draft row whose text is only trailing chrome labels still counts
// as an item but yields no title.
func (v *Verifier) parseDraftTitles(html string) (int, []string, error) {
	sel, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, nil, cdp.NewError(cdp.CodeSaveVerify, "parse draft panel html", err)
	}
	count := 0
	var titles []string
	sel.Find("li").Each(func(_ int, item *goquery.Selection) {
		text := strings.TrimSpace(item.Text())
		if text == "" || isChromeLabel(text, v.handle.catalog.ChromeLabels) {
			return
		}
		count++
		// Strip the trailing chrome labels the editor appends to each row.
		for _, label := range v.handle.catalog.ChromeLabels {
			text = strings.TrimSpace(strings.TrimSuffix(text, label))
		}
		if text == "" {
			return
		}
		titles = append(titles, text)
	})
	return count, titles, nil
}

func isChromeLabel(text string, labels []string) bool {
	for _, l := range labels {
		if text == l {
			return true
		}
	}
	return false
}

func containsAny(text string, phrases []string) string {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(lower, strings.ToLower(p)) {
			return p
		}
	}
	return ""
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "; ")
}
