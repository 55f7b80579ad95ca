package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Fire-Hyun/naverPost-sub000/internal/cdp"
)

// editableNode describes one editable element found in the frame, captured
// when injection fails so selector drift can be diagnosed offline.
type editableNode struct {
	Tag       string `json:"tag"`
	Selector  string `json:"selector"`
	Visible   bool   `json:"visible"`
	InTitle   bool   `json:"in_title"`
	TextStart string `json:"text_start"`
}

// DumpEditableNodes writes a JSON inventory of every editable node in the
// frame to the injector's debug directory and returns the file path.
func (in *Injector) DumpEditableNodes(ctx context.Context) (string, error) {
	h := in.handle
	var nodes []editableNode
	body := `var titleSelectors = ` + cdp.JSJSON(h.catalog.TitleSelectors) + `;
function inTitle(el) {
  for (var i = 0; i < titleSelectors.length; i++) {
    var roots = doc.querySelectorAll(titleSelectors[i]);
    for (var j = 0; j < roots.length; j++) {
      if (roots[j] === el || roots[j].contains(el)) return true;
    }
  }
  return false;
}
function pathOf(el) {
  var parts = [];
  while (el && el.nodeType === 1 && parts.length < 6) {
    var part = el.tagName.toLowerCase();
    if (el.id) { parts.unshift(part + "#" + el.id); break; }
    if (el.className && typeof el.className === "string") {
      var cls = el.className.trim().split(/\s+/)[0];
      if (cls) part += "." + cls;
    }
    parts.unshift(part);
    el = el.parentElement;
  }
  return parts.join(" > ");
}
var out = [];
var nodes = doc.querySelectorAll("[contenteditable], textarea, input[type=text]");
for (var i = 0; i < nodes.length; i++) {
  var el = nodes[i];
  var r = el.getBoundingClientRect();
  var text = (el.textContent || el.value || "").slice(0, 40);
  out.push({
    tag: el.tagName.toLowerCase(),
    selector: pathOf(el),
    visible: r.width > 0 || r.height > 0,
    in_title: inTitle(el),
    text_start: text
  });
}
return JSON.stringify({ok:true,data:out});`
	if err := h.eval(ctx, body, &nodes); err != nil {
		return "", err
	}

	if err := os.MkdirAll(in.debugDir, 0o755); err != nil {
		return "", fmt.Errorf("create debug dir: %w", err)
	}
	path := filepath.Join(in.debugDir, fmt.Sprintf("editable_nodes_%s.json", time.Now().Format("20060102_150405")))
	data, err := json.MarshalIndent(nodes, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write dump: %w", err)
	}
	return path, nil
}
