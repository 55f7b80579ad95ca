package editor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCatalogDefaults(t *testing.T) {
	cat, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog error: %v", err)
	}
	if len(cat.TitleSelectors) == 0 || len(cat.SaveButtonQueries) == 0 {
		t.Fatal("default catalog is missing core selector lists")
	}
	if len(cat.ImageComponentSelectors) == 0 || len(cat.SavedSignalTexts) == 0 {
		t.Fatal("default catalog is missing media/verification lists")
	}
}

func TestLoadCatalogOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selectors.yaml")
	override := `title_selectors:
  - ".new-title-field"
frame_names:
  - "rewrittenFrame"
`
	if err := os.WriteFile(path, []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	cat, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog error: %v", err)
	}
	if len(cat.TitleSelectors) != 1 || cat.TitleSelectors[0] != ".new-title-field" {
		t.Fatalf("TitleSelectors = %v, want override applied", cat.TitleSelectors)
	}
	if len(cat.FrameNames) != 1 || cat.FrameNames[0] != "rewrittenFrame" {
		t.Fatalf("FrameNames = %v, want override applied", cat.FrameNames)
	}
	// Untouched lists keep their built-in values.
	if len(cat.BodySelectors) == 0 {
		t.Fatal("BodySelectors lost its defaults on partial override")
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	if _, err := LoadCatalog("/nonexistent/selectors.yaml"); err == nil {
		t.Fatal("LoadCatalog = nil, want error for missing file")
	}
}
