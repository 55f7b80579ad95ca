package editor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestMediaAttacher(drv Driver) *MediaAttacher {
	m := NewMediaAttacher(newTestHandle(drv))
	m.completionBase = time.Millisecond
	m.completionPerImage = time.Millisecond
	m.completionPoll = time.Millisecond
	return m
}

func writeTestImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.png")
	if err := os.WriteFile(path, []byte{0x89, 0x50, 0x4e, 0x47}, 0o644); err != nil {
		t.Fatalf("write test image: %v", err)
	}
	return path
}

func TestMediaAttachSubmitsFiles(t *testing.T) {
	drv := &fakeDriver{scripts: []evalScript{
		{substr: "selectors.join(", data: map[string]int{"count": 1}},
		{substr: "el.click()", data: map[string]bool{"clicked": true}},
	}}
	img := writeTestImage(t)

	if err := newTestMediaAttacher(drv).Attach(context.Background(), []string{img}); err != nil {
		t.Fatalf("Attach error: %v", err)
	}
	if len(drv.files) != 1 {
		t.Fatalf("file submissions = %d, want 1", len(drv.files))
	}
	if len(drv.files[0]) != 1 || !filepath.IsAbs(drv.files[0][0]) {
		t.Fatalf("submitted paths = %v, want one absolute path", drv.files[0])
	}
}

func TestMediaAttachRejectsMissingImage(t *testing.T) {
	drv := &fakeDriver{}
	missing := filepath.Join(t.TempDir(), "nope.png")

	if err := newTestMediaAttacher(drv).Attach(context.Background(), []string{missing}); err == nil {
		t.Fatal("Attach = nil, want validation error for unreadable image")
	}
	if len(drv.files) != 0 {
		t.Fatalf("file submissions = %d, want 0", len(drv.files))
	}
}

func TestMediaAttachNoImagesIsNoOp(t *testing.T) {
	drv := &fakeDriver{}
	if err := newTestMediaAttacher(drv).Attach(context.Background(), nil); err != nil {
		t.Fatalf("Attach error: %v", err)
	}
}

func TestImageComponentCountUsesCatalogSelectors(t *testing.T) {
	drv := &fakeDriver{scripts: []evalScript{
		{substr: "selectors.join(", data: map[string]int{"count": 3}},
	}}
	m := newTestMediaAttacher(drv)

	count, err := m.countImageComponents(context.Background())
	if err != nil {
		t.Fatalf("countImageComponents error: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
}
