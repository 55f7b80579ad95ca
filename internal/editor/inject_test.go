package editor

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Fire-Hyun/naverPost-sub000/internal/post"
)

func TestInputTitleInsertsAndConfirms(t *testing.T) {
	drv := &fakeDriver{scripts: []evalScript{
		{substr: "el.textContent || el.value", data: map[string]string{"text": "제주도 여행 후기"}},
		{substr: "el.focus()", data: map[string]bool{"focused": true}},
	}}
	in := NewInjector(newTestHandle(drv), "")

	if err := in.InputTitle(context.Background(), "제주도 여행 후기"); err != nil {
		t.Fatalf("InputTitle error: %v", err)
	}
	if len(drv.inserted) == 0 || drv.inserted[0] != "제주도 여행 후기" {
		t.Fatalf("inserted = %v, want the title as first entry", drv.inserted)
	}
	if len(drv.typed) != 0 {
		t.Fatalf("typed = %v, want none when the insert fast path confirms", drv.typed)
	}
}

// insertBlindDriver confirms title text only after per-character typing, the
// behavior of editor builds that commit content on key events alone.
type insertBlindDriver struct {
	fakeDriver
}

func (d *insertBlindDriver) Eval(ctx context.Context, js string, out any) error {
	if strings.Contains(js, "el.textContent || el.value") {
		text := ""
		if len(d.typed) > 0 {
			text = d.typed[0]
		}
		b, _ := json.Marshal(map[string]any{"text": text})
		return json.Unmarshal(b, out)
	}
	return d.fakeDriver.Eval(ctx, js, out)
}

func TestInputTitleFallsBackToTypingWhenInsertNotReflected(t *testing.T) {
	drv := &insertBlindDriver{fakeDriver: fakeDriver{scripts: []evalScript{
		{substr: "el.focus()", data: map[string]bool{"focused": true}},
	}}}
	in := NewInjector(newTestHandle(drv), "")

	if err := in.InputTitle(context.Background(), "제주도 여행 후기"); err != nil {
		t.Fatalf("InputTitle error: %v", err)
	}
	if len(drv.inserted) != 1 {
		t.Fatalf("inserted = %v, want one attempted insert before the fallback", drv.inserted)
	}
	if len(drv.typed) != 1 || drv.typed[0] != "제주도 여행 후기" {
		t.Fatalf("typed = %v, want the title typed by the fallback", drv.typed)
	}
}

func TestInputTitleFailsWhenConfirmationMismatches(t *testing.T) {
	drv := &fakeDriver{scripts: []evalScript{
		{substr: "el.textContent || el.value", data: map[string]string{"text": "완전히 다른 내용"}},
		{substr: "el.focus()", data: map[string]bool{"focused": true}},
	}}
	in := NewInjector(newTestHandle(drv), "")

	if err := in.InputTitle(context.Background(), "기대했던 제목입니다"); err == nil {
		t.Fatal("InputTitle = nil, want error when no selector confirms")
	}
}

func TestInputBodyTypesLineByLine(t *testing.T) {
	drv := &fakeDriver{scripts: []evalScript{
		{substr: "doc.body.textContent", data: map[string]bool{"found": true}},
		{substr: "el.focus()", data: map[string]bool{"focused": true}},
	}}
	in := NewInjector(newTestHandle(drv), "")

	draft := post.Draft{Title: "t", Body: "첫 번째 줄\n두 번째 줄\n\n네 번째 줄"}
	if err := in.InputBody(context.Background(), draft); err != nil {
		t.Fatalf("InputBody error: %v", err)
	}

	wantLines := []string{"첫 번째 줄", "두 번째 줄", "네 번째 줄"}
	if len(drv.typed) != len(wantLines) {
		t.Fatalf("typed = %v, want %v", drv.typed, wantLines)
	}
	for i := range wantLines {
		if drv.typed[i] != wantLines[i] {
			t.Fatalf("typed[%d] = %q, want %q", i, drv.typed[i], wantLines[i])
		}
	}

	// Enter from title + 3 line breaks between 4 lines.
	enters := 0
	for _, k := range drv.keys {
		if k == "Enter" {
			enters++
		}
	}
	if enters != 4 {
		t.Fatalf("enter presses = %d, want 4", enters)
	}
}

func TestDismissPopupsIsIdempotent(t *testing.T) {
	drv := &fakeDriver{scripts: []evalScript{
		{substr: "overlays", data: map[string]int{"hidden": 0}},
		{substr: "el.click()", data: map[string]bool{"clicked": false}},
	}}
	in := NewInjector(newTestHandle(drv), "")

	for i := 0; i < 2; i++ {
		if err := in.DismissPopups(context.Background()); err != nil {
			t.Fatalf("DismissPopups pass %d error: %v", i+1, err)
		}
	}
}
