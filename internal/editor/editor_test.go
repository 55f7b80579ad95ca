package editor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// fakeDriver satisfies Driver with scripted responses keyed by a substring of
// the evaluated JS. The first matching script wins, so tests order them from
// most to least specific.
type fakeDriver struct {
	scripts  []evalScript
	typed    []string
	inserted []string
	keys     []string
	files    [][]string
}

type evalScript struct {
	substr string
	data   any
	err    error
}

func (f *fakeDriver) Eval(_ context.Context, js string, out any) error {
	for _, s := range f.scripts {
		if !strings.Contains(js, s.substr) {
			continue
		}
		if s.err != nil {
			return s.err
		}
		if out == nil || s.data == nil {
			return nil
		}
		b, err := json.Marshal(s.data)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, out)
	}
	return errors.New("no scripted response for eval")
}

func (f *fakeDriver) TypeText(_ context.Context, text string) error {
	f.typed = append(f.typed, text)
	return nil
}

func (f *fakeDriver) InsertText(_ context.Context, text string) error {
	f.inserted = append(f.inserted, text)
	return nil
}

func (f *fakeDriver) PressKey(_ context.Context, key, _ string, _, _ int) error {
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakeDriver) SetFileInputExpr(_ context.Context, _ string, paths []string) error {
	f.files = append(f.files, paths)
	return nil
}

func newTestHandle(drv Driver) *Handle {
	return &Handle{
		drv:       drv,
		frameExpr: "document",
		catalog:   DefaultCatalog(),
	}
}
