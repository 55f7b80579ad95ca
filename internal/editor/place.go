package editor

import (
	"context"
	"log/slog"
	"time"

	"github.com/Fire-Hyun/naverPost-sub000/internal/cdp"
)

// PlaceAttacher runs the place-attachment sub-flow: open the place tool,
// search by name, pick the top result, confirm.
type PlaceAttacher struct {
	handle *Handle
}

// NewPlaceAttacher builds a place attacher over an acquired frame.
func NewPlaceAttacher(handle *Handle) *PlaceAttacher {
	return &PlaceAttacher{handle: handle}
}

// Attach attaches the named place to the post. An empty name is a no-op.
// Newer editor builds apply the picked result immediately and show no confirm
// button; a missing confirm control after a successful pick therefore counts
// as applied.
func (p *PlaceAttacher) Attach(ctx context.Context, placeName string) error {
	if placeName == "" {
		return nil
	}
	if err := p.openTool(ctx); err != nil {
		return err
	}
	if err := p.search(ctx, placeName); err != nil {
		return err
	}
	if err := p.pickFirstResult(ctx); err != nil {
		return err
	}
	return p.confirm(ctx)
}

func (p *PlaceAttacher) openTool(ctx context.Context) error {
	h := p.handle
	strategies := []Strategy{
		{Name: "place-button-in-frame", Attempt: func(ctx context.Context) (bool, error) {
			return h.clickFirst(ctx, h.catalog.PlaceButtonQueries)
		}},
		{Name: "place-button-on-page", Attempt: func(ctx context.Context) (bool, error) {
			return h.clickFirstOnPage(ctx, h.catalog.PlaceButtonQueries)
		}},
	}
	return runStrategies(ctx, "place tool open", strategies)
}

func (p *PlaceAttacher) search(ctx context.Context, placeName string) error {
	h := p.handle
	strategies := make([]Strategy, 0, len(h.catalog.PlaceSearchInputs))
	for _, sel := range h.catalog.PlaceSearchInputs {
		selector := sel
		strategies = append(strategies, Strategy{
			Name: "place search " + selector,
			Attempt: func(ctx context.Context) (bool, error) {
				focused, err := h.focusSelector(ctx, selector)
				if err != nil || !focused {
					return false, err
				}
				if err := h.drv.TypeText(ctx, placeName); err != nil {
					return false, err
				}
				if err := h.drv.PressKey(ctx, "Enter", "Enter", 13, 0); err != nil {
					return false, err
				}
				return true, nil
			},
		})
	}
	if err := runStrategies(ctx, "place search", strategies); err != nil {
		return err
	}
	// Result list populates asynchronously after the search request.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(1500 * time.Millisecond):
	}
	return nil
}

// pickFirstResult clicks the first visible search result. Results render in
// the frame or in a popup layer on the page depending on the editor build, so
// both roots are scanned; a short poll covers slow search responses.
func (p *PlaceAttacher) pickFirstResult(ctx context.Context) error {
	h := p.handle
	deadline := time.Now().Add(8 * time.Second)
	for {
		clicked, err := h.clickFirst(ctx, h.catalog.PlaceResultQueries)
		if err == nil && clicked {
			return nil
		}
		if err != nil {
			slog.Debug("place result probe failed", "error", err)
		}
		clicked, err = h.clickFirstOnPage(ctx, h.catalog.PlaceResultQueries)
		if err == nil && clicked {
			return nil
		}
		if time.Now().After(deadline) {
			return cdp.NewError(cdp.CodeEditor, "no place search result for selection", nil)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (p *PlaceAttacher) confirm(ctx context.Context) error {
	h := p.handle
	clicked, err := h.clickFirst(ctx, h.catalog.PlaceConfirmQueries)
	if err != nil {
		return err
	}
	if !clicked {
		clicked, err = h.clickFirstOnPage(ctx, h.catalog.PlaceConfirmQueries)
		if err != nil {
			return err
		}
	}
	if clicked {
		slog.Info("place attachment confirmed")
	} else {
		slog.Info("no place confirm control, treating selection as applied")
	}
	return nil
}
