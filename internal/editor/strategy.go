package editor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Fire-Hyun/naverPost-sub000/internal/cdp"
)

// Strategy is one fallback attempt for a stage. Attempt reports whether it
// succeeded; a false return with a nil error means "did not apply, try the
// next one". Errors are collected, not fatal, unless every strategy fails.
type Strategy struct {
	Name    string
	Attempt func(ctx context.Context) (bool, error)
}

// runStrategies executes strategies in order and short-circuits on the first
// success. When all fail it returns an EDITOR error carrying every per-strategy
// outcome, so the failure report shows the full cascade.
func runStrategies(ctx context.Context, stage string, strategies []Strategy) error {
	var outcomes []string
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return cdp.NewError(cdp.CodeEditor, stage+" canceled", err)
		}
		ok, err := s.Attempt(ctx)
		if err != nil {
			slog.Debug("strategy failed", "stage", stage, "strategy", s.Name, "error", err)
			outcomes = append(outcomes, fmt.Sprintf("%s: %v", s.Name, err))
			continue
		}
		if ok {
			slog.Info("strategy succeeded", "stage", stage, "strategy", s.Name)
			return nil
		}
		slog.Debug("strategy did not apply", "stage", stage, "strategy", s.Name)
		outcomes = append(outcomes, s.Name+": no match")
	}
	return cdp.NewError(cdp.CodeEditor,
		fmt.Sprintf("%s: all strategies exhausted [%s]", stage, strings.Join(outcomes, "; ")), nil)
}
