package mapview

import (
	"context"
	"log/slog"

	"cabview.railmap.org/internal/logging"
	"cabview.railmap.org/internal/railway"
)

// LineSource supplies the full line collection.
type LineSource interface {
	ListLines(ctx context.Context) ([]railway.Line, error)
}

// LineSourceFunc adapts a function to LineSource.
type LineSourceFunc func(ctx context.Context) ([]railway.Line, error)

func (f LineSourceFunc) ListLines(ctx context.Context) ([]railway.Line, error) {
	return f(ctx)
}

// LoadLines fetches every line from src. A failed fetch is logged and yields
// an empty collection so the map still renders, just without lines.
func LoadLines(ctx context.Context, src LineSource, logger *slog.Logger) []railway.Line {
	if logger == nil {
		logger = logging.WithComponent(slog.Default(), "mapview")
	}
	if src == nil {
		return []railway.Line{}
	}

	lines, err := src.ListLines(ctx)
	if err != nil {
		logging.LogError(logger, "failed to load lines, continuing with none", err)
		return []railway.Line{}
	}
	if lines == nil {
		lines = []railway.Line{}
	}

	logging.LogOperation(logger, "lines_loaded", slog.Int("lines", len(lines)))
	return lines
}
