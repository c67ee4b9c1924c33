// Package textproc turns free-form chapter lists from video descriptions
// into "time,station" CSV.
package textproc

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrEmptyText   = errors.New("text is empty")
	ErrNoCSV       = errors.New("no CSV rows in output")
	ErrUnavailable = errors.New("text processor unavailable")
)

// Converter converts text to CSV rows of the form "time,station".
type Converter interface {
	Convert(ctx context.Context, text string) (string, error)
}

// Recorder receives one result label per conversion.
type Recorder interface {
	RecordTextProcessor(result string)
}

// CleanCSV keeps only CSV rows: code fences and blank lines are dropped, as
// is any line without a comma. Remaining lines are trimmed.
func CleanCSV(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		if !strings.Contains(line, ",") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// Fallback tries Primary and, if it fails for any reason other than empty
// input, Secondary.
type Fallback struct {
	Primary   Converter
	Secondary Converter
}

func (f Fallback) Convert(ctx context.Context, text string) (string, error) {
	out, err := f.Primary.Convert(ctx, text)
	if err == nil || errors.Is(err, ErrEmptyText) || f.Secondary == nil {
		return out, err
	}
	return f.Secondary.Convert(ctx, text)
}
