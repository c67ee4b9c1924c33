package textproc

import (
	"context"
	"regexp"
	"strings"
)

var (
	// A leading time, optionally followed by a range end ("0:30 - 1:10"), then the name.
	chapterPattern = regexp.MustCompile(`^(\d{1,2}:\d{2}(?::\d{2})?)(?:\s*[-~〜–]\s*\d{1,2}:\d{2}(?::\d{2})?)?\s+(.+)$`)
	// Bracketed station numbers and notes: "(A69)", "（B79）", "[JY01]".
	bracketPattern = regexp.MustCompile(`[(（\[【][^)）\]】]*[)）\]】]`)
)

// Chapter titles that never name a station.
var nonStationTitles = map[string]bool{
	"オープニング": true,
	"エンディング": true,
	"OP":     true,
	"ED":     true,
}

// LocalConverter extracts chapters without any external service. For each
// line with a leading timestamp it keeps the first time and the first word
// of the title, with bracketed codes and a trailing 駅 removed.
type LocalConverter struct{}

func (LocalConverter) Convert(_ context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}

	var rows []string
	for _, line := range strings.Split(text, "\n") {
		m := chapterPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		name := stationName(m[2])
		if name == "" || nonStationTitles[name] {
			continue
		}
		rows = append(rows, m[1]+","+name)
	}

	if len(rows) == 0 {
		return "", ErrNoCSV
	}
	return strings.Join(rows, "\n"), nil
}

func stationName(title string) string {
	title = bracketPattern.ReplaceAllString(title, " ")
	fields := strings.Fields(title)
	if len(fields) == 0 {
		return ""
	}
	name := strings.TrimSuffix(fields[0], "駅")
	return strings.Trim(name, ",、")
}
