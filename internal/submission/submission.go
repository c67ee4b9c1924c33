// Package submission validates user-submitted station timings and turns
// them into lines, resolving station codes and coordinates from the
// reference data.
package submission

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"cabview.railmap.org/internal/railway"
	"cabview.railmap.org/internal/refdata"
)

var (
	ErrMissingVideoID   = errors.New("video id is required")
	ErrInvalidVideoID   = errors.New("invalid YouTube video id")
	ErrUnknownLine      = errors.New("line does not exist")
	ErrUnknownStation   = errors.New("station does not exist on the line")
	ErrMalformedRow     = errors.New(`row must be "time,station"`)
	ErrInvalidTimestamp = errors.New(`time must be "MM:SS" or "HH:MM:SS"`)
	ErrNoStations       = errors.New("at least one station is required")
	ErrNegativeStart    = errors.New("start time must not be negative")
	ErrDuplicateStation = errors.New("station is already on the line")
)

var (
	videoIDPattern   = regexp.MustCompile(`^[\w-]{11}$`)
	timestampPattern = regexp.MustCompile(`^\d{1,2}:\d{2}(:\d{2})?$`)
)

// Reference is the part of the reference dataset a submission is checked against.
type Reference interface {
	FindLineByName(name string) (refdata.Line, bool)
	FindStationByName(name, lineCode string) (refdata.Station, bool)
}

// RowError locates a problem in CSV input. Row is 1-based.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Entry is one station timing as entered by a user.
type Entry struct {
	StationName string `json:"stationName" validate:"required"`
	StartTime   int    `json:"startTime" validate:"gte=0"`
}

func ValidateVideoID(id string) error {
	if id == "" {
		return ErrMissingVideoID
	}
	if !videoIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidVideoID, id)
	}
	return nil
}

// ParseTimestamp converts "MM:SS" or "HH:MM:SS" to seconds. Minutes and
// seconds must be 0-59 and hours 0-23.
func ParseTimestamp(s string) (int, error) {
	s = strings.TrimSpace(s)
	if !timestampPattern.MatchString(s) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}

	parts := strings.Split(s, ":")
	values := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
		}
		values[i] = v
	}

	if len(values) == 2 {
		if err := checkRange("minutes", values[0], 59); err != nil {
			return 0, err
		}
		if err := checkRange("seconds", values[1], 59); err != nil {
			return 0, err
		}
		return values[0]*60 + values[1], nil
	}

	if err := checkRange("hours", values[0], 23); err != nil {
		return 0, err
	}
	if err := checkRange("minutes", values[1], 59); err != nil {
		return 0, err
	}
	if err := checkRange("seconds", values[2], 59); err != nil {
		return 0, err
	}
	return values[0]*3600 + values[1]*60 + values[2], nil
}

func checkRange(field string, v, maxValue int) error {
	if v < 0 || v > maxValue {
		return fmt.Errorf("%w: %s must be between 0 and %d", ErrInvalidTimestamp, field, maxValue)
	}
	return nil
}

type csvRow struct {
	row   int
	entry Entry
}

func parseRows(text string) ([]csvRow, error) {
	var rows []csvRow
	for i, row := range strings.Split(strings.TrimSpace(text), "\n") {
		row = strings.TrimSpace(row)
		if row == "" {
			continue
		}

		// Columns after the station name are ignored.
		fields := strings.Split(row, ",")
		if len(fields) < 2 {
			return nil, &RowError{Row: i + 1, Err: ErrMalformedRow}
		}
		timeStr, name := strings.TrimSpace(fields[0]), strings.TrimSpace(fields[1])
		if timeStr == "" || name == "" {
			return nil, &RowError{Row: i + 1, Err: ErrMalformedRow}
		}

		start, err := ParseTimestamp(timeStr)
		if err != nil {
			return nil, &RowError{Row: i + 1, Err: err}
		}
		rows = append(rows, csvRow{row: i + 1, entry: Entry{StationName: name, StartTime: start}})
	}
	if len(rows) == 0 {
		return nil, ErrNoStations
	}
	return rows, nil
}

// ParseCSVEntries reads "time,station" rows without checking the stations.
// Blank rows are skipped.
func ParseCSVEntries(text string) ([]Entry, error) {
	rows, err := parseRows(text)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = r.entry
	}
	return entries, nil
}

// ParseCSV reads "time,station" rows for the line lineCode. Every station
// must exist on the line in ref and appear once.
func ParseCSV(text, lineCode string, ref Reference) ([]railway.Station, error) {
	rows, err := parseRows(text)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(rows))
	stations := make([]railway.Station, 0, len(rows))
	for _, r := range rows {
		st, err := resolveStation(ref, r.entry.StationName, lineCode, r.entry.StartTime)
		if err == nil && seen[st.Code] {
			err = fmt.Errorf("%w: %q", ErrDuplicateStation, st.Name)
		}
		if err != nil {
			return nil, &RowError{Row: r.row, Err: err}
		}
		seen[st.Code] = true
		stations = append(stations, st)
	}
	return stations, nil
}

// BuildStations resolves entries against the line lineCode. A station whose
// code is in existing or earlier in entries is rejected, so a line never
// lists a station twice.
func BuildStations(lineCode string, entries []Entry, existing []railway.Station, ref Reference) ([]railway.Station, error) {
	if len(entries) == 0 {
		return nil, ErrNoStations
	}
	seen := make(map[string]bool, len(existing)+len(entries))
	for _, st := range existing {
		seen[st.Code] = true
	}

	stations := make([]railway.Station, 0, len(entries))
	for i, e := range entries {
		st, err := resolveStation(ref, strings.TrimSpace(e.StationName), lineCode, e.StartTime)
		if err == nil && seen[st.Code] {
			err = fmt.Errorf("%w: %q", ErrDuplicateStation, st.Name)
		}
		if err != nil {
			return nil, &RowError{Row: i + 1, Err: err}
		}
		seen[st.Code] = true
		stations = append(stations, st)
	}
	return stations, nil
}

func resolveStation(ref Reference, name, lineCode string, start int) (railway.Station, error) {
	if start < 0 {
		return railway.Station{}, ErrNegativeStart
	}
	rs, ok := ref.FindStationByName(name, lineCode)
	if !ok {
		return railway.Station{}, fmt.Errorf("%w: %q", ErrUnknownStation, name)
	}
	return railway.Station{
		Code:      rs.Code,
		Name:      rs.Name,
		StartTime: start,
		Lat:       rs.Lat,
		Lon:       rs.Lon,
	}, nil
}

// BuildLine validates a submission and returns the line to store. The line
// code, station codes and coordinates come from ref.
func BuildLine(videoID, lineName string, entries []Entry, userID string, ref Reference) (railway.Line, error) {
	if err := ValidateVideoID(videoID); err != nil {
		return railway.Line{}, err
	}
	rl, ok := ref.FindLineByName(lineName)
	if !ok {
		return railway.Line{}, fmt.Errorf("%w: %q", ErrUnknownLine, lineName)
	}
	stations, err := BuildStations(rl.Code, entries, nil, ref)
	if err != nil {
		return railway.Line{}, err
	}
	return railway.Line{
		VideoID:  videoID,
		LineName: rl.Name,
		LineCode: rl.Code,
		UserID:   userID,
		Stations: stations,
	}, nil
}
