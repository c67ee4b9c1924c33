package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattn/go-sqlite3"

	"cabview.railmap.org/internal/logging"
	"cabview.railmap.org/internal/railway"
)

// Mapping is one stored station row: a station of a line at a time in a video.
type Mapping struct {
	ID          int64     `json:"id"`
	StationCode string    `json:"stationCd"`
	StationName string    `json:"stationName"`
	VideoID     string    `json:"videoId"`
	StartTime   int       `json:"startTime"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	LineName    string    `json:"lineName"`
	LineCode    string    `json:"lineCd"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (m Mapping) Station() railway.Station {
	return railway.Station{
		Code:      m.StationCode,
		Name:      m.StationName,
		StartTime: m.StartTime,
		Lat:       m.Lat,
		Lon:       m.Lon,
	}
}

// Contributor is a user together with the number of rows they submitted.
type Contributor struct {
	UserID       string `json:"userId"`
	MappingCount int    `json:"mappingCount"`
}

const mappingColumns = `id, station_cd, station_name, video_id, start_time, lat, lon, line_name, line_cd, user_id, created_at`

const insertMapping = `
INSERT INTO station_mappings (station_cd, station_name, video_id, start_time, lat, lon, line_name, line_cd, user_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMapping(row rowScanner) (Mapping, error) {
	var m Mapping
	var created int64
	err := row.Scan(&m.ID, &m.StationCode, &m.StationName, &m.VideoID, &m.StartTime,
		&m.Lat, &m.Lon, &m.LineName, &m.LineCode, &m.UserID, &created)
	if err != nil {
		return Mapping{}, err
	}
	m.CreatedAt = fromMillis(created)
	return m, nil
}

func (s *Store) queryMappings(ctx context.Context, query string, args ...any) ([]Mapping, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer logging.SafeCloseWithLogging(rows, s.logger, "mapping_rows")

	var out []Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListLines returns every line. Rows are grouped by video and line code; lines
// appear in the order their first row was stored and stations keep row order.
func (s *Store) ListLines(ctx context.Context) ([]railway.Line, error) {
	mappings, err := s.queryMappings(ctx, `SELECT `+mappingColumns+` FROM station_mappings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list station mappings: %w", err)
	}
	return GroupLines(mappings), nil
}

// GroupLines folds mapping rows into lines.
func GroupLines(mappings []Mapping) []railway.Line {
	lines := []railway.Line{}
	positions := make(map[railway.LineKey]int)
	for _, m := range mappings {
		key := railway.LineKey{VideoID: m.VideoID, LineCode: m.LineCode}
		i, ok := positions[key]
		if !ok {
			i = len(lines)
			positions[key] = i
			lines = append(lines, railway.Line{
				VideoID:  m.VideoID,
				LineName: m.LineName,
				LineCode: m.LineCode,
				UserID:   m.UserID,
			})
		}
		lines[i].Stations = append(lines[i].Stations, m.Station())
	}
	return lines
}

// GetLine returns one line with its stations in row order.
func (s *Store) GetLine(ctx context.Context, videoID, lineCode string) (railway.Line, error) {
	mappings, err := s.queryMappings(ctx,
		`SELECT `+mappingColumns+` FROM station_mappings WHERE video_id = ? AND line_cd = ? ORDER BY id`,
		videoID, lineCode)
	if err != nil {
		return railway.Line{}, fmt.Errorf("get line: %w", err)
	}
	lines := GroupLines(mappings)
	if len(lines) == 0 {
		return railway.Line{}, ErrNotFound
	}
	return lines[0], nil
}

// AddLine stores every station of line in one transaction. A line that
// already has rows for the same video is rejected with ErrLineExists.
func (s *Store) AddLine(ctx context.Context, line railway.Line) error {
	if len(line.Stations) == 0 {
		return ErrEmptyLine
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer logging.SafeRollbackWithLogging(tx, s.logger, "add_line")

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM station_mappings WHERE video_id = ? AND line_cd = ? LIMIT 1`,
		line.VideoID, line.LineCode).Scan(&exists)
	switch {
	case err == nil:
		return ErrLineExists
	case !errors.Is(err, sql.ErrNoRows):
		return err
	}

	stmt, err := tx.PrepareContext(ctx, insertMapping)
	if err != nil {
		return err
	}
	defer logging.SafeCloseWithLogging(stmt, s.logger, "insert_mapping_stmt")

	now := s.now()
	for _, st := range line.Stations {
		if _, err := stmt.ExecContext(ctx, st.Code, st.Name, line.VideoID, st.StartTime,
			st.Lat, st.Lon, line.LineName, line.LineCode, line.UserID, now); err != nil {
			return fmt.Errorf("insert station %s: %w", st.Code, uniqueViolation(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	logging.LogOperation(s.logger, "line_added",
		slog.String("video_id", line.VideoID),
		slog.String("line_cd", line.LineCode),
		slog.Int("stations", len(line.Stations)))
	return nil
}

// AddStationMapping stores a single row and returns it with its id. A
// station code already present on the line yields ErrDuplicate.
func (s *Store) AddStationMapping(ctx context.Context, m Mapping) (Mapping, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, insertMapping, m.StationCode, m.StationName, m.VideoID,
		m.StartTime, m.Lat, m.Lon, m.LineName, m.LineCode, m.UserID, now)
	if err != nil {
		return Mapping{}, fmt.Errorf("insert station mapping: %w", uniqueViolation(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Mapping{}, err
	}
	m.ID = id
	m.CreatedAt = fromMillis(now)
	return m, nil
}

func (s *Store) GetMapping(ctx context.Context, id int64) (Mapping, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mappingColumns+` FROM station_mappings WHERE id = ?`, id)
	m, err := scanMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Mapping{}, ErrNotFound
	}
	return m, err
}

// LineOwner returns the user who submitted the first row of a line.
func (s *Store) LineOwner(ctx context.Context, videoID, lineCode string) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM station_mappings WHERE video_id = ? AND line_cd = ? ORDER BY id LIMIT 1`,
		videoID, lineCode).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return owner, err
}

// DeleteLine removes every row of a line.
func (s *Store) DeleteLine(ctx context.Context, videoID, lineCode string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM station_mappings WHERE video_id = ? AND line_cd = ?`, videoID, lineCode)
	if err != nil {
		return fmt.Errorf("delete line: %w", err)
	}
	return expectRows(res)
}

// DeleteVideo removes every line of a video.
func (s *Store) DeleteVideo(ctx context.Context, videoID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM station_mappings WHERE video_id = ?`, videoID)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	return expectRows(res)
}

func (s *Store) DeleteMapping(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM station_mappings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete mapping: %w", err)
	}
	return expectRows(res)
}

func (s *Store) MappingsByUser(ctx context.Context, userID string) ([]Mapping, error) {
	return s.queryMappings(ctx,
		`SELECT `+mappingColumns+` FROM station_mappings WHERE user_id = ? ORDER BY id`, userID)
}

// Contributors lists every user with rows, most rows first.
func (s *Store) Contributors(ctx context.Context) ([]Contributor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, COUNT(*) AS n
		FROM station_mappings
		GROUP BY user_id
		ORDER BY n DESC, user_id`)
	if err != nil {
		return nil, err
	}
	defer logging.SafeCloseWithLogging(rows, s.logger, "contributor_rows")

	var out []Contributor
	for rows.Next() {
		var c Contributor
		if err := rows.Scan(&c.UserID, &c.MappingCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// uniqueViolation maps a unique constraint failure to ErrDuplicate.
func uniqueViolation(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return ErrDuplicate
	}
	return err
}

func expectRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
