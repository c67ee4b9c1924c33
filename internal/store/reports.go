package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cabview.railmap.org/internal/logging"
)

type ReportStatus string

const (
	StatusPending  ReportStatus = "pending"
	StatusReviewed ReportStatus = "reviewed"
	StatusResolved ReportStatus = "resolved"
	StatusRejected ReportStatus = "rejected"
)

// ParseReportStatus accepts the four known statuses, case-insensitively.
func ParseReportStatus(s string) (ReportStatus, error) {
	switch st := ReportStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusReviewed, StatusResolved, StatusRejected:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Report flags a mapping as wrong.
type Report struct {
	ID         int64        `json:"id"`
	MappingID  int64        `json:"mappingId"`
	ReporterID string       `json:"reporterId"`
	Reason     string       `json:"reason"`
	Status     ReportStatus `json:"status"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
	Mapping    *Mapping     `json:"mapping,omitempty"`
}

// CreateReport files a pending report against a mapping.
func (s *Store) CreateReport(ctx context.Context, mappingID int64, reporterID, reason string) (Report, error) {
	if _, err := s.GetMapping(ctx, mappingID); err != nil {
		return Report{}, err
	}

	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (mapping_id, reporter_id, reason, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		mappingID, reporterID, reason, StatusPending, now, now)
	if err != nil {
		return Report{}, fmt.Errorf("insert report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Report{}, err
	}

	logging.LogOperation(s.logger, "report_created",
		slog.Int64("report_id", id),
		slog.Int64("mapping_id", mappingID))

	return Report{
		ID:         id,
		MappingID:  mappingID,
		ReporterID: reporterID,
		Reason:     reason,
		Status:     StatusPending,
		CreatedAt:  fromMillis(now),
		UpdatedAt:  fromMillis(now),
	}, nil
}

// ListReports returns every report, newest first, with the reported mapping.
func (s *Store) ListReports(ctx context.Context) ([]Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.mapping_id, r.reporter_id, r.reason, r.status, r.created_at, r.updated_at,
		       m.id, m.station_cd, m.station_name, m.video_id, m.start_time, m.lat, m.lon,
		       m.line_name, m.line_cd, m.user_id, m.created_at
		FROM reports r
		JOIN station_mappings m ON m.id = r.mapping_id
		ORDER BY r.created_at DESC, r.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer logging.SafeCloseWithLogging(rows, s.logger, "report_rows")

	var out []Report
	for rows.Next() {
		var r Report
		var m Mapping
		var rCreated, rUpdated, mCreated int64
		if err := rows.Scan(&r.ID, &r.MappingID, &r.ReporterID, &r.Reason, &r.Status, &rCreated, &rUpdated,
			&m.ID, &m.StationCode, &m.StationName, &m.VideoID, &m.StartTime, &m.Lat, &m.Lon,
			&m.LineName, &m.LineCode, &m.UserID, &mCreated); err != nil {
			return nil, err
		}
		r.CreatedAt = fromMillis(rCreated)
		r.UpdatedAt = fromMillis(rUpdated)
		m.CreatedAt = fromMillis(mCreated)
		r.Mapping = &m
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) UpdateReportStatus(ctx context.Context, id int64, status ReportStatus) error {
	if _, err := ParseReportStatus(string(status)); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = ?, updated_at = ? WHERE id = ?`, status, s.now(), id)
	if err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	return expectRows(res)
}
