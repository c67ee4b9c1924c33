package models

import (
	"cabview.railmap.org/internal/store"
)

// ReportModel is a report on a station mapping in API responses.
type ReportModel struct {
	ID          int64  `json:"id"`
	MappingID   int64  `json:"mappingId"`
	ReporterID  string `json:"reporterId"`
	Reason      string `json:"reason"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
	VideoID     string `json:"videoId,omitempty"`
	LineCode    string `json:"lineCode,omitempty"`
	StationName string `json:"stationName,omitempty"`
	StartTime   int    `json:"startTime,omitempty"`
}

// NewReportModel converts a stored report to its API form.
func NewReportModel(report store.Report) ReportModel {
	m := ReportModel{
		ID:         report.ID,
		MappingID:  report.MappingID,
		ReporterID: report.ReporterID,
		Reason:     report.Reason,
		Status:     string(report.Status),
		CreatedAt:  report.CreatedAt.UnixMilli(),
		UpdatedAt:  report.UpdatedAt.UnixMilli(),
	}
	if report.Mapping != nil {
		m.VideoID = report.Mapping.VideoID
		m.LineCode = report.Mapping.LineCode
		m.StationName = report.Mapping.StationName
		m.StartTime = report.Mapping.StartTime
	}
	return m
}

// MappingModel is one stored station mapping in API responses.
type MappingModel struct {
	ID          int64   `json:"id"`
	VideoID     string  `json:"videoId"`
	LineName    string  `json:"lineName"`
	LineCode    string  `json:"lineCode"`
	StationCode string  `json:"stationCode"`
	StationName string  `json:"stationName"`
	StartTime   int     `json:"startTime"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	UserID      string  `json:"userId"`
	CreatedAt   int64   `json:"createdAt"`
}

func NewMappingModel(m store.Mapping) MappingModel {
	return MappingModel{
		ID:          m.ID,
		VideoID:     m.VideoID,
		LineName:    m.LineName,
		LineCode:    m.LineCode,
		StationCode: m.StationCode,
		StationName: m.StationName,
		StartTime:   m.StartTime,
		Lat:         m.Lat,
		Lon:         m.Lon,
		UserID:      m.UserID,
		CreatedAt:   m.CreatedAt.UnixMilli(),
	}
}
