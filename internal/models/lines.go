package models

import (
	"github.com/twpayne/go-polyline"

	"cabview.railmap.org/internal/railway"
	"cabview.railmap.org/internal/utils"
)

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// LineModel is a line as drawn on the map: its stations, a marker position
// at their centroid and the encoded path through them in viewing order.
type LineModel struct {
	VideoID  string            `json:"videoId"`
	LineName string            `json:"lineName"`
	LineCode string            `json:"lineCode"`
	UserID   string            `json:"userId,omitempty"`
	Center   *Coordinate       `json:"center,omitempty"`
	Polyline string            `json:"polyline,omitempty"`
	Stations []railway.Station `json:"stations"`
}

func NewLineModel(line railway.Line) LineModel {
	m := LineModel{
		VideoID:  line.VideoID,
		LineName: line.LineName,
		LineCode: line.LineCode,
		UserID:   line.UserID,
		Stations: line.Stations,
	}
	if m.Stations == nil {
		m.Stations = []railway.Station{}
	}

	lats := make([]float64, 0, len(line.Stations))
	lons := make([]float64, 0, len(line.Stations))
	coords := make([][]float64, 0, len(line.Stations))
	for _, s := range line.Stations {
		if !s.HasValidCoordinates() {
			continue
		}
		lats = append(lats, s.Lat)
		lons = append(lons, s.Lon)
		coords = append(coords, []float64{s.Lat, s.Lon})
	}

	if lat, lon, ok := utils.Centroid(lats, lons); ok {
		m.Center = &Coordinate{Lat: lat, Lon: lon}
	}
	if len(coords) > 0 {
		m.Polyline = string(polyline.EncodeCoords(coords))
	}
	return m
}

func NewLineModels(lines []railway.Line) []LineModel {
	out := make([]LineModel, 0, len(lines))
	for _, l := range lines {
		out = append(out, NewLineModel(l))
	}
	return out
}
