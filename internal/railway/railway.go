// Package railway defines the line and station records shared by the map core,
// the store and the HTTP layer.
package railway

import (
	"fmt"

	"cabview.railmap.org/internal/utils"
)

// Station is a point on a line with the video timestamp at which the cab passes it.
type Station struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	StartTime int     `json:"startTime"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
}

// Point returns the station's position.
func (s Station) Point() Point {
	return Point{Lat: s.Lat, Lon: s.Lon}
}

// HasValidCoordinates reports whether the station can take part in distance calculations.
func (s Station) HasValidCoordinates() bool {
	return utils.ValidCoordinate(s.Lat, s.Lon)
}

// Line is one railway line as filmed in one cab-ride video.
type Line struct {
	VideoID  string    `json:"videoId"`
	LineName string    `json:"lineName"`
	LineCode string    `json:"lineCode"`
	Stations []Station `json:"stations"`
	UserID   string    `json:"userId,omitempty"`
}

// Key returns the composite identity of the line.
func (l Line) Key() LineKey {
	return LineKey{VideoID: l.VideoID, LineCode: l.LineCode}
}

// Clone returns a copy that shares no station storage with l.
func (l Line) Clone() Line {
	c := l
	c.Stations = append([]Station(nil), l.Stations...)
	return c
}

// FirstStation returns the first station in viewing order.
func (l Line) FirstStation() (Station, bool) {
	if len(l.Stations) == 0 {
		return Station{}, false
	}
	return l.Stations[0], true
}

// Station looks a station up by code.
func (l Line) Station(code string) (Station, bool) {
	for _, s := range l.Stations {
		if s.Code == code {
			return s, true
		}
	}
	return Station{}, false
}

// LineKey identifies a line: a video can carry several lines and a line can
// appear in several videos.
type LineKey struct {
	VideoID  string `json:"videoId"`
	LineCode string `json:"lineCode"`
}

func (k LineKey) String() string {
	return fmt.Sprintf("%s-%s", k.VideoID, k.LineCode)
}

// IsZero reports whether k is the empty key.
func (k LineKey) IsZero() bool {
	return k.VideoID == "" && k.LineCode == ""
}

// Point is a WGS84 position in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether p is a finite in-range coordinate.
func (p Point) Valid() bool {
	return utils.ValidCoordinate(p.Lat, p.Lon)
}

// DistanceTo returns the distance in meters from p to q.
func (p Point) DistanceTo(q Point) float64 {
	return utils.Distance(p.Lat, p.Lon, q.Lat, q.Lon)
}
