package railway

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineKey(t *testing.T) {
	l := Line{VideoID: "abcdefghijk", LineCode: "11302"}
	assert.Equal(t, LineKey{VideoID: "abcdefghijk", LineCode: "11302"}, l.Key())
	assert.Equal(t, "abcdefghijk-11302", l.Key().String())
	assert.False(t, l.Key().IsZero())
	assert.True(t, LineKey{}.IsZero())
}

func TestLineClone(t *testing.T) {
	l := Line{Stations: []Station{{Code: "A"}}}
	c := l.Clone()
	c.Stations[0].Code = "B"
	assert.Equal(t, "A", l.Stations[0].Code)
}

func TestLineStationLookup(t *testing.T) {
	l := Line{Stations: []Station{{Code: "A", StartTime: 0}, {Code: "B", StartTime: 60}}}

	s, ok := l.Station("B")
	assert.True(t, ok)
	assert.Equal(t, 60, s.StartTime)

	_, ok = l.Station("C")
	assert.False(t, ok)

	first, ok := l.FirstStation()
	assert.True(t, ok)
	assert.Equal(t, "A", first.Code)

	_, ok = Line{}.FirstStation()
	assert.False(t, ok)
}

func TestStationCoordinates(t *testing.T) {
	assert.True(t, Station{Lat: 35, Lon: 139}.HasValidCoordinates())
	assert.False(t, Station{Lat: math.NaN(), Lon: 139}.HasValidCoordinates())
	assert.InDelta(t, 1111.95, Point{35, 139}.DistanceTo(Point{35.01, 139}), 0.5)
}
