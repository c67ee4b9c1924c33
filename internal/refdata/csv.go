package refdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"cabview.railmap.org/internal/utils"
)

// header maps column names to positions.
type header map[string]int

func readHeader(r *csv.Reader, required ...string) (header, error) {
	names, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	h := make(header, len(names))
	for i, n := range names {
		n = strings.TrimSpace(strings.TrimPrefix(n, "\ufeff"))
		h[n] = i
	}
	for _, col := range required {
		if _, ok := h[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}
	return h, nil
}

func (h header) get(record []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	return cr
}

// LoadCSV reads an ekidata-style line.csv and station.csv. Rows with a blank
// code are skipped, as are stations with unparseable or out-of-range
// coordinates.
func LoadCSV(linesCSV, stationsCSV io.Reader) (*Dataset, error) {
	lines, err := readLines(linesCSV)
	if err != nil {
		return nil, fmt.Errorf("line csv: %w", err)
	}
	stations, err := readStations(stationsCSV)
	if err != nil {
		return nil, fmt.Errorf("station csv: %w", err)
	}
	return newDataset(lines, stations), nil
}

// LoadCSVFiles is LoadCSV over two file paths.
func LoadCSVFiles(linesPath, stationsPath string) (*Dataset, error) {
	lf, err := os.Open(linesPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lf.Close() }()

	sf, err := os.Open(stationsPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sf.Close() }()

	return LoadCSV(lf, sf)
}

func readLines(r io.Reader) ([]Line, error) {
	cr := newCSVReader(r)
	h, err := readHeader(cr, "line_cd", "line_name")
	if err != nil {
		return nil, err
	}

	var out []Line
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		l := Line{
			Code:        h.get(rec, "line_cd"),
			CompanyCode: h.get(rec, "company_cd"),
			Name:        h.get(rec, "line_name"),
			NameKana:    h.get(rec, "line_name_k"),
			NameFormal:  h.get(rec, "line_name_h"),
			Color:       h.get(rec, "line_color_c"),
		}
		if l.Code == "" {
			continue
		}
		out = append(out, l)
	}
}

func readStations(r io.Reader) ([]Station, error) {
	cr := newCSVReader(r)
	h, err := readHeader(cr, "station_cd", "station_name", "line_cd", "lon", "lat")
	if err != nil {
		return nil, err
	}

	var out []Station
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		s := Station{
			Code:      h.get(rec, "station_cd"),
			GroupCode: h.get(rec, "station_g_cd"),
			Name:      h.get(rec, "station_name"),
			NameKana:  h.get(rec, "station_name_k"),
			NameRoman: h.get(rec, "station_name_r"),
			LineCode:  h.get(rec, "line_cd"),
		}
		if s.Code == "" {
			continue
		}
		lat, errLat := strconv.ParseFloat(h.get(rec, "lat"), 64)
		lon, errLon := strconv.ParseFloat(h.get(rec, "lon"), 64)
		if errLat != nil || errLon != nil || !utils.ValidCoordinate(lat, lon) {
			continue
		}
		s.Lat, s.Lon = lat, lon
		out = append(out, s)
	}
}
