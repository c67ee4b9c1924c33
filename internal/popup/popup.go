// Package popup renders the HTML shown in line and station marker popups.
package popup

import (
	"bytes"
	"fmt"
	"html/template"

	"cabview.railmap.org/internal/railway"
)

var templates = template.Must(template.New("popup").Parse(`
{{- define "line" -}}
<div class="line-popup" data-line-key="{{.Key}}">
<b>{{.LineName}}</b><br>
路線コード: {{.LineCode}}<br>
ビデオID: {{.VideoID}}<br>
駅数: {{.StationCount}}
</div>
{{- end -}}
{{- define "station" -}}
<div class="station-popup">
<b>{{.Station.Name}}</b><br>
路線名: {{.Line.LineName}}<br>
路線コード: {{.Line.LineCode}}<br>
駅コード: {{.Station.Code}}<br>
ビデオID: {{.Line.VideoID}}<br>
開始時間: {{.Station.StartTime}}秒 ({{.Timestamp}})<br>
<button class="play-button" data-video-id="{{.Line.VideoID}}" data-start-time="{{.Station.StartTime}}">動画を再生</button>
</div>
{{- end -}}
`))

type lineView struct {
	Key          string
	LineName     string
	LineCode     string
	VideoID      string
	StationCount int
}

type stationView struct {
	Station   railway.Station
	Line      railway.Line
	Timestamp string
}

// Line renders the popup of a line marker.
func Line(line railway.Line) (template.HTML, error) {
	return render("line", lineView{
		Key:          line.Key().String(),
		LineName:     line.LineName,
		LineCode:     line.LineCode,
		VideoID:      line.VideoID,
		StationCount: len(line.Stations),
	})
}

// Station renders the popup of a station marker, including the play button
// whose data attributes carry the video id and start time.
func Station(line railway.Line, station railway.Station) (template.HTML, error) {
	return render("station", stationView{
		Station:   station,
		Line:      line,
		Timestamp: FormatTimestamp(station.StartTime),
	})
}

func render(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s popup: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

// FormatTimestamp renders seconds as M:SS, or H:MM:SS from one hour on.
func FormatTimestamp(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
