package restapi

import (
	"html/template"
	"net/http"

	"cabview.railmap.org/internal/popup"
	"cabview.railmap.org/internal/railway"
)

func (api *RestAPI) sendHTML(w http.ResponseWriter, r *http.Request, html template.HTML, err error) {
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

func (api *RestAPI) pathLine(w http.ResponseWriter, r *http.Request) (railway.Line, bool) {
	key := railway.LineKey{VideoID: r.PathValue("videoId"), LineCode: r.PathValue("lineCode")}
	line, ok := api.Registry.Index().Line(key)
	if !ok {
		api.sendNotFound(w, r)
	}
	return line, ok
}

func (api *RestAPI) linePopupHandler(w http.ResponseWriter, r *http.Request) {
	line, ok := api.pathLine(w, r)
	if !ok {
		return
	}
	html, err := popup.Line(line)
	api.sendHTML(w, r, html, err)
}

func (api *RestAPI) stationPopupHandler(w http.ResponseWriter, r *http.Request) {
	line, ok := api.pathLine(w, r)
	if !ok {
		return
	}
	station, ok := line.Station(r.PathValue("code"))
	if !ok {
		api.sendNotFound(w, r)
		return
	}
	html, err := popup.Station(line, station)
	api.sendHTML(w, r, html, err)
}
