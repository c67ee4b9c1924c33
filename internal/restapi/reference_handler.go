package restapi

import (
	"net/http"
	"strconv"
	"strings"
)

const (
	defaultSuggestionLimit = 20
	maxSuggestionLimit     = 100
)

func suggestionLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultSuggestionLimit
	}
	return min(n, maxSuggestionLimit)
}

// referenceLinesHandler powers line-name autocomplete.
func (api *RestAPI) referenceLinesHandler(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	api.sendList(w, r, api.Reference.LineSuggestions(q, suggestionLimit(r)))
}

// referenceStationsHandler powers station-name autocomplete within a line.
// Without q it lists every station of the line.
func (api *RestAPI) referenceStationsHandler(w http.ResponseWriter, r *http.Request) {
	lineCode := strings.TrimSpace(r.URL.Query().Get("line"))
	if lineCode == "" {
		api.sendError(w, r, http.StatusBadRequest, "line is required")
		return
	}
	if _, ok := api.Reference.FindLineByCode(lineCode); !ok {
		api.sendNotFound(w, r)
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		api.sendList(w, r, api.Reference.FindStationsByLine(lineCode))
		return
	}
	api.sendList(w, r, api.Reference.StationSuggestions(q, lineCode, suggestionLimit(r)))
}
