package restapi

import (
	"net/http"
	"runtime/debug"

	"cabview.railmap.org/internal/models"
	"cabview.railmap.org/internal/textproc"
)

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "unknown"
}

func (api *RestAPI) configHandler(w http.ResponseWriter, r *http.Request) {
	lines, stations := api.Reference.Counts()

	textProcessor := "none"
	switch api.TextProcessor.(type) {
	case nil:
	case textproc.LocalConverter:
		textProcessor = "local"
	default:
		textProcessor = "remote"
	}

	api.sendEntry(w, r, models.ConfigModel{
		Id:                   "cabview",
		Name:                 "Cab View Railway Map",
		Version:              buildVersion(),
		ClickThresholdMeters: api.Config.ClickThresholdMeters,
		SpatialIndex:         api.Config.SpatialIndex,
		TextProcessor:        textProcessor,
		Reference:            models.ReferenceCounts{Lines: lines, Stations: stations},
	})
}
