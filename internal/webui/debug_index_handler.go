package webui

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/davecgh/go-spew/spew"

	"cabview.railmap.org/internal/appconf"
	"cabview.railmap.org/internal/logging"
)

//go:embed debug_index.html
var templateFS embed.FS

var debugTemplate = template.Must(template.ParseFS(templateFS, "debug_index.html"))

type debugData struct {
	Title string
	Pre   string
}

func (webUI *WebUI) logger() *slog.Logger {
	logger := slog.Default()
	if webUI.Application != nil && webUI.Logger != nil {
		logger = webUI.Logger
	}
	return logging.WithComponent(logger, "webui")
}

func (webUI *WebUI) writeDebugData(w http.ResponseWriter, title string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := debugTemplate.Execute(w, debugData{Title: title, Pre: spew.Sdump(data)})
	if err != nil {
		logging.LogError(webUI.logger(), "failed to execute debug template", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (webUI *WebUI) debugIndexHandler(w http.ResponseWriter, r *http.Request) {
	if webUI.Application == nil || webUI.Config.Env == appconf.Production {
		http.NotFound(w, r)
		return
	}

	data, title := webUI.debugData(r.Context(), r.URL.Query().Get("dataType"))
	webUI.writeDebugData(w, title, data)
}

func (webUI *WebUI) debugData(ctx context.Context, dataType string) (any, string) {
	switch dataType {
	case "lines":
		if webUI.Registry == nil {
			return nil, "Map - Lines (no registry)"
		}
		return webUI.Registry.Index().Lines(), "Map - Lines"
	case "sessions":
		if webUI.Registry == nil {
			return nil, "Map - Sessions (no registry)"
		}
		return webUI.Registry.Sessions(), "Map - Sessions"
	case "reference":
		lines, stations := webUI.Reference.Counts()
		return map[string]any{
			"lines":         webUI.Reference.Lines(),
			"line_count":    lines,
			"station_count": stations,
		}, "Reference Data"
	case "tables":
		if webUI.Store == nil {
			return nil, "Database - Tables (no store)"
		}
		counts, err := webUI.Store.TableCounts(ctx)
		if err != nil {
			return map[string]string{"error": err.Error()}, "Database - Tables"
		}
		return counts, "Database - Tables"
	default:
		return map[string]string{
			"error": "Please use one of the following: lines, sessions, reference, tables.",
		}, "Choose a data type"
	}
}
