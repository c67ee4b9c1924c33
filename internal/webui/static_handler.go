package webui

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var allowedStaticExtensions = map[string]bool{
	".html": true, ".css": true, ".js": true, ".json": true,
	".png": true, ".jpg": true, ".jpeg": true, ".svg": true,
	".ico": true,
}

// staticHandler serves the flat files of StaticDir: the map page, its
// scripts and marker icons.
func (webUI *WebUI) staticHandler(w http.ResponseWriter, r *http.Request) {
	fileName := filepath.Base(r.URL.Path)

	ext := strings.ToLower(filepath.Ext(fileName))
	if !allowedStaticExtensions[ext] {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	if strings.Contains(fileName, "..") || strings.ContainsAny(fileName, `/\`) {
		http.Error(w, "Invalid file name", http.StatusBadRequest)
		return
	}

	staticDir, err := filepath.Abs(StaticDir)
	if err != nil {
		http.Error(w, "Internal configuration error", http.StatusInternalServerError)
		return
	}
	absPath := filepath.Join(staticDir, fileName)

	rel, err := filepath.Rel(staticDir, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		webUI.logger().Warn("potential path traversal attempt blocked", slog.String("path", absPath))
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	stat, err := os.Stat(absPath)
	if err != nil || stat.IsDir() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	http.ServeFile(w, r, absPath)
}
