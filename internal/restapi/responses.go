package restapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"cabview.railmap.org/internal/logging"
	"cabview.railmap.org/internal/models"
)

func (api *RestAPI) sendResponse(w http.ResponseWriter, r *http.Request, response models.ResponseModel) {
	api.sendResponseWithStatus(w, r, http.StatusOK, response)
}

func (api *RestAPI) sendResponseWithStatus(w http.ResponseWriter, r *http.Request, status int, response models.ResponseModel) {
	setJSONResponseType(&w)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logging.LogError(api.requestLogger(r), "failed to encode response", err)
	}
}

func (api *RestAPI) sendOK(w http.ResponseWriter, r *http.Request, data any) {
	api.sendResponse(w, r, models.NewOKResponse(data, api.Clock))
}

func (api *RestAPI) sendEntry(w http.ResponseWriter, r *http.Request, entry any) {
	api.sendResponse(w, r, models.NewEntryResponse(entry, api.Clock))
}

func (api *RestAPI) sendCreated(w http.ResponseWriter, r *http.Request, entry any) {
	resp := models.NewEntryResponse(entry, api.Clock)
	resp.Code = http.StatusCreated
	api.sendResponseWithStatus(w, r, http.StatusCreated, resp)
}

func (api *RestAPI) sendList(w http.ResponseWriter, r *http.Request, list any) {
	api.sendResponse(w, r, models.NewListResponse(list, api.Clock))
}

func (api *RestAPI) sendNotFound(w http.ResponseWriter, r *http.Request) {
	api.sendError(w, r, http.StatusNotFound, "resource not found")
}

func (api *RestAPI) sendForbidden(w http.ResponseWriter, r *http.Request) {
	api.sendError(w, r, http.StatusForbidden, "permission denied")
}

func setJSONResponseType(w *http.ResponseWriter) {
	(*w).Header().Set("Content-Type", "application/json")
}

func (api *RestAPI) sendError(w http.ResponseWriter, r *http.Request, code int, message string) {
	api.sendResponseWithStatus(w, r, code, models.NewErrorResponse(code, message, api.Clock))
}

func (api *RestAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	logging.LogError(api.requestLogger(r), "internal server error", err,
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))
	api.sendError(w, r, http.StatusInternalServerError, "internal server error")
}

// requestLogger prefers the logger placed in the context by the request
// logging middleware, which already carries the request id.
func (api *RestAPI) requestLogger(r *http.Request) *slog.Logger {
	if ctxLogger := logging.FromContext(r.Context()); ctxLogger != slog.Default() {
		return ctxLogger
	}
	logger := api.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if id := GetRequestID(r.Context()); id != "" {
		logger = logger.With(slog.String("request_id", id))
	}
	return logger
}
