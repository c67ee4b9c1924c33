package restapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"cabview.railmap.org/internal/auth"
	"cabview.railmap.org/internal/logging"
	"cabview.railmap.org/internal/models"
	"cabview.railmap.org/internal/railway"
	"cabview.railmap.org/internal/store"
	"cabview.railmap.org/internal/submission"
)

type stationInput struct {
	Time string `json:"time" validate:"required"`
	Name string `json:"name" validate:"required"`
}

type submitLineRequest struct {
	VideoID  string         `json:"videoId" validate:"required"`
	LineName string         `json:"lineName" validate:"required"`
	CSV      string         `json:"csv" validate:"required_without=Stations"`
	Stations []stationInput `json:"stations" validate:"omitempty,dive"`
}

func (req submitLineRequest) entries() ([]submission.Entry, error) {
	return stationEntries(req.CSV, req.Stations)
}

// addStationsRequest extends an existing line with a single station, a
// station list or CSV rows.
type addStationsRequest struct {
	Time     string         `json:"time" validate:"required_with=Name"`
	Name     string         `json:"name" validate:"required_with=Time"`
	CSV      string         `json:"csv" validate:"required_without_all=Stations Name"`
	Stations []stationInput `json:"stations" validate:"omitempty,dive"`
}

func (req addStationsRequest) entries() ([]submission.Entry, error) {
	if req.Name != "" {
		return stationEntries("", []stationInput{{Time: req.Time, Name: req.Name}})
	}
	return stationEntries(req.CSV, req.Stations)
}

func stationEntries(csv string, stations []stationInput) ([]submission.Entry, error) {
	if len(stations) == 0 {
		return submission.ParseCSVEntries(csv)
	}
	entries := make([]submission.Entry, 0, len(stations))
	for i, s := range stations {
		start, err := submission.ParseTimestamp(s.Time)
		if err != nil {
			return nil, &submission.RowError{Row: i + 1, Err: err}
		}
		entries = append(entries, submission.Entry{StationName: s.Name, StartTime: start})
	}
	return entries, nil
}

var submissionErrors = []error{
	submission.ErrMissingVideoID,
	submission.ErrInvalidVideoID,
	submission.ErrUnknownLine,
	submission.ErrUnknownStation,
	submission.ErrMalformedRow,
	submission.ErrInvalidTimestamp,
	submission.ErrNoStations,
	submission.ErrNegativeStart,
	submission.ErrDuplicateStation,
}

func isSubmissionError(err error) bool {
	for _, target := range submissionErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (api *RestAPI) listLinesHandler(w http.ResponseWriter, r *http.Request) {
	lines, err := api.Store.ListLines(r.Context())
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendList(w, r, models.NewLineModels(lines))
}

func (api *RestAPI) submitLineHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())

	var req submitLineRequest
	if err := api.decodeJSON(w, r, &req); err != nil {
		api.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := req.entries()
	if err != nil {
		api.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	line, err := submission.BuildLine(req.VideoID, req.LineName, entries, userID, api.Reference)
	if err != nil {
		if isSubmissionError(err) {
			api.sendError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		api.serverErrorResponse(w, r, err)
		return
	}

	if err := api.Store.AddLine(r.Context(), line); err != nil {
		switch {
		case errors.Is(err, store.ErrLineExists):
			api.sendError(w, r, http.StatusConflict, "line already exists for this video, add stations to it instead")
		case errors.Is(err, store.ErrDuplicate):
			api.sendError(w, r, http.StatusConflict, err.Error())
		default:
			api.serverErrorResponse(w, r, err)
		}
		return
	}
	api.reloadMap(r)

	logging.LogOperation(api.requestLogger(r), "line_submitted",
		slog.String("video_id", line.VideoID),
		slog.String("line_code", line.LineCode),
		slog.Int("stations", len(line.Stations)),
		slog.String("user_id", userID))

	api.sendCreated(w, r, models.NewLineModel(line))
}

// canEditLine reports whether userID may change a line submitted by owner.
// On false the response has been written.
func (api *RestAPI) canEditLine(w http.ResponseWriter, r *http.Request, owner, userID string) bool {
	if owner == userID {
		return true
	}
	isAdmin, err := api.Store.IsAdmin(r.Context(), userID)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return false
	}
	if !isAdmin {
		api.sendForbidden(w, r)
		return false
	}
	return true
}

// addStationsHandler appends stations to an existing line. Only its
// submitter or an admin may.
func (api *RestAPI) addStationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	ctx := r.Context()

	line, err := api.Store.GetLine(ctx, r.PathValue("videoId"), r.PathValue("lineCode"))
	if errors.Is(err, store.ErrNotFound) {
		api.sendNotFound(w, r)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	if !api.canEditLine(w, r, line.UserID, userID) {
		return
	}

	var req addStationsRequest
	if err := api.decodeJSON(w, r, &req); err != nil {
		api.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := req.entries()
	if err != nil {
		api.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	stations, err := submission.BuildStations(line.LineCode, entries, line.Stations, api.Reference)
	if err != nil {
		if isSubmissionError(err) {
			api.sendError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		api.serverErrorResponse(w, r, err)
		return
	}

	for _, st := range stations {
		_, err := api.Store.AddStationMapping(ctx, store.Mapping{
			StationCode: st.Code,
			StationName: st.Name,
			VideoID:     line.VideoID,
			StartTime:   st.StartTime,
			Lat:         st.Lat,
			Lon:         st.Lon,
			LineName:    line.LineName,
			LineCode:    line.LineCode,
			UserID:      userID,
		})
		if errors.Is(err, store.ErrDuplicate) {
			api.reloadMap(r)
			api.sendError(w, r, http.StatusConflict, fmt.Sprintf("station %s is already on the line", st.Name))
			return
		}
		if err != nil {
			api.serverErrorResponse(w, r, err)
			return
		}
	}
	api.reloadMap(r)

	logging.LogOperation(api.requestLogger(r), "stations_added",
		slog.String("line", line.Key().String()),
		slog.Int("stations", len(stations)),
		slog.String("user_id", userID))

	line.Stations = append(line.Stations, stations...)
	api.sendCreated(w, r, models.NewLineModel(line))
}

// deleteLineHandler removes a line. Only its submitter or an admin may.
func (api *RestAPI) deleteLineHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	key := railway.LineKey{VideoID: r.PathValue("videoId"), LineCode: r.PathValue("lineCode")}

	owner, err := api.Store.LineOwner(r.Context(), key.VideoID, key.LineCode)
	if errors.Is(err, store.ErrNotFound) {
		api.sendNotFound(w, r)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	if !api.canEditLine(w, r, owner, userID) {
		return
	}

	if err := api.Store.DeleteLine(r.Context(), key.VideoID, key.LineCode); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.sendNotFound(w, r)
			return
		}
		api.serverErrorResponse(w, r, err)
		return
	}
	api.reloadMap(r)

	logging.LogOperation(api.requestLogger(r), "line_deleted",
		slog.String("line", key.String()),
		slog.String("user_id", userID))
	w.WriteHeader(http.StatusNoContent)
}

func (api *RestAPI) deleteMappingHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		api.sendError(w, r, http.StatusBadRequest, "invalid mapping id")
		return
	}
	if err := api.Store.DeleteMapping(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.sendNotFound(w, r)
			return
		}
		api.serverErrorResponse(w, r, err)
		return
	}
	api.reloadMap(r)
	w.WriteHeader(http.StatusNoContent)
}

// reloadMap rebuilds the shared station index after a data change.
func (api *RestAPI) reloadMap(r *http.Request) {
	if api.Registry != nil {
		api.Registry.Reload(r.Context())
	}
}
