package restapi

import (
	"errors"
	"log/slog"
	"net/http"

	"cabview.railmap.org/internal/mapview"
	"cabview.railmap.org/internal/models"
	"cabview.railmap.org/internal/playback"
	"cabview.railmap.org/internal/railway"
	"cabview.railmap.org/internal/submission"
)

type sessionResponse struct {
	ID        string             `json:"id"`
	ElementID string             `json:"elementId"`
	Lines     []models.LineModel `json:"lines"`
}

type clickRequest struct {
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lon *float64 `json:"lon" validate:"required,longitude"`
}

type selectionRequest struct {
	VideoID  string `json:"videoId" validate:"required"`
	LineCode string `json:"lineCode" validate:"required"`
}

type playRequest struct {
	VideoID      string `json:"videoId" validate:"required"`
	StartSeconds int    `json:"startSeconds" validate:"gte=0"`
}

type playResponse struct {
	Playback string `json:"playback"`
}

// session looks up the map session named in the path and writes a 404 when
// it does not exist.
func (api *RestAPI) session(w http.ResponseWriter, r *http.Request) (*mapview.Session, bool) {
	s, ok := api.Registry.Get(r.PathValue("id"))
	if !ok {
		api.sendNotFound(w, r)
		return nil, false
	}
	return s, true
}

func (api *RestAPI) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	s := api.Registry.Create()
	idx := s.Index()
	api.sendCreated(w, r, sessionResponse{
		ID:        s.ID(),
		ElementID: s.Playback().ElementID(),
		Lines:     models.NewLineModels(idx.Lines()),
	})
}

func (api *RestAPI) sessionInfoHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := api.session(w, r)
	if !ok {
		return
	}
	api.sendEntry(w, r, s.Info())
}

func (api *RestAPI) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !api.Registry.Remove(r.PathValue("id")) {
		api.sendNotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *RestAPI) clickHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := api.session(w, r)
	if !ok {
		return
	}
	var req clickRequest
	if err := api.decodeJSON(w, r, &req); err != nil {
		api.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	result := s.HandleClick(r.Context(), railway.Point{Lat: *req.Lat, Lon: *req.Lon})
	api.sendEntry(w, r, result)
}

func (api *RestAPI) selectLineHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := api.session(w, r)
	if !ok {
		return
	}
	var req selectionRequest
	if err := api.decodeJSON(w, r, &req); err != nil {
		api.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	key := railway.LineKey{VideoID: req.VideoID, LineCode: req.LineCode}
	if err := s.SelectLine(key); err != nil {
		if errors.Is(err, mapview.ErrUnknownLine) {
			api.sendNotFound(w, r)
			return
		}
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendEntry(w, r, key)
}

func (api *RestAPI) clearSelectionHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := api.session(w, r)
	if !ok {
		return
	}
	s.ClearSelection()
	w.WriteHeader(http.StatusNoContent)
}

// playHandler backs the play button in station popups.
func (api *RestAPI) playHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := api.session(w, r)
	if !ok {
		return
	}
	var req playRequest
	if err := api.decodeJSON(w, r, &req); err != nil {
		api.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := submission.ValidateVideoID(req.VideoID); err != nil {
		api.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	state := s.Play(r.Context(), req.VideoID, req.StartSeconds)
	api.sendEntry(w, r, playResponse{Playback: state.String()})
}

// playerHandler upgrades to the websocket the browser player widget listens
// on, and serves it until the widget disconnects.
func (api *RestAPI) playerHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := api.session(w, r)
	if !ok {
		return
	}

	upgrader := playback.NewUpgrader(api.Config.AllowedOrigins)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		api.requestLogger(r).Warn("player websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	logger := api.requestLogger(r).With(slog.String("session_id", s.ID()))
	s.Touch()
	if err := playback.Serve(r.Context(), conn, s.Playback(), logger); err != nil {
		logger.Debug("player websocket closed", slog.String("error", err.Error()))
	}
}
