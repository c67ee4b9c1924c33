package restapi

import (
	"errors"
	"net/http"

	"cabview.railmap.org/internal/logging"
	"cabview.railmap.org/internal/textproc"
)

type processStationRequest struct {
	Text string `json:"text" validate:"required,max=20000"`
}

type processStationResponse struct {
	Result string `json:"result"`
}

// processStationHandler turns a pasted chapter list into "time,station" CSV
// for the submit form.
func (api *RestAPI) processStationHandler(w http.ResponseWriter, r *http.Request) {
	var req processStationRequest
	if err := api.decodeJSON(w, r, &req); err != nil {
		api.sendError(w, r, http.StatusBadRequest, "テキストが必要です")
		return
	}
	if api.TextProcessor == nil {
		api.sendError(w, r, http.StatusServiceUnavailable, "text processing is not configured")
		return
	}

	result, err := api.TextProcessor.Convert(r.Context(), req.Text)
	switch {
	case err == nil:
		api.sendEntry(w, r, processStationResponse{Result: result})
	case errors.Is(err, textproc.ErrEmptyText):
		api.sendError(w, r, http.StatusBadRequest, "テキストが必要です")
	case errors.Is(err, textproc.ErrNoCSV):
		api.sendError(w, r, http.StatusUnprocessableEntity, "駅情報が見つかりませんでした")
	default:
		logging.LogError(api.requestLogger(r), "text processing failed", err)
		api.sendError(w, r, http.StatusInternalServerError, "テキストの処理に失敗しました")
	}
}
