package restapi

import (
	"errors"
	"net/http"
	"strconv"

	"cabview.railmap.org/internal/auth"
	"cabview.railmap.org/internal/models"
	"cabview.railmap.org/internal/store"
)

type createReportRequest struct {
	MappingID int64  `json:"mappingId" validate:"required,gt=0"`
	Reason    string `json:"reason" validate:"required,max=1000"`
}

type updateReportRequest struct {
	Status string `json:"status" validate:"required,oneof=pending reviewed resolved rejected"`
}

func (api *RestAPI) createReportHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())

	var req createReportRequest
	if err := api.decodeJSON(w, r, &req); err != nil {
		api.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	report, err := api.Store.CreateReport(r.Context(), req.MappingID, userID, req.Reason)
	if errors.Is(err, store.ErrNotFound) {
		api.sendNotFound(w, r)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendCreated(w, r, models.NewReportModel(report))
}

func (api *RestAPI) listReportsHandler(w http.ResponseWriter, r *http.Request) {
	reports, err := api.Store.ListReports(r.Context())
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	list := make([]models.ReportModel, 0, len(reports))
	for _, report := range reports {
		list = append(list, models.NewReportModel(report))
	}
	api.sendList(w, r, list)
}

func (api *RestAPI) updateReportHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		api.sendError(w, r, http.StatusBadRequest, "invalid report id")
		return
	}

	var req updateReportRequest
	if err := api.decodeJSON(w, r, &req); err != nil {
		api.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	status, err := store.ParseReportStatus(req.Status)
	if err != nil {
		api.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	switch err := api.Store.UpdateReportStatus(r.Context(), id, status); {
	case errors.Is(err, store.ErrNotFound):
		api.sendNotFound(w, r)
	case err != nil:
		api.serverErrorResponse(w, r, err)
	default:
		api.sendEntry(w, r, map[string]any{"id": id, "status": status})
	}
}
