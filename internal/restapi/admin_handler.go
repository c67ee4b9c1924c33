package restapi

import (
	"net/http"

	"cabview.railmap.org/internal/models"
	"cabview.railmap.org/internal/store"
)

func (api *RestAPI) contributorsHandler(w http.ResponseWriter, r *http.Request) {
	contributors, err := api.Store.Contributors(r.Context())
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	if contributors == nil {
		contributors = []store.Contributor{}
	}
	api.sendList(w, r, contributors)
}

func (api *RestAPI) userMappingsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	mappings, err := api.Store.MappingsByUser(r.Context(), userID)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	list := make([]models.MappingModel, 0, len(mappings))
	for _, m := range mappings {
		list = append(list, models.NewMappingModel(m))
	}
	api.sendList(w, r, list)
}
