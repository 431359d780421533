package httptransport

import (
	"net/http"

	"slot-lobby/internal/directory"
	"slot-lobby/internal/lobby"
)

type TableHandlers struct {
	app *lobby.App
}

func NewTableHandlers(app *lobby.App) *TableHandlers {
	return &TableHandlers{app: app}
}

type tablesResponse struct {
	Filters   directory.Filters `json:"filters"`
	Tables    []directory.Table `json:"tables"`
	Favorites []string          `json:"favorites"`
}

// List serves the filtered grid. filters is the JSON-encoded query value
// the lobby URL carries.
func (h *TableHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := directory.ParseFilters(r.URL.Query().Get("filters"))
		tables := h.app.VisibleTables(f, r.URL.Query().Get("exclude"))
		writeJSON(w, http.StatusOK, tablesResponse{
			Filters:   f,
			Tables:    tables,
			Favorites: h.app.Directory.Favorites(),
		})
	}
}

func (h *TableHandlers) Refresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.app.RefreshTables(r.Context()); err != nil {
			writeLobbyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": len(h.app.Directory.Tables())})
	}
}

type favoriteRequest struct {
	TableID directory.TableID `json:"tableId"`
}

func (h *TableHandlers) ToggleFavorite() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req favoriteRequest
		if err := decodeJSON(r, &req); err != nil || req.TableID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		fav, err := h.app.ToggleFavorite(r.Context(), req.TableID)
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"tableId":   req.TableID,
			"isFav":     fav,
			"favorites": h.app.Directory.Favorites(),
		})
	}
}
