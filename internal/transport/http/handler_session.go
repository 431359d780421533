package httptransport

import (
	"net/http"
	"strconv"

	"slot-lobby/internal/history"
	"slot-lobby/internal/lobby"
)

type SessionHandlers struct {
	app *lobby.App
}

func NewSessionHandlers(app *lobby.App) *SessionHandlers {
	return &SessionHandlers{app: app}
}

func (h *SessionHandlers) State() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, h.app.Snapshot())
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *SessionHandlers) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		metricLoginTotal.Add(1)
		if err := h.app.Login(r.Context(), req.Username, req.Password); err != nil {
			metricLoginErrors.Add(1)
			writeLobbyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.app.Snapshot())
	}
}

func (h *SessionHandlers) Signup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req lobby.SignupForm
		if err := decodeJSON(r, &req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if err := h.app.Signup(r.Context(), req); err != nil {
			writeLobbyError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
	}
}

func (h *SessionHandlers) ChangePassword() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req lobby.PasswordForm
		if err := decodeJSON(r, &req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if err := h.app.ChangePassword(r.Context(), req); err != nil {
			writeLobbyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.app.Snapshot())
	}
}

func (h *SessionHandlers) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.app.Logout(r.Context()); err != nil {
			writeLobbyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.app.Snapshot())
	}
}

type adoptResponse struct {
	State lobby.Snapshot `json:"state"`
	Table any            `json:"table,omitempty"`
}

// AdoptLaunch takes over a session handed in by an external launcher.
func (h *SessionHandlers) AdoptLaunch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req lobby.LaunchParams
		if err := decodeJSON(r, &req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		table, err := h.app.AdoptLaunchToken(r.Context(), req)
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		resp := adoptResponse{State: h.app.Snapshot()}
		if table != nil {
			resp.Table = table
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *SessionHandlers) History() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := history.Filters{TableID: q.Get("tableId")}
		f.Page, _ = strconv.Atoi(q.Get("page"))
		f.PageSize, _ = strconv.Atoi(q.Get("pageSize"))
		f.StartDate, _ = strconv.ParseInt(q.Get("startDate"), 10, 64)
		f.EndDate, _ = strconv.ParseInt(q.Get("endDate"), 10, 64)

		page, err := h.app.History(r.Context(), f)
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		if page == nil {
			WriteHTTPError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func (h *SessionHandlers) Balance() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		v, ok := h.app.Balance()
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"known": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"known": true, "balance": v})
	}
}

func (h *SessionHandlers) DismissPopup() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		h.app.DismissPopup()
		w.WriteHeader(http.StatusNoContent)
	}
}

// Visible is called when the page becomes visible again.
func (h *SessionHandlers) Visible() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		h.app.Socket.BecameVisible()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *SessionHandlers) NetworkOnline() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		h.app.Socket.NetworkRestored()
		w.WriteHeader(http.StatusNoContent)
	}
}
