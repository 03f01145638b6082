package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"synapsechat-backend/internal/dashboard"
	"synapsechat-backend/internal/entities"
	"synapsechat-backend/internal/hub"
	"synapsechat-backend/internal/models"
	"synapsechat-backend/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		sugar.Error(err)
	}
}

func writeNotification(w http.ResponseWriter, status int, notification models.Notification) {
	writeJSON(w, status, notification)
}

// queryID reads a snowflake ID from the query string or form.
func queryID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.FormValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// handleError maps known errors to status codes, anything else is logged as a 500.
func handleError(w http.ResponseWriter, err error) {
	var validationErr *entities.ValidationError

	switch {
	case errors.As(err, &validationErr):
		writeNotification(w, http.StatusBadRequest, validationErr.Notification())
	case errors.Is(err, store.ErrNotFound), errors.Is(err, dashboard.ErrNotFound):
		http.Error(w, "", http.StatusNotFound)
	case errors.Is(err, store.ErrNotOwner):
		writeNotification(w, http.StatusForbidden, models.Failure("Error", "You don't own this server."))
	case errors.Is(err, store.ErrNotMember):
		http.Error(w, "", http.StatusForbidden)
	case errors.Is(err, store.ErrChannelExists), errors.Is(err, store.ErrAlreadyMember):
		http.Error(w, "", http.StatusConflict)
	default:
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
	}
}

// subscribeIfConnected follows topic for the requesting browser, if its websocket is up.
func subscribeIfConnected(r *http.Request, topic string, id int64) {
	sessionID, err := readSessionCookie(r)
	if err != nil {
		return
	}

	client, exists := hub.GetClient(sessionID)
	if !exists || client.UserID != currentUserID(r) {
		return
	}

	err = hub.Subscribe(topic, id, sessionID)
	if err != nil {
		sugar.Error(err)
	}
}
