package handlers

import (
	"errors"
	"net/http"
	"synapsechat-backend/internal/hub"
	"synapsechat-backend/internal/store"
)

func CreateChannel(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)

	serverID, ok := queryID(r, "serverID")
	if !ok {
		http.Error(w, "Invalid server ID", http.StatusBadRequest)
		return
	}

	result, err := entityService.CreateChannel(r.Context(), userID, serverID, r.FormValue("name"))
	if err != nil {
		if errors.Is(err, store.ErrNotOwner) {
			sugar.Warnf("User ID [%d] tried to create a channel in server ID [%d] they don't own", userID, serverID)
		}
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func GetChannelList(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)
	sessionID := currentSessionID(r)

	serverID, ok := queryID(r, "serverID")
	if !ok {
		http.Error(w, "Invalid server ID", http.StatusBadRequest)
		return
	}

	channels, err := directory.Channels(r.Context(), userID, serverID)
	if err != nil {
		handleError(w, err)
		return
	}

	err = hub.Subscribe(hub.TopicServer, serverID, sessionID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, channels)
}
