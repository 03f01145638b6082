package handlers

import (
	"errors"
	"net/http"
	"synapsechat-backend/internal/dashboard"
	"synapsechat-backend/internal/hub"
	"synapsechat-backend/internal/models"
)

type selectionResponse struct {
	dashboard.Selection
	Messages     []models.Message `json:"messages"`
	PendingImage string           `json:"pendingImage,omitempty"`
}

// requestWorkspace returns the workspace of the websocket behind the request. A 409 is
// written when there is none.
func requestWorkspace(w http.ResponseWriter, r *http.Request) (*workspace, bool) {
	ws, exists := getWorkspace(currentSessionID(r), currentUserID(r))
	if !exists {
		http.Error(w, "No workspace for this session", http.StatusConflict)
		return nil, false
	}
	return ws, true
}

func writeSelection(w http.ResponseWriter, ws *workspace) {
	writeJSON(w, http.StatusOK, selectionResponse{
		Selection:    ws.shell.Selection(),
		Messages:     ws.view.Messages(),
		PendingImage: ws.view.PendingImage(),
	})
}

func GetSelection(w http.ResponseWriter, r *http.Request) {
	ws, ok := requestWorkspace(w, r)
	if !ok {
		return
	}

	writeSelection(w, ws)
}

func SelectServer(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)

	serverID, ok := queryID(r, "serverID")
	if !ok {
		http.Error(w, "Invalid server ID", http.StatusBadRequest)
		return
	}

	ws, ok := requestWorkspace(w, r)
	if !ok {
		return
	}

	server, err := directory.Server(r.Context(), userID, serverID)
	if err != nil {
		handleError(w, err)
		return
	}

	channels, err := directory.Channels(r.Context(), userID, serverID)
	if err != nil {
		handleError(w, err)
		return
	}

	err = ws.shell.SelectServer(r.Context(), *server, channels)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	selection := ws.shell.Selection()
	if selection.Channel == nil {
		unfollowChannel(r)
	}
	followSelection(currentSessionID(r), selection)

	writeSelection(w, ws)
}

func SelectChannel(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)

	channelID, ok := queryID(r, "channelID")
	if !ok {
		http.Error(w, "Invalid channel ID", http.StatusBadRequest)
		return
	}

	ws, ok := requestWorkspace(w, r)
	if !ok {
		return
	}

	channel, err := directory.Channel(r.Context(), userID, channelID)
	if err != nil {
		handleError(w, err)
		return
	}

	err = ws.shell.SelectChannel(r.Context(), *channel)
	switch {
	case errors.Is(err, dashboard.ErrNoServer):
		http.Error(w, "No server selected", http.StatusBadRequest)
		return
	case errors.Is(err, dashboard.ErrChannelNotInServer):
		http.Error(w, "Channel is not in the selected server", http.StatusConflict)
		return
	case err != nil:
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	followSelection(currentSessionID(r), ws.shell.Selection())

	writeSelection(w, ws)
}

func ClearSelection(w http.ResponseWriter, r *http.Request) {
	ws, ok := requestWorkspace(w, r)
	if !ok {
		return
	}

	selection := ws.shell.Selection()
	ws.shell.Clear()

	sessionID := currentSessionID(r)
	if selection.Server != nil {
		err := hub.Unsubscribe(hub.TopicServer, selection.Server.ID, sessionID)
		if err != nil {
			sugar.Error(err)
		}
	}
	unfollowChannel(r)

	writeSelection(w, ws)
}

// unfollowChannel stops channel events for the session when nothing is open anymore.
func unfollowChannel(r *http.Request) {
	err := hub.UnsubscribeCurrent(hub.TopicChannel, currentSessionID(r))
	if err != nil {
		sugar.Error(err)
	}
}
