package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"synapsechat-backend/internal/fileHandlers"
	"synapsechat-backend/internal/hub"
	"synapsechat-backend/internal/models"
	"synapsechat-backend/internal/validator"
)

const maxCreateServerForm = fileHandlers.MaxAvatarSize + 1<<20

func CreateServer(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)

	r.Body = http.MaxBytesReader(w, r.Body, maxCreateServerForm)

	var icon []byte
	iconFile, _, err := r.FormFile("icon")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	case err != nil:
		sugar.Debug(err)
		writeNotification(w, http.StatusBadRequest, models.Failure("Error", "Icon image must be less than 2MB."))
		return
	default:
		defer iconFile.Close()
		// one byte over the limit is enough for validation to reject it
		icon, err = io.ReadAll(io.LimitReader(iconFile, fileHandlers.MaxAvatarSize+1))
		if err != nil {
			sugar.Error(err)
			http.Error(w, "", http.StatusInternalServerError)
			return
		}
	}

	result, err := entityService.CreateServer(r.Context(), userID, r.FormValue("name"), icon)
	if err != nil {
		handleError(w, err)
		return
	}

	if result.Server != nil {
		subscribeIfConnected(r, hub.TopicServerList, result.Server.ID)
	}

	writeJSON(w, http.StatusOK, result)
}

func JoinServer(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)

	result, err := entityService.JoinServer(r.Context(), userID, r.FormValue("inviteCode"))
	if err != nil {
		handleError(w, err)
		return
	}

	if result.OK && result.Server != nil {
		subscribeIfConnected(r, hub.TopicServerList, result.Server.ID)
	}

	writeJSON(w, http.StatusOK, result)
}

func GetServerList(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)
	sessionID := currentSessionID(r)

	servers, err := directory.Servers(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	for _, server := range servers {
		err = hub.Subscribe(hub.TopicServerList, server.ID, sessionID)
		if err != nil {
			sugar.Error(err)
			http.Error(w, "", http.StatusInternalServerError)
			return
		}
	}

	writeJSON(w, http.StatusOK, servers)
}

func DeleteServer(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)

	serverID, ok := queryID(r, "serverID")
	if !ok {
		http.Error(w, "Invalid server ID", http.StatusBadRequest)
		return
	}

	err := db.DeleteServer(r.Context(), serverID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	forEachWorkspace(func(ws *workspace) { ws.shell.ServerRemoved(serverID) })

	err = hub.Emit(hub.ServerDeleted, hub.TopicServerList, serverID, serverID)
	if err != nil {
		sugar.Error(err)
	}

	writeNotification(w, http.StatusOK, models.Success("Server Deleted", ""))
}

func RenameServer(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)

	serverID, ok := queryID(r, "serverID")
	if !ok {
		http.Error(w, "No server ID was specified for rename", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	err := validator.ServerName(name)
	if err != nil {
		writeNotification(w, http.StatusBadRequest, models.Failure("Error", validator.Message(err)))
		return
	}

	err = db.RenameServer(r.Context(), serverID, userID, name)
	if err != nil {
		handleError(w, err)
		return
	}

	server, err := db.GetServer(r.Context(), serverID)
	if err != nil {
		handleError(w, err)
		return
	}
	server.InviteCode = ""

	err = hub.Emit(hub.ServerModified, hub.TopicServerList, server, serverID)
	if err != nil {
		sugar.Error(err)
	}

	writeJSON(w, http.StatusOK, server)
}

func RegenerateInviteCode(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)

	serverID, ok := queryID(r, "serverID")
	if !ok {
		http.Error(w, "Invalid server ID", http.StatusBadRequest)
		return
	}

	code, err := db.RegenerateInviteCode(r.Context(), serverID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"inviteCode": code})
}
