package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"synapsechat-backend/internal/chat"
	"synapsechat-backend/internal/fileHandlers"
	"synapsechat-backend/internal/hub"
	"synapsechat-backend/internal/models"
	"synapsechat-backend/internal/validator"
)

func GetMessageList(w http.ResponseWriter, r *http.Request) {
	state := currentState(r)
	userID := state.CurrentUser.UID

	channelID, ok := queryID(r, "channelID")
	if !ok {
		http.Error(w, "Invalid channel ID", http.StatusBadRequest)
		return
	}

	channel, err := directory.Channel(r.Context(), userID, channelID)
	if err != nil {
		handleError(w, err)
		return
	}

	var messages []models.Message

	// without storage the open view is the only place sent messages live
	ws, exists := getWorkspace(currentSessionID(r), userID)
	if !persistent && exists {
		if open := ws.view.Channel(); open != nil && open.ID == channelID {
			messages = ws.view.Messages()
		}
	}

	if messages == nil {
		messages, err = history.Seed(r.Context(), state, *channel)
		if err != nil {
			sugar.Error(err)
			http.Error(w, "", http.StatusInternalServerError)
			return
		}
	}

	err = hub.Subscribe(hub.TopicChannel, channelID, currentSessionID(r))
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

// AttachImage holds an image for the next message of the session and returns its preview.
func AttachImage(w http.ResponseWriter, r *http.Request) {
	ws, ok := requestWorkspace(w, r)
	if !ok {
		return
	}

	if r.FormValue("discard") == "true" {
		ws.view.DiscardImage()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		sugar.Debug(err)
		http.Error(w, "", http.StatusBadRequest)
		return
	}
	defer file.Close()

	preview, err := ws.view.AttachImage(header.Size, file)
	switch {
	case errors.Is(err, fileHandlers.ErrTooLarge):
		writeNotification(w, http.StatusRequestEntityTooLarge, models.Failure("Error", "File is too large. Max 5MB."))
		return
	case errors.Is(err, fileHandlers.ErrNotImage):
		writeNotification(w, http.StatusUnsupportedMediaType, models.Failure("Error", "Only images can be attached."))
		return
	case err != nil:
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"preview": preview})
}

func CreateMessage(w http.ResponseWriter, r *http.Request) {
	type CreateMessageRequest struct {
		Text string `json:"text"`
	}

	ws, ok := requestWorkspace(w, r)
	if !ok {
		return
	}

	var messageRequest CreateMessageRequest
	err := json.NewDecoder(r.Body).Decode(&messageRequest)
	if err != nil {
		sugar.Debug(err)
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	msg, err := ws.view.Send(r.Context(), messageRequest.Text)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		http.Error(w, "Message is empty", http.StatusBadRequest)
		return
	case errors.Is(err, chat.ErrNoChannel):
		http.Error(w, "No channel selected", http.StatusConflict)
		return
	case err != nil:
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)

	messageID, ok := queryID(r, "messageID")
	if !ok {
		http.Error(w, "Invalid message ID", http.StatusBadRequest)
		return
	}

	channelID, err := db.DeleteMessage(r.Context(), messageID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	err = hub.Emit(hub.MessageDeleted, hub.TopicChannel, map[string]string{"id": strconv.FormatInt(messageID, 10)}, channelID)
	if err != nil {
		sugar.Error(err)
	}

	w.WriteHeader(http.StatusNoContent)
}

func ReactToMessage(w http.ResponseWriter, r *http.Request) {
	type ReactionRequest struct {
		Emoji string `json:"emoji" validate:"required,max=32"`
	}

	userID := currentUserID(r)

	messageID, ok := queryID(r, "messageID")
	if !ok {
		http.Error(w, "Invalid message ID", http.StatusBadRequest)
		return
	}

	reaction := ReactionRequest{Emoji: r.FormValue("emoji")}
	fieldErrors, err := validator.Struct(reaction)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	if fieldErrors != nil {
		http.Error(w, "Invalid emoji", http.StatusBadRequest)
		return
	}

	msg, err := db.GetMessage(r.Context(), messageID)
	if err != nil {
		handleError(w, err)
		return
	}

	// reacting requires access to the channel
	_, err = directory.Channel(r.Context(), userID, msg.ChannelID)
	if err != nil {
		handleError(w, err)
		return
	}

	_, err = db.ToggleReaction(r.Context(), messageID, userID, reaction.Emoji)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	msg, err = db.GetMessage(r.Context(), messageID)
	if err != nil {
		handleError(w, err)
		return
	}

	err = hub.Emit(hub.MessageModified, hub.TopicChannel, msg, msg.ChannelID)
	if err != nil {
		sugar.Error(err)
	}

	writeJSON(w, http.StatusOK, msg)
}
