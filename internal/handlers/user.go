package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"synapsechat-backend/internal/fileHandlers"
	"synapsechat-backend/internal/jwt"
	"synapsechat-backend/internal/models"
	"synapsechat-backend/internal/validator"
)

func GetUserInfo(w http.ResponseWriter, r *http.Request) {
	state := currentState(r)

	paramUserID := r.URL.Query().Get("userID")
	if paramUserID == "" {
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	if paramUserID == "self" || paramUserID == strconv.FormatInt(state.CurrentUser.UID, 10) {
		if state.UserProfile == nil {
			http.Error(w, "", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, state.UserProfile)
		return
	}

	requestedUserID, err := strconv.ParseInt(paramUserID, 10, 64)
	if err != nil {
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	profile, err := profiles.FetchProfile(r.Context(), requestedUserID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	if profile == nil {
		http.Error(w, "", http.StatusNotFound)
		return
	}

	// other users never see the email
	public := *profile
	public.Email = ""
	writeJSON(w, http.StatusOK, public)
}

// UpdateUserInfo changes the display name and/or the picture. Every live session refetches the profile.
func UpdateUserInfo(w http.ResponseWriter, r *http.Request) {
	state := currentState(r)
	userID := state.CurrentUser.UID

	displayName := strings.TrimSpace(r.FormValue("displayName"))
	if displayName != "" {
		err := validator.DisplayName(displayName)
		if err != nil {
			writeNotification(w, http.StatusBadRequest, models.Failure("Error", validator.Message(err)))
			return
		}

		err = db.UpdateDisplayName(r.Context(), userID, displayName)
		if err != nil {
			sugar.Error(err)
			http.Error(w, "", http.StatusInternalServerError)
			return
		}
	}

	pictureURL, err := fileHandlers.HandlePicture(r, "picture", fileHandlers.Avatar)
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	case errors.Is(err, fileHandlers.ErrTooLarge):
		writeNotification(w, http.StatusRequestEntityTooLarge, models.Failure("Error", "Picture must be less than 2MB."))
		return
	case errors.Is(err, fileHandlers.ErrNotImage):
		writeNotification(w, http.StatusUnsupportedMediaType, models.Failure("Error", "Picture must be an image."))
		return
	case err != nil:
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	default:
		err = db.UpdatePhotoURL(r.Context(), userID, pictureURL)
		if err != nil {
			sugar.Error(err)
			http.Error(w, "", http.StatusInternalServerError)
			return
		}
	}

	profiles.Invalidate(userID)
	broker.Publish(userID, state.CurrentUser)

	profile, err := profiles.FetchProfile(r.Context(), userID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

func DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)

	err := db.DeleteUser(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	forgetUser(r, userID)

	deleteCookie := jwt.DeleteCookie()
	http.SetCookie(w, &deleteCookie)

	broker.Publish(userID, nil)

	writeNotification(w, http.StatusOK, models.Success("Account Deleted", "Your account has been deleted."))
}
