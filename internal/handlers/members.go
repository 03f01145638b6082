package handlers

import (
	"net/http"
)

func GetMemberList(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)

	serverID, ok := queryID(r, "serverID")
	if !ok {
		http.Error(w, "Invalid server ID", http.StatusBadRequest)
		return
	}

	// only members may list members
	_, err := directory.Server(r.Context(), userID, serverID)
	if err != nil {
		handleError(w, err)
		return
	}

	members, err := db.ListMembers(r.Context(), serverID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, members)
}
