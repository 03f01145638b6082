package handlers

import (
	"context"
	"net/http"
	"synapsechat-backend/internal/chat"
	"synapsechat-backend/internal/dashboard"
	"synapsechat-backend/internal/hub"
	"synapsechat-backend/internal/session"
	"sync"
)

// workspace is what one browser tab is looking at, alive while its websocket is connected.
type workspace struct {
	userID int64
	gate   *session.Gate
	view   *chat.View
	shell  *dashboard.Shell
}

var workspaces = make(map[int64]*workspace)
var workspacesMutex sync.RWMutex

func setWorkspace(sessionID int64, ws *workspace) {
	workspacesMutex.Lock()
	workspaces[sessionID] = ws
	workspacesMutex.Unlock()
}

func deleteWorkspace(sessionID int64, ws *workspace) {
	workspacesMutex.Lock()
	if workspaces[sessionID] == ws {
		delete(workspaces, sessionID)
	}
	workspacesMutex.Unlock()
}

// getWorkspace returns the workspace of sessionID if it belongs to userID.
func getWorkspace(sessionID int64, userID int64) (*workspace, bool) {
	workspacesMutex.RLock()
	defer workspacesMutex.RUnlock()

	ws, exists := workspaces[sessionID]
	if !exists || ws.userID != userID {
		return nil, false
	}
	return ws, true
}

func forEachWorkspace(fn func(ws *workspace)) {
	workspacesMutex.RLock()
	list := make([]*workspace, 0, len(workspaces))
	for _, ws := range workspaces {
		list = append(list, ws)
	}
	workspacesMutex.RUnlock()

	for _, ws := range list {
		fn(ws)
	}
}

func HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	state := currentState(r)
	userID := state.CurrentUser.UID

	sessionID, err := readSessionCookie(r)
	if err != nil {
		http.Error(w, "No session", http.StatusBadRequest)
		return
	}

	gate := session.NewGate(sugar, broker.Stream(state.CurrentUser), profiles)
	view := chat.NewView(gate, history, chatBackend)
	ws := &workspace{
		userID: userID,
		gate:   gate,
		view:   view,
		shell:  dashboard.NewShell(view),
	}

	setWorkspace(sessionID, ws)
	defer deleteWorkspace(sessionID, ws)

	if !persistent {
		refreshCtx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// canned history shows the viewer's own name, keep it current
		gate.OnChange(func(state session.State) {
			if state.Loading || state.CurrentUser == nil {
				return
			}
			err := view.Refresh(refreshCtx)
			if err != nil {
				sugar.Error(err)
			}
		})
	}

	hub.HandleClient(w, r, sessionID, userID, gate, func(client *hub.Client) {
		openDefault(client, ws)
	})
}

// openDefault puts the newly connected tab on the first server and follows everything it shows.
func openDefault(client *hub.Client, ws *workspace) {
	ctx := client.Context()

	servers, err := directory.Servers(ctx, ws.userID)
	if err != nil {
		sugar.Error(err)
		return
	}
	for _, server := range servers {
		err = hub.Subscribe(hub.TopicServerList, server.ID, client.SessionID)
		if err != nil {
			sugar.Error(err)
		}
	}

	err = ws.shell.OpenDefault(ctx, directory, ws.userID)
	if err != nil {
		sugar.Error(err)
		return
	}

	followSelection(client.SessionID, ws.shell.Selection())
}

// followSelection subscribes the session to the selected server and channel.
func followSelection(sessionID int64, selection dashboard.Selection) {
	if selection.Server != nil {
		err := hub.Subscribe(hub.TopicServer, selection.Server.ID, sessionID)
		if err != nil {
			sugar.Error(err)
		}
	}
	if selection.Channel != nil {
		err := hub.Subscribe(hub.TopicChannel, selection.Channel.ID, sessionID)
		if err != nil {
			sugar.Error(err)
		}
	}
}
