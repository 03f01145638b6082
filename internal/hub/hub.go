package hub

import (
	"context"
	"net/http"
	"synapsechat-backend/internal/session"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	writeWait        = 10 * time.Second
	localQueueLength = 64
)

type Client struct {
	UserID           int64
	SessionID        int64
	Conn             *websocket.Conn
	Gate             *session.Gate
	CurrentServerID  int64
	CurrentChannelID int64
	PubSub           *redis.PubSub
	LocalChannel     chan string

	ctx        context.Context
	cancel     context.CancelFunc
	mutex      sync.Mutex
	writeMutex sync.Mutex
}

var clients = make(map[int64]*Client)
var clientsMutex sync.RWMutex

var sugar = zap.NewNop().Sugar()
var redisClient *redis.Client
var selfContained = true
var prefix string
var localPubSub = NewLocalPubSub()

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Setup selects redis pub/sub when redisClient isn't nil, in-process fan-out otherwise.
func Setup(_sugar *zap.SugaredLogger, _redisClient *redis.Client, keyPrefix string) {
	sugar = _sugar
	redisClient = _redisClient
	selfContained = _redisClient == nil
	prefix = keyPrefix + ":"
}

// HandleClient upgrades the connection and serves it until either side closes it or the
// gate reports the user signed out. gate must not be started yet. onReady, if not nil, runs
// once the client is registered and the gate resolved.
func HandleClient(w http.ResponseWriter, r *http.Request, sessionID int64, userID int64, gate *session.Gate, onReady func(*Client)) {
	sugar.Debugf("Connecting user ID [%d] to WebSocket", userID)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader already replied
		sugar.Debug(err)
		return
	}
	defer conn.Close()

	clientCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &Client{
		UserID:       userID,
		SessionID:    sessionID,
		Conn:         conn,
		Gate:         gate,
		LocalChannel: make(chan string, localQueueLength),
		ctx:          clientCtx,
		cancel:       cancel,
	}

	if !selfContained {
		client.PubSub = redisClient.Subscribe(clientCtx)
		defer client.PubSub.Close()
	}

	setClient(sessionID, client)
	defer deleteClient(sessionID, client)

	gate.OnChange(func(state session.State) {
		if state.Loading || state.CurrentUser != nil {
			return
		}
		sugar.Debugf("User ID [%d] signed out, closing session ID [%d]", userID, sessionID)
		client.signOut()
	})
	gate.Start(clientCtx)
	defer gate.Close()

	if gate.State().CurrentUser == nil {
		return
	}

	if onReady != nil {
		onReady(client)
	}

	go client.forward()

	// listening to incoming messages directly from client, only to notice disconnects
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sugar.Debug(err)
			}
			break
		}
	}
}

// forward sends pub/sub messages to the websocket until the client goes away.
func (c *Client) forward() {
	var redisMessages <-chan *redis.Message
	if c.PubSub != nil {
		redisMessages = c.PubSub.Channel()
	}

	for {
		var frame string

		select {
		case <-c.ctx.Done():
			return
		case frame = <-c.LocalChannel:
		case msg, ok := <-redisMessages:
			if !ok {
				return
			}
			frame = msg.Payload
		}

		err := c.write(websocket.TextMessage, []byte(frame))
		if err != nil {
			sugar.Debug(err)
			c.cancel()
			return
		}
	}
}

func (c *Client) Context() context.Context {
	return c.ctx
}

func (c *Client) write(messageType int, data []byte) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err != nil {
		return err
	}
	return c.Conn.WriteMessage(messageType, data)
}

func (c *Client) signOut() {
	frame, err := Frame(SignedOut, c.SessionID)
	if err == nil {
		err = c.write(websocket.TextMessage, []byte(frame))
	}
	if err != nil {
		sugar.Debug(err)
	}
	c.close()
}

func (c *Client) close() {
	c.cancel()
	// unblocks the read loop
	err := c.Conn.Close()
	if err != nil {
		sugar.Debug(err)
	}
}

func (c *Client) subscribe(key string) error {
	if c.PubSub == nil {
		localPubSub.Subscribe(key, c.SessionID)
		return nil
	}
	return c.PubSub.Subscribe(c.ctx, key)
}

func (c *Client) unsubscribe(key string) error {
	if c.PubSub == nil {
		localPubSub.Unsubscribe(key, c.SessionID)
		return nil
	}
	return c.PubSub.Unsubscribe(c.ctx, key)
}

func setClient(sessionID int64, client *Client) {
	sugar.Debugf("Adding user ID [%d] to clients as session ID [%d]", client.UserID, sessionID)
	clientsMutex.Lock()
	defer clientsMutex.Unlock()

	// a reconnect with the same session replaces the old connection
	if old, exists := clients[sessionID]; exists {
		// the new connection starts without a selection, drop what the old one followed
		localPubSub.UnsubscribeFromAll(sessionID)
		go old.close()
	}
	clients[sessionID] = client
}

func deleteClient(sessionID int64, client *Client) {
	clientsMutex.Lock()
	defer clientsMutex.Unlock()

	// the session may have been taken over by a newer connection
	if clients[sessionID] != client {
		return
	}

	sugar.Debugf("Removing Session ID [%d] from clients", sessionID)
	delete(clients, sessionID)
	localPubSub.UnsubscribeFromAll(sessionID)
}

func GetClient(sessionID int64) (*Client, bool) {
	clientsMutex.RLock()
	defer clientsMutex.RUnlock()

	client, exists := clients[sessionID]
	return client, exists
}

// Shutdown closes every websocket, http.Server.Shutdown doesn't track hijacked connections.
func Shutdown() {
	clientsMutex.RLock()
	defer clientsMutex.RUnlock()

	for _, client := range clients {
		client.close()
	}
}
