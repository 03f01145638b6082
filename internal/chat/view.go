// Package chat keeps the message list one connected client is looking at.
package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"synapsechat-backend/internal/content"
	"synapsechat-backend/internal/fileHandlers"
	"synapsechat-backend/internal/models"
	"synapsechat-backend/internal/session"
	"synapsechat-backend/internal/snowflake"
	"sync"
	"time"
)

var (
	ErrEmptyMessage = errors.New("empty_message")
	ErrNoChannel    = errors.New("no_channel")
)

// Viewer reports who is looking at the view. *session.Gate implements it.
type Viewer interface {
	State() session.State
}

// History supplies the messages a channel starts with. It never returns an empty list.
type History interface {
	Seed(ctx context.Context, viewer session.State, channel models.Channel) ([]models.Message, error)
}

// Backend takes a freshly built message. It may rewrite fields such as ImageURL.
type Backend interface {
	Persist(ctx context.Context, msg *models.Message) error
}

type View struct {
	viewer  Viewer
	history History
	backend Backend

	mutex        sync.Mutex
	channel      *models.Channel
	messages     []models.Message
	pendingImage string
}

func NewView(viewer Viewer, history History, backend Backend) *View {
	return &View{
		viewer:   viewer,
		history:  history,
		backend:  backend,
		messages: []models.Message{},
	}
}

// Select resets the list to the seed set of channel.
func (v *View) Select(ctx context.Context, channel models.Channel) error {
	seed, err := v.history.Seed(ctx, v.viewer.State(), channel)
	if err != nil {
		return err
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()

	v.channel = &channel
	v.messages = seed
	return nil
}

// Refresh seeds the open channel again, e.g. after the viewer's profile changed. Messages
// sent since the last seed are dropped, like switching back and forth would.
func (v *View) Refresh(ctx context.Context) error {
	channel := v.Channel()
	if channel == nil {
		return nil
	}

	seed, err := v.history.Seed(ctx, v.viewer.State(), *channel)
	if err != nil {
		return err
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()

	// another channel may have been selected meanwhile
	if v.channel == nil || v.channel.ID != channel.ID {
		return nil
	}
	v.messages = seed
	return nil
}

// Clear empties the list, used when nothing is selected.
func (v *View) Clear() {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	v.channel = nil
	v.messages = []models.Message{}
	v.pendingImage = ""
}

func (v *View) Channel() *models.Channel {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	if v.channel == nil {
		return nil
	}
	channel := *v.channel
	return &channel
}

func (v *View) Messages() []models.Message {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	messages := make([]models.Message, len(v.messages))
	copy(messages, v.messages)
	return messages
}

// AttachImage turns the upload into a preview held until the next Send.
// Files over 5MB are rejected before a single byte is read.
func (v *View) AttachImage(size int64, r io.Reader) (string, error) {
	preview, err := fileHandlers.DataURL(size, r, fileHandlers.MaxChatImageSize)
	if err != nil {
		return "", err
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()

	v.pendingImage = preview
	return preview, nil
}

func (v *View) PendingImage() string {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	return v.pendingImage
}

func (v *View) DiscardImage() {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	v.pendingImage = ""
}

// Send builds a message from draft and the pending image and appends it.
func (v *View) Send(ctx context.Context, draft string) (*models.Message, error) {
	text := strings.TrimSpace(draft)

	v.mutex.Lock()
	channel := v.channel
	image := v.pendingImage
	v.mutex.Unlock()

	if channel == nil {
		return nil, ErrNoChannel
	}
	if text == "" && image == "" {
		return nil, ErrEmptyMessage
	}

	id, err := snowflake.Generate()
	if err != nil {
		return nil, err
	}

	msg := newMessage(v.viewer.State(), id, channel.ID)
	if text != "" {
		msg.Text = &text
		msg.HTML = content.Render(text)
	}
	if image != "" {
		msg.ImageURL = &image
	}

	err = v.backend.Persist(ctx, &msg)
	if err != nil {
		return nil, err
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()

	// the selection may have moved on while persisting
	if v.channel != nil && v.channel.ID == msg.ChannelID {
		v.messages = append(v.messages, msg)
	}
	if v.pendingImage == image {
		v.pendingImage = ""
	}

	return &msg, nil
}

func newMessage(viewer session.State, id int64, channelID int64) models.Message {
	msg := models.Message{
		ID:                id,
		ChannelID:         channelID,
		SenderDisplayName: "You",
		Timestamp:         time.Now().UTC(),
	}

	if viewer.CurrentUser != nil {
		msg.SenderID = viewer.CurrentUser.UID
	}
	if viewer.UserProfile != nil {
		msg.SenderDisplayName = viewer.UserProfile.DisplayName
		if viewer.UserProfile.PhotoURL != "" {
			photoURL := viewer.UserProfile.PhotoURL
			msg.SenderPhotoURL = &photoURL
		}
	}

	return msg
}
