package chat

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"synapsechat-backend/internal/fileHandlers"
	"synapsechat-backend/internal/models"
	"synapsechat-backend/internal/session"
	"testing"

	"github.com/stretchr/testify/require"
)

type staticViewer session.State

func (v staticViewer) State() session.State {
	return session.State(v)
}

var signedIn = staticViewer{
	CurrentUser: &session.AuthUser{UID: 42},
	UserProfile: &models.UserProfile{UID: 42, DisplayName: "Gopher", PhotoURL: "/cdn/avatars/gopher.webp"},
}

var general = models.Channel{ID: 10, ServerID: 1, Name: "general"}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("should not be read")
}

func fakePNG(size int) []byte {
	data := make([]byte, size)
	copy(data, "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	return data
}

type recordingBackend struct {
	persisted []models.Message
	err       error
}

func (b *recordingBackend) Persist(_ context.Context, msg *models.Message) error {
	if b.err != nil {
		return b.err
	}
	b.persisted = append(b.persisted, *msg)
	return nil
}

func TestView_SelectSeedsChannel(t *testing.T) {
	req := require.New(t)
	view := NewView(signedIn, CannedHistory{}, LocalBackend{})
	req.Empty(view.Messages())

	req.NoError(view.Select(context.Background(), general))

	messages := view.Messages()
	req.Len(messages, 4)
	req.Equal("Welcome to #general!", *messages[0].Text)
	req.Equal("Bob The Builder", messages[1].SenderDisplayName)
	req.Equal(int64(42), messages[2].SenderID)
	req.Equal("Gopher", messages[2].SenderDisplayName)
	req.NotNil(messages[3].ImageURL)

	for i := 1; i < len(messages); i++ {
		req.True(messages[i-1].Timestamp.Before(messages[i].Timestamp))
	}
	for _, msg := range messages {
		req.Equal(general.ID, msg.ChannelID)
	}

	view.Clear()
	req.Empty(view.Messages())
	req.Nil(view.Channel())
}

func TestView_SelectReseeds(t *testing.T) {
	req := require.New(t)
	view := NewView(signedIn, CannedHistory{}, LocalBackend{})
	req.NoError(view.Select(context.Background(), general))
	_, err := view.Send(context.Background(), "extra")
	req.NoError(err)
	req.Len(view.Messages(), 5)

	random := models.Channel{ID: 11, ServerID: 1, Name: "random"}
	req.NoError(view.Select(context.Background(), random))
	req.Len(view.Messages(), 4)
	req.Equal("Welcome to #random!", *view.Messages()[0].Text)
}

type switchableViewer struct {
	state session.State
}

func (v *switchableViewer) State() session.State {
	return v.state
}

func TestView_RefreshFollowsProfile(t *testing.T) {
	req := require.New(t)
	viewer := &switchableViewer{state: session.State(signedIn)}
	view := NewView(viewer, CannedHistory{}, LocalBackend{})

	// nothing open yet
	req.NoError(view.Refresh(context.Background()))
	req.Empty(view.Messages())

	req.NoError(view.Select(context.Background(), general))
	req.Equal("Gopher", view.Messages()[2].SenderDisplayName)

	viewer.state = session.State{
		CurrentUser: signedIn.CurrentUser,
		UserProfile: &models.UserProfile{UID: 42, DisplayName: "Renamed Gopher"},
	}
	req.NoError(view.Refresh(context.Background()))

	messages := view.Messages()
	req.Len(messages, 4)
	req.Equal("Renamed Gopher", messages[2].SenderDisplayName)
	req.Nil(messages[2].SenderPhotoURL)
	req.Equal(general.ID, view.Channel().ID)
}

func TestView_CannedFallbacksWhenSignedOut(t *testing.T) {
	req := require.New(t)
	view := NewView(staticViewer{}, CannedHistory{}, LocalBackend{})
	req.NoError(view.Select(context.Background(), general))

	me := view.Messages()[2]
	req.Equal(int64(3), me.SenderID)
	req.Equal("You", me.SenderDisplayName)
	req.Nil(me.SenderPhotoURL)
}

func TestView_Send(t *testing.T) {
	req := require.New(t)
	backend := &recordingBackend{}
	view := NewView(signedIn, CannedHistory{}, backend)

	_, err := view.Send(context.Background(), "hello")
	req.ErrorIs(err, ErrNoChannel)

	req.NoError(view.Select(context.Background(), general))

	_, err = view.Send(context.Background(), "   ")
	req.ErrorIs(err, ErrEmptyMessage)
	req.Len(view.Messages(), 4)

	msg, err := view.Send(context.Background(), "  hello **world**  ")
	req.NoError(err)
	req.Equal("hello **world**", *msg.Text)
	req.Contains(msg.HTML, "<strong>world</strong>")
	req.Equal(int64(42), msg.SenderID)
	req.Equal("Gopher", msg.SenderDisplayName)
	req.Equal("/cdn/avatars/gopher.webp", *msg.SenderPhotoURL)
	req.Nil(msg.ImageURL)

	messages := view.Messages()
	req.Len(messages, 5)
	req.Equal(msg.ID, messages[4].ID)
	req.Len(backend.persisted, 1)
}

func TestView_SendBackendError(t *testing.T) {
	req := require.New(t)
	backend := &recordingBackend{err: errors.New("database is down")}
	view := NewView(signedIn, CannedHistory{}, backend)
	req.NoError(view.Select(context.Background(), general))

	_, err := view.Send(context.Background(), "hello")
	req.Error(err)
	req.Len(view.Messages(), 4)
}

func TestView_OversizedImageRejectedBeforePreview(t *testing.T) {
	req := require.New(t)
	view := NewView(signedIn, CannedHistory{}, LocalBackend{})
	req.NoError(view.Select(context.Background(), general))

	_, err := view.AttachImage(6<<20, failingReader{})
	req.ErrorIs(err, fileHandlers.ErrTooLarge)
	req.Empty(view.PendingImage())
}

func TestView_ImageAttachedToNextMessage(t *testing.T) {
	req := require.New(t)
	view := NewView(signedIn, CannedHistory{}, LocalBackend{})
	req.NoError(view.Select(context.Background(), general))

	data := fakePNG(1 << 20)
	preview, err := view.AttachImage(int64(len(data)), bytes.NewReader(data))
	req.NoError(err)
	req.True(strings.HasPrefix(preview, "data:image/png;base64,"))
	req.Equal(preview, view.PendingImage())

	// an image alone is enough to send
	msg, err := view.Send(context.Background(), "")
	req.NoError(err)
	req.Nil(msg.Text)
	req.Equal(preview, *msg.ImageURL)

	// the preview is consumed
	req.Empty(view.PendingImage())
	_, err = view.Send(context.Background(), "")
	req.ErrorIs(err, ErrEmptyMessage)
}

func TestView_DiscardImage(t *testing.T) {
	req := require.New(t)
	view := NewView(signedIn, CannedHistory{}, LocalBackend{})
	data := fakePNG(1024)

	_, err := view.AttachImage(int64(len(data)), bytes.NewReader(data))
	req.NoError(err)
	view.DiscardImage()
	req.Empty(view.PendingImage())
}
