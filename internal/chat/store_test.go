package chat

import (
	"bytes"
	"context"
	"strings"
	"synapsechat-backend/internal/database"
	"synapsechat-backend/internal/fileHandlers"
	"synapsechat-backend/internal/models"
	"synapsechat-backend/internal/session"
	"synapsechat-backend/internal/snowflake"
	"synapsechat-backend/internal/store"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	store   *store.Store
	owner   models.UserProfile
	channel models.Channel
	viewer  staticViewer
}

func newID(t *testing.T) int64 {
	t.Helper()
	id, err := snowflake.Generate()
	require.NoError(t, err)
	return id
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	req := require.New(t)
	ctx := context.Background()

	db, err := database.OpenSqlite(zap.NewNop().Sugar(), ":memory:")
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })
	s := store.New(db)

	fileHandlers.Setup(zap.NewNop().Sugar(), t.TempDir())

	owner := models.UserProfile{UID: newID(t), DisplayName: "Owner", Email: "owner@example.com"}
	req.NoError(s.CreateUser(ctx, owner, []byte("hash")))

	server := &models.Server{ID: newID(t), OwnerID: owner.UID, Name: "Gophers"}
	req.NoError(s.CreateServer(ctx, server))

	channel := &models.Channel{ID: newID(t), ServerID: server.ID, Name: "general"}
	req.NoError(s.CreateChannel(ctx, channel))

	return fixture{
		store:   s,
		owner:   owner,
		channel: *channel,
		viewer: staticViewer{
			CurrentUser: &session.AuthUser{UID: owner.UID},
			UserProfile: &owner,
		},
	}
}

func TestStoreHistory_EmptyChannelStillSeeded(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	messages, err := StoreHistory{Store: f.store}.Seed(context.Background(), session.State(f.viewer), f.channel)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal(WelcomeText("general"), *messages[0].Text)
}

func TestStoreBackend_PersistsAndSeeds(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	view := NewView(f.viewer, StoreHistory{Store: f.store}, StoreBackend{Store: f.store})
	req.NoError(view.Select(ctx, f.channel))

	first, err := view.Send(ctx, "first")
	req.NoError(err)

	data := fakePNG(4096)
	_, err = view.AttachImage(int64(len(data)), bytes.NewReader(data))
	req.NoError(err)
	second, err := view.Send(ctx, "second")
	req.NoError(err)

	// the data URL is swapped for the stored file
	req.True(strings.HasPrefix(*second.ImageURL, "/cdn/images/"))

	// a fresh view of the channel sees both, in order
	other := NewView(f.viewer, StoreHistory{Store: f.store}, StoreBackend{Store: f.store})
	req.NoError(other.Select(ctx, f.channel))
	messages := other.Messages()
	req.Len(messages, 2)
	req.Equal(first.ID, messages[0].ID)
	req.Equal(second.ID, messages[1].ID)
	req.Equal("Owner", messages[1].SenderDisplayName)
	req.Equal(*second.ImageURL, *messages[1].ImageURL)
	req.Contains(messages[0].HTML, "first")
}
