package store

import (
	"context"
	"strconv"
	"synapsechat-backend/internal/database"
	"synapsechat-backend/internal/models"
	"synapsechat-backend/internal/snowflake"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.OpenSqlite(zap.NewNop().Sugar(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return New(db)
}

func newID(t *testing.T) int64 {
	t.Helper()
	id, err := snowflake.Generate()
	require.NoError(t, err)
	return id
}

func createUser(t *testing.T, s *Store, name string) models.UserProfile {
	t.Helper()
	profile := models.UserProfile{
		UID:         newID(t),
		DisplayName: name,
		Email:       name + "@example.com",
	}
	require.NoError(t, s.CreateUser(context.Background(), profile, []byte("hash")))
	return profile
}

func createServer(t *testing.T, s *Store, owner models.UserProfile, name string) *models.Server {
	t.Helper()
	server := &models.Server{ID: newID(t), OwnerID: owner.UID, Name: name}
	require.NoError(t, s.CreateServer(context.Background(), server))
	return server
}

func TestStore_Profiles(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newTestStore(t)

	alice := createUser(t, s, "alice")

	// Given the same email again
	err := s.CreateUser(ctx, models.UserProfile{UID: newID(t), DisplayName: "other", Email: alice.Email}, []byte("hash"))
	req.ErrorIs(err, ErrEmailTaken)

	profile, err := s.GetProfile(ctx, alice.UID)
	req.NoError(err)
	req.Equal("alice", profile.DisplayName)
	req.Equal(snowflake.Time(alice.UID), profile.CreatedAt)

	// A missing profile is not an error
	profile, err = s.GetProfile(ctx, 42)
	req.NoError(err)
	req.Nil(profile)

	creds, err := s.GetCredentials(ctx, alice.Email)
	req.NoError(err)
	req.Equal(alice.UID, creds.UID)

	_, err = s.GetCredentials(ctx, "nobody@example.com")
	req.ErrorIs(err, ErrNotFound)

	req.NoError(s.UpdateDisplayName(ctx, alice.UID, "Alice W"))
	req.NoError(s.UpdatePhotoURL(ctx, alice.UID, "/cdn/avatars/a.webp"))
	profile, err = s.GetProfile(ctx, alice.UID)
	req.NoError(err)
	req.Equal("Alice W", profile.DisplayName)
	req.Equal("/cdn/avatars/a.webp", profile.PhotoURL)

	req.NoError(s.DeleteUser(ctx, alice.UID))
	exists, err := s.UserExists(ctx, alice.UID)
	req.NoError(err)
	req.False(exists)
	req.ErrorIs(s.DeleteUser(ctx, alice.UID), ErrNotFound)
}

func TestStore_FindOrCreateUser(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newTestStore(t)

	alice := createUser(t, s, "alice")

	heidi := models.UserProfile{UID: newID(t), DisplayName: "Heidi", Email: "heidi@example.com", PhotoURL: "https://example.com/h.png"}
	profile, created, err := s.FindOrCreateUser(ctx, heidi)
	req.NoError(err)
	req.True(created)
	req.Equal(heidi.UID, profile.UID)
	req.Equal(snowflake.Time(heidi.UID), profile.CreatedAt)

	// Provider accounts have no password
	creds, err := s.GetCredentials(ctx, heidi.Email)
	req.NoError(err)
	req.Empty(creds.Password)

	profile, created, err = s.FindOrCreateUser(ctx, models.UserProfile{UID: newID(t), DisplayName: "Other", Email: heidi.Email})
	req.NoError(err)
	req.False(created)
	req.Equal(heidi.UID, profile.UID)
	req.Equal("Heidi", profile.DisplayName)
	req.Equal("https://example.com/h.png", profile.PhotoURL)

	// An existing password account is reused as is
	profile, created, err = s.FindOrCreateUser(ctx, models.UserProfile{UID: newID(t), DisplayName: "Alice G", Email: alice.Email})
	req.NoError(err)
	req.False(created)
	req.Equal(alice.UID, profile.UID)

	creds, err = s.GetCredentials(ctx, alice.Email)
	req.NoError(err)
	req.Equal([]byte("hash"), creds.Password)
}

func TestStore_InviteCodesAreUnique(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	owner := createUser(t, s, "owner")

	codes := []string{"AAAAAAAA", "AAAAAAAA", "BBBBBBBB"}
	original := NewInviteCode
	NewInviteCode = func() string {
		code := codes[0]
		codes = codes[1:]
		return code
	}
	defer func() { NewInviteCode = original }()

	first := createServer(t, s, owner, "Gaming Hub")
	second := createServer(t, s, owner, "Study Group")

	req.Equal("AAAAAAAA", first.InviteCode)
	// the colliding code was retried
	req.Equal("BBBBBBBB", second.InviteCode)
	req.Equal([]string{strconv.FormatInt(owner.UID, 10)}, second.Members)
}

func TestStore_JoinServer(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newTestStore(t)

	owner := createUser(t, s, "owner")
	bob := createUser(t, s, "bob")
	server := createServer(t, s, owner, "Art Club")

	_, err := s.JoinServer(ctx, "does-not-exist", bob.UID)
	req.ErrorIs(err, ErrInviteNotFound)

	joined, err := s.JoinServer(ctx, " "+server.InviteCode+" ", bob.UID)
	req.NoError(err)
	req.Equal(server.ID, joined.ID)
	req.Len(joined.Members, 2)

	_, err = s.JoinServer(ctx, server.InviteCode, bob.UID)
	req.ErrorIs(err, ErrAlreadyMember)

	isMember, err := s.IsServerMember(ctx, server.ID, bob.UID)
	req.NoError(err)
	req.True(isMember)

	// bob sees the server but not its invite code
	servers, err := s.ListServers(ctx, bob.UID)
	req.NoError(err)
	req.Len(servers, 1)
	req.Empty(servers[0].InviteCode)

	members, err := s.ListMembers(ctx, server.ID)
	req.NoError(err)
	req.Len(members, 2)
}

func TestStore_ServerOwnership(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newTestStore(t)

	owner := createUser(t, s, "owner")
	bob := createUser(t, s, "bob")
	server := createServer(t, s, owner, "Gaming Hub")

	req.ErrorIs(s.RenameServer(ctx, server.ID, bob.UID, "Mine"), ErrNotOwner)
	req.ErrorIs(s.DeleteServer(ctx, server.ID, bob.UID), ErrNotOwner)
	req.ErrorIs(s.RenameServer(ctx, 1, owner.UID, "Mine"), ErrNotFound)

	req.NoError(s.RenameServer(ctx, server.ID, owner.UID, "Gaming Hub 2"))

	code, err := s.RegenerateInviteCode(ctx, server.ID, owner.UID)
	req.NoError(err)
	req.Len(code, inviteCodeLength)

	got, err := s.GetServer(ctx, server.ID)
	req.NoError(err)
	req.Equal("Gaming Hub 2", got.Name)
	req.Equal(code, got.InviteCode)

	req.NoError(s.DeleteServer(ctx, server.ID, owner.UID))
	_, err = s.GetServer(ctx, server.ID)
	req.ErrorIs(err, ErrNotFound)
}

func TestStore_ChannelsAndMessages(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newTestStore(t)

	owner := createUser(t, s, "owner")
	bob := createUser(t, s, "bob")
	server := createServer(t, s, owner, "Gaming Hub")

	general := &models.Channel{ID: newID(t), ServerID: server.ID, Name: "general"}
	req.NoError(s.CreateChannel(ctx, general))
	req.Equal(models.ChannelTypeText, general.Type)

	err := s.CreateChannel(ctx, &models.Channel{ID: newID(t), ServerID: server.ID, Name: "general"})
	req.ErrorIs(err, ErrChannelExists)

	valorant := &models.Channel{ID: newID(t), ServerID: server.ID, Name: "valorant"}
	req.NoError(s.CreateChannel(ctx, valorant))

	channels, err := s.ListChannels(ctx, server.ID)
	req.NoError(err)
	req.Equal([]string{"general", "valorant"}, []string{channels[0].Name, channels[1].Name})

	text := "hello"
	image := "/cdn/attachments/abc.png"
	first := &models.Message{ID: newID(t), ChannelID: general.ID, SenderID: owner.UID, Text: &text}
	second := &models.Message{ID: newID(t), ChannelID: general.ID, SenderID: bob.UID, ImageURL: &image}
	third := &models.Message{ID: newID(t), ChannelID: general.ID, SenderID: owner.UID, Text: &text}
	for _, msg := range []*models.Message{first, second, third} {
		req.NoError(s.CreateMessage(ctx, msg))
	}
	req.Equal("bob", second.SenderDisplayName)
	req.Nil(second.Text)

	added, err := s.ToggleReaction(ctx, first.ID, bob.UID, "👍")
	req.NoError(err)
	req.True(added)
	_, err = s.ToggleReaction(ctx, first.ID, owner.UID, "👍")
	req.NoError(err)

	// newest two, oldest first
	messages, err := s.ListMessages(ctx, general.ID, 2)
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal(second.ID, messages[0].ID)
	req.Equal(third.ID, messages[1].ID)
	req.Empty(messages[0].Emojis)
	req.Empty(messages[1].Emojis)

	_, err = s.ToggleReaction(ctx, third.ID, bob.UID, "🔥")
	req.NoError(err)
	messages, err = s.ListMessages(ctx, general.ID, 2)
	req.NoError(err)
	req.Equal([]string{strconv.FormatInt(bob.UID, 10)}, messages[1].Emojis["🔥"])
	req.Empty(messages[0].Emojis)

	messages, err = s.ListMessages(ctx, valorant.ID, 50)
	req.NoError(err)
	req.Empty(messages)

	messages, err = s.ListMessages(ctx, general.ID, 50)
	req.NoError(err)
	req.Len(messages, 3)
	req.Len(messages[0].Emojis["👍"], 2)
	req.Len(messages[2].Emojis["🔥"], 1)

	added, err = s.ToggleReaction(ctx, first.ID, bob.UID, "👍")
	req.NoError(err)
	req.False(added)

	got, err := s.GetMessage(ctx, first.ID)
	req.NoError(err)
	req.Equal([]string{strconv.FormatInt(owner.UID, 10)}, got.Emojis["👍"])

	// only the sender can delete
	_, err = s.DeleteMessage(ctx, first.ID, bob.UID)
	req.ErrorIs(err, ErrNotFound)
	channelID, err := s.DeleteMessage(ctx, first.ID, owner.UID)
	req.NoError(err)
	req.Equal(general.ID, channelID)

	messages, err = s.ListMessages(ctx, general.ID, 50)
	req.NoError(err)
	req.Len(messages, 2)
}

func TestStore_CreateServerWithChannels(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newTestStore(t)
	owner := createUser(t, s, "owner")

	text := "Welcome to #general!"
	server := &models.Server{ID: newID(t), OwnerID: owner.UID, Name: "Gophers"}
	general := NewChannel{
		Channel: &models.Channel{ID: newID(t), Name: "general"},
		Welcome: &models.Message{ID: newID(t), SenderID: owner.UID, Text: &text},
	}
	req.NoError(s.CreateServer(ctx, server, general))

	channels, err := s.ListChannels(ctx, server.ID)
	req.NoError(err)
	req.Len(channels, 1)
	req.Equal(server.ID, channels[0].ServerID)

	messages, err := s.ListMessages(ctx, general.Channel.ID, 50)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal(text, *messages[0].Text)

	// When a channel can't be inserted nothing of the server is kept
	broken := &models.Server{ID: newID(t), OwnerID: owner.UID, Name: "Broken"}
	err = s.CreateServer(ctx, broken,
		NewChannel{Channel: &models.Channel{ID: newID(t), Name: "general"}},
		NewChannel{Channel: &models.Channel{ID: newID(t), Name: "general"}},
	)
	req.ErrorIs(err, ErrChannelExists)

	_, err = s.GetServer(ctx, broken.ID)
	req.ErrorIs(err, ErrNotFound)

	isMember, err := s.IsServerMember(ctx, broken.ID, owner.UID)
	req.NoError(err)
	req.False(isMember)
}
