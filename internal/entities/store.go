package entities

import (
	"context"
	"errors"
	"fmt"
	"synapsechat-backend/internal/chat"
	"synapsechat-backend/internal/fileHandlers"
	"synapsechat-backend/internal/hub"
	"synapsechat-backend/internal/models"
	"synapsechat-backend/internal/snowflake"
	"synapsechat-backend/internal/store"

	"go.uber.org/zap"
)

// DefaultChannelName is created with every server so it can be opened right away.
const DefaultChannelName = "general"

// Store persists entities and tells connected clients about them.
type Store struct {
	Store *store.Store
	Sugar *zap.SugaredLogger
}

func (b Store) CreateServer(ctx context.Context, ownerID int64, name string, icon []byte) (Result, error) {
	serverID, err := snowflake.Generate()
	if err != nil {
		return Result{}, err
	}

	server := &models.Server{
		ID:      serverID,
		Name:    name,
		OwnerID: ownerID,
	}

	if len(icon) > 0 {
		server.IconURL, err = fileHandlers.Store(ctx, icon, fileHandlers.Avatar)
		if err != nil {
			return Result{}, err
		}
	}

	general, err := newChannel(ownerID, serverID, DefaultChannelName)
	if err != nil {
		return Result{}, err
	}

	// the server never exists without its default channel
	err = b.Store.CreateServer(ctx, server, general)
	if err != nil {
		return Result{}, err
	}
	b.emit(hub.ChannelCreated, hub.TopicServer, general.Channel, serverID)

	return Result{
		OK:           true,
		Notification: models.Success("Server Created", fmt.Sprintf("Server %q was created.", name)),
		Server:       server,
	}, nil
}

func (b Store) JoinServer(ctx context.Context, userID int64, code string) (Result, error) {
	server, err := b.Store.JoinServer(ctx, code, userID)
	if errors.Is(err, store.ErrInviteNotFound) {
		return Result{
			Notification: models.Failure("Failed", fmt.Sprintf("Could not find server with code %q.", code)),
		}, nil
	} else if errors.Is(err, store.ErrAlreadyMember) {
		server.InviteCode = ""
		return Result{
			Notification: models.Success("Already a member", fmt.Sprintf("You are already a member of %q.", server.Name)),
			Server:       server,
		}, nil
	} else if err != nil {
		return Result{}, err
	}

	if server.OwnerID != userID {
		server.InviteCode = ""
	}

	member, err := b.Store.GetProfile(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if member != nil {
		member.Email = ""
		b.emit(hub.MemberJoined, hub.TopicServer, member, server.ID)
	}
	b.emit(hub.ServerModified, hub.TopicServerList, server, server.ID)

	return Result{
		OK:           true,
		Notification: models.Success("Joined Server", fmt.Sprintf("Successfully joined %q.", server.Name)),
		Server:       server,
	}, nil
}

func (b Store) CreateChannel(ctx context.Context, userID int64, serverID int64, name string) (Result, error) {
	isOwner, err := b.Store.IsServerOwner(ctx, serverID, userID)
	if err != nil {
		return Result{}, err
	}
	if !isOwner {
		return Result{}, store.ErrNotOwner
	}

	channel, err := b.createChannel(ctx, userID, serverID, name)
	if errors.Is(err, store.ErrChannelExists) {
		return Result{
			Notification: models.Failure("Error", fmt.Sprintf("A channel named \"#%s\" already exists.", name)),
		}, nil
	} else if err != nil {
		return Result{}, err
	}

	return Result{
		OK:           true,
		Notification: models.Success("Channel Created", fmt.Sprintf("Channel \"#%s\" was created.", name)),
		Channel:      channel,
	}, nil
}

// createChannel inserts the channel with its welcome message so its history is never empty.
func (b Store) createChannel(ctx context.Context, authorID int64, serverID int64, name string) (*models.Channel, error) {
	channel, err := newChannel(authorID, serverID, name)
	if err != nil {
		return nil, err
	}

	err = b.Store.AddChannel(ctx, channel)
	if err != nil {
		return nil, err
	}

	b.emit(hub.ChannelCreated, hub.TopicServer, channel.Channel, serverID)
	return channel.Channel, nil
}

func newChannel(authorID int64, serverID int64, name string) (store.NewChannel, error) {
	channelID, err := snowflake.Generate()
	if err != nil {
		return store.NewChannel{}, err
	}

	messageID, err := snowflake.Generate()
	if err != nil {
		return store.NewChannel{}, err
	}

	text := chat.WelcomeText(name)
	return store.NewChannel{
		Channel: &models.Channel{
			ID:       channelID,
			ServerID: serverID,
			Name:     name,
			Type:     models.ChannelTypeText,
		},
		Welcome: &models.Message{
			ID:        messageID,
			ChannelID: channelID,
			SenderID:  authorID,
			Text:      &text,
		},
	}, nil
}

// emit failures are logged only, the entity was already saved.
func (b Store) emit(messageType string, topic string, payload any, id int64) {
	err := hub.Emit(messageType, topic, payload, id)
	if err != nil && b.Sugar != nil {
		b.Sugar.Error(err)
	}
}
