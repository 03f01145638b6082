package dashboard

import (
	"context"
	"errors"
	"synapsechat-backend/internal/models"
	"synapsechat-backend/internal/store"

	"github.com/samber/lo"
)

var ErrNotFound = errors.New("not_found")

// Directory lists what a user can open. Servers the user isn't a member of are reported as ErrNotFound.
type Directory interface {
	Servers(ctx context.Context, uid int64) ([]models.Server, error)
	Server(ctx context.Context, uid int64, serverID int64) (*models.Server, error)
	Channels(ctx context.Context, uid int64, serverID int64) ([]models.Channel, error)
	Channel(ctx context.Context, uid int64, channelID int64) (*models.Channel, error)
}

// OpenDefault selects the first server of the user and its first channel, if there is one.
func (s *Shell) OpenDefault(ctx context.Context, directory Directory, uid int64) error {
	servers, err := directory.Servers(ctx, uid)
	if err != nil || len(servers) == 0 {
		return err
	}

	channels, err := directory.Channels(ctx, uid, servers[0].ID)
	if err != nil {
		return err
	}

	return s.SelectServer(ctx, servers[0], channels)
}

// MockDirectory is the same three servers for everybody.
type MockDirectory struct{}

var mockServers = []models.Server{
	{ID: 1, Name: "Gaming Hub", IconURL: "https://placehold.co/48x48.png?text=GH"},
	{ID: 2, Name: "Study Group", IconURL: "https://placehold.co/48x48.png?text=SG"},
	{ID: 3, Name: "Art Club"},
}

var mockChannels = []models.Channel{
	{ID: 101, ServerID: 1, Name: "general", Type: models.ChannelTypeText},
	{ID: 102, ServerID: 1, Name: "valorant", Type: models.ChannelTypeText},
	{ID: 103, ServerID: 1, Name: "minecraft", Type: models.ChannelTypeText},
	{ID: 104, ServerID: 2, Name: "maths", Type: models.ChannelTypeText},
	{ID: 105, ServerID: 2, Name: "science-projects", Type: models.ChannelTypeText},
	{ID: 106, ServerID: 3, Name: "showcase", Type: models.ChannelTypeText},
	{ID: 107, ServerID: 3, Name: "inspiration", Type: models.ChannelTypeText},
}

func (MockDirectory) Servers(context.Context, int64) ([]models.Server, error) {
	servers := make([]models.Server, len(mockServers))
	copy(servers, mockServers)
	return servers, nil
}

func (MockDirectory) Server(_ context.Context, _ int64, serverID int64) (*models.Server, error) {
	server, found := lo.Find(mockServers, func(s models.Server) bool { return s.ID == serverID })
	if !found {
		return nil, ErrNotFound
	}
	return &server, nil
}

func (MockDirectory) Channels(_ context.Context, _ int64, serverID int64) ([]models.Channel, error) {
	return lo.Filter(mockChannels, func(c models.Channel, _ int) bool { return c.ServerID == serverID }), nil
}

func (MockDirectory) Channel(_ context.Context, _ int64, channelID int64) (*models.Channel, error) {
	channel, found := lo.Find(mockChannels, func(c models.Channel) bool { return c.ID == channelID })
	if !found {
		return nil, ErrNotFound
	}
	return &channel, nil
}

// StoreDirectory reads servers and channels from the database, limited to the user's memberships.
type StoreDirectory struct {
	Store *store.Store
}

func (d StoreDirectory) Servers(ctx context.Context, uid int64) ([]models.Server, error) {
	return d.Store.ListServers(ctx, uid)
}

func (d StoreDirectory) requireMember(ctx context.Context, uid int64, serverID int64) error {
	isMember, err := d.Store.IsServerMember(ctx, serverID, uid)
	if err != nil {
		return err
	}
	if !isMember {
		return ErrNotFound
	}
	return nil
}

func (d StoreDirectory) Server(ctx context.Context, uid int64, serverID int64) (*models.Server, error) {
	err := d.requireMember(ctx, uid, serverID)
	if err != nil {
		return nil, err
	}

	server, err := d.Store.GetServer(ctx, serverID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	if server.OwnerID != uid {
		server.InviteCode = ""
	}
	return server, nil
}

func (d StoreDirectory) Channels(ctx context.Context, uid int64, serverID int64) ([]models.Channel, error) {
	err := d.requireMember(ctx, uid, serverID)
	if err != nil {
		return nil, err
	}

	return d.Store.ListChannels(ctx, serverID)
}

func (d StoreDirectory) Channel(ctx context.Context, uid int64, channelID int64) (*models.Channel, error) {
	channel, err := d.Store.GetChannel(ctx, channelID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	err = d.requireMember(ctx, uid, channel.ServerID)
	if err != nil {
		return nil, err
	}
	return channel, nil
}
