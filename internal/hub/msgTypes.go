package hub

const (
	ServerDeleted  = "ServerDeleted"
	ServerModified = "ServerModified"
	MemberJoined   = "MemberJoined"

	ChannelCreated  = "ChannelCreated"
	ChannelDeleted  = "ChannelDeleted"
	ChannelModified = "ChannelModified"

	MessageCreated  = "MessageCreated"
	MessageDeleted  = "MessageDeleted"
	MessageModified = "MessageModified"

	SignedOut = "SignedOut"
)

// Topics a session can be subscribed to. A session follows one channel and one server at a
// time, but every server in its server list.
const (
	TopicChannel    = "channel"
	TopicServer     = "server"
	TopicServerList = "server_list"
)
