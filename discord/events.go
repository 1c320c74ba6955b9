package discord

// events.go contains the structures of all received dispatch events and
// decodes them into a closed set of variants.

// Dispatch event names.
const (
	EventReady                  = "READY"
	EventReadySupplemental      = "READY_SUPPLEMENTAL"
	EventResumed                = "RESUMED"
	EventMessageCreate          = "MESSAGE_CREATE"
	EventMessageUpdate          = "MESSAGE_UPDATE"
	EventMessageDelete          = "MESSAGE_DELETE"
	EventMessageDeleteBulk      = "MESSAGE_DELETE_BULK"
	EventMessageAck             = "MESSAGE_ACK"
	EventReactionAdd            = "MESSAGE_REACTION_ADD"
	EventReactionRemove         = "MESSAGE_REACTION_REMOVE"
	EventReactionRemoveAll      = "MESSAGE_REACTION_REMOVE_ALL"
	EventTypingStart            = "TYPING_START"
	EventPresenceUpdate         = "PRESENCE_UPDATE"
	EventChannelCreate          = "CHANNEL_CREATE"
	EventChannelUpdate          = "CHANNEL_UPDATE"
	EventChannelDelete          = "CHANNEL_DELETE"
	EventChannelRecipientAdd    = "CHANNEL_RECIPIENT_ADD"
	EventChannelRecipientRemove = "CHANNEL_RECIPIENT_REMOVE"
	EventThreadCreate           = "THREAD_CREATE"
	EventThreadUpdate           = "THREAD_UPDATE"
	EventThreadDelete           = "THREAD_DELETE"
	EventGuildCreate            = "GUILD_CREATE"
	EventGuildDelete            = "GUILD_DELETE"
	EventGuildEmojisUpdate      = "GUILD_EMOJIS_UPDATE"
	EventRelationshipAdd        = "RELATIONSHIP_ADD"
	EventRelationshipRemove     = "RELATIONSHIP_REMOVE"
	EventUserGuildSettings      = "USER_GUILD_SETTINGS_UPDATE"
)

// Event is implemented by every decoded dispatch payload.
type Event interface {
	EventName() string
}

// Ready represents when the client has completed the initial handshake.
type Ready struct {
	User              User                `json:"user"`
	SessionID         string              `json:"session_id"`
	ResumeGatewayURL  string              `json:"resume_gateway_url,omitempty"`
	PrivateChannels   []Channel           `json:"private_channels"`
	Guilds            []Guild             `json:"guilds"`
	ReadState         []ReadState         `json:"read_state"`
	UserGuildSettings []UserGuildSettings `json:"user_guild_settings"`
	Relationships     []Relationship      `json:"relationships"`
	Presences         []Presence          `json:"presences"`
	Users             []User              `json:"users"`
	Version           int32               `json:"v"`
}

func (*Ready) EventName() string { return EventReady }

// ReadySupplemental carries presences that did not fit into READY.
type ReadySupplemental struct {
	MergedPresences struct {
		Friends []Presence   `json:"friends"`
		Guilds  [][]Presence `json:"guilds"`
	} `json:"merged_presences"`
}

func (*ReadySupplemental) EventName() string { return EventReadySupplemental }

// Resumed represents the response to a resume event.
type Resumed struct{}

func (*Resumed) EventName() string { return EventResumed }

// MessageCreate represents a message create event.
type MessageCreate Message

func (*MessageCreate) EventName() string { return EventMessageCreate }

// MessageUpdate represents a message update event. Only ID and ChannelID
// are guaranteed to be present. Fields holds every key the payload carried
// so partial updates can be overlaid on a stored message.
type MessageUpdate struct {
	Fields map[string]any `json:"-"`
	Message
}

func (*MessageUpdate) EventName() string { return EventMessageUpdate }

// MessageDelete represents a message delete event.
type MessageDelete struct {
	ID        Snowflake `json:"id"`
	ChannelID Snowflake `json:"channel_id"`
	GuildID   Snowflake `json:"guild_id,omitempty"`
}

func (*MessageDelete) EventName() string { return EventMessageDelete }

// MessageDeleteBulk represents a message delete bulk event.
type MessageDeleteBulk struct {
	IDs       []Snowflake `json:"ids"`
	ChannelID Snowflake   `json:"channel_id"`
	GuildID   Snowflake   `json:"guild_id,omitempty"`
}

func (*MessageDeleteBulk) EventName() string { return EventMessageDeleteBulk }

// MessageAck is sent when a channel is marked as read.
type MessageAck struct {
	ChannelID    Snowflake `json:"channel_id"`
	MessageID    Snowflake `json:"message_id"`
	MentionCount int32     `json:"mention_count,omitempty"`
	Version      int64     `json:"version,omitempty"`
}

func (*MessageAck) EventName() string { return EventMessageAck }

// MessageReactionAdd represents a message reaction add event.
type MessageReactionAdd struct {
	Emoji     Emoji     `json:"emoji"`
	UserID    Snowflake `json:"user_id"`
	ChannelID Snowflake `json:"channel_id"`
	MessageID Snowflake `json:"message_id"`
	GuildID   Snowflake `json:"guild_id,omitempty"`
}

func (*MessageReactionAdd) EventName() string { return EventReactionAdd }

// MessageReactionRemove represents a message reaction remove event.
type MessageReactionRemove MessageReactionAdd

func (*MessageReactionRemove) EventName() string { return EventReactionRemove }

// MessageReactionRemoveAll represents a message reaction remove all event.
type MessageReactionRemoveAll struct {
	ChannelID Snowflake `json:"channel_id"`
	MessageID Snowflake `json:"message_id"`
	GuildID   Snowflake `json:"guild_id,omitempty"`
}

func (*MessageReactionRemoveAll) EventName() string { return EventReactionRemoveAll }

// TypingStart represents a typing start event.
type TypingStart struct {
	ChannelID Snowflake `json:"channel_id"`
	GuildID   Snowflake `json:"guild_id,omitempty"`
	UserID    Snowflake `json:"user_id"`
	Timestamp int64     `json:"timestamp"`
}

func (*TypingStart) EventName() string { return EventTypingStart }

// PresenceUpdate represents a presence update event.
type PresenceUpdate Presence

func (*PresenceUpdate) EventName() string { return EventPresenceUpdate }

// ChannelCreate represents a channel create event.
type ChannelCreate Channel

func (*ChannelCreate) EventName() string { return EventChannelCreate }

// ChannelUpdate represents a channel update event.
type ChannelUpdate Channel

func (*ChannelUpdate) EventName() string { return EventChannelUpdate }

// ChannelDelete represents a channel delete event.
type ChannelDelete Channel

func (*ChannelDelete) EventName() string { return EventChannelDelete }

// ChannelRecipientAdd is sent when a user joins a group DM.
type ChannelRecipientAdd struct {
	User      User      `json:"user"`
	ChannelID Snowflake `json:"channel_id"`
}

func (*ChannelRecipientAdd) EventName() string { return EventChannelRecipientAdd }

// ChannelRecipientRemove is sent when a user leaves a group DM.
type ChannelRecipientRemove ChannelRecipientAdd

func (*ChannelRecipientRemove) EventName() string { return EventChannelRecipientRemove }

// ThreadCreate represents a thread create event.
type ThreadCreate Channel

func (*ThreadCreate) EventName() string { return EventThreadCreate }

// ThreadUpdate represents a thread update event.
type ThreadUpdate Channel

func (*ThreadUpdate) EventName() string { return EventThreadUpdate }

// ThreadDelete represents a thread delete event.
type ThreadDelete Channel

func (*ThreadDelete) EventName() string { return EventThreadDelete }

// GuildCreate represents a guild create event.
type GuildCreate Guild

func (*GuildCreate) EventName() string { return EventGuildCreate }

// GuildDelete represents a guild delete event.
type GuildDelete Guild

func (*GuildDelete) EventName() string { return EventGuildDelete }

// GuildEmojisUpdate represents a guild emojis update event.
type GuildEmojisUpdate struct {
	Emojis  []Emoji   `json:"emojis"`
	GuildID Snowflake `json:"guild_id"`
}

func (*GuildEmojisUpdate) EventName() string { return EventGuildEmojisUpdate }

// RelationshipAdd represents a relationship add event.
type RelationshipAdd Relationship

func (*RelationshipAdd) EventName() string { return EventRelationshipAdd }

// RelationshipRemove represents a relationship remove event.
type RelationshipRemove Relationship

func (*RelationshipRemove) EventName() string { return EventRelationshipRemove }

// UserGuildSettingsUpdate represents a change to notification settings.
type UserGuildSettingsUpdate UserGuildSettings

func (*UserGuildSettingsUpdate) EventName() string { return EventUserGuildSettings }

// UnknownEvent is any dispatch without a dedicated variant.
type UnknownEvent struct {
	Name string
	Data []byte
}

func (e *UnknownEvent) EventName() string { return e.Name }

var eventConstructors = map[string]func() Event{
	EventReady:                  func() Event { return &Ready{} },
	EventReadySupplemental:      func() Event { return &ReadySupplemental{} },
	EventResumed:                func() Event { return &Resumed{} },
	EventMessageCreate:          func() Event { return &MessageCreate{} },
	EventMessageUpdate:          func() Event { return &MessageUpdate{} },
	EventMessageDelete:          func() Event { return &MessageDelete{} },
	EventMessageDeleteBulk:      func() Event { return &MessageDeleteBulk{} },
	EventMessageAck:             func() Event { return &MessageAck{} },
	EventReactionAdd:            func() Event { return &MessageReactionAdd{} },
	EventReactionRemove:         func() Event { return &MessageReactionRemove{} },
	EventReactionRemoveAll:      func() Event { return &MessageReactionRemoveAll{} },
	EventTypingStart:            func() Event { return &TypingStart{} },
	EventPresenceUpdate:         func() Event { return &PresenceUpdate{} },
	EventChannelCreate:          func() Event { return &ChannelCreate{} },
	EventChannelUpdate:          func() Event { return &ChannelUpdate{} },
	EventChannelDelete:          func() Event { return &ChannelDelete{} },
	EventChannelRecipientAdd:    func() Event { return &ChannelRecipientAdd{} },
	EventChannelRecipientRemove: func() Event { return &ChannelRecipientRemove{} },
	EventThreadCreate:           func() Event { return &ThreadCreate{} },
	EventThreadUpdate:           func() Event { return &ThreadUpdate{} },
	EventThreadDelete:           func() Event { return &ThreadDelete{} },
	EventGuildCreate:            func() Event { return &GuildCreate{} },
	EventGuildDelete:            func() Event { return &GuildDelete{} },
	EventGuildEmojisUpdate:      func() Event { return &GuildEmojisUpdate{} },
	EventRelationshipAdd:        func() Event { return &RelationshipAdd{} },
	EventRelationshipRemove:     func() Event { return &RelationshipRemove{} },
	EventUserGuildSettings:      func() Event { return &UserGuildSettingsUpdate{} },
}

// DecodeEvent decodes a dispatch payload into its variant. Names without a
// variant return an *UnknownEvent holding the raw payload.
func DecodeEvent(name string, data []byte, unmarshal func([]byte, any) error) (Event, error) {
	constructor, ok := eventConstructors[name]
	if !ok {
		return &UnknownEvent{Name: name, Data: data}, nil
	}

	event := constructor()

	// Resumed carries no meaningful payload.
	if _, isResumed := event.(*Resumed); isResumed || len(data) == 0 {
		return event, nil
	}

	if err := unmarshal(data, event); err != nil {
		return nil, err
	}

	if update, ok := event.(*MessageUpdate); ok {
		if err := unmarshal(data, &update.Fields); err != nil {
			return nil, err
		}
	}

	return event, nil
}

// KnownEvent reports if name has a dedicated variant.
func KnownEvent(name string) bool {
	_, ok := eventConstructors[name]

	return ok
}
