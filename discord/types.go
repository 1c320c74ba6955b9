package discord

import "time"

// PresenceStatus represents a presence's status.
type PresenceStatus string

// Presence statuses.
const (
	PresenceStatusIdle      PresenceStatus = "idle"
	PresenceStatusDND       PresenceStatus = "dnd"
	PresenceStatusOnline    PresenceStatus = "online"
	PresenceStatusOffline   PresenceStatus = "offline"
	PresenceStatusInvisible PresenceStatus = "invisible"
)

// ActivityType represents an activity's type.
type ActivityType int

const (
	ActivityTypeGame ActivityType = iota
	ActivityTypeStreaming
	ActivityTypeListening
	ActivityTypeWatching
	ActivityTypeCustom
	ActivityTypeCompeting
)

// Activity represents an activity as sent as part of other packets.
type Activity struct {
	Emoji     *Emoji       `json:"emoji,omitempty" yaml:"emoji,omitempty"`
	Name      string       `json:"name" yaml:"name"`
	State     string       `json:"state,omitempty" yaml:"state,omitempty"`
	URL       string       `json:"url,omitempty" yaml:"url,omitempty"`
	CreatedAt int64        `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Type      ActivityType `json:"type" yaml:"type"`
}

// ChannelType represents a channel's type.
type ChannelType uint8

const (
	ChannelTypeGuildText ChannelType = iota
	ChannelTypeDM
	ChannelTypeGuildVoice
	ChannelTypeGroupDM
	ChannelTypeGuildCategory
	ChannelTypeGuildNews
	_
	_
	_
	_
	ChannelTypeGuildNewsThread
	ChannelTypeGuildPublicThread
	ChannelTypeGuildPrivateThread
	ChannelTypeGuildStageVoice
	ChannelTypeGuildDirectory
	ChannelTypeGuildForum
)

// IsPrivate reports if the channel is a DM or group DM.
func (t ChannelType) IsPrivate() bool {
	return t == ChannelTypeDM || t == ChannelTypeGroupDM
}

// IsThreadLike reports if messages can be exchanged in the channel.
func (t ChannelType) IsThreadLike() bool {
	switch t {
	case ChannelTypeDM, ChannelTypeGroupDM, ChannelTypeGuildText, ChannelTypeGuildNews,
		ChannelTypeGuildNewsThread, ChannelTypeGuildPublicThread, ChannelTypeGuildPrivateThread:
		return true
	default:
		return false
	}
}

// User represents a discord user.
type User struct {
	ID            Snowflake `json:"id"`
	Username      string    `json:"username"`
	GlobalName    string    `json:"global_name,omitempty"`
	Discriminator string    `json:"discriminator,omitempty"`
	Avatar        string    `json:"avatar,omitempty"`
	Bot           bool      `json:"bot,omitempty"`
}

// Channel represents a guild channel, thread, DM or group DM.
type Channel struct {
	ID            Snowflake   `json:"id"`
	GuildID       Snowflake   `json:"guild_id,omitempty"`
	ParentID      Snowflake   `json:"parent_id,omitempty"`
	OwnerID       Snowflake   `json:"owner_id,omitempty"`
	LastMessageID Snowflake   `json:"last_message_id,omitempty"`
	Name          string      `json:"name,omitempty"`
	Topic         string      `json:"topic,omitempty"`
	Icon          string      `json:"icon,omitempty"`
	Recipients    []User      `json:"recipients,omitempty"`
	RecipientIDs  []Snowflake `json:"recipient_ids,omitempty"`
	Position      int32       `json:"position,omitempty"`
	Type          ChannelType `json:"type"`
	NSFW          bool        `json:"nsfw,omitempty"`
}

// Guild represents the parts of a guild that are mirrored.
type Guild struct {
	ID          Snowflake `json:"id"`
	Name        string    `json:"name,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Channels    []Channel `json:"channels,omitempty"`
	Threads     []Channel `json:"threads,omitempty"`
	Emojis      []Emoji   `json:"emojis,omitempty"`
	Unavailable bool      `json:"unavailable,omitempty"`
}

// Emoji represents a custom or unicode emoji.
type Emoji struct {
	ID        Snowflake `json:"id,omitempty"`
	Name      string    `json:"name"`
	Animated  bool      `json:"animated,omitempty"`
	Available bool      `json:"available,omitempty"`
}

// Key returns the reaction key of the emoji: its id for custom emoji and its
// name for unicode emoji.
func (e Emoji) Key() string {
	if !e.ID.IsNil() {
		return e.ID.String()
	}

	return e.Name
}

// Attachment represents a message attachment.
type Attachment struct {
	ID          Snowflake `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type,omitempty"`
	URL         string    `json:"url"`
	Size        int64     `json:"size"`
}

// MessageReaction represents the aggregated reactions on a message.
type MessageReaction struct {
	Emoji Emoji `json:"emoji"`
	Count int32 `json:"count"`
	Me    bool  `json:"me"`
}

// MessageReference is the message a message is replying to.
type MessageReference struct {
	MessageID Snowflake `json:"message_id,omitempty"`
	ChannelID Snowflake `json:"channel_id,omitempty"`
	GuildID   Snowflake `json:"guild_id,omitempty"`
}

// Message represents a message.
type Message struct {
	Timestamp        time.Time         `json:"timestamp"`
	EditedTimestamp  *time.Time        `json:"edited_timestamp,omitempty"`
	MessageReference *MessageReference `json:"message_reference,omitempty"`
	Author           User              `json:"author"`
	Nonce            string            `json:"nonce,omitempty"`
	Content          string            `json:"content"`
	Attachments      []Attachment      `json:"attachments,omitempty"`
	Reactions        []MessageReaction `json:"reactions,omitempty"`
	Mentions         []User            `json:"mentions,omitempty"`
	ID               Snowflake         `json:"id"`
	ChannelID        Snowflake         `json:"channel_id"`
	GuildID          Snowflake         `json:"guild_id,omitempty"`
	Type             int32             `json:"type"`
	Pinned           bool              `json:"pinned,omitempty"`
}

// Presence represents a user's presence.
type Presence struct {
	ClientStatus map[string]string `json:"client_status,omitempty"`
	User         User              `json:"user"`
	Status       PresenceStatus    `json:"status"`
	Activities   []Activity        `json:"activities,omitempty"`
	GuildID      Snowflake         `json:"guild_id,omitempty"`
}

// ReadState is the last message read in a channel.
type ReadState struct {
	ID            Snowflake `json:"id"`
	LastMessageID Snowflake `json:"last_message_id"`
	MentionCount  int32     `json:"mention_count,omitempty"`
}

// ChannelOverride is a per-channel notification override.
type ChannelOverride struct {
	ChannelID Snowflake `json:"channel_id"`
	Muted     bool      `json:"muted"`
}

// UserGuildSettings are the notification settings of a guild. A nil guild
// id refers to private channels.
type UserGuildSettings struct {
	GuildID          Snowflake         `json:"guild_id,omitempty"`
	ChannelOverrides []ChannelOverride `json:"channel_overrides"`
	Muted            bool              `json:"muted"`
}

// RelationshipType represents the type of a relationship.
type RelationshipType uint8

const (
	RelationshipTypeNone RelationshipType = iota
	RelationshipTypeFriend
	RelationshipTypeBlocked
	RelationshipTypePendingIncoming
	RelationshipTypePendingOutgoing
	RelationshipTypeImplicit
)

// Relationship represents a friend, block or pending request.
type Relationship struct {
	User     *User            `json:"user,omitempty"`
	ID       Snowflake        `json:"id"`
	Nickname string           `json:"nickname,omitempty"`
	Type     RelationshipType `json:"type"`
}
