package mirror

import (
	"github.com/WelcomerTeam/Mirror/discord"
)

type EventKind string

const (
	KindUpsert EventKind = "upsert"
	KindUpdate EventKind = "update"
	KindDelete EventKind = "delete"
)

type Collection string

const (
	CollectionThread      Collection = "thread"
	CollectionMessage     Collection = "message"
	CollectionParticipant Collection = "participant"
	CollectionReaction    Collection = "reaction"
	CollectionPresence    Collection = "presence"
	CollectionTyping      Collection = "typing"
	CollectionEmoji       Collection = "emoji"
	CollectionReadState   Collection = "read_state"
	CollectionMute        Collection = "mute"
)

// Scope locates the entries of an event. Unset ids are zero.
type Scope struct {
	GuildID   discord.Snowflake `json:"guild_id,omitempty"`
	ThreadID  discord.Snowflake `json:"thread_id,omitempty"`
	MessageID discord.Snowflake `json:"message_id,omitempty"`
}

// Entry is a single record carried by a NormalizedEvent.
type Entry interface {
	EntryID() string
}

// NormalizedEvent is a single logical change to the mirrored state. Events
// are not modified once emitted.
type NormalizedEvent struct {
	Kind       EventKind  `json:"kind"`
	Collection Collection `json:"collection"`
	Scope      Scope      `json:"scope"`
	Entries    []Entry    `json:"entries"`
}

type ThreadEntry struct {
	discord.Channel
}

func (e ThreadEntry) EntryID() string { return e.ID.String() }

type MessageEntry struct {
	discord.Message
}

func (e MessageEntry) EntryID() string { return e.ID.String() }

// ParticipantEntry is a user taking part in a thread, or a relationship when
// Relationship is set.
type ParticipantEntry struct {
	Relationship *discord.RelationshipType `json:"relationship,omitempty"`
	discord.User
}

func (e ParticipantEntry) EntryID() string { return e.ID.String() }

type ReactionEntry struct {
	Emoji         discord.Emoji     `json:"emoji"`
	ID            string            `json:"id"`
	ParticipantID discord.Snowflake `json:"participant_id"`
}

func (e ReactionEntry) EntryID() string { return e.ID }

// ReactionKey is the id of a single participant's reaction.
func ReactionKey(participantID discord.Snowflake, emoji discord.Emoji) string {
	return participantID.String() + emoji.Key()
}

type PresenceEntry struct {
	discord.Presence
}

func (e PresenceEntry) EntryID() string { return e.User.ID.String() }

type TypingEntry struct {
	UserID    discord.Snowflake `json:"user_id"`
	Timestamp int64             `json:"timestamp"`
}

func (e TypingEntry) EntryID() string { return e.UserID.String() }

type EmojiEntry struct {
	discord.Emoji
}

func (e EmojiEntry) EntryID() string { return e.Emoji.Key() }

type ReadStateEntry struct {
	ChannelID     discord.Snowflake `json:"channel_id"`
	LastMessageID discord.Snowflake `json:"last_message_id"`
	MentionCount  int32             `json:"mention_count"`
}

func (e ReadStateEntry) EntryID() string { return e.ChannelID.String() }

type MuteEntry struct {
	ChannelID discord.Snowflake `json:"channel_id"`
	Muted     bool              `json:"muted"`
}

func (e MuteEntry) EntryID() string { return e.ChannelID.String() }

// DeletedEntry identifies a removed record.
type DeletedEntry struct {
	ID string `json:"id"`
}

func (e DeletedEntry) EntryID() string { return e.ID }

func deleted(id discord.Snowflake) DeletedEntry {
	return DeletedEntry{ID: id.String()}
}
