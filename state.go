package mirror

import (
	"sync"

	"github.com/WelcomerTeam/Mirror/discord"
	"go.uber.org/atomic"
)

const (
	stateGuildSize  = 64
	stateThreadSize = 256
	stateUserSize   = 1024
)

// MirroredState is the local view of remote state. It is written by the
// event pump through Apply and may be read from any goroutine.
type MirroredState struct {
	// Threads are grouped by guild id. Private threads use guild id 0.
	threads     *DoubleCache[discord.Snowflake, discord.Snowflake, discord.Channel]
	threadGuild *Cache[discord.Snowflake, discord.Snowflake]

	presences     *Cache[discord.Snowflake, discord.Presence]
	emojis        *Cache[discord.Snowflake, []discord.Emoji]
	readStates    *Cache[discord.Snowflake, ReadStateEntry]
	muted         *Cache[discord.Snowflake, struct{}]
	users         *Cache[discord.Snowflake, discord.User]
	relationships *Cache[discord.Snowflake, discord.RelationshipType]

	userMu sync.RWMutex
	user   *discord.User

	ready *atomic.Bool
}

func NewMirroredState() *MirroredState {
	return &MirroredState{
		threads:     NewDoubleCache[discord.Snowflake, discord.Snowflake, discord.Channel](stateGuildSize, stateThreadSize),
		threadGuild: NewCache[discord.Snowflake, discord.Snowflake](stateThreadSize),

		presences:     NewCache[discord.Snowflake, discord.Presence](stateUserSize),
		emojis:        NewCache[discord.Snowflake, []discord.Emoji](stateGuildSize),
		readStates:    NewCache[discord.Snowflake, ReadStateEntry](stateThreadSize),
		muted:         NewCache[discord.Snowflake, struct{}](stateThreadSize),
		users:         NewCache[discord.Snowflake, discord.User](stateUserSize),
		relationships: NewCache[discord.Snowflake, discord.RelationshipType](stateUserSize),

		ready: atomic.NewBool(false),
	}
}

// Reset empties every collection and clears the ready flag.
func (s *MirroredState) Reset() {
	s.threads.Clear()
	s.threadGuild.Clear()
	s.presences.Clear()
	s.emojis.Clear()
	s.readStates.Clear()
	s.muted.Clear()
	s.users.Clear()
	s.relationships.Clear()

	s.userMu.Lock()
	s.user = nil
	s.userMu.Unlock()

	s.ready.Store(false)
}

func (s *MirroredState) IsReady() bool {
	return s.ready.Load()
}

func (s *MirroredState) SetReady(ready bool) {
	s.ready.Store(ready)
}

// User returns the current user, nil before READY.
func (s *MirroredState) User() *discord.User {
	s.userMu.RLock()
	defer s.userMu.RUnlock()

	if s.user == nil {
		return nil
	}

	user := *s.user

	return &user
}

func (s *MirroredState) SetUser(user discord.User) {
	s.userMu.Lock()
	s.user = &user
	s.userMu.Unlock()

	s.users.Store(user.ID, user)
}

// Apply folds a normalized event into the state. Applying the same event
// twice leaves the state unchanged.
func (s *MirroredState) Apply(event NormalizedEvent) {
	switch event.Collection {
	case CollectionThread:
		s.applyThread(event)
	case CollectionMessage:
		s.applyMessage(event)
	case CollectionParticipant:
		s.applyParticipant(event)
	case CollectionPresence:
		s.applyPresence(event)
	case CollectionEmoji:
		s.applyEmoji(event)
	case CollectionReadState:
		s.applyReadState(event)
	case CollectionMute:
		s.applyMute(event)
	case CollectionReaction, CollectionTyping:
		// Not mirrored.
	}
}

func (s *MirroredState) applyThread(event NormalizedEvent) {
	for _, entry := range event.Entries {
		switch entry := entry.(type) {
		case ThreadEntry:
			guildID := entry.GuildID
			if guildID.IsNil() {
				guildID = event.Scope.GuildID
			}

			// A thread that moved guild bucket must not be listed twice.
			if previous, ok := s.threadGuild.Load(entry.ID); ok && previous != guildID {
				s.threads.Delete(previous, entry.ID)
			}

			s.threads.Store(guildID, entry.ID, entry.Channel)
			s.threadGuild.Store(entry.ID, guildID)
		case DeletedEntry:
			id, err := discord.ParseSnowflake(entry.ID)
			if err != nil {
				continue
			}

			s.removeThread(id)
		}
	}
}

func (s *MirroredState) removeThread(threadID discord.Snowflake) {
	guildID, ok := s.threadGuild.Load(threadID)
	if !ok {
		return
	}

	s.threads.Delete(guildID, threadID)
	s.threadGuild.Delete(threadID)
	s.readStates.Delete(threadID)
	s.muted.Delete(threadID)

	if !guildID.IsNil() && s.threads.Count(guildID) == 0 {
		s.threads.ClearKey(guildID)
	}
}

func (s *MirroredState) applyMessage(event NormalizedEvent) {
	if event.Kind != KindUpsert {
		return
	}

	for _, entry := range event.Entries {
		message, ok := entry.(MessageEntry)
		if !ok {
			continue
		}

		s.advanceLastMessage(message.ChannelID, message.ID)
	}
}

// advanceLastMessage moves the last message pointer of a thread forward.
// Older ids are ignored.
func (s *MirroredState) advanceLastMessage(threadID, messageID discord.Snowflake) {
	guildID, ok := s.threadGuild.Load(threadID)
	if !ok {
		return
	}

	s.threads.Update(guildID, threadID, func(thread discord.Channel) discord.Channel {
		if messageID > thread.LastMessageID {
			thread.LastMessageID = messageID
		}

		return thread
	})
}

func (s *MirroredState) applyParticipant(event NormalizedEvent) {
	threadID := event.Scope.ThreadID

	for _, entry := range event.Entries {
		switch entry := entry.(type) {
		case ParticipantEntry:
			s.users.Store(entry.ID, entry.User)

			if !threadID.IsNil() {
				s.addRecipient(threadID, entry.User)
			}

			if entry.Relationship != nil {
				s.relationships.Store(entry.ID, *entry.Relationship)
			}
		case DeletedEntry:
			id, err := discord.ParseSnowflake(entry.ID)
			if err != nil {
				continue
			}

			if threadID.IsNil() {
				s.relationships.Delete(id)
			} else {
				s.removeRecipient(threadID, id)
			}
		}
	}
}

func (s *MirroredState) addRecipient(threadID discord.Snowflake, user discord.User) {
	guildID, ok := s.threadGuild.Load(threadID)
	if !ok {
		return
	}

	s.threads.Update(guildID, threadID, func(thread discord.Channel) discord.Channel {
		recipients := make([]discord.User, 0, len(thread.Recipients)+1)

		for _, recipient := range thread.Recipients {
			if recipient.ID != user.ID {
				recipients = append(recipients, recipient)
			}
		}

		thread.Recipients = append(recipients, user)

		return thread
	})
}

func (s *MirroredState) removeRecipient(threadID, userID discord.Snowflake) {
	guildID, ok := s.threadGuild.Load(threadID)
	if !ok {
		return
	}

	s.threads.Update(guildID, threadID, func(thread discord.Channel) discord.Channel {
		recipients := make([]discord.User, 0, len(thread.Recipients))

		for _, recipient := range thread.Recipients {
			if recipient.ID != userID {
				recipients = append(recipients, recipient)
			}
		}

		thread.Recipients = recipients

		return thread
	})
}

func (s *MirroredState) applyPresence(event NormalizedEvent) {
	for _, entry := range event.Entries {
		switch entry := entry.(type) {
		case PresenceEntry:
			s.presences.Store(entry.User.ID, entry.Presence)
		case DeletedEntry:
			if id, err := discord.ParseSnowflake(entry.ID); err == nil {
				s.presences.Delete(id)
			}
		}
	}
}

// applyEmoji replaces the whole list of a guild. Emoji events always carry
// the complete list.
func (s *MirroredState) applyEmoji(event NormalizedEvent) {
	if event.Kind == KindDelete {
		s.emojis.Delete(event.Scope.GuildID)

		return
	}

	emojis := make([]discord.Emoji, 0, len(event.Entries))

	for _, entry := range event.Entries {
		if emoji, ok := entry.(EmojiEntry); ok {
			emojis = append(emojis, emoji.Emoji)
		}
	}

	s.emojis.Store(event.Scope.GuildID, emojis)
}

func (s *MirroredState) applyReadState(event NormalizedEvent) {
	for _, entry := range event.Entries {
		switch entry := entry.(type) {
		case ReadStateEntry:
			s.readStates.Store(entry.ChannelID, entry)
		case DeletedEntry:
			if id, err := discord.ParseSnowflake(entry.ID); err == nil {
				s.readStates.Delete(id)
			}
		}
	}
}

func (s *MirroredState) applyMute(event NormalizedEvent) {
	for _, entry := range event.Entries {
		mute, ok := entry.(MuteEntry)
		if !ok {
			continue
		}

		if mute.Muted {
			s.muted.Store(mute.ChannelID, struct{}{})
		} else {
			s.muted.Delete(mute.ChannelID)
		}
	}
}

// Thread returns a mirrored thread by id.
func (s *MirroredState) Thread(threadID discord.Snowflake) (thread discord.Channel, ok bool) {
	guildID, ok := s.threadGuild.Load(threadID)
	if !ok {
		return thread, false
	}

	return s.threads.Load(guildID, threadID)
}

// Threads returns every mirrored thread of a guild. Guild id 0 returns
// private threads.
func (s *MirroredState) Threads(guildID discord.Snowflake) []discord.Channel {
	inner, ok := s.threads.Inner(guildID)
	if !ok {
		return nil
	}

	return inner.Values()
}

// GuildThreadIDs returns the ids of every thread mirrored for a guild.
func (s *MirroredState) GuildThreadIDs(guildID discord.Snowflake) []discord.Snowflake {
	inner, ok := s.threads.Inner(guildID)
	if !ok {
		return nil
	}

	ids := make([]discord.Snowflake, 0, inner.Count())

	inner.Range(func(id discord.Snowflake, _ discord.Channel) bool {
		ids = append(ids, id)

		return false
	})

	return ids
}

func (s *MirroredState) Presence(userID discord.Snowflake) (discord.Presence, bool) {
	return s.presences.Load(userID)
}

func (s *MirroredState) Emojis(guildID discord.Snowflake) []discord.Emoji {
	emojis, _ := s.emojis.Load(guildID)

	return emojis
}

// LastReadMessage returns the last read message id of a channel.
func (s *MirroredState) LastReadMessage(channelID discord.Snowflake) (discord.Snowflake, bool) {
	readState, ok := s.readStates.Load(channelID)

	return readState.LastMessageID, ok
}

func (s *MirroredState) IsMuted(channelID discord.Snowflake) bool {
	_, ok := s.muted.Load(channelID)

	return ok
}

func (s *MirroredState) Relationship(userID discord.Snowflake) (discord.RelationshipType, bool) {
	return s.relationships.Load(userID)
}

func (s *MirroredState) UserByID(userID discord.Snowflake) (discord.User, bool) {
	return s.users.Load(userID)
}

// StateCounts is a snapshot of collection sizes.
type StateCounts struct {
	Threads    int `json:"threads"`
	Presences  int `json:"presences"`
	Guilds     int `json:"guilds"`
	ReadStates int `json:"read_states"`
	Muted      int `json:"muted"`
	Users      int `json:"users"`
}

func (s *MirroredState) Counts() StateCounts {
	return StateCounts{
		Threads:    s.threads.TotalCount(),
		Presences:  s.presences.Count(),
		Guilds:     s.emojis.Count(),
		ReadStates: s.readStates.Count(),
		Muted:      s.muted.Count(),
		Users:      s.users.Count(),
	}
}
