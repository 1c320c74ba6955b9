package mirror

import (
	"context"
	"fmt"

	"github.com/WelcomerTeam/Mirror/discord"
)

// DispatchHandler converts a dispatch event into normalized events.
type DispatchHandler func(ctx context.Context, p *EventPump, event discord.Event) ([]NormalizedEvent, error)

var dispatchHandlers = make(map[string]DispatchHandler)

func registerDispatch(name string, handler DispatchHandler) {
	dispatchHandlers[name] = handler
}

func unexpectedEvent(event discord.Event) error {
	return fmt.Errorf("%w: unexpected %T", ErrNoDispatchHandler, event)
}

func threadEntries(guildID discord.Snowflake, channels ...discord.Channel) []Entry {
	entries := make([]Entry, 0, len(channels))

	for _, channel := range channels {
		if channel.GuildID.IsNil() {
			channel.GuildID = guildID
		}

		entries = append(entries, ThreadEntry{channel})
	}

	return entries
}

func emojiEntries(emojis []discord.Emoji) []Entry {
	entries := make([]Entry, 0, len(emojis))

	for _, emoji := range emojis {
		entries = append(entries, EmojiEntry{emoji})
	}

	return entries
}

func presenceEntries(presences []discord.Presence) []Entry {
	entries := make([]Entry, 0, len(presences))

	for _, presence := range presences {
		entries = append(entries, PresenceEntry{presence})
	}

	return entries
}

func muteEntries(settings discord.UserGuildSettings) []Entry {
	entries := make([]Entry, 0, len(settings.ChannelOverrides))

	for _, override := range settings.ChannelOverrides {
		entries = append(entries, MuteEntry{ChannelID: override.ChannelID, Muted: override.Muted})
	}

	return entries
}

func relationshipUser(relationship discord.Relationship) discord.User {
	if relationship.User != nil {
		return *relationship.User
	}

	return discord.User{ID: relationship.ID}
}

// OnReady rebuilds every mirrored collection from the handshake snapshot.
func OnReady(ctx context.Context, p *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	ready, ok := event.(*discord.Ready)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	p.state.Reset()
	p.state.SetUser(ready.User)

	events := []NormalizedEvent{{
		Kind:       KindUpsert,
		Collection: CollectionThread,
		Entries:    threadEntries(0, ready.PrivateChannels...),
	}}

	if p.flags.MirrorGuilds() {
		for _, guild := range ready.Guilds {
			channels := make([]discord.Channel, 0, len(guild.Channels)+len(guild.Threads))
			channels = append(channels, guild.Channels...)
			channels = append(channels, guild.Threads...)

			scope := Scope{GuildID: guild.ID}

			events = append(events,
				NormalizedEvent{Kind: KindUpsert, Collection: CollectionThread, Scope: scope, Entries: threadEntries(guild.ID, channels...)},
				NormalizedEvent{Kind: KindUpsert, Collection: CollectionEmoji, Scope: scope, Entries: emojiEntries(guild.Emojis)},
			)
		}
	}

	if len(ready.Users) > 0 || len(ready.Relationships) > 0 {
		participants := make([]Entry, 0, len(ready.Users)+len(ready.Relationships))

		for _, user := range ready.Users {
			participants = append(participants, ParticipantEntry{User: user})
		}

		for _, relationship := range ready.Relationships {
			relationshipType := relationship.Type
			participants = append(participants, ParticipantEntry{
				User:         relationshipUser(relationship),
				Relationship: &relationshipType,
			})
		}

		events = append(events, NormalizedEvent{Kind: KindUpsert, Collection: CollectionParticipant, Entries: participants})
	}

	if len(ready.Presences) > 0 {
		events = append(events, NormalizedEvent{Kind: KindUpsert, Collection: CollectionPresence, Entries: presenceEntries(ready.Presences)})
	}

	if len(ready.ReadState) > 0 {
		readStates := make([]Entry, 0, len(ready.ReadState))

		for _, readState := range ready.ReadState {
			readStates = append(readStates, ReadStateEntry{
				ChannelID:     readState.ID,
				LastMessageID: readState.LastMessageID,
				MentionCount:  readState.MentionCount,
			})
		}

		events = append(events, NormalizedEvent{Kind: KindUpsert, Collection: CollectionReadState, Entries: readStates})
	}

	mutes := make([]Entry, 0)

	for _, settings := range ready.UserGuildSettings {
		if p.mirrors(settings.GuildID) {
			mutes = append(mutes, muteEntries(settings)...)
		}
	}

	if len(mutes) > 0 {
		events = append(events, NormalizedEvent{Kind: KindUpsert, Collection: CollectionMute, Entries: mutes})
	}

	p.publish(ctx, events)
	p.state.SetReady(true)

	p.Logger.Info().
		Int("private_channels", len(ready.PrivateChannels)).
		Int("guilds", len(ready.Guilds)).
		Msg("Mirrored state initialised")

	p.trackAnalytics("ready_received", map[string]any{
		"guilds":           len(ready.Guilds),
		"private_channels": len(ready.PrivateChannels),
	})

	return nil, nil
}

func OnReadySupplemental(_ context.Context, p *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	supplemental, ok := event.(*discord.ReadySupplemental)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	presences := append([]discord.Presence{}, supplemental.MergedPresences.Friends...)

	if p.flags.MirrorGuilds() {
		for _, guild := range supplemental.MergedPresences.Guilds {
			presences = append(presences, guild...)
		}
	}

	if len(presences) == 0 {
		return nil, nil
	}

	return []NormalizedEvent{{Kind: KindUpsert, Collection: CollectionPresence, Entries: presenceEntries(presences)}}, nil
}

// OnMessageCreate persists the message and emits it, unless the nonce shows
// it was sent by this client.
func OnMessageCreate(_ context.Context, p *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	create, ok := event.(*discord.MessageCreate)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	message := discord.Message(*create)

	// Nonces are cleared even when the channel is not mirrored.
	sentByUs := p.consumeNonce(message.Nonce)

	if !p.mirrors(message.GuildID) {
		return nil, nil
	}

	if err := p.putOriginal(OriginalKindMessage, message.ID, message); err != nil {
		p.Logger.Warn().Err(err).Str("message_id", message.ID.String()).Msg("Failed to store original message")
	}

	if sentByUs {
		mirrorSuppressedMessages.WithLabelValues(p.identifier).Inc()

		return nil, nil
	}

	return []NormalizedEvent{{
		Kind:       KindUpsert,
		Collection: CollectionMessage,
		Scope:      Scope{GuildID: message.GuildID, ThreadID: message.ChannelID},
		Entries:    []Entry{MessageEntry{message}},
	}}, nil
}

// OnMessageUpdate overlays the partial update onto the stored message.
func OnMessageUpdate(ctx context.Context, p *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	update, ok := event.(*discord.MessageUpdate)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	if !p.mirrors(update.GuildID) {
		return nil, nil
	}

	message := update.Message

	if len(update.Fields) > 0 {
		var merged discord.Message

		found, err := p.mergeOriginal(ctx, OriginalKindMessage, update.ID, update.Fields, &merged)
		if err != nil {
			p.Logger.Warn().Err(err).Str("message_id", update.ID.String()).Msg("Failed to merge original message")
		}

		if found {
			message = merged
		}
	}

	return []NormalizedEvent{{
		Kind:       KindUpdate,
		Collection: CollectionMessage,
		Scope:      Scope{GuildID: message.GuildID, ThreadID: message.ChannelID},
		Entries:    []Entry{MessageEntry{message}},
	}}, nil
}

func OnMessageDelete(_ context.Context, p *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	messageDelete, ok := event.(*discord.MessageDelete)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	if !p.mirrors(messageDelete.GuildID) {
		return nil, nil
	}

	return []NormalizedEvent{{
		Kind:       KindDelete,
		Collection: CollectionMessage,
		Scope:      Scope{GuildID: messageDelete.GuildID, ThreadID: messageDelete.ChannelID},
		Entries:    []Entry{deleted(messageDelete.ID)},
	}}, nil
}

func OnMessageDeleteBulk(_ context.Context, p *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	bulk, ok := event.(*discord.MessageDeleteBulk)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	if !p.mirrors(bulk.GuildID) || len(bulk.IDs) == 0 {
		return nil, nil
	}

	entries := make([]Entry, 0, len(bulk.IDs))

	for _, id := range bulk.IDs {
		entries = append(entries, deleted(id))
	}

	return []NormalizedEvent{{
		Kind:       KindDelete,
		Collection: CollectionMessage,
		Scope:      Scope{GuildID: bulk.GuildID, ThreadID: bulk.ChannelID},
		Entries:    entries,
	}}, nil
}

func OnMessageAck(_ context.Context, _ *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	ack, ok := event.(*discord.MessageAck)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	return []NormalizedEvent{{
		Kind:       KindUpdate,
		Collection: CollectionReadState,
		Scope:      Scope{ThreadID: ack.ChannelID},
		Entries: []Entry{ReadStateEntry{
			ChannelID:     ack.ChannelID,
			LastMessageID: ack.MessageID,
			MentionCount:  ack.MentionCount,
		}},
	}}, nil
}

func reactionEvent(kind EventKind, reaction discord.MessageReactionAdd) NormalizedEvent {
	var entry Entry

	id := ReactionKey(reaction.UserID, reaction.Emoji)

	if kind == KindDelete {
		entry = DeletedEntry{ID: id}
	} else {
		entry = ReactionEntry{ID: id, ParticipantID: reaction.UserID, Emoji: reaction.Emoji}
	}

	return NormalizedEvent{
		Kind:       kind,
		Collection: CollectionReaction,
		Scope:      Scope{GuildID: reaction.GuildID, ThreadID: reaction.ChannelID, MessageID: reaction.MessageID},
		Entries:    []Entry{entry},
	}
}

func OnMessageReactionAdd(_ context.Context, p *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	reaction, ok := event.(*discord.MessageReactionAdd)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	if !p.mirrors(reaction.GuildID) {
		return nil, nil
	}

	return []NormalizedEvent{reactionEvent(KindUpsert, *reaction)}, nil
}

func OnMessageReactionRemove(_ context.Context, p *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	reaction, ok := event.(*discord.MessageReactionRemove)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	if !p.mirrors(reaction.GuildID) {
		return nil, nil
	}

	return []NormalizedEvent{reactionEvent(KindDelete, discord.MessageReactionAdd(*reaction))}, nil
}

func OnMessageReactionRemoveAll(_ context.Context, p *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	removeAll, ok := event.(*discord.MessageReactionRemoveAll)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	if !p.mirrors(removeAll.GuildID) {
		return nil, nil
	}

	return []NormalizedEvent{{
		Kind:       KindUpdate,
		Collection: CollectionReaction,
		Scope:      Scope{GuildID: removeAll.GuildID, ThreadID: removeAll.ChannelID, MessageID: removeAll.MessageID},
		Entries:    []Entry{},
	}}, nil
}

func OnTypingStart(_ context.Context, p *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	typing, ok := event.(*discord.TypingStart)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	if !p.mirrors(typing.GuildID) {
		return nil, nil
	}

	return []NormalizedEvent{{
		Kind:       KindUpsert,
		Collection: CollectionTyping,
		Scope:      Scope{GuildID: typing.GuildID, ThreadID: typing.ChannelID},
		Entries:    []Entry{TypingEntry{UserID: typing.UserID, Timestamp: typing.Timestamp}},
	}}, nil
}

func OnPresenceUpdate(_ context.Context, p *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	presenceUpdate, ok := event.(*discord.PresenceUpdate)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	presence := discord.Presence(*presenceUpdate)

	if !p.mirrors(presence.GuildID) {
		return nil, nil
	}

	return []NormalizedEvent{{
		Kind:       KindUpsert,
		Collection: CollectionPresence,
		Scope:      Scope{GuildID: presence.GuildID},
		Entries:    []Entry{PresenceEntry{presence}},
	}}, nil
}

func threadEvent(p *EventPump, kind EventKind, channel discord.Channel) []NormalizedEvent {
	if !channel.Type.IsPrivate() && !p.flags.MirrorGuilds() {
		return nil
	}

	var entry Entry = ThreadEntry{channel}

	if kind == KindDelete {
		entry = deleted(channel.ID)
	}

	return []NormalizedEvent{{
		Kind:       kind,
		Collection: CollectionThread,
		Scope:      Scope{GuildID: channel.GuildID, ThreadID: channel.ID},
		Entries:    []Entry{entry},
	}}
}

func OnChannelCreate(_ context.Context, p *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	channel, ok := event.(*discord.ChannelCreate)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	return threadEvent(p, KindUpsert, discord.Channel(*channel)), nil
}

func OnChannelUpdate(_ context.Context, p *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	channel, ok := event.(*discord.ChannelUpdate)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	return threadEvent(p, KindUpdate, discord.Channel(*channel)), nil
}

func OnChannelDelete(_ context.Context, p *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	channel, ok := event.(*discord.ChannelDelete)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	return threadEvent(p, KindDelete, discord.Channel(*channel)), nil
}

func OnThreadCreate(_ context.Context, p *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	thread, ok := event.(*discord.ThreadCreate)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	return threadEvent(p, KindUpsert, discord.Channel(*thread)), nil
}

func OnThreadUpdate(_ context.Context, p *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	thread, ok := event.(*discord.ThreadUpdate)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	return threadEvent(p, KindUpdate, discord.Channel(*thread)), nil
}

func OnThreadDelete(_ context.Context, p *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	thread, ok := event.(*discord.ThreadDelete)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	return threadEvent(p, KindDelete, discord.Channel(*thread)), nil
}

func OnChannelRecipientAdd(_ context.Context, _ *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	recipient, ok := event.(*discord.ChannelRecipientAdd)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	return []NormalizedEvent{{
		Kind:       KindUpsert,
		Collection: CollectionParticipant,
		Scope:      Scope{ThreadID: recipient.ChannelID},
		Entries:    []Entry{ParticipantEntry{User: recipient.User}},
	}}, nil
}

func OnChannelRecipientRemove(_ context.Context, _ *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	recipient, ok := event.(*discord.ChannelRecipientRemove)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	return []NormalizedEvent{{
		Kind:       KindDelete,
		Collection: CollectionParticipant,
		Scope:      Scope{ThreadID: recipient.ChannelID},
		Entries:    []Entry{deleted(recipient.User.ID)},
	}}, nil
}

func OnGuildCreate(_ context.Context, p *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	guildCreate, ok := event.(*discord.GuildCreate)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	if !p.flags.MirrorGuilds() {
		return nil, nil
	}

	guild := discord.Guild(*guildCreate)

	channels := make([]discord.Channel, 0, len(guild.Channels)+len(guild.Threads))
	channels = append(channels, guild.Channels...)
	channels = append(channels, guild.Threads...)

	scope := Scope{GuildID: guild.ID}

	return []NormalizedEvent{
		{Kind: KindUpsert, Collection: CollectionThread, Scope: scope, Entries: threadEntries(guild.ID, channels...)},
		{Kind: KindUpsert, Collection: CollectionEmoji, Scope: scope, Entries: emojiEntries(guild.Emojis)},
	}, nil
}

// OnGuildDelete removes every thread of a guild the user left. Outages
// (unavailable guilds) keep their state.
func OnGuildDelete(_ context.Context, p *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	guildDelete, ok := event.(*discord.GuildDelete)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	if !p.flags.MirrorGuilds() || guildDelete.Unavailable {
		return nil, nil
	}

	scope := Scope{GuildID: guildDelete.ID}

	threadIDs := p.state.GuildThreadIDs(guildDelete.ID)
	entries := make([]Entry, 0, len(threadIDs))

	for _, threadID := range threadIDs {
		entries = append(entries, deleted(threadID))
	}

	return []NormalizedEvent{
		{Kind: KindDelete, Collection: CollectionThread, Scope: scope, Entries: entries},
		{Kind: KindDelete, Collection: CollectionEmoji, Scope: scope, Entries: []Entry{}},
	}, nil
}

func OnGuildEmojisUpdate(_ context.Context, p *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	emojisUpdate, ok := event.(*discord.GuildEmojisUpdate)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	if !p.flags.MirrorGuilds() {
		return nil, nil
	}

	return []NormalizedEvent{{
		Kind:       KindUpdate,
		Collection: CollectionEmoji,
		Scope:      Scope{GuildID: emojisUpdate.GuildID},
		Entries:    emojiEntries(emojisUpdate.Emojis),
	}}, nil
}

func OnRelationshipAdd(_ context.Context, _ *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	relationshipAdd, ok := event.(*discord.RelationshipAdd)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	relationship := discord.Relationship(*relationshipAdd)
	relationshipType := relationship.Type

	return []NormalizedEvent{{
		Kind:       KindUpsert,
		Collection: CollectionParticipant,
		Entries: []Entry{ParticipantEntry{
			User:         relationshipUser(relationship),
			Relationship: &relationshipType,
		}},
	}}, nil
}

func OnRelationshipRemove(_ context.Context, _ *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	relationship, ok := event.(*discord.RelationshipRemove)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	return []NormalizedEvent{{
		Kind:       KindDelete,
		Collection: CollectionParticipant,
		Entries:    []Entry{deleted(relationship.ID)},
	}}, nil
}

func OnUserGuildSettingsUpdate(_ context.Context, p *EventPump, event discord.Event) ([]NormalizedEvent, error) {
	settingsUpdate, ok := event.(*discord.UserGuildSettingsUpdate)
	if !ok {
		return nil, unexpectedEvent(event)
	}

	settings := discord.UserGuildSettings(*settingsUpdate)

	if !p.mirrors(settings.GuildID) || len(settings.ChannelOverrides) == 0 {
		return nil, nil
	}

	return []NormalizedEvent{{
		Kind:       KindUpdate,
		Collection: CollectionMute,
		Scope:      Scope{GuildID: settings.GuildID},
		Entries:    muteEntries(settings),
	}}, nil
}

func init() {
	registerDispatch(discord.EventReady, OnReady)
	registerDispatch(discord.EventReadySupplemental, OnReadySupplemental)
	registerDispatch(discord.EventMessageCreate, OnMessageCreate)
	registerDispatch(discord.EventMessageUpdate, OnMessageUpdate)
	registerDispatch(discord.EventMessageDelete, OnMessageDelete)
	registerDispatch(discord.EventMessageDeleteBulk, OnMessageDeleteBulk)
	registerDispatch(discord.EventMessageAck, OnMessageAck)
	registerDispatch(discord.EventReactionAdd, OnMessageReactionAdd)
	registerDispatch(discord.EventReactionRemove, OnMessageReactionRemove)
	registerDispatch(discord.EventReactionRemoveAll, OnMessageReactionRemoveAll)
	registerDispatch(discord.EventTypingStart, OnTypingStart)
	registerDispatch(discord.EventPresenceUpdate, OnPresenceUpdate)
	registerDispatch(discord.EventChannelCreate, OnChannelCreate)
	registerDispatch(discord.EventChannelUpdate, OnChannelUpdate)
	registerDispatch(discord.EventChannelDelete, OnChannelDelete)
	registerDispatch(discord.EventThreadCreate, OnThreadCreate)
	registerDispatch(discord.EventThreadUpdate, OnThreadUpdate)
	registerDispatch(discord.EventThreadDelete, OnThreadDelete)
	registerDispatch(discord.EventChannelRecipientAdd, OnChannelRecipientAdd)
	registerDispatch(discord.EventChannelRecipientRemove, OnChannelRecipientRemove)
	registerDispatch(discord.EventGuildCreate, OnGuildCreate)
	registerDispatch(discord.EventGuildDelete, OnGuildDelete)
	registerDispatch(discord.EventGuildEmojisUpdate, OnGuildEmojisUpdate)
	registerDispatch(discord.EventRelationshipAdd, OnRelationshipAdd)
	registerDispatch(discord.EventRelationshipRemove, OnRelationshipRemove)
	registerDispatch(discord.EventUserGuildSettings, OnUserGuildSettingsUpdate)
}
