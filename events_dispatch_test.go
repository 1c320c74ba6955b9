package mirror_test

import (
	"context"
	"sync"
	"testing"
	"time"

	mirror "github.com/WelcomerTeam/Mirror"
	"github.com/WelcomerTeam/Mirror/codec"
	"github.com/WelcomerTeam/Mirror/discord"
	"github.com/WelcomerTeam/Mirror/pkg/clock"
	"github.com/WelcomerTeam/Mirror/pkg/eventbus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConsumer struct {
	mu      sync.Mutex
	batches [][]mirror.NormalizedEvent
}

func (r *recordingConsumer) consume(_ context.Context, events []mirror.NormalizedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.batches = append(r.batches, events)
}

func (r *recordingConsumer) events() []mirror.NormalizedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var events []mirror.NormalizedEvent

	for _, batch := range r.batches {
		events = append(events, batch...)
	}

	return events
}

func (r *recordingConsumer) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.batches = nil
}

type fakeREST struct {
	mu      sync.Mutex
	tracked []string
	sent    []string
	err     error
}

func (f *fakeREST) SendMessage(_ context.Context, channelID discord.Snowflake, content, nonce string) (*discord.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	f.sent = append(f.sent, nonce)

	return &discord.Message{ChannelID: channelID, Content: content, Nonce: nonce}, nil
}

func (f *fakeREST) TrackEvent(_ context.Context, name string, _ map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tracked = append(f.tracked, name)

	return nil
}

func (f *fakeREST) Tracked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string{}, f.tracked...)
}

type pumpHarness struct {
	pump     *mirror.EventPump
	bus      *eventbus.Bus[discord.Event]
	consumer *recordingConsumer
	rest     *fakeREST
}

func newPumpHarness(t *testing.T, flags mirror.StaticFlags) *pumpHarness {
	t.Helper()

	consumer := &recordingConsumer{}
	rest := &fakeREST{}

	pump := mirror.NewEventPump(mirror.PumpOptions{
		Logger:     zerolog.Nop(),
		Identifier: t.Name(),
		REST:       rest,
		Flags:      flags,
		Consumer:   consumer.consume,
	})

	bus := eventbus.New[discord.Event]()
	pump.Register(bus)

	t.Cleanup(pump.Close)

	return &pumpHarness{
		pump:     pump,
		bus:      bus,
		consumer: consumer,
		rest:     rest,
	}
}

func (h *pumpHarness) publish(event discord.Event) {
	h.bus.Publish(context.Background(), event.EventName(), event)
}

func (h *pumpHarness) decode(t *testing.T, name, data string) discord.Event {
	t.Helper()

	event, err := discord.DecodeEvent(name, []byte(data), codec.NewJSON().Unmarshal)
	require.NoError(t, err)

	return event
}

func testReady() *discord.Ready {
	return &discord.Ready{
		User:      discord.User{ID: 1, Username: "me"},
		SessionID: "abc",
		PrivateChannels: []discord.Channel{
			{ID: 10, Type: discord.ChannelTypeDM, LastMessageID: 100, Recipients: []discord.User{{ID: 2}}},
			{ID: 11, Type: discord.ChannelTypeGroupDM},
		},
		Guilds: []discord.Guild{{
			ID:       20,
			Channels: []discord.Channel{{ID: 21, Type: discord.ChannelTypeGuildText}},
			Emojis:   []discord.Emoji{{ID: 22, Name: "blob"}},
		}},
		ReadState: []discord.ReadState{{ID: 10, LastMessageID: 99}},
		UserGuildSettings: []discord.UserGuildSettings{{
			ChannelOverrides: []discord.ChannelOverride{{ChannelID: 11, Muted: true}},
		}},
		Presences: []discord.Presence{{User: discord.User{ID: 2}, Status: discord.PresenceStatusOnline}},
	}
}

func collections(events []mirror.NormalizedEvent) []mirror.Collection {
	result := make([]mirror.Collection, 0, len(events))

	for _, event := range events {
		result = append(result, event.Collection)
	}

	return result
}

func TestReadyInitialisesState(t *testing.T) {
	t.Parallel()

	h := newPumpHarness(t, mirror.StaticFlags{})
	state := h.pump.State()

	assert.False(t, state.IsReady())

	h.publish(testReady())

	assert.True(t, state.IsReady())

	if user := state.User(); assert.NotNil(t, user) {
		assert.Equal(t, "me", user.Username)
	}

	thread, ok := state.Thread(10)
	require.True(t, ok)
	assert.Equal(t, discord.Snowflake(100), thread.LastMessageID)
	assert.Len(t, state.Threads(0), 2)

	// Guild mirroring is off.
	_, ok = state.Thread(21)
	assert.False(t, ok)
	assert.Empty(t, state.Emojis(20))

	lastRead, ok := state.LastReadMessage(10)
	assert.True(t, ok)
	assert.Equal(t, discord.Snowflake(99), lastRead)

	assert.True(t, state.IsMuted(11))
	assert.False(t, state.IsMuted(10))

	presence, ok := state.Presence(2)
	assert.True(t, ok)
	assert.Equal(t, discord.PresenceStatusOnline, presence.Status)

	emitted := collections(h.consumer.events())
	assert.Contains(t, emitted, mirror.CollectionThread)
	assert.Contains(t, emitted, mirror.CollectionPresence)
	assert.Contains(t, emitted, mirror.CollectionReadState)
	assert.Contains(t, emitted, mirror.CollectionMute)
}

func TestReadyMirrorsGuilds(t *testing.T) {
	t.Parallel()

	h := newPumpHarness(t, mirror.StaticFlags{Guilds: true})
	state := h.pump.State()

	h.publish(testReady())

	thread, ok := state.Thread(21)
	require.True(t, ok)
	assert.Equal(t, discord.Snowflake(20), thread.GuildID)

	assert.Equal(t, []discord.Emoji{{ID: 22, Name: "blob"}}, state.Emojis(20))
}

func TestReadyEmitsAnalytics(t *testing.T) {
	t.Parallel()

	h := newPumpHarness(t, mirror.StaticFlags{Analytics: true})

	h.publish(testReady())

	require.Eventually(t, func() bool {
		return len(h.rest.Tracked()) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"ready_received"}, h.rest.Tracked())
}

func TestReadyResetsPreviousState(t *testing.T) {
	t.Parallel()

	h := newPumpHarness(t, mirror.StaticFlags{})
	state := h.pump.State()

	h.publish(&discord.ChannelCreate{ID: 50, Type: discord.ChannelTypeDM})
	_, ok := state.Thread(50)
	require.True(t, ok)

	h.publish(testReady())

	_, ok = state.Thread(50)
	assert.False(t, ok)
}

func TestMessageCreateUpserts(t *testing.T) {
	t.Parallel()

	h := newPumpHarness(t, mirror.StaticFlags{})
	h.publish(testReady())
	h.consumer.reset()

	h.publish(&discord.MessageCreate{ID: 150, ChannelID: 10, Content: "hi", Nonce: "unknown"})

	events := h.consumer.events()
	require.Len(t, events, 1)

	assert.Equal(t, mirror.KindUpsert, events[0].Kind)
	assert.Equal(t, mirror.CollectionMessage, events[0].Collection)
	assert.Equal(t, discord.Snowflake(10), events[0].Scope.ThreadID)
	require.Len(t, events[0].Entries, 1)
	assert.Equal(t, "150", events[0].Entries[0].EntryID())

	thread, ok := h.pump.State().Thread(10)
	require.True(t, ok)
	assert.Equal(t, discord.Snowflake(150), thread.LastMessageID)

	// An older message does not move the pointer back.
	h.publish(&discord.MessageCreate{ID: 120, ChannelID: 10})

	thread, _ = h.pump.State().Thread(10)
	assert.Equal(t, discord.Snowflake(150), thread.LastMessageID)
}

func TestMessageCreateSuppressesPendingNonce(t *testing.T) {
	t.Parallel()

	h := newPumpHarness(t, mirror.StaticFlags{})
	h.publish(testReady())
	h.consumer.reset()

	h.pump.TrackNonce("1234")

	h.publish(&discord.MessageCreate{ID: 150, ChannelID: 10, Nonce: "1234"})
	assert.Empty(t, h.consumer.events())

	// The nonce is cleared once matched.
	h.publish(&discord.MessageCreate{ID: 151, ChannelID: 10, Nonce: "1234"})
	assert.Len(t, h.consumer.events(), 1)
}

func TestMessageCreateForgottenNonce(t *testing.T) {
	t.Parallel()

	h := newPumpHarness(t, mirror.StaticFlags{})

	h.pump.TrackNonce("1234")
	h.pump.ForgetNonce("1234")

	h.publish(&discord.MessageCreate{ID: 150, ChannelID: 10, Nonce: "1234"})
	assert.Len(t, h.consumer.events(), 1)
}

func TestMessageCreateGuildRequiresFlag(t *testing.T) {
	t.Parallel()

	h := newPumpHarness(t, mirror.StaticFlags{})

	h.publish(&discord.MessageCreate{ID: 150, ChannelID: 21, GuildID: 20})
	assert.Empty(t, h.consumer.events())
}

func TestMessageCreateClearsNonceWithoutGuildFlag(t *testing.T) {
	t.Parallel()

	h := newPumpHarness(t, mirror.StaticFlags{})

	h.pump.TrackNonce("1234")

	h.publish(&discord.MessageCreate{ID: 150, ChannelID: 21, GuildID: 20, Nonce: "1234"})
	assert.Empty(t, h.consumer.events())

	// The nonce was consumed by the unmirrored guild message.
	h.publish(&discord.MessageCreate{ID: 151, ChannelID: 10, Nonce: "1234"})
	assert.Len(t, h.consumer.events(), 1)
}

func TestPendingNonceExpires(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	consumer := &recordingConsumer{}

	pump := mirror.NewEventPump(mirror.PumpOptions{
		Logger:     zerolog.Nop(),
		Identifier: t.Name(),
		Clock:      clk,
		Consumer:   consumer.consume,
		NonceTTL:   time.Minute,
	})
	t.Cleanup(pump.Close)

	bus := eventbus.New[discord.Event]()
	pump.Register(bus)

	pump.TrackNonce("fresh")
	pump.TrackNonce("stale")

	clk.Advance(30 * time.Second)

	bus.Publish(context.Background(), discord.EventMessageCreate, &discord.MessageCreate{ID: 150, ChannelID: 10, Nonce: "fresh"})
	assert.Empty(t, consumer.events())

	clk.Advance(30 * time.Second)

	bus.Publish(context.Background(), discord.EventMessageCreate, &discord.MessageCreate{ID: 151, ChannelID: 10, Nonce: "stale"})
	assert.Len(t, consumer.events(), 1)
}

// stalledStore blocks every write until release is closed.
type stalledStore struct {
	release chan struct{}

	mu   sync.Mutex
	puts int
}

func (s *stalledStore) Get(context.Context, string, discord.Snowflake) ([]byte, bool, error) {
	return nil, false, nil
}

func (s *stalledStore) Put(ctx context.Context, _ string, _ discord.Snowflake, _ []byte) error {
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.puts++

	return nil
}

func (s *stalledStore) Puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.puts
}

func TestOriginalWritesDoNotBlockDispatch(t *testing.T) {
	t.Parallel()

	store := &stalledStore{release: make(chan struct{})}
	consumer := &recordingConsumer{}

	pump := mirror.NewEventPump(mirror.PumpOptions{
		Logger:        zerolog.Nop(),
		Identifier:    t.Name(),
		Store:         store,
		Consumer:      consumer.consume,
		LookupTimeout: 5 * time.Second,
	})
	t.Cleanup(pump.Close)

	bus := eventbus.New[discord.Event]()
	pump.Register(bus)

	decode := func(name, data string) discord.Event {
		event, err := discord.DecodeEvent(name, []byte(data), codec.NewJSON().Unmarshal)
		require.NoError(t, err)

		return event
	}

	done := make(chan struct{})

	go func() {
		bus.Publish(context.Background(), discord.EventMessageCreate,
			decode(discord.EventMessageCreate, `{"id":"150","channel_id":"10","content":"hello","author":{"id":"2","username":"friend"}}`))
		bus.Publish(context.Background(), discord.EventMessageUpdate,
			decode(discord.EventMessageUpdate, `{"id":"150","channel_id":"10","content":"edited"}`))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "dispatch blocked on the original store")
	}

	events := consumer.events()
	require.Len(t, events, 2)

	// The update merges onto the write still waiting for the store.
	entry, ok := events[1].Entries[0].(mirror.MessageEntry)
	require.True(t, ok)
	assert.Equal(t, "edited", entry.Content)
	assert.Equal(t, "friend", entry.Author.Username)

	close(store.release)

	require.Eventually(t, func() bool {
		return store.Puts() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestMessageUpdateMergesOriginal(t *testing.T) {
	t.Parallel()

	h := newPumpHarness(t, mirror.StaticFlags{})

	h.publish(h.decode(t, discord.EventMessageCreate,
		`{"id":"150","channel_id":"10","content":"hello","author":{"id":"2","username":"friend"},"timestamp":"2024-01-01T00:00:00Z"}`))
	h.consumer.reset()

	h.publish(h.decode(t, discord.EventMessageUpdate,
		`{"id":"150","channel_id":"10","content":"edited","edited_timestamp":"2024-01-01T00:05:00Z"}`))

	events := h.consumer.events()
	require.Len(t, events, 1)
	assert.Equal(t, mirror.KindUpdate, events[0].Kind)

	entry, ok := events[0].Entries[0].(mirror.MessageEntry)
	require.True(t, ok)

	assert.Equal(t, "edited", entry.Content)
	assert.Equal(t, "friend", entry.Author.Username)
	assert.Equal(t, discord.Snowflake(2), entry.Author.ID)
	assert.NotNil(t, entry.EditedTimestamp)

	// The merged copy is stored for the next update.
	h.consumer.reset()
	h.publish(h.decode(t, discord.EventMessageUpdate, `{"id":"150","channel_id":"10","pinned":true}`))

	entry = h.consumer.events()[0].Entries[0].(mirror.MessageEntry)
	assert.Equal(t, "edited", entry.Content)
	assert.True(t, entry.Pinned)
}

func TestMessageUpdateWithoutOriginal(t *testing.T) {
	t.Parallel()

	h := newPumpHarness(t, mirror.StaticFlags{})

	h.publish(h.decode(t, discord.EventMessageUpdate, `{"id":"150","channel_id":"10","content":"edited"}`))

	events := h.consumer.events()
	require.Len(t, events, 1)

	entry := events[0].Entries[0].(mirror.MessageEntry)
	assert.Equal(t, "edited", entry.Content)
	assert.Equal(t, discord.Snowflake(150), entry.ID)
}

func TestMessageDelete(t *testing.T) {
	t.Parallel()

	h := newPumpHarness(t, mirror.StaticFlags{})

	h.publish(&discord.MessageDelete{ID: 150, ChannelID: 10})
	h.publish(&discord.MessageDeleteBulk{IDs: []discord.Snowflake{151, 152}, ChannelID: 10})

	events := h.consumer.events()
	require.Len(t, events, 2)

	assert.Equal(t, mirror.KindDelete, events[0].Kind)
	assert.Equal(t, []mirror.Entry{mirror.DeletedEntry{ID: "150"}}, events[0].Entries)
	assert.Equal(t, []mirror.Entry{mirror.DeletedEntry{ID: "151"}, mirror.DeletedEntry{ID: "152"}}, events[1].Entries)
}

func TestReactions(t *testing.T) {
	t.Parallel()

	h := newPumpHarness(t, mirror.StaticFlags{})

	reaction := discord.MessageReactionAdd{
		Emoji:     discord.Emoji{Name: "👍"},
		UserID:    6,
		ChannelID: 10,
		MessageID: 150,
	}

	h.publish(&reaction)

	removed := discord.MessageReactionRemove(reaction)
	h.publish(&removed)

	h.publish(&discord.MessageReactionRemoveAll{ChannelID: 10, MessageID: 150})

	events := h.consumer.events()
	require.Len(t, events, 3)

	assert.Equal(t, mirror.KindUpsert, events[0].Kind)
	assert.Equal(t, mirror.Scope{ThreadID: 10, MessageID: 150}, events[0].Scope)
	assert.Equal(t, []mirror.Entry{mirror.ReactionEntry{
		ID:            "6👍",
		ParticipantID: 6,
		Emoji:         discord.Emoji{Name: "👍"},
	}}, events[0].Entries)

	assert.Equal(t, mirror.KindDelete, events[1].Kind)
	assert.Equal(t, []mirror.Entry{mirror.DeletedEntry{ID: "6👍"}}, events[1].Entries)

	assert.Equal(t, mirror.KindUpdate, events[2].Kind)
	assert.Empty(t, events[2].Entries)
}

func TestReactionKeyUsesEmojiID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "622", mirror.ReactionKey(6, discord.Emoji{ID: 22, Name: "blob"}))
}

func TestGuildLifecycle(t *testing.T) {
	t.Parallel()

	h := newPumpHarness(t, mirror.StaticFlags{Guilds: true})
	state := h.pump.State()

	h.publish(&discord.GuildCreate{
		ID:       30,
		Channels: []discord.Channel{{ID: 31, Type: discord.ChannelTypeGuildText}},
		Threads:  []discord.Channel{{ID: 32, Type: discord.ChannelTypeGuildPublicThread}},
		Emojis:   []discord.Emoji{{ID: 33, Name: "a"}},
	})

	assert.Len(t, state.Threads(30), 2)
	assert.Len(t, state.Emojis(30), 1)

	h.publish(&discord.GuildEmojisUpdate{GuildID: 30, Emojis: []discord.Emoji{{ID: 34, Name: "b"}, {ID: 35, Name: "c"}}})
	assert.Equal(t, []discord.Emoji{{ID: 34, Name: "b"}, {ID: 35, Name: "c"}}, state.Emojis(30))

	// Outages keep state.
	h.publish(&discord.GuildDelete{ID: 30, Unavailable: true})
	assert.Len(t, state.Threads(30), 2)

	h.publish(&discord.GuildDelete{ID: 30})

	assert.Empty(t, state.Threads(30))
	assert.Empty(t, state.Emojis(30))

	_, ok := state.Thread(31)
	assert.False(t, ok)
}

func TestGuildEventsIgnoredWithoutFlag(t *testing.T) {
	t.Parallel()

	h := newPumpHarness(t, mirror.StaticFlags{})

	h.publish(&discord.GuildCreate{ID: 30, Channels: []discord.Channel{{ID: 31}}})
	h.publish(&discord.ThreadCreate{ID: 32, GuildID: 30, Type: discord.ChannelTypeGuildPublicThread})
	h.publish(&discord.PresenceUpdate{User: discord.User{ID: 2}, GuildID: 30})

	assert.Empty(t, h.consumer.events())
}

func TestChannelLifecycle(t *testing.T) {
	t.Parallel()

	h := newPumpHarness(t, mirror.StaticFlags{})
	state := h.pump.State()

	h.publish(&discord.ChannelCreate{ID: 40, Type: discord.ChannelTypeGroupDM, Name: "group"})
	h.publish(&discord.ChannelUpdate{ID: 40, Type: discord.ChannelTypeGroupDM, Name: "renamed"})

	thread, ok := state.Thread(40)
	require.True(t, ok)
	assert.Equal(t, "renamed", thread.Name)

	h.publish(&discord.ChannelRecipientAdd{ChannelID: 40, User: discord.User{ID: 7, Username: "new"}})

	thread, _ = state.Thread(40)
	assert.Equal(t, []discord.User{{ID: 7, Username: "new"}}, thread.Recipients)

	h.publish(&discord.ChannelRecipientRemove{ChannelID: 40, User: discord.User{ID: 7}})

	thread, _ = state.Thread(40)
	assert.Empty(t, thread.Recipients)

	h.publish(&discord.ChannelDelete{ID: 40, Type: discord.ChannelTypeGroupDM})

	_, ok = state.Thread(40)
	assert.False(t, ok)
}

func TestRelationships(t *testing.T) {
	t.Parallel()

	h := newPumpHarness(t, mirror.StaticFlags{})
	state := h.pump.State()

	h.publish(&discord.RelationshipAdd{ID: 8, Type: discord.RelationshipTypeFriend, User: &discord.User{ID: 8, Username: "friend"}})

	relationship, ok := state.Relationship(8)
	require.True(t, ok)
	assert.Equal(t, discord.RelationshipTypeFriend, relationship)

	user, ok := state.UserByID(8)
	require.True(t, ok)
	assert.Equal(t, "friend", user.Username)

	h.publish(&discord.RelationshipRemove{ID: 8})

	_, ok = state.Relationship(8)
	assert.False(t, ok)
}

func TestMuteAndReadState(t *testing.T) {
	t.Parallel()

	h := newPumpHarness(t, mirror.StaticFlags{})
	state := h.pump.State()

	h.publish(&discord.UserGuildSettingsUpdate{ChannelOverrides: []discord.ChannelOverride{{ChannelID: 10, Muted: true}}})
	assert.True(t, state.IsMuted(10))

	h.publish(&discord.UserGuildSettingsUpdate{ChannelOverrides: []discord.ChannelOverride{{ChannelID: 10, Muted: false}}})
	assert.False(t, state.IsMuted(10))

	h.publish(&discord.MessageAck{ChannelID: 10, MessageID: 160})

	lastRead, ok := state.LastReadMessage(10)
	require.True(t, ok)
	assert.Equal(t, discord.Snowflake(160), lastRead)
}

func TestTypingStart(t *testing.T) {
	t.Parallel()

	h := newPumpHarness(t, mirror.StaticFlags{})

	h.publish(&discord.TypingStart{ChannelID: 10, UserID: 2, Timestamp: 1700000000})

	events := h.consumer.events()
	require.Len(t, events, 1)
	assert.Equal(t, mirror.CollectionTyping, events[0].Collection)
	assert.Equal(t, []mirror.Entry{mirror.TypingEntry{UserID: 2, Timestamp: 1700000000}}, events[0].Entries)
}

func TestApplyIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newPumpHarness(t, mirror.StaticFlags{Guilds: true})

	h.publish(testReady())
	h.publish(&discord.MessageCreate{ID: 150, ChannelID: 10})
	h.publish(&discord.ChannelRecipientAdd{ChannelID: 11, User: discord.User{ID: 7}})
	h.publish(&discord.GuildEmojisUpdate{GuildID: 20, Emojis: []discord.Emoji{{ID: 34, Name: "b"}}})
	h.publish(&discord.RelationshipAdd{ID: 8, Type: discord.RelationshipTypeFriend})
	h.publish(&discord.ChannelDelete{ID: 40, Type: discord.ChannelTypeDM})

	once := mirror.NewMirroredState()
	twice := mirror.NewMirroredState()

	for _, event := range h.consumer.events() {
		once.Apply(event)

		twice.Apply(event)
		twice.Apply(event)
	}

	assert.Equal(t, once.Counts(), twice.Counts())

	for _, id := range []discord.Snowflake{10, 11, 21} {
		expected, ok := once.Thread(id)
		require.True(t, ok)

		actual, ok := twice.Thread(id)
		require.True(t, ok)

		assert.Equal(t, expected, actual)
	}

	assert.Equal(t, once.Emojis(20), twice.Emojis(20))
	assert.True(t, twice.IsMuted(11))
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	t.Parallel()

	pump := mirror.NewEventPump(mirror.PumpOptions{
		Logger:     zerolog.Nop(),
		Identifier: t.Name(),
		Consumer: func(context.Context, []mirror.NormalizedEvent) {
			panic("consumer failed")
		},
	})

	bus := eventbus.New[discord.Event]()
	pump.Register(bus)

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), discord.EventTypingStart, &discord.TypingStart{ChannelID: 1})
	})
}

func TestCloseUnsubscribes(t *testing.T) {
	t.Parallel()

	h := newPumpHarness(t, mirror.StaticFlags{})

	assert.True(t, h.bus.Has(discord.EventMessageCreate))

	h.pump.Close()

	assert.False(t, h.bus.Has(discord.EventMessageCreate))
}

func TestDispatchesAreCounted(t *testing.T) {
	t.Parallel()

	h := newPumpHarness(t, mirror.StaticFlags{})

	h.publish(&discord.TypingStart{ChannelID: 10, UserID: 2})
	h.publish(&discord.MessageDelete{ID: 150, ChannelID: 10})

	assert.Equal(t, int64(2), h.pump.Events().Pending())

	h.pump.Events().Sample(time.Now())

	assert.Equal(t, int64(2), h.pump.Events().Last(60).Sum())
}
