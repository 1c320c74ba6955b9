package mirror

import (
	"context"

	"github.com/WelcomerTeam/Mirror/discord"
)

// RESTClient is the subset of the REST API the client relies on.
type RESTClient interface {
	SendMessage(ctx context.Context, channelID discord.Snowflake, content, nonce string) (*discord.Message, error)
	TrackEvent(ctx context.Context, name string, properties map[string]any) error
}

// OriginalStore persists the full encoded copy of objects so partial updates
// can be merged onto them.
type OriginalStore interface {
	Get(ctx context.Context, kind string, id discord.Snowflake) (data []byte, ok bool, err error)
	Put(ctx context.Context, kind string, id discord.Snowflake, data []byte) error
}

// FeatureFlags toggles optional behaviour of the event pump.
type FeatureFlags interface {
	MirrorGuilds() bool
	EmitAnalytics() bool
}

// StaticFlags is a FeatureFlags with fixed values.
type StaticFlags struct {
	Guilds    bool `json:"mirror_guilds" yaml:"mirror_guilds"`
	Analytics bool `json:"emit_analytics" yaml:"emit_analytics"`
}

func (f StaticFlags) MirrorGuilds() bool  { return f.Guilds }
func (f StaticFlags) EmitAnalytics() bool { return f.Analytics }

// Consumer receives every batch of normalized events in order. It runs on the
// gateway read goroutine and must not block on I/O.
type Consumer func(ctx context.Context, events []NormalizedEvent)

const (
	OriginalKindMessage = "message"
)
