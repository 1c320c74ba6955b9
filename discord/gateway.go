package discord

// gateway.go contains all structures for interacting with discord's gateway and contains
// all events and structures we send to

// GatewayVersion is the gateway protocol version requested when dialing.
const GatewayVersion = 9

// GatewayOp represents the operation codes of a gateway message.
type GatewayOp uint8

const (
	GatewayOpDispatch GatewayOp = iota
	GatewayOpHeartbeat
	GatewayOpIdentify
	GatewayOpPresenceUpdate
	GatewayOpVoiceStateUpdate
	_
	GatewayOpResume
	GatewayOpReconnect
	GatewayOpRequestGuildMembers
	GatewayOpInvalidSession
	GatewayOpHello
	GatewayOpHeartbeatACK
)

func (op GatewayOp) String() string {
	switch op {
	case GatewayOpDispatch:
		return "Dispatch"
	case GatewayOpHeartbeat:
		return "Heartbeat"
	case GatewayOpIdentify:
		return "Identify"
	case GatewayOpPresenceUpdate:
		return "PresenceUpdate"
	case GatewayOpVoiceStateUpdate:
		return "VoiceStateUpdate"
	case GatewayOpResume:
		return "Resume"
	case GatewayOpReconnect:
		return "Reconnect"
	case GatewayOpRequestGuildMembers:
		return "RequestGuildMembers"
	case GatewayOpInvalidSession:
		return "InvalidSession"
	case GatewayOpHello:
		return "Hello"
	case GatewayOpHeartbeatACK:
		return "HeartbeatACK"
	default:
		return "Unknown"
	}
}

// Gateway close codes.
const (
	// CloseManualDisconnect is used for local disconnects and never triggers a reconnect.
	CloseManualDisconnect = 1000

	// CloseReconnectRequested is used when we tear down a connection we intend
	// to resume. Receiving it from the server is treated the same way.
	CloseReconnectRequested = 4000
)

// Close codes sent by discord.
const (
	CloseUnknownError = 4000 + iota
	CloseUnknownOpCode
	CloseDecodeError
	CloseNotAuthenticated
	CloseAuthenticationFailed
	CloseAlreadyAuthenticated
	_
	CloseInvalidSeq
	CloseRateLimited
	CloseSessionTimeout
	CloseInvalidShard
	CloseShardingRequired
	CloseInvalidAPIVersion
	CloseInvalidIntents
	CloseDisallowedIntents
)

// Capabilities is the bitmask of client features announced during identify.
type Capabilities int32

const (
	CapabilityLazyUserNotes Capabilities = 1 << iota
	CapabilityNoAffineUserIDs
	CapabilityVersionedReadStates
	CapabilityVersionedUserGuildSettings
	CapabilityDedupeUserObjects
	CapabilityPrioritizedReadyPayload
	CapabilityMultipleGuildExperimentPopulations
	CapabilityNonChannelReadStates
	CapabilityAuthTokenRefresh
	CapabilityUserSettingsProto
	CapabilityClientStateV2
	CapabilityPassiveGuildUpdate
)

// DefaultCapabilities are the capabilities announced when none are configured.
const DefaultCapabilities = CapabilityVersionedReadStates |
	CapabilityVersionedUserGuildSettings |
	CapabilityDedupeUserObjects |
	CapabilityMultipleGuildExperimentPopulations |
	CapabilityNonChannelReadStates |
	CapabilityClientStateV2 |
	CapabilityPassiveGuildUpdate

// GatewayPayload represents a decoded gateway message. Data is still encoded
// in the format of the codec that produced it.
type GatewayPayload struct {
	Sequence *uint64
	Type     string
	Data     []byte
	Op       GatewayOp
}

// SentPayload represents the base payload we send to discords gateway.
type SentPayload struct {
	Data any       `json:"d"`
	Op   GatewayOp `json:"op"`
}

// Hello represents a hello event when connecting.
type Hello struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

// Identify represents the initial handshake with the gateway.
type Identify struct {
	Properties   IdentifyProperties `json:"properties"`
	Presence     *UpdateStatus      `json:"presence,omitempty"`
	ClientState  ClientState        `json:"client_state,omitempty"`
	Token        string             `json:"token"`
	Capabilities Capabilities       `json:"capabilities"`
	Compress     bool               `json:"compress"`
}

// IdentifyProperties are the extra properties sent in the identify packet.
type IdentifyProperties struct {
	OS                string `json:"os" yaml:"os"`
	Browser           string `json:"browser" yaml:"browser"`
	Device            string `json:"device" yaml:"device"`
	SystemLocale      string `json:"system_locale,omitempty" yaml:"system_locale"`
	BrowserUserAgent  string `json:"browser_user_agent,omitempty" yaml:"browser_user_agent"`
	BrowserVersion    string `json:"browser_version,omitempty" yaml:"browser_version"`
	OSVersion         string `json:"os_version,omitempty" yaml:"os_version"`
	ReleaseChannel    string `json:"release_channel,omitempty" yaml:"release_channel"`
	ClientBuildNumber int64  `json:"client_build_number,omitempty" yaml:"client_build_number"`
}

// ClientState is guild and version bookkeeping owned by the caller. It is
// sent with identify unchanged.
type ClientState map[string]any

// Resume resumes a dropped gateway connection.
type Resume struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Sequence  uint64 `json:"seq"`
}

// InvalidSession is the payload of an invalid session message.
type InvalidSession bool

// RequestGuildMembers requests members for a guild.
type RequestGuildMembers struct {
	Query     string      `json:"query"`
	Nonce     string      `json:"nonce,omitempty"`
	UserIDs   []Snowflake `json:"user_ids,omitempty"`
	GuildID   Snowflake   `json:"guild_id"`
	Limit     int32       `json:"limit"`
	Presences bool        `json:"presences"`
}

// UpdateStatus updates the client's presence.
type UpdateStatus struct {
	Status     PresenceStatus `json:"status" yaml:"status"`
	Activities []Activity     `json:"activities" yaml:"activities"`
	Since      int64          `json:"since" yaml:"since"`
	AFK        bool           `json:"afk" yaml:"afk"`
}
