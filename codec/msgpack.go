package codec

import (
	"bytes"

	"github.com/WelcomerTeam/Mirror/discord"
	"github.com/vmihailenco/msgpack/v5"
	"nhooyr.io/websocket"
)

const MsgpackName = "msgpack"

// Structures are shared with the json codec, so their json tags are reused.
const structTag = "json"

type msgpackFrame struct {
	Op       *discord.GatewayOp `json:"op"`
	Sequence *uint64            `json:"s"`
	Type     string             `json:"t"`
	Data     msgpack.RawMessage `json:"d"`
}

// Msgpack is the compact binary codec.
type Msgpack struct{}

func NewMsgpack() *Msgpack {
	return &Msgpack{}
}

func (*Msgpack) Name() string { return MsgpackName }

func (*Msgpack) MessageType() websocket.MessageType { return websocket.MessageBinary }

func (*Msgpack) Encode(op discord.GatewayOp, data any) ([]byte, error) {
	var buf bytes.Buffer

	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag(structTag)
	enc.UseCompactInts(true)

	if err := enc.Encode(discord.SentPayload{Op: op, Data: data}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (m *Msgpack) Decode(frame []byte) (*discord.GatewayPayload, error) {
	var raw msgpackFrame

	if err := m.Unmarshal(frame, &raw); err != nil {
		return nil, &DecodeError{Codec: MsgpackName, Length: len(frame), Err: err}
	}

	if raw.Op == nil {
		return nil, &DecodeError{Codec: MsgpackName, Length: len(frame), Err: errMissingOp}
	}

	payload := &discord.GatewayPayload{
		Op:       *raw.Op,
		Sequence: raw.Sequence,
		Type:     raw.Type,
	}

	// 0xc0 is the msgpack nil marker.
	if len(raw.Data) > 0 && !(len(raw.Data) == 1 && raw.Data[0] == 0xc0) {
		payload.Data = raw.Data
	}

	return payload, nil
}

func (*Msgpack) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag(structTag)

	return dec.Decode(v)
}
