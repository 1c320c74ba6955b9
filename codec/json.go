package codec

import (
	"bytes"

	"github.com/WelcomerTeam/Mirror/discord"
	jsoniter "github.com/json-iterator/go"
	"nhooyr.io/websocket"
)

const JSONName = "json"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var jsonNull = []byte("null")

type jsonFrame struct {
	Op       *discord.GatewayOp  `json:"op"`
	Sequence *uint64             `json:"s"`
	Type     string              `json:"t"`
	Data     jsoniter.RawMessage `json:"d"`
}

// JSON is the human readable codec.
type JSON struct{}

func NewJSON() *JSON {
	return &JSON{}
}

func (*JSON) Name() string { return JSONName }

func (*JSON) MessageType() websocket.MessageType { return websocket.MessageText }

func (*JSON) Encode(op discord.GatewayOp, data any) ([]byte, error) {
	return json.Marshal(discord.SentPayload{Op: op, Data: data})
}

func (*JSON) Decode(frame []byte) (*discord.GatewayPayload, error) {
	var raw jsonFrame

	if err := json.Unmarshal(frame, &raw); err != nil {
		return nil, &DecodeError{Codec: JSONName, Length: len(frame), Err: err}
	}

	if raw.Op == nil {
		return nil, &DecodeError{Codec: JSONName, Length: len(frame), Err: errMissingOp}
	}

	payload := &discord.GatewayPayload{
		Op:       *raw.Op,
		Sequence: raw.Sequence,
		Type:     raw.Type,
	}

	if len(raw.Data) > 0 && !bytes.Equal(raw.Data, jsonNull) {
		payload.Data = raw.Data
	}

	return payload, nil
}

func (*JSON) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
