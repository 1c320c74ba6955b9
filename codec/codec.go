package codec

import (
	"errors"
	"fmt"

	"github.com/WelcomerTeam/Mirror/discord"
	"nhooyr.io/websocket"
)

// Codec converts gateway messages to and from wire frames. One codec is
// chosen before the first connection and used for the client's lifetime.
type Codec interface {
	// Name is the value of the encoding query parameter.
	Name() string

	// MessageType is the websocket frame type used for outgoing messages.
	MessageType() websocket.MessageType

	Encode(op discord.GatewayOp, data any) ([]byte, error)

	// Decode never returns a partially populated payload. Any failure is a
	// *DecodeError.
	Decode(frame []byte) (*discord.GatewayPayload, error)

	// Unmarshal decodes GatewayPayload.Data produced by this codec.
	Unmarshal(data []byte, v any) error
}

var ErrUnknownCodec = errors.New("unknown codec")

// DecodeError reports a frame that could not be decoded.
type DecodeError struct {
	Err    error
	Codec  string
	Length int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: failed to decode %d byte frame: %v", e.Codec, e.Length, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var errMissingOp = errors.New("frame has no op")

// New returns the codec registered under name.
func New(name string) (Codec, error) {
	switch name {
	case "", JSONName:
		return NewJSON(), nil
	case MsgpackName:
		return NewMsgpack(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCodec, name)
	}
}
