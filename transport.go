package mirror

import (
	"context"
	"errors"
	"fmt"

	"nhooyr.io/websocket"
)

const WebsocketReadLimit = 512 << 20

// Transport is a single open gateway socket.
type Transport interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, messageType websocket.MessageType, data []byte) error
	Close(code int, reason string) error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// WebsocketDialer dials the gateway with nhooyr.io/websocket.
type WebsocketDialer struct {
	Options   *websocket.DialOptions
	ReadLimit int64
}

func (d WebsocketDialer) Dial(ctx context.Context, url string) (Transport, error) {
	conn, _, err := websocket.Dial(ctx, url, d.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to websocket: %w", err)
	}

	readLimit := d.ReadLimit
	if readLimit == 0 {
		readLimit = WebsocketReadLimit
	}

	conn.SetReadLimit(readLimit)

	return &websocketTransport{conn: conn}, nil
}

type websocketTransport struct {
	conn *websocket.Conn
}

func (t *websocketTransport) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	return t.conn.Read(ctx)
}

func (t *websocketTransport) Write(ctx context.Context, messageType websocket.MessageType, data []byte) error {
	return t.conn.Write(ctx, messageType, data)
}

func (t *websocketTransport) Close(code int, reason string) error {
	err := t.conn.Close(websocket.StatusCode(code), reason)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close websocket: %w", err)
	}

	return nil
}

// closeStatus extracts the close frame from a read error. ok is false when
// the socket dropped without one.
func closeStatus(err error) (code int, reason string, ok bool) {
	var closeError websocket.CloseError

	if errors.As(err, &closeError) {
		return int(closeError.Code), closeError.Reason, true
	}

	return 0, "", false
}
