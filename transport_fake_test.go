package mirror_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mirror "github.com/WelcomerTeam/Mirror"
	"github.com/WelcomerTeam/Mirror/codec"
	"github.com/WelcomerTeam/Mirror/discord"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

var errTransportClosed = errors.New("transport closed")

type fakeFrame struct {
	err         error
	data        []byte
	messageType websocket.MessageType
}

// fakeTransport is an in-memory gateway socket.
type fakeTransport struct {
	incoming chan fakeFrame
	writes   chan []byte

	closed    chan struct{}
	closeOnce sync.Once

	mu          sync.Mutex
	closeCode   int
	closeReason string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		incoming: make(chan fakeFrame, 16),
		writes:   make(chan []byte, 64),
		closed:   make(chan struct{}),
	}
}

func (f *fakeTransport) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case frame := <-f.incoming:
		return frame.messageType, frame.data, frame.err
	case <-f.closed:
		return 0, nil, errTransportClosed
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (f *fakeTransport) Write(_ context.Context, _ websocket.MessageType, data []byte) error {
	select {
	case <-f.closed:
		return errTransportClosed
	default:
	}

	f.writes <- data

	return nil
}

func (f *fakeTransport) Close(code int, reason string) error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closeCode = code
		f.closeReason = reason
		f.mu.Unlock()

		close(f.closed)
	})

	return nil
}

func (f *fakeTransport) CloseCode() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closeCode
}

func (f *fakeTransport) IsClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// send queues a text frame for the connection to read.
func (f *fakeTransport) send(frame string) {
	f.incoming <- fakeFrame{messageType: websocket.MessageText, data: []byte(frame)}
}

// fail makes the next read return err.
func (f *fakeTransport) fail(err error) {
	f.incoming <- fakeFrame{err: err}
}

// expect waits for the next written frame and checks its op.
func (f *fakeTransport) expect(t *testing.T, op discord.GatewayOp) *discord.GatewayPayload {
	t.Helper()

	select {
	case frame := <-f.writes:
		payload, err := codec.NewJSON().Decode(frame)
		require.NoError(t, err)
		require.Equal(t, op, payload.Op, "unexpected op in %s", frame)

		return payload
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for write", "op %s", op)
	}

	return nil
}

// expectNothing checks no frame is written within a short window.
func (f *fakeTransport) expectNothing(t *testing.T) {
	t.Helper()

	select {
	case frame := <-f.writes:
		require.FailNow(t, "unexpected write", "%s", frame)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeDialer struct {
	dialed chan *fakeTransport

	mu   sync.Mutex
	urls []string
	err  error
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dialed: make(chan *fakeTransport, 8)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (mirror.Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.urls = append(d.urls, url)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if d.err != nil {
		return nil, d.err
	}

	transport := newFakeTransport()
	d.dialed <- transport

	return transport, nil
}

func (d *fakeDialer) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string{}, d.urls...)
}

// next waits for the next dialled transport.
func (d *fakeDialer) next(t *testing.T) *fakeTransport {
	t.Helper()

	select {
	case transport := <-d.dialed:
		return transport
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for dial")
	}

	return nil
}

func (d *fakeDialer) expectNoDial(t *testing.T) {
	t.Helper()

	select {
	case <-d.dialed:
		require.FailNow(t, "unexpected dial")
	case <-time.After(50 * time.Millisecond):
	}
}

func expectStatus(t *testing.T, status <-chan mirror.StatusUpdate, kind mirror.StatusKind) mirror.StatusUpdate {
	t.Helper()

	for {
		select {
		case update := <-status:
			if update.Kind == kind {
				return update
			}
		case <-time.After(2 * time.Second):
			require.FailNow(t, "timed out waiting for status", "%s", kind)

			return mirror.StatusUpdate{}
		}
	}
}
