package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"chatrelaygo/internal/chat"
	"chatrelaygo/internal/store"
)

var handleRe = regexp.MustCompile(`^Anon-[0-9a-f]{6}$`)

func newGateway(t *testing.T, st store.MessageStore) (*WsServer, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := NewWsServer(NewHub(), chat.NewSessionManager(), st, 50, time.Second)
	engine := gin.New()
	engine.GET("/ws", srv.Handle)

	ts := httptest.NewServer(engine)
	t.Cleanup(ts.Close)
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, body any) {
	t.Helper()
	frame, err := mkFrame(event, body)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func readFrame(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func expectNoFrame(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

// join sends a join event and consumes the three reply frames, returning the
// assigned handle and the history payload.
func join(t *testing.T, conn *websocket.Conn, room string) (string, HistoryBody) {
	t.Helper()

	sendEvent(t, conn, "join", JoinRequest{Room: room})

	env := readFrame(t, conn)
	require.Equal(t, "message_history", env.Event)
	var hist HistoryBody
	require.NoError(t, json.Unmarshal(env.Body, &hist))

	env = readFrame(t, conn)
	require.Equal(t, "system", env.Event)

	env = readFrame(t, conn)
	require.Equal(t, "your_handle", env.Event)
	var handle string
	require.NoError(t, json.Unmarshal(env.Body, &handle))
	require.Regexp(t, handleRe, handle)

	return handle, hist
}

func readMessage(t *testing.T, conn *websocket.Conn) MessageBody {
	t.Helper()
	env := readFrame(t, conn)
	require.Equal(t, "message", env.Event)
	var body MessageBody
	require.NoError(t, json.Unmarshal(env.Body, &body))
	return body
}

func readError(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	env := readFrame(t, conn)
	require.Equal(t, "error", env.Event)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(env.Body, &body))
	return body.Error
}

// ---------------------------------------------------------------------------

func TestGateway_JoinAndChatScenario(t *testing.T) {
	req := require.New(t)
	srv, url := newGateway(t, store.NewDisabled())

	// A joins an empty lobby: empty history, join notice, handle.
	connA := dial(t, url)
	handleA, hist := join(t, connA, "lobby")
	req.NotNil(hist.Messages)
	req.Empty(hist.Messages)

	// B joins: both A and B see the join notice.
	connB := dial(t, url)
	handleB, _ := join(t, connB, "lobby")
	req.NotEqual(handleA, handleB)

	env := readFrame(t, connA)
	req.Equal("system", env.Event)
	var notice string
	req.NoError(json.Unmarshal(env.Body, &notice))
	req.Equal(handleB+" joined the room.", notice)

	req.Equal(2, srv.hub.MemberCount("lobby"))

	// A sends a message: both members receive it, sender echo included.
	sendEvent(t, connA, "message", MessageRequest{Room: "lobby", Handle: handleA, Text: "hi"})
	for _, conn := range []*websocket.Conn{connA, connB} {
		body := readMessage(t, conn)
		req.Equal(handleA, body.Handle)
		req.Equal("hi", body.Text)
	}
}

func TestGateway_MessageBeforeJoinRejected(t *testing.T) {
	_, url := newGateway(t, store.NewDisabled())

	conn := dial(t, url)
	sendEvent(t, conn, "message", MessageRequest{Room: "lobby", Text: "sneaky"})
	require.Equal(t, ErrNotJoined.Error(), readError(t, conn))
}

func TestGateway_MalformedPayloadsRejectedWithoutWedging(t *testing.T) {
	req := require.New(t)
	_, url := newGateway(t, store.NewDisabled())

	conn := dial(t, url)

	// Not even JSON.
	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	req.Equal(ErrInvalidPayload.Error(), readError(t, conn))

	// join without a room.
	sendEvent(t, conn, "join", map[string]any{})
	req.Equal(ErrInvalidPayload.Error(), readError(t, conn))

	// Unknown event.
	sendEvent(t, conn, "teleport", map[string]any{"to": "narnia"})
	req.Equal(ErrUnknownEvent.Error(), readError(t, conn))

	// The connection is still usable afterwards.
	handle, _ := join(t, conn, "lobby")

	// message without text, after joining.
	sendEvent(t, conn, "message", map[string]any{"room": "lobby"})
	req.Equal(ErrInvalidPayload.Error(), readError(t, conn))

	sendEvent(t, conn, "message", MessageRequest{Text: "still alive"})
	body := readMessage(t, conn)
	req.Equal(handle, body.Handle)
	req.Equal("still alive", body.Text)
}

func TestGateway_ClientSuppliedIdentityIgnored(t *testing.T) {
	req := require.New(t)
	_, url := newGateway(t, store.NewDisabled())

	connA := dial(t, url)
	handleA, _ := join(t, connA, "lobby")
	connB := dial(t, url)
	join(t, connB, "lobby")
	readFrame(t, connA) // B's join notice

	// A lies about both handle and room; the broadcast uses the session's
	// bound identity and lands in A's actual room.
	sendEvent(t, connA, "message", MessageRequest{Room: "elsewhere", Handle: "Impostor", Text: "hello"})

	for _, conn := range []*websocket.Conn{connA, connB} {
		body := readMessage(t, conn)
		req.Equal(handleA, body.Handle)
		req.Equal("hello", body.Text)
	}
}

func TestGateway_SecondJoinSwitchesRooms(t *testing.T) {
	req := require.New(t)
	srv, url := newGateway(t, store.NewDisabled())

	connA := dial(t, url)
	handleA1, _ := join(t, connA, "room-1")
	handleA2, _ := join(t, connA, "room-2")
	req.Equal(handleA1, handleA2) // handle survives the move

	connB := dial(t, url)
	join(t, connB, "room-1")

	req.Equal(1, srv.hub.MemberCount("room-1"))
	req.Equal(1, srv.hub.MemberCount("room-2"))

	// B's traffic in room-1 must not reach A anymore.
	sendEvent(t, connB, "message", MessageRequest{Text: "anyone here?"})
	readMessage(t, connB)
	expectNoFrame(t, connA)
}

func TestGateway_DisconnectLeavesRoom(t *testing.T) {
	req := require.New(t)
	srv, url := newGateway(t, store.NewDisabled())

	connA := dial(t, url)
	join(t, connA, "lobby")
	connB := dial(t, url)
	handleB, _ := join(t, connB, "lobby")
	readFrame(t, connA) // B's join notice

	req.NoError(connA.Close())
	require.Eventually(t, func() bool {
		return srv.hub.MemberCount("lobby") == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Delivery to the survivor is unaffected.
	sendEvent(t, connB, "message", MessageRequest{Text: "still here"})
	body := readMessage(t, connB)
	req.Equal(handleB, body.Handle)
}

// failingStore simulates an unreachable database: every call burns a little
// latency and errors out.
type failingStore struct{}

func (failingStore) Enabled() bool { return true }

func (failingStore) SaveMessage(context.Context, string, string, string) error {
	time.Sleep(50 * time.Millisecond)
	return errors.New("store: connection timed out")
}

func (failingStore) History(context.Context, string, int) ([]store.Message, error) {
	time.Sleep(50 * time.Millisecond)
	return nil, errors.New("store: connection timed out")
}

func (failingStore) EnsureRoom(context.Context, string) error {
	return errors.New("store: connection timed out")
}

func (failingStore) CleanupOldMessages(context.Context, int) error {
	return errors.New("store: connection timed out")
}

func TestGateway_StoreFailureNeverReachesClients(t *testing.T) {
	req := require.New(t)
	_, url := newGateway(t, failingStore{})

	connA := dial(t, url)
	handleA, hist := join(t, connA, "lobby")
	req.Empty(hist.Messages) // degraded to empty history, no error frame

	connB := dial(t, url)
	join(t, connB, "lobby")
	readFrame(t, connA) // B's join notice

	// Persistence fails in the background; the broadcast is unaffected and
	// the very next frame both clients see is the message itself.
	sendEvent(t, connA, "message", MessageRequest{Text: "hi"})
	for _, conn := range []*websocket.Conn{connA, connB} {
		body := readMessage(t, conn)
		req.Equal(handleA, body.Handle)
		req.Equal("hi", body.Text)
	}
}

func TestGateway_SenderOrderPreserved(t *testing.T) {
	req := require.New(t)
	_, url := newGateway(t, store.NewDisabled())

	connA := dial(t, url)
	join(t, connA, "lobby")
	connB := dial(t, url)
	join(t, connB, "lobby")
	readFrame(t, connA) // B's join notice

	for _, text := range []string{"one", "two", "three"} {
		sendEvent(t, connA, "message", MessageRequest{Text: text})
	}
	for _, want := range []string{"one", "two", "three"} {
		req.Equal(want, readMessage(t, connB).Text)
	}
}
