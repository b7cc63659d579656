package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// connPair is a real websocket pair: the server side wrapped the way the hub
// sees connections, plus the raw client side to observe deliveries.
type connPair struct {
	server *clientConn
	client *websocket.Conn
}

func newConnPair(t *testing.T) *connPair {
	t.Helper()

	upg := websocket.Upgrader{}
	connCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upg.Upgrade(w, r, nil)
		if err != nil {
			connCh <- nil
			return
		}
		connCh <- c
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	serverConn := <-connCh
	require.NotNil(t, serverConn)
	t.Cleanup(func() { serverConn.Close() })

	return &connPair{server: &clientConn{rawConn: serverConn}, client: client}
}

func (p *connPair) readClient(t *testing.T) []byte {
	t.Helper()
	_ = p.client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := p.client.ReadMessage()
	require.NoError(t, err)
	return data
}
