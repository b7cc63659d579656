package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type clientConn struct {
	rawConn *websocket.Conn
	mu      sync.Mutex
}

func (c *clientConn) write(mt int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.rawConn.WriteMessage(mt, data)
}

// sendEvent unicasts one enveloped frame to this connection.
func (c *clientConn) sendEvent(event string, body any) error {
	frame, err := mkFrame(event, body)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, frame)
}

func (c *clientConn) close() {
	_ = c.rawConn.Close()
}
