package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatrelaygo/internal/chat"
	"chatrelaygo/internal/store"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second // must be < pongWait
	maxMessageSize = 4096
)

var (
	ErrInvalidRoom = errors.New("invalid_room")
	ErrNotJoined   = errors.New("not_joined")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true }, // dev-only
}

// ConnContext carries the per-connection state handed to event handlers.
type ConnContext struct {
	Session *chat.Session
	Conn    *clientConn
	Server  *WsServer
}

type WsServer struct {
	hub          *Hub
	sessions     *chat.SessionManager
	router       *Router
	store        store.MessageStore
	historyLimit int
	storeTimeout time.Duration
}

func NewWsServer(h *Hub, sessions *chat.SessionManager, st store.MessageStore, historyLimit int, storeTimeout time.Duration) *WsServer {
	srv := &WsServer{
		hub:          h,
		sessions:     sessions,
		router:       NewRouter(),
		store:        st,
		historyLimit: historyLimit,
		storeTimeout: storeTimeout,
	}
	srv.registerHandlers() // ← all WS events configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	rawConn, err := upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}

	// ─────────────────── Client connected ────────────────────────
	wsConn := &clientConn{rawConn: rawConn}
	sess := s.sessions.Create()
	zap.L().Info("ws.connected", zap.String("session_id", sess.ID))

	cc := &ConnContext{Session: sess, Conn: wsConn, Server: s}
	go s.pinger(wsConn)
	go s.reader(cc)
}

// ---------------------------------------------------------------------------
//  Event handlers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	Register(s.router, "join", s.handleJoin)
	Register(s.router, "message", s.handleMessage)
}

func (s *WsServer) handleJoin(ctx context.Context, cc *ConnContext, req JoinRequest) error {
	roomID := strings.TrimSpace(req.Room)
	if roomID == "" {
		return ErrInvalidRoom
	}

	handle := s.sessions.AssignHandle(cc.Session.ID)
	s.hub.Join(roomID, cc.Conn)
	s.sessions.SetRoom(cc.Session.ID, roomID)

	zap.L().Info("ws.join",
		zap.String("session_id", cc.Session.ID),
		zap.String("handle", handle),
		zap.String("room", roomID),
	)

	// History is best-effort: a dead or absent store means an empty history,
	// never a failed join.
	if err := s.store.EnsureRoom(ctx, roomID); err != nil {
		zap.L().Warn("store.ensure_room_failed", zap.String("room", roomID), zap.Error(err))
	}
	history, err := s.store.History(ctx, roomID, s.historyLimit)
	if err != nil {
		zap.L().Warn("store.history_failed", zap.String("room", roomID), zap.Error(err))
		history = nil
	}
	if history == nil {
		history = []store.Message{}
	}
	_ = cc.Conn.sendEvent("message_history", HistoryBody{Messages: history})

	s.broadcast(roomID, "system", fmt.Sprintf("%s joined the room.", handle))
	_ = cc.Conn.sendEvent("your_handle", handle)
	return nil
}

func (s *WsServer) handleMessage(_ context.Context, cc *ConnContext, req MessageRequest) error {
	// The broadcast identity is the one bound at join; client-supplied
	// handle/room are ignored.
	roomID, ok := s.hub.Room(cc.Conn)
	if !ok {
		return ErrNotJoined
	}
	handle := cc.Session.Handle
	text := req.Text

	zap.L().Debug("ws.message",
		zap.String("handle", handle),
		zap.String("room", roomID),
	)

	// Fire-and-forget persistence: the broadcast below never waits on the
	// store. The adapter bounds the call with its own timeout.
	go func() {
		if err := s.store.SaveMessage(context.Background(), roomID, handle, text); err != nil {
			zap.L().Warn("store.save_failed", zap.String("room", roomID), zap.Error(err))
		}
	}()

	s.broadcast(roomID, "message", MessageBody{Handle: handle, Text: text})
	return nil
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) broadcast(roomID, event string, body any) {
	frame, err := mkFrame(event, body)
	if err != nil {
		zap.L().Warn("ws.marshal_frame", zap.String("event", event), zap.Error(err))
		return
	}
	s.hub.Broadcast(roomID, frame)
}

func (s *WsServer) reader(cc *ConnContext) {
	conn := cc.Conn
	defer func() {
		// Disconnect is terminal: membership and session state must go with
		// it, graceful or not.
		s.hub.Leave(conn)
		s.sessions.Destroy(cc.Session.ID)
		conn.close()
		zap.L().Info("ws.disconnected", zap.String("session_id", cc.Session.ID))
	}()

	conn.rawConn.SetReadLimit(maxMessageSize)
	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.rawConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Debug("ws.read", zap.Error(err))
			}
			return // client closed or errored
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			_ = conn.sendEvent("error", ErrorBody{Error: ErrInvalidPayload.Error()})
			continue
		}

		// Dispatch deadline leaves room for one bounded store call plus
		// delivery.
		ctx, cancel := context.WithTimeout(context.Background(), s.storeTimeout+2*time.Second)
		err = s.router.dispatch(ctx, cc, env)
		cancel()

		// ---- protocol error -> {"event":"error","body":{...}} -----------
		if err != nil {
			_ = conn.sendEvent("error", ErrorBody{Error: err.Error()})
		}
	}
}

func (s *WsServer) pinger(conn *clientConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.write(websocket.PingMessage, nil); err != nil {
			return
		}
	}
}
