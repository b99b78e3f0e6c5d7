package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Code-Sangam/Sangam-6704/internal/database"
	"github.com/Code-Sangam/Sangam-6704/internal/presence"
	"github.com/Code-Sangam/Sangam-6704/internal/services"
	"github.com/Code-Sangam/Sangam-6704/internal/store"
	"github.com/Code-Sangam/Sangam-6704/pkg/logger"
	"github.com/Code-Sangam/Sangam-6704/pkg/utils"
	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
)

// Message send rate limit per user (Redis counter).
const (
	sendRateLimit  = 30
	sendRateWindow = time.Minute
)

// typingThrottle is the minimum interval between typing:start emissions
// per sender; the emitted expiry hint lets clients auto-stop after it.
const typingThrottle = 3 * time.Second

// ChatGateway is the realtime delivery engine: it validates socket
// events, applies the message rules through the store and fans results
// out to whichever participant connections are live.
type ChatGateway struct {
	Server   *socketio.Server
	store    *store.Store
	presence *presence.Tracker

	typingMu   sync.Mutex
	lastTyping map[string]time.Time // senderID -> last typing emit

	profileMu sync.RWMutex
	profiles  map[string]map[string]interface{} // userID -> join descriptor
}

func userRoom(userID string) string {
	return "user:" + userID
}

// NewChatGateway builds the socket.io server and wires every chat event
// handler. The presence tracker is injected so the HTTP surface shares it.
func NewChatGateway(st *store.Store, tracker *presence.Tracker) *ChatGateway {
	g := &ChatGateway{
		store:      st,
		presence:   tracker,
		lastTyping: make(map[string]time.Time),
		profiles:   make(map[string]map[string]interface{}),
	}

	server := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: func(r *http.Request) bool { return true },
			},
			&polling.Transport{
				CheckOrigin: func(r *http.Request) bool { return true },
			},
		},
	})

	server.OnConnect("/", g.onConnect)
	server.OnEvent("/", "user:join", g.onJoin)
	server.OnEvent("/", "message:send", g.onSend)
	server.OnEvent("/", "message:edit", g.onEdit)
	server.OnEvent("/", "message:delete", g.onDelete)
	server.OnEvent("/", "message:read", g.onRead)
	server.OnEvent("/", "typing:start", g.onTypingStart)
	server.OnEvent("/", "typing:stop", g.onTypingStop)
	server.OnDisconnect("/", g.onDisconnect)

	server.OnError("/", func(s socketio.Conn, e error) {
		logger.Warn().Err(e).Msg("Socket error")
	})

	g.Server = server
	return g
}

// Serve starts the socket.io event loop in the background.
func (g *ChatGateway) Serve() {
	go g.Server.Serve()
}

func (g *ChatGateway) Close() error {
	return g.Server.Close()
}

// emitError reports a failure to the offending connection only. Errors
// are never broadcast to the other party.
func (g *ChatGateway) emitError(s socketio.Conn, err error) {
	s.Emit("error", map[string]interface{}{"message": err.Error()})
}

// userID returns the authenticated identity stored on the connection.
func (g *ChatGateway) userID(s socketio.Conn) string {
	uid, _ := s.Context().(string)
	return uid
}

// onConnect authenticates the connection from the handshake token and
// stores the user id on the socket context for O(1) lookup.
func (g *ChatGateway) onConnect(s socketio.Conn) error {
	s.SetContext("")
	url := s.URL()

	token := url.Query().Get("token")
	if token == "" {
		token = url.Query().Get("auth_token") // Fallback
	}
	if token == "" {
		logger.Warn().Str("socket", s.ID()).Msg("Socket connection rejected: no token")
		return fmt.Errorf("authentication required")
	}

	claims, err := utils.ValidateToken(token)
	if err != nil {
		logger.Warn().Str("socket", s.ID()).Msg("Socket connection rejected: invalid token")
		return fmt.Errorf("invalid token")
	}

	s.SetContext(claims.UserID)
	logger.Debug().Str("socket", s.ID()).Str("user", claims.UserID).Msg("Socket authenticated")
	return nil
}

// onJoin registers presence and subscribes the connection to its
// per-user room. The first live connection broadcasts user:online.
func (g *ChatGateway) onJoin(s socketio.Conn, data map[string]interface{}) {
	uid := g.userID(s)
	if uid == "" {
		g.emitError(s, fmt.Errorf("authentication required"))
		return
	}
	// The payload's id must match the authenticated identity; the rest
	// of the descriptor is echoed to peers as-is.
	if claimed := stringField(data, "id"); claimed != "" && claimed != uid {
		g.emitError(s, fmt.Errorf("user id does not match connection identity"))
		return
	}

	first := g.presence.Join(uid, s.ID())
	g.setProfile(uid, data)
	s.Join(userRoom(uid))
	s.Join("presence")

	if first {
		g.Server.BroadcastToRoom("/", "presence", "user:online", map[string]interface{}{
			"userId": uid,
			"user":   data,
		})
	}

	s.Emit("users:active", g.presence.OnlineUsers())
	logger.Debug().Str("user", uid).Bool("first", first).Msg("User joined chat")
}

func (g *ChatGateway) onSend(s socketio.Conn, data map[string]interface{}) {
	uid := g.userID(s)
	if uid == "" {
		g.emitError(s, fmt.Errorf("authentication required"))
		return
	}

	p, err := parseSendPayload(data)
	if err != nil {
		g.emitError(s, err)
		return
	}

	if ok, _ := database.CheckRateLimit(uid, sendRateLimit, sendRateWindow); !ok {
		g.emitError(s, fmt.Errorf("you are sending messages too quickly"))
		return
	}

	msg, err := g.store.Create(context.Background(), store.CreateInput{
		SenderID:    uid,
		ReceiverID:  p.ReceiverID,
		Content:     p.Content,
		MessageType: p.MessageType,
		FileURL:     p.FileURL,
		FileName:    p.FileName,
		FileSize:    p.FileSize,
		FileType:    p.FileType,
		ReplyToID:   p.ReplyToID,
	})
	if err != nil {
		g.emitError(s, err)
		return
	}

	// Push to the receiver only while they hold a live connection;
	// offline receivers fetch unread history on their next load.
	if g.presence.IsOnline(p.ReceiverID) {
		g.Server.BroadcastToRoom("/", userRoom(p.ReceiverID), "message:receive",
			services.FormatMessage(msg, p.ReceiverID))
	}

	s.Emit("message:sent", services.FormatMessage(msg, uid))
}

func (g *ChatGateway) onEdit(s socketio.Conn, data map[string]interface{}) {
	uid := g.userID(s)
	if uid == "" {
		g.emitError(s, fmt.Errorf("authentication required"))
		return
	}

	p, err := parseEditPayload(data)
	if err != nil {
		g.emitError(s, err)
		return
	}

	msg, err := g.store.Edit(context.Background(), p.MessageID, uid, p.Content)
	if err != nil {
		g.emitError(s, err)
		return
	}

	s.Emit("message:edited", services.FormatMessage(msg, uid))
	if g.presence.IsOnline(msg.ReceiverID) {
		g.Server.BroadcastToRoom("/", userRoom(msg.ReceiverID), "message:edited",
			services.FormatMessage(msg, msg.ReceiverID))
	}
}

func (g *ChatGateway) onDelete(s socketio.Conn, data map[string]interface{}) {
	uid := g.userID(s)
	if uid == "" {
		g.emitError(s, fmt.Errorf("authentication required"))
		return
	}

	p, err := parseDeletePayload(data)
	if err != nil {
		g.emitError(s, err)
		return
	}

	msg, err := g.store.Delete(context.Background(), p.MessageID, uid, p.DeleteForEveryone)
	if err != nil {
		g.emitError(s, err)
		return
	}

	payload := map[string]interface{}{
		"messageId":          p.MessageID,
		"deletedForEveryone": msg.IsDeleted,
	}
	s.Emit("message:deleted", payload)

	// A per-viewer delete stays local; only a tombstone reaches the
	// other party.
	if msg.IsDeleted {
		peerID := msg.ReceiverID
		if peerID == uid {
			peerID = msg.SenderID
		}
		if g.presence.IsOnline(peerID) {
			g.Server.BroadcastToRoom("/", userRoom(peerID), "message:deleted", payload)
		}
	}
}

func (g *ChatGateway) onRead(s socketio.Conn, data map[string]interface{}) {
	uid := g.userID(s)
	if uid == "" {
		g.emitError(s, fmt.Errorf("authentication required"))
		return
	}

	p, err := parseReadPayload(data)
	if err != nil {
		g.emitError(s, err)
		return
	}

	msg, err := g.store.MarkRead(context.Background(), p.MessageID, uid)
	if err != nil {
		g.emitError(s, err)
		return
	}

	// Read receipts go to the sender's connections only.
	if g.presence.IsOnline(msg.SenderID) {
		g.Server.BroadcastToRoom("/", userRoom(msg.SenderID), "message:read", map[string]interface{}{
			"messageId": msg.ID,
			"readBy":    uid,
			"readAt":    msg.ReadAt,
		})
	}
}

func (g *ChatGateway) onTypingStart(s socketio.Conn, data map[string]interface{}) {
	uid := g.userID(s)
	if uid == "" {
		return
	}

	p, err := parseTypingPayload(data)
	if err != nil {
		return
	}

	g.typingMu.Lock()
	last, seen := g.lastTyping[uid]
	if seen && time.Since(last) < typingThrottle {
		g.typingMu.Unlock()
		return
	}
	g.lastTyping[uid] = time.Now()
	g.typingMu.Unlock()

	if g.presence.IsOnline(p.ReceiverID) {
		g.Server.BroadcastToRoom("/", userRoom(p.ReceiverID), "typing:start", g.typingEvent(uid))
	}
}

// typingEvent builds the typing:start fan-out payload. The descriptor
// the user supplied on join is echoed when known so clients can render
// the typer's name; expiresAt lets them synthesize the auto-stop.
func (g *ChatGateway) typingEvent(uid string) map[string]interface{} {
	payload := map[string]interface{}{
		"userId":    uid,
		"expiresAt": time.Now().Add(typingThrottle + time.Second).Unix(),
	}

	g.profileMu.RLock()
	profile, ok := g.profiles[uid]
	g.profileMu.RUnlock()
	if ok {
		payload["user"] = profile
	}
	return payload
}

func (g *ChatGateway) setProfile(uid string, data map[string]interface{}) {
	if len(data) == 0 {
		return
	}
	g.profileMu.Lock()
	g.profiles[uid] = data
	g.profileMu.Unlock()
}

func (g *ChatGateway) clearProfile(uid string) {
	g.profileMu.Lock()
	delete(g.profiles, uid)
	g.profileMu.Unlock()
}

func (g *ChatGateway) onTypingStop(s socketio.Conn, data map[string]interface{}) {
	uid := g.userID(s)
	if uid == "" {
		return
	}

	p, err := parseTypingPayload(data)
	if err != nil {
		return
	}

	if g.presence.IsOnline(p.ReceiverID) {
		g.Server.BroadcastToRoom("/", userRoom(p.ReceiverID), "typing:stop", map[string]interface{}{
			"userId": uid,
		})
	}
}

func (g *ChatGateway) onDisconnect(s socketio.Conn, reason string) {
	uid, last := g.presence.Leave(s.ID())
	if uid == "" {
		logger.Debug().Str("socket", s.ID()).Str("reason", reason).Msg("Anonymous socket disconnected")
		return
	}

	if last {
		g.clearProfile(uid)
		lastSeen, _ := g.presence.LastSeen(uid)
		g.Server.BroadcastToRoom("/", "presence", "user:offline", map[string]interface{}{
			"userId":   uid,
			"lastSeen": lastSeen,
		})
	}
	logger.Debug().Str("user", uid).Str("reason", reason).Msg("Socket disconnected")
}

// SocketHandler wraps the socket.io server for gin.
func SocketHandler(server *socketio.Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		server.ServeHTTP(c.Writer, c.Request)
	}
}
