package ws

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/ocap-chat/internal/handler/sessions"
	"github.com/zhouzirui/ocap-chat/internal/middleware"
	"github.com/zhouzirui/ocap-chat/internal/model/chat"
	"github.com/zhouzirui/ocap-chat/internal/render"
	chatService "github.com/zhouzirui/ocap-chat/internal/service/chat"
	"github.com/zhouzirui/ocap-chat/internal/store/session"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 25 * time.Second
	writeTimeout = 10 * time.Second
)

// Handler WebSocket 消息通道，复用与页面相同的浏览器会话
type Handler struct {
	chatSvc  *chatService.Service
	sessions *sessions.Manager
	markdown *render.Markdown
	upgrader websocket.Upgrader
}

// New 创建 WebSocket 处理器
func New(chatSvc *chatService.Service, manager *sessions.Manager, markdown *render.Markdown) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		sessions: manager,
		markdown: markdown,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册 WebSocket 路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type outgoingMessage struct {
	Type      string        `json:"type"`
	ThreadID  chat.ThreadID `json:"threadId,omitempty"`
	Role      chat.Role     `json:"role,omitempty"`
	Content   string        `json:"content,omitempty"`
	HTML      string        `json:"html,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp int64         `json:"timestamp"`
}

// handleWebSocket 处理 WebSocket 连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionID(r.Context())
	if sessionID == "" {
		http.Error(w, "session required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	// gorilla 连接只允许一个并发写者，ping 与回复都经由 writes 串行发送。
	writes := make(chan outgoingMessage, 8)
	go h.writeLoop(ctx, conn, writes)

	send := func(msg outgoingMessage) {
		msg.Timestamp = time.Now().UnixMilli()
		select {
		case writes <- msg:
		case <-ctx.Done():
		}
	}

	send(outgoingMessage{Type: "connected"})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		switch msg.Type {
		case "message":
			h.handleChatMessage(ctx, sessionID, msg.Content, send)
		default:
			send(outgoingMessage{Type: "error", Error: "unsupported message type: " + msg.Type})
		}
	}
}

func (h *Handler) handleChatMessage(ctx context.Context, sessionID, content string, send func(outgoingMessage)) {
	var threadID chat.ThreadID
	var reply chat.Message

	err := h.sessions.Do(ctx, sessionID, func(data *session.Data) error {
		st := &data.State
		if err := h.chatSvc.EnsureActiveThread(st); err != nil {
			return err
		}
		threadID = st.ActiveThreadID

		var err error
		reply, err = h.chatSvc.Submit(ctx, st, content)
		return err
	})
	if err != nil {
		send(outgoingMessage{Type: "error", Error: errorText(err)})
		return
	}

	user := chat.UserMessage(content)
	send(h.messageEvent(threadID, user))
	send(h.messageEvent(threadID, reply))
}

func (h *Handler) messageEvent(threadID chat.ThreadID, msg chat.Message) outgoingMessage {
	return outgoingMessage{
		Type:     "message",
		ThreadID: threadID,
		Role:     msg.Role,
		Content:  msg.Content,
		HTML:     string(h.markdown.HTML(msg.Content)),
	}
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, writes <-chan outgoingMessage) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-writes:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("[ws] write failed: %v", err)
				conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				conn.Close()
				return
			}
		}
	}
}

func errorText(err error) string {
	switch {
	case errors.Is(err, sessions.ErrBusy):
		return "Another request is already in progress"
	case errors.Is(err, chatService.ErrNotAuthenticated):
		return "Please login to start chatting."
	default:
		return err.Error()
	}
}
