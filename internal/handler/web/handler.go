package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/ocap-chat/internal/handler/sessions"
	"github.com/zhouzirui/ocap-chat/internal/middleware"
	"github.com/zhouzirui/ocap-chat/internal/model/chat"
	"github.com/zhouzirui/ocap-chat/internal/render"
	chatService "github.com/zhouzirui/ocap-chat/internal/service/chat"
	"github.com/zhouzirui/ocap-chat/internal/store/session"
	"github.com/zhouzirui/ocap-chat/pkg/utils"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

const loginSuccessMessage = "Login successful!"

// Handler 渲染聊天页面并处理表单操作
type Handler struct {
	chatSvc  *chatService.Service
	sessions *sessions.Manager
	markdown *render.Markdown
}

// New 创建页面处理器
func New(chatSvc *chatService.Service, manager *sessions.Manager, markdown *render.Markdown) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		sessions: manager,
		markdown: markdown,
	}
}

// RegisterRoutes 注册页面与表单路由；loginLimiter 可以为 nil
func (h *Handler) RegisterRoutes(r chi.Router, loginLimiter func(http.Handler) http.Handler) {
	r.Get("/", h.handleIndex)
	if loginLimiter != nil {
		r.With(loginLimiter).Post("/login", h.handleLogin)
	} else {
		r.Post("/login", h.handleLogin)
	}
	r.Post("/logout", h.handleLogout)
	r.Post("/threads", h.handleNewChat)
	r.Post("/threads/{threadID}/activate", h.handleSwitchThread)
	r.Post("/messages", h.handleSubmit)
	r.Get("/api/state", h.handleState)
}

type messageView struct {
	Role chat.Role
	HTML template.HTML
}

type pageView struct {
	Authenticated  bool
	Notice         *session.Notice
	Threads        []chat.ThreadEntry
	ActiveThreadID chat.ThreadID
	Messages       []messageView
}

// handleIndex 按当前会话状态从头渲染整个页面
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	var view pageView
	err := h.sessions.View(r.Context(), middleware.SessionID(r.Context()), func(data *session.Data) error {
		view = h.buildPage(data)
		return nil
	})
	if err != nil {
		log.Printf("[web] render failed: %v", err)
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pageTemplate.Execute(w, view); err != nil {
		log.Printf("[web] template execution failed: %v", err)
	}
}

func (h *Handler) buildPage(data *session.Data) pageView {
	st := &data.State
	view := pageView{
		Authenticated: st.Authenticated,
		Notice:        data.TakeNotice(),
	}
	if !st.Authenticated {
		return view
	}

	if err := h.chatSvc.EnsureActiveThread(st); err != nil {
		view.Notice = &session.Notice{Level: session.NoticeError, Text: err.Error()}
	}

	view.ActiveThreadID = st.ActiveThreadID
	view.Threads = h.chatSvc.ThreadList(st)
	for _, msg := range h.chatSvc.Transcript(st, st.ActiveThreadID) {
		view.Messages = append(view.Messages, messageView{Role: msg.Role, HTML: h.markdown.HTML(msg.Content)})
	}
	return view
}

// handleLogin 处理登录表单
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")

	h.act(w, r, func(ctx context.Context, data *session.Data) error {
		if err := h.chatSvc.Login(ctx, &data.State, username, password); err != nil {
			data.Notice = &session.Notice{Level: session.NoticeError, Text: chatService.DisplayMessage(err)}
			return nil
		}
		data.Notice = &session.Notice{Level: session.NoticeSuccess, Text: loginSuccessMessage}
		return nil
	})
}

// handleLogout 清空整个会话
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(_ context.Context, data *session.Data) error {
		h.chatSvc.Logout(&data.State)
		return nil
	})
}

// handleNewChat 新建对话线程
func (h *Handler) handleNewChat(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(_ context.Context, data *session.Data) error {
		if !data.State.Authenticated {
			return nil
		}
		if _, err := h.chatSvc.CreateNewChat(&data.State); err != nil {
			data.Notice = &session.Notice{Level: session.NoticeError, Text: err.Error()}
		}
		return nil
	})
}

// handleSwitchThread 切换当前对话线程
func (h *Handler) handleSwitchThread(w http.ResponseWriter, r *http.Request) {
	threadID := chat.ThreadID(chi.URLParam(r, "threadID"))

	h.act(w, r, func(_ context.Context, data *session.Data) error {
		if data.State.Authenticated {
			h.chatSvc.SwitchToThread(&data.State, threadID)
		}
		return nil
	})
}

// handleSubmit 提交一条用户消息
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	content := r.FormValue("content")

	h.act(w, r, func(ctx context.Context, data *session.Data) error {
		if strings.TrimSpace(content) == "" {
			return nil
		}
		if _, err := h.chatSvc.Submit(ctx, &data.State, content); err != nil {
			data.Notice = &session.Notice{Level: session.NoticeError, Text: submitErrorText(err)}
		}
		return nil
	})
}

type stateResponse struct {
	Authenticated  bool               `json:"authenticated"`
	ActiveThreadID chat.ThreadID      `json:"activeThreadId,omitempty"`
	Threads        []chat.ThreadEntry `json:"threads"`
	Messages       []chat.Message     `json:"messages"`
}

// handleState 返回当前会话的 JSON 快照
func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	var resp stateResponse
	err := h.sessions.View(r.Context(), middleware.SessionID(r.Context()), func(data *session.Data) error {
		st := &data.State
		resp = stateResponse{
			Authenticated:  st.Authenticated,
			ActiveThreadID: st.ActiveThreadID,
			Threads:        h.chatSvc.ThreadList(st),
			Messages:       h.chatSvc.Transcript(st, st.ActiveThreadID),
		}
		return nil
	})
	if err != nil {
		log.Printf("[web] state snapshot failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if resp.Messages == nil {
		resp.Messages = []chat.Message{}
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

// act runs one state-changing action and redirects back to the page.
func (h *Handler) act(w http.ResponseWriter, r *http.Request, fn func(context.Context, *session.Data) error) {
	ctx := r.Context()
	err := h.sessions.Do(ctx, middleware.SessionID(ctx), func(data *session.Data) error {
		return fn(ctx, data)
	})

	switch {
	case errors.Is(err, sessions.ErrBusy):
		http.Error(w, "Another request is already in progress", http.StatusConflict)
		return
	case err != nil:
		log.Printf("[web] %s %s failed: %v", r.Method, r.URL.Path, err)
		http.Error(w, "failed to update session", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func submitErrorText(err error) string {
	switch {
	case errors.Is(err, chatService.ErrNotAuthenticated):
		return "Please login to start chatting."
	case errors.Is(err, chatService.ErrNoActiveThread):
		return "Start a new chat first."
	default:
		return err.Error()
	}
}
