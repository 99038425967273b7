package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/ocap-chat/internal/handler/sessions"
	"github.com/zhouzirui/ocap-chat/internal/handler/web"
	"github.com/zhouzirui/ocap-chat/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/ocap-chat/internal/middleware"
	"github.com/zhouzirui/ocap-chat/internal/render"
	chatService "github.com/zhouzirui/ocap-chat/internal/service/chat"
	"github.com/zhouzirui/ocap-chat/pkg/utils"
)

// Options tune the router.
type Options struct {
	CookieSecure bool
	SessionTTL   time.Duration
	LoginLimiter *middlewarePkg.RateLimiter
}

// NewRouter wires HTTP routes to core services.
func NewRouter(chatSvc *chatService.Service, manager *sessions.Manager, markdown *render.Markdown, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(app chi.Router) {
		// 跨站表单提交在签发会话 cookie 之前拒绝，登录也一样
		app.Use(newCrossOriginGuard().Handler)
		app.Use(middlewarePkg.SessionCookie{Secure: opts.CookieSecure, MaxAge: opts.SessionTTL}.Handler)

		var loginLimiter func(http.Handler) http.Handler
		if opts.LoginLimiter != nil {
			loginLimiter = opts.LoginLimiter.Handler
		}

		web.New(chatSvc, manager, markdown).RegisterRoutes(app, loginLimiter)
		ws.New(chatSvc, manager, markdown).RegisterRoutes(app)
	})

	return r
}

func newCrossOriginGuard() *http.CrossOriginProtection {
	guard := http.NewCrossOriginProtection()
	guard.SetDenyHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[web] rejected cross-origin %s %s (origin=%q, sec-fetch-site=%q)",
			r.Method, r.URL.Path, r.Header.Get("Origin"), r.Header.Get("Sec-Fetch-Site"))
		http.Error(w, "cross-origin request rejected", http.StatusForbidden)
	}))
	return guard
}
