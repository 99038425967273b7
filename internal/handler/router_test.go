package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zhouzirui/ocap-chat/internal/handler/sessions"
	middlewarePkg "github.com/zhouzirui/ocap-chat/internal/middleware"
	"github.com/zhouzirui/ocap-chat/internal/render"
	chatService "github.com/zhouzirui/ocap-chat/internal/service/chat"
	"github.com/zhouzirui/ocap-chat/internal/service/gateway"
	"github.com/zhouzirui/ocap-chat/internal/store/session"
)

func newTestRouter(limiter *middlewarePkg.RateLimiter) http.Handler {
	return newTestRouterWithAPI("http://127.0.0.1:1", limiter)
}

func newTestRouterWithAPI(baseURL string, limiter *middlewarePkg.RateLimiter) http.Handler {
	chatSvc := chatService.NewService(gateway.NewClient(gateway.Config{BaseURL: baseURL}))
	manager := sessions.NewManager(session.NewMemoryStore(time.Hour))
	return NewRouter(chatSvc, manager, render.NewMarkdown(), Options{SessionTTL: time.Hour, LoginLimiter: limiter})
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("health check must not start a browser session")
	}
}

func TestIndexSetsSessionCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	found := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == middlewarePkg.SessionCookieName {
			found = true
		}
	}
	if !found {
		t.Fatal("expected session cookie")
	}
}

func TestLoginIsRateLimited(t *testing.T) {
	router := newTestRouter(middlewarePkg.NewRateLimiter(0.001, 1))

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "192.0.2.10:4000"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send(); code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
}

func TestCrossSiteLoginRejected(t *testing.T) {
	var loginCalls atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loginCalls.Add(1)
		w.Write([]byte(`{"access_token":"attacker-token"}`))
	}))
	defer api.Close()

	router := newTestRouterWithAPI(api.URL, nil)
	form := url.Values{"username": {"attacker"}, "password": {"pw"}}.Encode()

	tests := []struct {
		name   string
		header string
		value  string
	}{
		{name: "sec-fetch-site cross-site", header: "Sec-Fetch-Site", value: "cross-site"},
		{name: "foreign origin", header: "Origin", value: "https://evil.example"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.Header.Set(tt.header, tt.value)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %d", rec.Code)
			}
			if len(rec.Result().Cookies()) != 0 {
				t.Fatal("rejected request must not start a browser session")
			}
		})
	}

	if n := loginCalls.Load(); n != 0 {
		t.Fatalf("expected no login calls, got %d", n)
	}
}

func TestSameOriginLoginAllowed(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"tok"}`))
	}))
	defer api.Close()

	router := newTestRouterWithAPI(api.URL, nil)
	form := url.Values{"username": {"user"}, "password": {"pw"}}.Encode()

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
}
