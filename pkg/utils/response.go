package utils

import (
	"encoding/json"
	"log"
	"net/http"
)

// ErrorBody 是 JSON 错误响应的结构
type ErrorBody struct {
	Error string `json:"error"`
}

// RespondJSON 发送JSON响应。会话状态每次都不同，禁止缓存。
func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		log.Printf("[http] failed to encode response: %v", err)
	}
}

// RespondError 发送错误响应
func RespondError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	RespondJSON(w, status, ErrorBody{Error: message})
}
