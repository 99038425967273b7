package chat

import (
	"context"
	"log"
	"strings"

	"github.com/zhouzirui/ocap-chat/internal/model/chat"
	"github.com/zhouzirui/ocap-chat/internal/service/gateway"
)

// Gateway is the subset of the remote API the session manager needs.
type Gateway interface {
	Login(ctx context.Context, username, password string) (gateway.LoginResponse, error)
	ProcessQuery(ctx context.Context, query, threadID, accessToken string) (any, error)
}

// Service applies user actions to an explicit session state. It keeps no
// state of its own besides its collaborators, so one Service serves every
// browser session.
type Service struct {
	gateway Gateway
	ids     IDGenerator
}

// Option customizes a Service.
type Option func(*Service)

// WithIDGenerator replaces the random thread id source.
func WithIDGenerator(ids IDGenerator) Option {
	return func(s *Service) {
		s.ids = ids
	}
}

// NewService wires the session manager to the API gateway.
func NewService(gw Gateway, opts ...Option) *Service {
	s := &Service{
		gateway: gw,
		ids:     RandomIDs(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login authenticates st. Empty input fails before any network call.
func (s *Service) Login(ctx context.Context, st *chat.State, username, password string) error {
	if username == "" || password == "" {
		return ErrMissingCredentials
	}

	resp, err := s.gateway.Login(ctx, username, password)
	if err != nil {
		msg := gateway.Message(err)
		if msg == "" {
			msg = loginFailedMessage
		}
		log.Printf("[chat] login failed: %v", err)
		return &AuthError{Message: msg, Err: err}
	}

	if resp.AccessToken == "" {
		log.Printf("[chat] login response carried no access token")
		return &AuthError{Message: loginFailedMessage}
	}

	st.Authenticated = true
	st.Credential = resp.AccessToken
	st.EnsureMaps()
	log.Printf("[chat] login succeeded")
	return nil
}

// Logout fully resets st.
func (s *Service) Logout(st *chat.State) {
	threads := len(st.Threads)
	st.Reset()
	log.Printf("[chat] logout discarded %d thread(s)", threads)
}

// Submit appends text to the active thread, forwards it to the backend and
// appends the reply. Backend failures are not returned as errors: they
// become an "Error: ..." assistant message in the transcript.
func (s *Service) Submit(ctx context.Context, st *chat.State, text string) (chat.Message, error) {
	if !st.Authenticated {
		return chat.Message{}, ErrNotAuthenticated
	}
	if st.ActiveThreadID == "" {
		return chat.Message{}, ErrNoActiveThread
	}
	if strings.TrimSpace(text) == "" {
		return chat.Message{}, ErrEmptyMessage
	}

	st.EnsureMaps()
	id := st.ActiveThreadID
	st.Threads[id] = append(st.Threads[id], chat.UserMessage(text))
	if len(st.Threads[id]) == 1 {
		updateLabel(st, id, text)
	}

	var reply chat.Message
	payload, err := s.gateway.ProcessQuery(ctx, text, string(id), st.Credential)
	if err == nil && isEmptyPayload(payload) {
		err = &gateway.Error{Op: "process"}
	}
	if err != nil {
		msg := gateway.Message(err)
		if msg == "" {
			msg = queryFailedMessage
		}
		log.Printf("[chat] query failed thread=%s: %v", id, err)
		reply = chat.AssistantMessage("Error: " + msg)
	} else {
		reply = chat.AssistantMessage(ExtractReply(payload))
	}

	st.Threads[id] = append(st.Threads[id], reply)
	return reply, nil
}
