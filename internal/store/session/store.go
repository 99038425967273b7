package session

import (
	"context"
	"errors"
	"time"

	"github.com/zhouzirui/ocap-chat/internal/model/chat"
)

var (
	ErrInvalidConfig    = errors.New("invalid session store configuration")
	ErrInvalidStoreType = errors.New("invalid session store type")
	ErrVersionConflict  = errors.New("session version conflict")
	ErrNotFound         = errors.New("session not found")
)

// NoticeLevel classifies a sidebar notice.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is a one-shot sidebar message shown on the next render.
type Notice struct {
	Level NoticeLevel `json:"level"`
	Text  string      `json:"text"`
}

// Data is everything kept for one browser session.
type Data struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Version   int64      `json:"version"`
	State     chat.State `json:"state"`
	Notice    *Notice    `json:"notice,omitempty"`
}

// TakeNotice returns the pending notice and clears it.
func (d *Data) TakeNotice() *Notice {
	n := d.Notice
	d.Notice = nil
	return n
}

// Store persists browser sessions.
type Store interface {
	// Create stores a new session with Version set to 1.
	Create(ctx context.Context, data *Data) error

	// Get returns nil, nil when the session does not exist.
	Get(ctx context.Context, id string) (*Data, error)

	// Update persists data if its Version matches the stored one, then
	// increments Version. Returns ErrVersionConflict or ErrNotFound.
	Update(ctx context.Context, data *Data) error

	Delete(ctx context.Context, id string) error

	Close() error
}
