package chat

import (
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"

	"github.com/zhouzirui/ocap-chat/internal/model/chat"
)

const (
	minThreadID   = 10000
	maxThreadID   = 99999
	threadIDSpace = maxThreadID - minThreadID + 1

	labelMaxRunes      = 30
	defaultLabelPrefix = "Chat "
)

// IDGenerator produces candidate thread ids. Candidates may repeat; the
// service re-rolls until it finds one that is not live.
type IDGenerator func() chat.ThreadID

// RandomIDs returns a generator of uniformly random 5-digit ids.
func RandomIDs() IDGenerator {
	return func() chat.ThreadID {
		return chat.ThreadID(strconv.Itoa(minThreadID + rand.IntN(threadIDSpace)))
	}
}

// CreateNewChat starts an empty thread and makes it active.
func (s *Service) CreateNewChat(st *chat.State) (chat.ThreadID, error) {
	st.EnsureMaps()
	if len(st.Threads) >= threadIDSpace {
		return "", ErrThreadIDsExhausted
	}

	id := s.ids()
	for st.HasThread(id) {
		id = s.ids()
	}

	st.ActiveThreadID = id
	st.Threads[id] = []chat.Message{}
	st.Labels[id] = DefaultLabel(id)
	return id, nil
}

// SwitchToThread activates id. An id without a message list renders as an
// empty conversation.
func (s *Service) SwitchToThread(st *chat.State, id chat.ThreadID) {
	st.ActiveThreadID = id
}

// EnsureActiveThread creates a thread for an authenticated session that
// has none active yet.
func (s *Service) EnsureActiveThread(st *chat.State) error {
	if !st.Authenticated || st.ActiveThreadID != "" {
		return nil
	}
	_, err := s.CreateNewChat(st)
	return err
}

// Transcript returns a copy of the thread's messages; unknown threads are
// empty.
func (s *Service) Transcript(st *chat.State, id chat.ThreadID) []chat.Message {
	return slices.Clone(st.Threads[id])
}

// ThreadList lists threads for the selector, largest id first. Threads
// without a label get the default one.
func (s *Service) ThreadList(st *chat.State) []chat.ThreadEntry {
	ids := make([]chat.ThreadID, 0, len(st.Threads))
	for id := range st.Threads {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	slices.Reverse(ids)

	if len(ids) > 0 {
		st.EnsureMaps()
	}

	entries := make([]chat.ThreadEntry, 0, len(ids))
	for _, id := range ids {
		if _, ok := st.Labels[id]; !ok {
			st.Labels[id] = DefaultLabel(id)
		}
		entries = append(entries, chat.ThreadEntry{
			ID:     id,
			Label:  st.Labels[id],
			Active: id == st.ActiveThreadID,
		})
	}
	return entries
}

// Label returns the display label of id.
func (s *Service) Label(st *chat.State, id chat.ThreadID) string {
	if label, ok := st.Labels[id]; ok {
		return label
	}
	return DefaultLabel(id)
}

// DefaultLabel is the label of a thread before its first message.
func DefaultLabel(id chat.ThreadID) string {
	return defaultLabelPrefix + string(id)
}

// LabelFromMessage derives a label from the first message of a thread.
func LabelFromMessage(id chat.ThreadID, message string) string {
	runes := []rune(message)
	truncated := len(runes) > labelMaxRunes
	if truncated {
		runes = runes[:labelMaxRunes]
	}

	label := strings.TrimSpace(string(runes))
	if truncated {
		label += "..."
	}
	if label == "" {
		return DefaultLabel(id)
	}
	return label
}

// updateLabel replaces a missing or default label.
func updateLabel(st *chat.State, id chat.ThreadID, firstMessage string) {
	current, ok := st.Labels[id]
	if ok && !strings.HasPrefix(current, defaultLabelPrefix) {
		return
	}
	st.Labels[id] = LabelFromMessage(id, firstMessage)
}
