package chat

// ThreadID identifies a conversation thread within one browser session.
type ThreadID string

// State captures everything the UI shows for one interactive session.
// The zero value is an unauthenticated session with no threads.
type State struct {
	Authenticated  bool                   `json:"authenticated"`
	Credential     string                 `json:"credential,omitempty"`
	ActiveThreadID ThreadID               `json:"activeThreadId,omitempty"`
	Threads        map[ThreadID][]Message `json:"threads,omitempty"`
	Labels         map[ThreadID]string    `json:"labels,omitempty"`
}

// ThreadEntry is a row of the thread selector.
type ThreadEntry struct {
	ID     ThreadID `json:"id"`
	Label  string   `json:"label"`
	Active bool     `json:"active"`
}

// HasThread reports whether the thread has a message list (possibly empty).
func (s *State) HasThread(id ThreadID) bool {
	_, ok := s.Threads[id]
	return ok
}

// Reset discards credential, threads and labels and returns to the
// unauthenticated state.
func (s *State) Reset() {
	*s = State{}
}

// EnsureMaps allocates the thread and label maps when they are nil.
func (s *State) EnsureMaps() {
	if s.Threads == nil {
		s.Threads = make(map[ThreadID][]Message)
	}
	if s.Labels == nil {
		s.Labels = make(map[ThreadID]string)
	}
}
