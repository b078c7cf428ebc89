package search

import "sync"

// Level is the severity of a user-facing message.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Message is a diagnostic shown to whoever ran the search.
type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// Messenger receives user-facing diagnostics.
type Messenger interface {
	Message(level Level, text string)
}

// Recorder is a request-scoped Messenger. A message repeated within one request
// is kept once.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Message(level Level, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.Level == level && m.Text == text {
			return
		}
	}
	r.messages = append(r.messages, Message{Level: level, Text: text})
}

// Messages returns the recorded messages in order.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// MessengerFunc adapts a function to Messenger.
type MessengerFunc func(level Level, text string)

func (f MessengerFunc) Message(level Level, text string) { f(level, text) }
