package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	ID      string    `json:"id"`
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	Error   bool      `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}

// Log is an ordered, append-only record of a session's turns. There is no
// truncation; it lives as long as the session.
type Log struct {
	mu    sync.RWMutex
	turns []Turn
	now   func() time.Time
}

func NewLog() *Log {
	return &Log{now: time.Now}
}

// Append records a user entry and its assistant reply together, so replay
// never observes a request without an answer.
func (l *Log) Append(user string, assistant string, isError bool) (Turn, Turn) {
	l.mu.Lock()
	defer l.mu.Unlock()

	at := l.now().UTC()
	userTurn := Turn{ID: uuid.NewString(), Role: RoleUser, Content: user, Time: at}
	assistantTurn := Turn{ID: uuid.NewString(), Role: RoleAssistant, Content: assistant, Error: isError, Time: at}
	l.turns = append(l.turns, userTurn, assistantTurn)
	return userTurn, assistantTurn
}

// Turns returns a copy of the log in append order.
func (l *Log) Turns() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Turn(nil), l.turns...)
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}
