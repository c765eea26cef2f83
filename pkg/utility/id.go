package utility

import (
	"sync"

	"github.com/google/uuid"
)

type ProcessID = uuid.UUID

var (
	processID     ProcessID
	processIDOnce sync.Once
	processIDMu   sync.RWMutex
)

// GetProcessID returns the identifier shared by every log line of this run.
func GetProcessID() ProcessID {
	processIDOnce.Do(func() {
		processID = uuid.Must(uuid.NewV7())
	})

	processIDMu.RLock()
	defer processIDMu.RUnlock()
	return processID
}

func ResetProcessID() ProcessID {
	processIDOnce.Do(func() {})

	processIDMu.Lock()
	defer processIDMu.Unlock()

	processID = uuid.Must(uuid.NewV7())
	return processID
}

type SessionID = uuid.UUID

// NewSessionID returns a time ordered identifier for one live session.
func NewSessionID() SessionID {
	return uuid.Must(uuid.NewV7())
}
