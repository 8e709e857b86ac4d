package domain

import "time"

// LogLevel is the severity of a connection log entry.
type LogLevel string

const (
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
	LevelDebug LogLevel = "DEBUG"
)

// Valid reports whether l is one of the known levels.
func (l LogLevel) Valid() bool {
	switch l {
	case LevelInfo, LevelWarn, LevelError, LevelDebug:
		return true
	}
	return false
}

// ConnectionLog is one audit entry of the connection log. Entries are
// immutable once appended.
type ConnectionLog struct {
	ID        string    `json:"id"`
	StreamID  string    `json:"streamId,omitempty"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	IPAddress string    `json:"ipAddress,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
