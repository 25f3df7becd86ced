package logging

import "time"

type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// AtLeast reports whether l is as severe as min. Unknown levels rank as info.
func (l Level) AtLeast(min Level) bool {
	return levelRank(l) >= levelRank(min)
}

const CategoryKey = "radiohub.category"

type LogEntry struct {
	Timestamp time.Time         `json:"timestamp"`
	Level     Level             `json:"level"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
}
