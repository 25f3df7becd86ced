package logging

import (
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const DefaultBufferSize = 1000

const lineTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Logger records structured entries into a ring buffer, fans them out to
// stream subscribers and writes one logfmt line per entry to its output.
type Logger struct {
	buffer   *LogBuffer
	sink     *lineSink
	minLevel Level
	fields   map[string]string
	stream   *Stream
}

// lineSink serializes writes from every Logger derived from the same root.
type lineSink struct {
	mu       sync.Mutex
	out      io.Writer
	location *time.Location
}

func NewLogger(buffer *LogBuffer, minLevel Level) *Logger {
	return NewLoggerWithOutput(buffer, minLevel, os.Stdout)
}

func NewLoggerWithOutput(buffer *LogBuffer, minLevel Level, output io.Writer) *Logger {
	if buffer == nil {
		buffer = NewLogBuffer(DefaultBufferSize)
	}
	if output == nil {
		output = io.Discard
	}
	return &Logger{
		buffer:   buffer,
		sink:     &lineSink{out: output, location: time.UTC},
		minLevel: normalizeLevel(minLevel),
		stream:   NewStream(),
	}
}

// Discard returns a logger that only records into a small buffer.
func Discard() *Logger {
	return NewLoggerWithOutput(NewLogBuffer(64), LevelDebug, io.Discard)
}

// SetLocation renders line timestamps in loc. Buffered entries stay in UTC.
func (l *Logger) SetLocation(loc *time.Location) {
	if l == nil || loc == nil {
		return
	}
	l.sink.mu.Lock()
	l.sink.location = loc
	l.sink.mu.Unlock()
}

func (l *Logger) Buffer() *LogBuffer {
	if l == nil {
		return nil
	}
	return l.buffer
}

func (l *Logger) Subscribe() (<-chan LogEntry, func()) {
	if l == nil || l.stream == nil {
		return nil, func() {}
	}
	return l.stream.Subscribe(0)
}

func (l *Logger) With(fields map[string]string) *Logger {
	if l == nil {
		return nil
	}
	derived := *l
	derived.fields = mergeFields(l.fields, fields)
	return &derived
}

// ForCategory tags every entry with the component that produced it.
func (l *Logger) ForCategory(category string) *Logger {
	return l.With(map[string]string{CategoryKey: category})
}

func (l *Logger) Debug(message string, fields map[string]string) {
	l.log(LevelDebug, message, fields)
}

func (l *Logger) Info(message string, fields map[string]string) {
	l.log(LevelInfo, message, fields)
}

func (l *Logger) Warn(message string, fields map[string]string) {
	l.log(LevelWarning, message, fields)
}

func (l *Logger) Error(message string, fields map[string]string) {
	l.log(LevelError, message, fields)
}

func (l *Logger) Enabled(level Level) bool {
	if l == nil {
		return false
	}
	return levelRank(level) >= levelRank(l.minLevel)
}

func (l *Logger) log(level Level, message string, fields map[string]string) {
	if !l.Enabled(level) {
		return
	}
	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		Context:   mergeFields(l.fields, fields),
	}
	l.buffer.Add(entry)
	l.stream.Broadcast(entry)
	l.sink.write(entry)
}

func (s *lineSink) write(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := formatEntry(entry, s.location)
	_, _ = io.WriteString(s.out, line+"\n")
}

func normalizeLevel(level Level) Level {
	if _, ok := levelRanks[level]; ok {
		return level
	}
	return LevelInfo
}

var levelRanks = map[Level]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

func levelRank(level Level) int {
	if rank, ok := levelRanks[level]; ok {
		return rank
	}
	return levelRanks[LevelInfo]
}

func ParseLevel(value string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return LevelDebug, true
	case "info", "":
		return LevelInfo, true
	case "warning", "warn":
		return LevelWarning, true
	case "error":
		return LevelError, true
	}
	return "", false
}

func mergeFields(base, extra map[string]string) map[string]string {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(extra))
	maps.Copy(merged, base)
	maps.Copy(merged, extra)
	return merged
}

// formatEntry renders "<time> level=<l> [category=<c>] msg=<m> k=v...", with
// the remaining keys sorted.
func formatEntry(entry LogEntry, location *time.Location) string {
	var builder strings.Builder
	builder.WriteString(entry.Timestamp.In(location).Format(lineTimeLayout))
	builder.WriteString(" level=")
	builder.WriteString(string(entry.Level))
	if category, ok := entry.Context[CategoryKey]; ok {
		builder.WriteString(" category=")
		builder.WriteString(category)
	}
	builder.WriteString(" msg=")
	builder.WriteString(strconv.Quote(entry.Message))
	for _, key := range slices.Sorted(maps.Keys(entry.Context)) {
		if key == CategoryKey {
			continue
		}
		builder.WriteString(" ")
		builder.WriteString(key)
		builder.WriteString("=")
		builder.WriteString(strconv.Quote(entry.Context[key]))
	}
	return builder.String()
}
