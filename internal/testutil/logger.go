package testutil

import (
	"fmt"
	"strings"
	"sync"
)

// LogEntry is one recorded log call
type LogEntry struct {
	Level  string
	Msg    string
	Fields []interface{}
}

// Logger records log calls and satisfies the Logger interfaces of the
// application packages
type Logger struct {
	mu      sync.Mutex
	Entries []LogEntry
}

func (l *Logger) add(level, msg string, kv []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Msg: msg, Fields: kv})
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.add("debug", msg, kv) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.add("info", msg, kv) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.add("warn", msg, kv) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.add("error", msg, kv) }

// Has reports whether a message containing substr was logged at level
func (l *Logger) Has(level, substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.Entries {
		if e.Level == level && strings.Contains(e.Msg, substr) {
			return true
		}
	}
	return false
}

// String dumps all entries, handy in failure messages
func (l *Logger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var b strings.Builder
	for _, e := range l.Entries {
		fmt.Fprintf(&b, "%s %s %v\n", e.Level, e.Msg, e.Fields)
	}
	return b.String()
}
