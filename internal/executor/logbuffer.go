package executor

import (
	"fmt"
	"time"

	"github.com/derivinsight/sentinel/internal/models"
)

// LogBuffer collects structured log lines for one mission execution.
// Each Execute call owns its own buffer, so concurrently running
// missions never interleave log entries. The buffer travels with the
// Detection instead of living in any shared or ambient state.
type LogBuffer struct {
	entries []models.LogEntry
}

// NewLogBuffer returns an empty buffer.
func NewLogBuffer() *LogBuffer {
	return &LogBuffer{}
}

func (b *LogBuffer) append(level, format string, args ...any) {
	b.entries = append(b.entries, models.LogEntry{
		Time:    time.Now().UTC(),
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	})
}

// Infof records an informational entry.
func (b *LogBuffer) Infof(format string, args ...any) {
	b.append("INFO", format, args...)
}

// Warnf records a warning entry.
func (b *LogBuffer) Warnf(format string, args ...any) {
	b.append("WARN", format, args...)
}

// Errorf records an error entry.
func (b *LogBuffer) Errorf(format string, args ...any) {
	b.append("ERROR", format, args...)
}

// Entries returns the collected entries in append order.
func (b *LogBuffer) Entries() []models.LogEntry {
	return b.entries
}
