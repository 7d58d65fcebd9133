package logging

import (
	"slices"
	"sync"
	"time"
)

// DefaultMaxEntries is how many records a LogCollector keeps per action.
const DefaultMaxEntries = 100

// LogEntry represents a single log record with structured data.
type LogEntry struct {
	Time       time.Time      `json:"time"`
	Level      string         `json:"level"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes"`
}

// LogCollector keeps the most recent log records per action.
// All methods are safe for concurrent use.
type LogCollector struct {
	mu         sync.RWMutex
	maxEntries int
	logs       map[string][]LogEntry
}

// NewLogCollector creates a collector holding up to maxEntries records per
// action. A non-positive maxEntries uses DefaultMaxEntries.
func NewLogCollector(maxEntries int) *LogCollector {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &LogCollector{
		maxEntries: maxEntries,
		logs:       make(map[string][]LogEntry),
	}
}

// AddLog appends an entry for action, dropping the oldest when full.
func (c *LogCollector) AddLog(action string, entry LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	logs := append(c.logs[action], entry)
	if over := len(logs) - c.maxEntries; over > 0 {
		logs = slices.Delete(logs, 0, over)
	}
	c.logs[action] = logs
}

// GetLogs returns a copy of the entries recorded for action, oldest first.
func (c *LogCollector) GetLogs(action string) []LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	logs, ok := c.logs[action]
	if !ok {
		return nil
	}
	return slices.Clone(logs)
}

// GetAllLogs returns a copy of every action's entries.
func (c *LogCollector) GetAllLogs() map[string][]LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string][]LogEntry, len(c.logs))
	for action, logs := range c.logs {
		result[action] = slices.Clone(logs)
	}
	return result
}

// Actions returns the actions that have recorded entries, sorted.
func (c *LogCollector) Actions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	actions := make([]string, 0, len(c.logs))
	for action := range c.logs {
		actions = append(actions, action)
	}
	slices.Sort(actions)
	return actions
}

// Clear removes every stored entry.
func (c *LogCollector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logs = make(map[string][]LogEntry)
}
