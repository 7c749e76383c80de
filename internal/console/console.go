// Package console keeps the in-app diagnostic log shown in the browser's
// console dialog: every outbound model request and inbound response, plus
// lifecycle notes. Entries are append-only for the life of the session.
package console

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level classifies a console entry.
type Level string

const (
	LevelInfo           Level = "INFO"
	LevelWarn           Level = "WARN"
	LevelError          Level = "ERROR"
	LevelGeminiRequest  Level = "GEMINI_REQUEST"
	LevelGeminiResponse Level = "GEMINI_RESPONSE"
	LevelImagenRequest  Level = "IMAGEN_REQUEST"
	LevelImagenResponse Level = "IMAGEN_RESPONSE"
)

// Entry is one structured console record.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Title     string    `json:"title"`
	Details   any       `json:"details"`
}

// Sink receives console entries. Orchestration and media code log through
// this interface so tests can capture what was sent.
type Sink interface {
	Add(ctx context.Context, level Level, title string, details any)
}

// Console is the in-memory Sink backing GET /api/console.
type Console struct {
	mu      sync.RWMutex
	entries []Entry
	log     *slog.Logger
	now     func() time.Time
}

// New creates an empty console mirroring entries to log at debug level.
func New(log *slog.Logger) *Console {
	if log == nil {
		log = slog.Default()
	}
	return &Console{
		log: log.With("component", "console"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Add appends an entry.
func (c *Console) Add(ctx context.Context, level Level, title string, details any) {
	entry := Entry{
		ID:        uuid.NewString(),
		Timestamp: c.now(),
		Level:     level,
		Title:     title,
		Details:   details,
	}

	c.mu.Lock()
	c.entries = append(c.entries, entry)
	c.mu.Unlock()

	slogLevel := slog.LevelDebug
	switch level {
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	}
	c.log.Log(ctx, slogLevel, title, "console_level", string(level), "entry_id", entry.ID)
}

// Entries returns a snapshot of all entries in insertion order.
func (c *Console) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of entries.
func (c *Console) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Discard is a Sink that drops everything.
type Discard struct{}

// Add implements Sink.
func (Discard) Add(context.Context, Level, string, any) {}
