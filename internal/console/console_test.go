package console

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/personachat/internal/logger"
)

func TestConsoleAppendsInOrder(t *testing.T) {
	t.Parallel()

	c := New(logger.Discard())
	ctx := context.Background()

	c.Add(ctx, LevelGeminiRequest, "Orchestrator Request", map[string]any{"model": "gemini-flash-latest"})
	c.Add(ctx, LevelGeminiResponse, "Orchestrator Response", "ok")
	c.Add(ctx, LevelError, "Orchestrator Failed", map[string]string{"error": "boom"})

	entries := c.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, LevelGeminiRequest, entries[0].Level)
	assert.Equal(t, "Orchestrator Response", entries[1].Title)
	assert.Equal(t, LevelError, entries[2].Level)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestConsoleSnapshotIsCopy(t *testing.T) {
	t.Parallel()

	c := New(logger.Discard())
	c.Add(context.Background(), LevelInfo, "first", nil)

	snap := c.Entries()
	snap[0].Title = "mutated"

	assert.Equal(t, "first", c.Entries()[0].Title)
}

func TestConsoleConcurrentAdd(t *testing.T) {
	t.Parallel()

	c := New(logger.Discard())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Add(context.Background(), LevelInfo, "tick", nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, c.Len())
}
