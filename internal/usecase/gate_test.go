package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSearchGate_ZeroIntervalNeverBlocks(t *testing.T) {
	gate := NewSearchGate(0, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 100; i++ {
		require.NoError(t, gate.Wait(ctx))
	}
}

func TestNewSearchGate_SpacesQueriesAfterBurst(t *testing.T) {
	const interval = 50 * time.Millisecond
	gate := NewSearchGate(interval, 2)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, gate.Wait(ctx))
	require.NoError(t, gate.Wait(ctx))
	assert.Less(t, time.Since(start), interval, "burst should pass immediately")

	require.NoError(t, gate.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), interval-5*time.Millisecond)
}

func TestNewSearchGate_HonoursCancellation(t *testing.T) {
	gate := NewSearchGate(time.Hour, 1)
	require.NoError(t, gate.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, gate.Wait(ctx))
}
