package daemon

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// Metrics Tests
// ============================================================================

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	assert.Zero(t, snap.EventsSent)
	assert.Zero(t, snap.EventsReceived)
	assert.Zero(t, snap.EventsDropped)
	assert.Zero(t, snap.EventsReplayed)
	assert.Zero(t, snap.ConnectedClients)
	assert.WithinDuration(t, time.Now(), m.StartTime, time.Second)
}

func TestMetricsSnapshot_IsCopy(t *testing.T) {
	m := NewMetrics()
	m.IncEventsSent()
	snap := m.Snapshot()

	m.IncEventsSent()
	m.IncEventsDropped()

	assert.Equal(t, int64(1), snap.EventsSent)
	assert.Zero(t, snap.EventsDropped)
	assert.Equal(t, int64(2), m.Snapshot().EventsSent)
}

func TestMetricsConcurrency(t *testing.T) {
	m := NewMetrics()
	const workers, ops = 50, 100

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int32) {
			defer wg.Done()
			for j := 0; j < ops; j++ {
				m.IncEventsSent()
				m.IncEventsReceived()
				m.IncEventsReplayed()
				m.SetConnectedClients(n)
				_ = m.Snapshot()
			}
		}(int32(i))
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Equal(t, int64(workers*ops), snap.EventsSent)
	assert.Equal(t, int64(workers*ops), snap.EventsReceived)
	assert.Equal(t, int64(workers*ops), snap.EventsReplayed)
	assert.GreaterOrEqual(t, snap.ConnectedClients, int32(0))
	assert.Less(t, snap.ConnectedClients, int32(workers))
}
