package ballotid

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNew_StationRange verifies the 10-bit station bound.
func TestNew_StationRange(t *testing.T) {
	g, err := New(MaxStationID)
	require.NoError(t, err)
	require.NotNil(t, g)

	_, err = New(MaxStationID + 1)
	assert.ErrorIs(t, err, ErrStationOutOfRange)
}

// TestNext_StrictlyMonotonic verifies ids from one generator always increase,
// including within a single millisecond.
func TestNext_StrictlyMonotonic(t *testing.T) {
	g, err := New(1)
	require.NoError(t, err)

	var last uint64
	for i := 0; i < 10000; i++ {
		id, err := g.Next()
		require.NoError(t, err)
		require.Greater(t, id, last, "id %d must exceed its predecessor", i)
		last = id
	}
}

// TestNext_ClockRegression verifies a backwards clock jump never produces a
// smaller id: the generator clamps to the last observed millisecond.
func TestNext_ClockRegression(t *testing.T) {
	base := time.Date(2026, 5, 14, 12, 0, 0, 0, time.UTC)
	current := base

	g, err := New(1)
	require.NoError(t, err)
	g.now = func() time.Time { return current }

	first, err := g.Next()
	require.NoError(t, err)

	// Clock jumps back one minute.
	current = base.Add(-time.Minute)
	second, err := g.Next()
	require.NoError(t, err)
	assert.Greater(t, second, first, "id minted after a clock regression must still increase")

	// Clock recovers past the clamp point.
	current = base.Add(time.Second)
	third, err := g.Next()
	require.NoError(t, err)
	assert.Greater(t, third, second)
}

// TestNext_SequenceOverflowSpills verifies exhausting the 12-bit sequence of
// one millisecond spills into the next millisecond instead of repeating ids.
func TestNext_SequenceOverflowSpills(t *testing.T) {
	frozen := time.Date(2026, 5, 14, 12, 0, 0, 0, time.UTC)

	g, err := New(1)
	require.NoError(t, err)
	g.now = func() time.Time { return frozen }

	seen := make(map[uint64]struct{}, 10000)
	var last uint64
	for i := 0; i < 10000; i++ {
		id, err := g.Next()
		require.NoError(t, err)
		require.Greater(t, id, last)
		_, dup := seen[id]
		require.False(t, dup, "id %d minted twice under a frozen clock", id)
		seen[id] = struct{}{}
		last = id
	}
}

// TestNext_StationsDisjoint verifies two stations can never mint the same id.
func TestNext_StationsDisjoint(t *testing.T) {
	frozen := time.Date(2026, 5, 14, 12, 0, 0, 0, time.UTC)

	g1, err := New(1)
	require.NoError(t, err)
	g1.now = func() time.Time { return frozen }

	g2, err := New(2)
	require.NoError(t, err)
	g2.now = func() time.Time { return frozen }

	ids := make(map[uint64]uint16, 2000)
	for i := 0; i < 1000; i++ {
		id1, err := g1.Next()
		require.NoError(t, err)
		id2, err := g2.Next()
		require.NoError(t, err)

		if owner, ok := ids[id1]; ok {
			t.Fatalf("station 1 minted %d already owned by station %d", id1, owner)
		}
		if owner, ok := ids[id2]; ok {
			t.Fatalf("station 2 minted %d already owned by station %d", id2, owner)
		}
		ids[id1] = 1
		ids[id2] = 2
	}
}

// TestNext_Concurrent verifies uniqueness under parallel minting.
func TestNext_Concurrent(t *testing.T) {
	g, err := New(5)
	require.NoError(t, err)

	const workers = 8
	const perWorker = 2000

	var mu sync.Mutex
	seen := make(map[uint64]struct{}, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]uint64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				id, err := g.Next()
				if err != nil {
					t.Error(err)
					return
				}
				local = append(local, id)
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker, "every minted id must be unique")
}

// TestStationAndTime_RoundTrip verifies the packed fields decode back out.
func TestStationAndTime_RoundTrip(t *testing.T) {
	issue := time.Date(2026, 5, 14, 12, 0, 0, 0, time.UTC)

	g, err := New(42)
	require.NoError(t, err)
	g.now = func() time.Time { return issue }

	id, err := g.Next()
	require.NoError(t, err)

	assert.Equal(t, uint16(42), Station(id))
	assert.Equal(t, issue, Time(id), "millisecond timestamp should round-trip")
}
