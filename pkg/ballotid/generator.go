// Package ballotid issues ballot identifiers that are strictly monotonic per
// station and collision-free across stations. An id packs a 41-bit
// millisecond timestamp, a 10-bit station id and a 12-bit per-millisecond
// sequence, so ids sort by issue time and two stations can never mint the
// same value.
package ballotid

import (
	"errors"
	"sync"
	"time"
)

const (
	// Epoch is the custom id epoch: 2024-01-01T00:00:00Z. 41 bits of
	// milliseconds on top of it last until 2093.
	Epoch = int64(1704067200000)

	timestampBits = 41
	stationBits   = 10
	sequenceBits  = 12

	// MaxStationID is the largest station id the layout can carry.
	MaxStationID = uint16(1<<stationBits - 1)

	maxSequence    = uint64(1<<sequenceBits - 1)
	maxTimestamp   = int64(1<<timestampBits - 1)
	stationShift   = sequenceBits
	timestampShift = sequenceBits + stationBits
)

var (
	// ErrStationOutOfRange is returned for station ids above MaxStationID.
	ErrStationOutOfRange = errors.New("ballotid: station id out of range")
	// ErrEpochExhausted is returned when the timestamp no longer fits 41 bits.
	ErrEpochExhausted = errors.New("ballotid: timestamp beyond id epoch range")
)

// Generator mints ids for one station. Safe for concurrent use.
type Generator struct {
	mu       sync.Mutex
	station  uint64
	lastMs   int64
	sequence uint64
	now      func() time.Time
}

// New returns a generator for the given station id.
func New(stationID uint16) (*Generator, error) {
	if stationID > MaxStationID {
		return nil, ErrStationOutOfRange
	}
	return &Generator{
		station: uint64(stationID),
		now:     time.Now,
	}, nil
}

// Next mints the next id. Ids from one generator are strictly increasing:
// a clock that jumps backwards is clamped to the last observed millisecond,
// and a millisecond whose sequence space is exhausted spills into the next.
func (g *Generator) Next() (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli() - Epoch
	if ms < g.lastMs {
		ms = g.lastMs
	}

	if ms == g.lastMs {
		g.sequence++
		if g.sequence > maxSequence {
			ms++
			g.sequence = 0
		}
	} else {
		g.sequence = 0
	}
	g.lastMs = ms

	if ms < 0 || ms > maxTimestamp {
		return 0, ErrEpochExhausted
	}

	return uint64(ms)<<timestampShift | g.station<<stationShift | g.sequence, nil
}

// Station extracts the station id packed into an id.
func Station(id uint64) uint16 {
	return uint16(id >> stationShift & uint64(MaxStationID))
}

// Time extracts the issue time packed into an id.
func Time(id uint64) time.Time {
	ms := int64(id>>timestampShift) + Epoch
	return time.UnixMilli(ms).UTC()
}
