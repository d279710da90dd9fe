package controller

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCalculateNextBackoff tests the exponential backoff calculation with jitter
func TestCalculateNextBackoff(t *testing.T) {
	tests := []struct {
		name         string
		current      time.Duration
		max          time.Duration
		factor       float64
		jitterFactor float64
		expectMin    time.Duration
		expectMax    time.Duration
	}{
		{
			name:         "initial backoff doubles",
			current:      1 * time.Second,
			max:          30 * time.Second,
			factor:       2.0,
			jitterFactor: 0.1,
			expectMin:    1800 * time.Millisecond, // 2s - 10% jitter
			expectMax:    2200 * time.Millisecond, // 2s + 10% jitter
		},
		{
			name:         "respects maximum",
			current:      20 * time.Second,
			max:          30 * time.Second,
			factor:       2.0,
			jitterFactor: 0.1,
			expectMin:    27 * time.Second, // 30s - 10% jitter
			expectMax:    30 * time.Second, // capped at max
		},
		{
			name:         "no jitter produces exact value",
			current:      5 * time.Second,
			max:          30 * time.Second,
			factor:       2.0,
			jitterFactor: 0.0,
			expectMin:    10 * time.Second, // exactly 2x
			expectMax:    10 * time.Second, // exactly 2x
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Run multiple times to account for randomness in jitter
			for i := 0; i < 10; i++ {
				result := CalculateNextBackoff(tt.current, tt.max, tt.factor, tt.jitterFactor)
				assert.GreaterOrEqual(t, result, tt.expectMin, "backoff should be >= minimum")
				assert.LessOrEqual(t, result, tt.expectMax, "backoff should be <= maximum")
			}
		})
	}
}

// TestExtractEventFromChannel tests parsing event names from Redis channel names
func TestExtractEventFromChannel(t *testing.T) {
	tests := []struct {
		name     string
		channel  string
		expected string
	}{
		{
			name:     "ballot posted channel",
			channel:  "tallyx:ballot.posted",
			expected: "ballot.posted",
		},
		{
			name:     "scores updated channel",
			channel:  "tallyx:scores.updated",
			expected: "scores.updated",
		},
		{
			name:     "missing event part",
			channel:  "tallyx",
			expected: "",
		},
		{
			name:     "trailing colon only",
			channel:  "tallyx:",
			expected: "",
		},
		{
			name:     "empty channel",
			channel:  "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractEventFromChannel(tt.channel)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// TestClientSubscriptions tests the subscription tracking logic
func TestClientSubscriptions(t *testing.T) {
	t.Run("subscribe and check", func(t *testing.T) {
		subs := NewClientSubscriptions()

		subs.Subscribe("ballot.posted")
		assert.True(t, subs.IsSubscribed("ballot.posted"))
		assert.False(t, subs.IsSubscribed("scores.updated"))
	})

	t.Run("wildcard subscription", func(t *testing.T) {
		subs := NewClientSubscriptions()

		subs.Subscribe("*")
		assert.True(t, subs.IsSubscribed("*"))
		assert.True(t, subs.IsSubscribed("ballot.posted"))
		assert.True(t, subs.IsSubscribed("scores.updated"))
		assert.True(t, subs.IsSubscribed("any.event"))
	})

	t.Run("unsubscribe", func(t *testing.T) {
		subs := NewClientSubscriptions()

		subs.Subscribe("ballot.posted")
		assert.True(t, subs.IsSubscribed("ballot.posted"))

		subs.Unsubscribe("ballot.posted")
		assert.False(t, subs.IsSubscribed("ballot.posted"))
	})

	t.Run("concurrent access", func(t *testing.T) {
		subs := NewClientSubscriptions()
		done := make(chan bool)

		// Concurrent writes
		go func() {
			for i := 0; i < 100; i++ {
				subs.Subscribe("ballot.posted")
			}
			done <- true
		}()

		go func() {
			for i := 0; i < 100; i++ {
				subs.Unsubscribe("ballot.posted")
			}
			done <- true
		}()

		// Concurrent reads
		go func() {
			for i := 0; i < 100; i++ {
				_ = subs.IsSubscribed("ballot.posted")
			}
			done <- true
		}()

		// Wait for all goroutines
		<-done
		<-done
		<-done

		// Should not panic or race
	})
}

// TestServerMessageSerialization tests JSON serialization of messages
func TestServerMessageSerialization(t *testing.T) {
	tests := []struct {
		name    string
		message ServerMessage
	}{
		{
			name: "ballot posted message",
			message: ServerMessage{
				Type: "ballot.posted",
				Payload: map[string]interface{}{
					"ballot_id":     "113164037734797313",
					"ballot_type":   "valid",
					"ballot_source": "female",
				},
			},
		},
		{
			name: "error message with reconnect info",
			message: ServerMessage{
				Type: "error",
				Payload: map[string]interface{}{
					"message":     "Redis connection lost, attempting to reconnect...",
					"retryIn":     2.5,
					"attempt":     3,
					"recoverable": true,
				},
			},
		},
		{
			name: "info message",
			message: ServerMessage{
				Type: "info",
				Payload: map[string]interface{}{
					"message": "Redis connection established",
					"attempt": 2,
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.message)
			require.NoError(t, err)

			// Verify we can unmarshal back
			var decoded ServerMessage
			err = json.Unmarshal(data, &decoded)
			require.NoError(t, err)
			assert.Equal(t, tt.message.Type, decoded.Type)
		})
	}
}

// TestClientMessageParsing tests parsing of client messages
func TestClientMessageParsing(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		want    ClientMessage
		wantErr bool
	}{
		{
			name: "subscribe to specific event",
			json: `{"action":"subscribe","event":"ballot.posted"}`,
			want: ClientMessage{
				Action: "subscribe",
				Event:  "ballot.posted",
			},
		},
		{
			name: "subscribe to all events",
			json: `{"action":"subscribe","event":"*"}`,
			want: ClientMessage{
				Action: "subscribe",
				Event:  "*",
			},
		},
		{
			name: "unsubscribe",
			json: `{"action":"unsubscribe","event":"scores.updated"}`,
			want: ClientMessage{
				Action: "unsubscribe",
				Event:  "scores.updated",
			},
		},
		{
			name:    "invalid json",
			json:    `{invalid}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg ClientMessage
			err := json.Unmarshal([]byte(tt.json), &msg)

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want.Action, msg.Action)
			assert.Equal(t, tt.want.Event, msg.Event)
		})
	}
}
