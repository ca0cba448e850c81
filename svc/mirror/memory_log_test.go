package mirror_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/imgcompare/svc/mirror"
)

func TestMemoryLog_BeginClaimsOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	log := mirror.NewMemoryLog()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	const n = 32
	var claimed atomic.Int32
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := log.Begin(ctx, mirror.Entry{ID: "evt_1", ReceivedAt: at})
			assert.NoError(t, err)
			if ok {
				claimed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), claimed.Load())
}

func TestMemoryLog_BeginStates(t *testing.T) {
	t.Parallel()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		prepare func(t *testing.T, log *mirror.MemoryLog)
		claimAt time.Time
		want    bool
	}{
		{
			name:    "in flight",
			prepare: func(*testing.T, *mirror.MemoryLog) {},
			claimAt: at.Add(time.Minute),
			want:    false,
		},
		{
			name:    "abandoned claim",
			prepare: func(*testing.T, *mirror.MemoryLog) {},
			claimAt: at.Add(mirror.ClaimTTL + time.Second),
			want:    true,
		},
		{
			name: "processed",
			prepare: func(t *testing.T, log *mirror.MemoryLog) {
				require.NoError(t, log.MarkProcessed(context.Background(), "evt_1", "u1", false, at))
			},
			claimAt: at.Add(time.Hour),
			want:    false,
		},
		{
			name: "failed",
			prepare: func(t *testing.T, log *mirror.MemoryLog) {
				require.NoError(t, log.MarkFailed(context.Background(), "evt_1", "socket closed", at))
			},
			claimAt: at.Add(time.Second),
			want:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			log := mirror.NewMemoryLog()

			ok, err := log.Begin(ctx, mirror.Entry{ID: "evt_1", ReceivedAt: at})
			require.NoError(t, err)
			require.True(t, ok)
			tt.prepare(t, log)

			ok, err = log.Begin(ctx, mirror.Entry{ID: "evt_1", ReceivedAt: tt.claimAt})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)

			if ok {
				e, found := log.Entry("evt_1")
				require.True(t, found)
				assert.Equal(t, tt.claimAt, e.ClaimedAt)
				assert.Empty(t, e.Error)
				assert.True(t, e.ProcessedAt.IsZero())
			}
		})
	}
}
