package seatmap

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinema-ticketing/internal/models"
)

const testLockTimeout = 15 * time.Minute

// setupTestStore runs the store against miniredis, which executes the Lua
// scripts in-process so no real Redis server is needed.
func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	return NewStore(client), mr
}

func seats(pairs ...int) []models.SeatPos {
	out := make([]models.SeatPos, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, models.SeatPos{Row: pairs[i], Col: pairs[i+1]})
	}
	return out
}

func TestLock_TakesFreeSeats(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	result, err := store.Lock(ctx, 100, seats(1, 1, 1, 2), testLockTimeout, now)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, seats(1, 1, 1, 2), result.LockedSeats)
}

func TestLock_AllOrNothingBatch(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	// First caller takes (1,1) and (1,2).
	result, err := store.Lock(ctx, 100, seats(1, 1, 1, 2), testLockTimeout, now)
	require.NoError(t, err)
	require.True(t, result.Success)

	// Second caller wants (1,2) and (1,3): the batch must fail and (1,3)
	// must remain free.
	result, err = store.Lock(ctx, 100, seats(1, 2, 1, 3), testLockTimeout, now)
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.FailedSeats, 1)
	assert.Equal(t, models.FailedSeat{Row: 1, Col: 2, Reason: "locked"}, result.FailedSeats[0])

	status, err := store.Status(ctx, 100, 1, 1, 1, 3, testLockTimeout, now)
	require.NoError(t, err)
	assert.Equal(t, models.SeatLocked, status[1][1])
	assert.Equal(t, models.SeatLocked, status[1][2])
	assert.Equal(t, models.SeatFree, status[1][3], "seat (1,3) must not be taken by the failed batch")
}

func TestLock_SoldSeatReportsSoldOut(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	_, err := store.MarkSold(ctx, 100, seats(2, 5))
	require.NoError(t, err)

	result, err := store.Lock(ctx, 100, seats(2, 5), testLockTimeout, now)
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.FailedSeats, 1)
	assert.Equal(t, "sold_out", result.FailedSeats[0].Reason)
}

func TestLock_MutualExclusion(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	const numCallers = 20
	target := seats(3, 7)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	conflicts := 0

	for i := 0; i < numCallers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := store.Lock(ctx, 100, target, testLockTimeout, now)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if result.Success {
				successes++
			} else {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes, "exactly one caller may win the seat")
	assert.Equal(t, numCallers-1, conflicts)
}

func TestRelease_Idempotent(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	result, err := store.Lock(ctx, 100, seats(4, 1, 4, 2), testLockTimeout, now)
	require.NoError(t, err)
	require.True(t, result.Success)

	released, err := store.Release(ctx, 100, seats(4, 1, 4, 2), testLockTimeout, now)
	require.NoError(t, err)
	assert.Equal(t, 2, released)

	// Second release transitions nothing.
	released, err = store.Release(ctx, 100, seats(4, 1, 4, 2), testLockTimeout, now)
	require.NoError(t, err)
	assert.Equal(t, 0, released)
}

func TestRelease_SkipsSoldAndFree(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	_, err := store.MarkSold(ctx, 100, seats(5, 1))
	require.NoError(t, err)

	released, err := store.Release(ctx, 100, seats(5, 1, 5, 2), testLockTimeout, now)
	require.NoError(t, err)
	assert.Equal(t, 0, released)

	status, err := store.Status(ctx, 100, 5, 5, 1, 2, testLockTimeout, now)
	require.NoError(t, err)
	assert.Equal(t, models.SeatSold, status[5][1], "release must not touch sold seats")
}

func TestMarkSold_Idempotent(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	result, err := store.Lock(ctx, 100, seats(6, 1, 6, 2), testLockTimeout, now)
	require.NoError(t, err)
	require.True(t, result.Success)

	sold, err := store.MarkSold(ctx, 100, seats(6, 1, 6, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, sold)

	sold, err = store.MarkSold(ctx, 100, seats(6, 1, 6, 2))
	require.NoError(t, err)
	assert.Equal(t, 0, sold, "second call must count only actual transitions")

	// Sold is terminal: release cannot undo it.
	released, err := store.Release(ctx, 100, seats(6, 1, 6, 2), testLockTimeout, now)
	require.NoError(t, err)
	assert.Equal(t, 0, released)
}

func TestLazyExpiry_ExpiredLockIsFreeAndLockable(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	lockedAt := time.Now()

	result, err := store.Lock(ctx, 100, seats(7, 7), testLockTimeout, lockedAt)
	require.NoError(t, err)
	require.True(t, result.Success)

	// One second before expiry the seat still reads LOCKED.
	almost := lockedAt.Add(testLockTimeout - time.Second)
	status, err := store.Status(ctx, 100, 7, 7, 7, 7, testLockTimeout, almost)
	require.NoError(t, err)
	assert.Equal(t, models.SeatLocked, status[7][7])

	// At T+L the lock is gone without any release call.
	expired := lockedAt.Add(testLockTimeout)
	status, err = store.Status(ctx, 100, 7, 7, 7, 7, testLockTimeout, expired)
	require.NoError(t, err)
	assert.Equal(t, models.SeatFree, status[7][7])

	// And a new caller can take it.
	result, err = store.Lock(ctx, 100, seats(7, 7), testLockTimeout, expired)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestRelease_ExpiredLockNotCounted(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	lockedAt := time.Now()

	result, err := store.Lock(ctx, 100, seats(8, 1), testLockTimeout, lockedAt)
	require.NoError(t, err)
	require.True(t, result.Success)

	// The lock expired on its own, so the release transitions nothing.
	released, err := store.Release(ctx, 100, seats(8, 1), testLockTimeout, lockedAt.Add(testLockTimeout+time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, released)
}

func TestStatus_RangeRead(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	_, err := store.Lock(ctx, 100, seats(1, 2), testLockTimeout, now)
	require.NoError(t, err)
	_, err = store.MarkSold(ctx, 100, seats(2, 3))
	require.NoError(t, err)

	status, err := store.Status(ctx, 100, 1, 3, 1, 3, testLockTimeout, now)
	require.NoError(t, err)

	require.Len(t, status, 3)
	for row := 1; row <= 3; row++ {
		require.Len(t, status[row], 3)
	}
	assert.Equal(t, models.SeatLocked, status[1][2])
	assert.Equal(t, models.SeatSold, status[2][3])
	assert.Equal(t, models.SeatFree, status[1][1])
	assert.Equal(t, models.SeatFree, status[3][3])
}

func TestInitAndExists(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	exists, err := store.Exists(ctx, 100)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Init(ctx, 100, 20, 30))

	exists, err = store.Exists(ctx, 100)
	require.NoError(t, err)
	assert.True(t, exists)

	// Init is lazy: only the dims marker is written, no seat cells.
	fields, err := mr.HKeys("seat:map:100")
	require.NoError(t, err)
	assert.Equal(t, []string{"dims"}, fields)
}

func TestConcurrentBatches_NeverPartiallyApplied(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	// Overlapping 2-seat batches racing on a shared middle seat.
	const numCallers = 30
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := make([]int, 0)

	for i := 0; i < numCallers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			var batch []models.SeatPos
			if n%2 == 0 {
				batch = seats(10, 1, 10, 2)
			} else {
				batch = seats(10, 2, 10, 3)
			}
			result, err := store.Lock(ctx, 200, batch, testLockTimeout, now)
			if err == nil && result.Success {
				mu.Lock()
				winners = append(winners, n)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, winners, 1, "the shared seat (10,2) admits exactly one winning batch")

	status, err := store.Status(ctx, 200, 10, 10, 1, 3, testLockTimeout, now)
	require.NoError(t, err)

	locked := 0
	for col := 1; col <= 3; col++ {
		if status[10][col] == models.SeatLocked {
			locked++
		}
	}
	assert.Equal(t, 2, locked, fmt.Sprintf("exactly one 2-seat batch applied, got states %v", status[10]))
}
