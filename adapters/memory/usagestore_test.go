package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkkmi/andikar-gate/adapters/memory"
)

var baseTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestUsageStore_UnknownUserGetsFreshRecord(t *testing.T) {
	store := memory.NewUsageStore(4)

	rec, err := store.Get(context.Background(), "nobody", baseTime)
	if err != nil {
		t.Fatal(err)
	}
	if rec.TotalWords != 0 || rec.RequestsCount != 0 {
		t.Errorf("fresh record not zeroed: %+v", rec)
	}
	if store.Len() != 0 {
		t.Error("Get must not create records")
	}
}

func TestUsageStore_IncrementAccumulates(t *testing.T) {
	store := memory.NewUsageStore(4)
	ctx := context.Background()

	if _, err := store.Increment(ctx, "u1", 100, baseTime); err != nil {
		t.Fatal(err)
	}
	rec, err := store.Increment(ctx, "u1", 50, baseTime)
	if err != nil {
		t.Fatal(err)
	}

	if rec.TotalWords != 150 {
		t.Errorf("totalWords = %d, want 150", rec.TotalWords)
	}
	if rec.RequestsCount != 2 {
		t.Errorf("requestsCount = %d, want 2", rec.RequestsCount)
	}
}

func TestUsageStore_GetAppliesRolloverWithoutMutating(t *testing.T) {
	store := memory.NewUsageStore(4)
	ctx := context.Background()

	if _, err := store.Increment(ctx, "u1", 400, baseTime); err != nil {
		t.Fatal(err)
	}

	nextDay := baseTime.AddDate(0, 0, 1)
	rec, err := store.Get(ctx, "u1", nextDay)
	if err != nil {
		t.Fatal(err)
	}
	if rec.DailyWords != 0 {
		t.Errorf("dailyWords = %d, want 0 after day change", rec.DailyWords)
	}

	// Reading back at the original day still shows the stored state.
	rec, err = store.Get(ctx, "u1", baseTime)
	if err != nil {
		t.Fatal(err)
	}
	if rec.DailyWords != 400 {
		t.Errorf("stored dailyWords = %d, want 400 (read must not mutate)", rec.DailyWords)
	}
}

func TestUsageStore_ConcurrentIncrementsAllLand(t *testing.T) {
	store := memory.NewUsageStore(4)
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			store.Increment(ctx, "u1", 10, baseTime)
		}()
	}
	wg.Wait()

	rec, err := store.Get(ctx, "u1", baseTime)
	if err != nil {
		t.Fatal(err)
	}
	if rec.TotalWords != workers*10 {
		t.Errorf("totalWords = %d, want %d", rec.TotalWords, workers*10)
	}
	if rec.RequestsCount != workers {
		t.Errorf("requestsCount = %d, want %d", rec.RequestsCount, workers)
	}
}

func TestUsageStore_UsersAreIndependent(t *testing.T) {
	store := memory.NewUsageStore(4)
	ctx := context.Background()

	store.Increment(ctx, "u1", 100, baseTime)
	store.Increment(ctx, "u2", 7, baseTime)

	rec, _ := store.Get(ctx, "u2", baseTime)
	if rec.TotalWords != 7 {
		t.Errorf("u2 totalWords = %d, want 7", rec.TotalWords)
	}
	if store.Len() != 2 {
		t.Errorf("len = %d, want 2", store.Len())
	}
}
