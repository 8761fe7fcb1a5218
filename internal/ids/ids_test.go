package ids

import (
	"math"
	"sync"
	"testing"
)

func TestAllocatorRanges(t *testing.T) {
	a := NewAllocator()
	if got := a.NextEffect(); got != 1 {
		t.Fatalf("expected first effect id 1, got %d", got)
	}
	if got := a.NextEffect(); got != 2 {
		t.Fatalf("expected second effect id 2, got %d", got)
	}
	if got := a.NextMessage(); got != math.MaxUint64 {
		t.Fatalf("expected first message id MaxUint64, got %d", got)
	}
	if got := a.NextMessage(); got != math.MaxUint64-1 {
		t.Fatalf("expected second message id MaxUint64-1, got %d", got)
	}
}

func TestAllocatorIsUniqueUnderContention(t *testing.T) {
	a := NewAllocator()
	const workers, per = 8, 500

	var (
		mu   sync.Mutex
		seen = make(map[GeoId]struct{}, workers*per*2)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]GeoId, 0, per*2)
			for i := 0; i < per; i++ {
				local = append(local, a.NextEffect(), a.NextMessage())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range local {
				if _, dup := seen[id]; dup {
					t.Errorf("duplicate id %d", id)
				}
				seen[id] = struct{}{}
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*per*2 {
		t.Fatalf("expected %d unique ids, got %d", workers*per*2, len(seen))
	}
	if _, ok := seen[Invalid]; ok {
		t.Fatalf("allocator handed out the invalid id")
	}
}

func TestInvalidIsNotValid(t *testing.T) {
	if Invalid.Valid() {
		t.Fatalf("invalid id reported valid")
	}
	if !GeoId(7).Valid() {
		t.Fatalf("non-zero id reported invalid")
	}
}
