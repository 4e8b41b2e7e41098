package pending

import (
	"sync"
	"testing"
	"time"

	"github.com/avoronov/billfold/internal/domain"
)

func testTx(note string) domain.Transaction {
	return domain.Transaction{
		Amount:   12.50,
		Currency: "USD",
		Type:     domain.TypeExpense,
		Category: "Food",
		Note:     note,
	}
}

func TestPutThenGet(t *testing.T) {
	c := New(DefaultTTL)

	id := c.Put(testTx("lunch"), "user-a")
	if id == "" {
		t.Fatal("Put returned empty id")
	}

	entry, status := c.Get(id, "user-a")
	if status != Found {
		t.Fatalf("Get status = %v, want Found", status)
	}
	if entry.Data.Note != "lunch" || entry.Data.Amount != 12.50 {
		t.Errorf("Get returned altered data: %+v", entry.Data)
	}
}

func TestIDsAreUnique(t *testing.T) {
	c := New(DefaultTTL)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := c.Put(testTx("x"), "user-a")
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestExpiredThenSweptToNotFound(t *testing.T) {
	c := New(time.Minute)
	current := time.Now()
	c.now = func() time.Time { return current }

	id := c.Put(testTx("x"), "user-a")

	current = current.Add(2 * time.Minute)

	// First lookup sees the dead entry and reports Expired.
	if _, status := c.Get(id, "user-a"); status != Expired {
		t.Fatalf("Get after TTL = %v, want Expired", status)
	}
	// The lookup swept it; confirmation now fails as NotFound, not Expired.
	if _, status := c.Take(id, "user-a"); status != NotFound {
		t.Fatalf("Take after sweep = %v, want NotFound", status)
	}
}

func TestTakeConsumesEntry(t *testing.T) {
	c := New(DefaultTTL)
	id := c.Put(testTx("x"), "user-a")

	if _, status := c.Take(id, "user-a"); status != Found {
		t.Fatalf("first Take = %v, want Found", status)
	}
	if _, status := c.Take(id, "user-a"); status != NotFound {
		t.Fatalf("second Take = %v, want NotFound", status)
	}
}

func TestConcurrentTakeExactlyOneWinner(t *testing.T) {
	c := New(DefaultTTL)
	id := c.Put(testTx("x"), "user-a")

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan Status, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, status := c.Take(id, "user-a")
			results <- status
		}()
	}
	wg.Wait()
	close(results)

	var found int
	for status := range results {
		if status == Found {
			found++
		}
	}
	if found != 1 {
		t.Errorf("%d concurrent takes succeeded, want exactly 1", found)
	}
}

func TestOwnerMismatchReadsAsNotFound(t *testing.T) {
	c := New(DefaultTTL)
	id := c.Put(testTx("x"), "user-a")

	if _, status := c.Get(id, "user-b"); status != NotFound {
		t.Errorf("Get by non-owner = %v, want NotFound", status)
	}
	if _, status := c.Take(id, "user-b"); status != NotFound {
		t.Errorf("Take by non-owner = %v, want NotFound", status)
	}
	// The entry must survive the foreign attempts.
	if _, status := c.Take(id, "user-a"); status != Found {
		t.Errorf("Take by owner after foreign attempts = %v, want Found", status)
	}
}

func TestOwnerMismatchOnExpiredEntryReadsAsNotFound(t *testing.T) {
	c := New(time.Minute)
	current := time.Now()
	c.now = func() time.Time { return current }

	id := c.Put(testTx("x"), "user-a")
	current = current.Add(2 * time.Minute)

	// A non-owner must not be able to tell an expired token from one
	// that never existed.
	if _, status := c.Get(id, "user-b"); status != NotFound {
		t.Errorf("Get of expired entry by non-owner = %v, want NotFound", status)
	}
	if _, status := c.Take(id, "user-b"); status != NotFound {
		t.Errorf("Take of expired entry by non-owner = %v, want NotFound", status)
	}
	// The owner still gets the accurate Expired answer.
	if _, status := c.Take(id, "user-a"); status != Expired {
		t.Errorf("Take of expired entry by owner = %v, want Expired", status)
	}
}

func TestPassiveSweepOnPut(t *testing.T) {
	c := New(time.Minute)
	current := time.Now()
	c.now = func() time.Time { return current }

	c.Put(testTx("old-1"), "user-a")
	c.Put(testTx("old-2"), "user-a")

	current = current.Add(2 * time.Minute)
	c.Put(testTx("fresh"), "user-a")

	if n := c.Len(); n != 1 {
		t.Errorf("Len after sweep = %d, want 1", n)
	}
}
