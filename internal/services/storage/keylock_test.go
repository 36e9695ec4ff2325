package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestKeyLocksSerializeSameKey(t *testing.T) {
	locks := newKeyLocks()
	ctx := context.Background()

	unlock, err := locks.Lock(ctx, "a")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		u, err := locks.Lock(ctx, "a")
		if err != nil {
			t.Errorf("second Lock: %v", err)
			close(acquired)
			return
		}
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the released key")
	}
}

func TestKeyLocksIndependentKeys(t *testing.T) {
	locks := newKeyLocks()
	ctx := context.Background()

	ua, err := locks.Lock(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	defer ua()

	ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	ub, err := locks.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("key b blocked by key a: %v", err)
	}
	ub()
}

func TestKeyLocksTimeoutReleasesEntry(t *testing.T) {
	locks := newKeyLocks()
	unlock, _ := locks.Lock(context.Background(), "a")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locks.Lock(ctx, "a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	unlock()
	unlock() // second call is a no-op
	if n := locks.size(); n != 0 {
		t.Errorf("size = %d after all holders left", n)
	}
}
