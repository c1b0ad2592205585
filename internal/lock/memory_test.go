package lock

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLockerAcquireRelease(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	acquired, err := locker.Acquire(ctx, "test-key", time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !acquired {
		t.Fatal("Acquire() = false, want true for a free lock")
	}

	// Second acquire of a held lock must fail.
	acquired, err = locker.Acquire(ctx, "test-key", time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if acquired {
		t.Error("Acquire() = true, want false for a held lock")
	}

	// Different key is independent.
	acquired, err = locker.Acquire(ctx, "other-key", time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !acquired {
		t.Error("Acquire() = false for an unrelated key")
	}

	released, err := locker.Release(ctx, "test-key")
	if err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if !released {
		t.Error("Release() = false, want true for a held lock")
	}

	acquired, err = locker.Acquire(ctx, "test-key", time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !acquired {
		t.Error("Acquire() = false after release, want true")
	}
}

func TestMemoryLockerExpiry(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	acquired, err := locker.Acquire(ctx, "test-key", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !acquired {
		t.Fatal("Acquire() = false, want true")
	}

	time.Sleep(20 * time.Millisecond)

	// The TTL has lapsed, the lock is free again.
	acquired, err = locker.Acquire(ctx, "test-key", time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !acquired {
		t.Error("Acquire() = false after TTL expiry, want true")
	}
}

func TestMemoryLockerExtend(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	if _, err := locker.Acquire(ctx, "test-key", time.Minute); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	extended, err := locker.Extend(ctx, "test-key", time.Hour)
	if err != nil {
		t.Fatalf("Extend() error = %v", err)
	}
	if !extended {
		t.Error("Extend() = false for a held lock, want true")
	}

	extended, err = locker.Extend(ctx, "missing-key", time.Hour)
	if err != nil {
		t.Fatalf("Extend() error = %v", err)
	}
	if extended {
		t.Error("Extend() = true for a lock never acquired, want false")
	}
}

func TestMemoryLockerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	locker := NewMemoryLocker()
	if _, err := locker.Acquire(ctx, "test-key", time.Minute); err == nil {
		t.Error("Acquire() with cancelled context returned nil error")
	}
}

func TestNoOpLocker(t *testing.T) {
	ctx := context.Background()
	locker := NewNoOpLocker()

	// Every call succeeds, even for the same key twice.
	for i := 0; i < 2; i++ {
		acquired, err := locker.Acquire(ctx, "test-key", time.Minute)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		if !acquired {
			t.Error("Acquire() = false, want true")
		}
	}

	if released, err := locker.Release(ctx, "test-key"); err != nil || !released {
		t.Errorf("Release() = (%v, %v), want (true, nil)", released, err)
	}
}
