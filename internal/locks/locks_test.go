package locks

import (
	"context"
	"testing"
	"time"
)

func TestMemoryManagerDedupsWithinTTL(t *testing.T) {
	manager := NewMemoryManager()
	ctx := context.Background()

	ok, errAcquire := manager.Acquire(ctx, JobSyncUsage, time.Second)
	if errAcquire != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, errAcquire)
	}

	ok, errAcquire = manager.Acquire(ctx, JobSyncUsage, time.Second)
	if errAcquire != nil {
		t.Fatalf("second acquire err: %v", errAcquire)
	}
	if ok {
		t.Fatalf("second acquire within TTL must fail")
	}
}

func TestMemoryManagerExpiresAfterTTL(t *testing.T) {
	manager := NewMemoryManager()
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return current }
	ctx := context.Background()

	if ok, _ := manager.Acquire(ctx, JobSyncUsage, time.Second); !ok {
		t.Fatalf("first acquire should succeed")
	}
	if ok, _ := manager.Acquire(ctx, JobSyncUsage, time.Second); ok {
		t.Fatalf("acquire before expiry should fail")
	}

	current = current.Add(1100 * time.Millisecond)
	if ok, _ := manager.Acquire(ctx, JobSyncUsage, time.Second); !ok {
		t.Fatalf("acquire after TTL expiry should succeed")
	}
}

func TestMemoryManagerRelease(t *testing.T) {
	manager := NewMemoryManager()
	ctx := context.Background()

	if ok, _ := manager.Acquire(ctx, JobSyncUsage, time.Minute); !ok {
		t.Fatalf("acquire should succeed")
	}
	if errRelease := manager.Release(ctx, JobSyncUsage); errRelease != nil {
		t.Fatalf("release: %v", errRelease)
	}
	if ok, _ := manager.Acquire(ctx, JobSyncUsage, time.Minute); !ok {
		t.Fatalf("acquire after release should succeed")
	}
}

func TestMemoryManagerIndependentKeys(t *testing.T) {
	manager := NewMemoryManager()
	ctx := context.Background()

	if ok, _ := manager.Acquire(ctx, "jobs:a", time.Minute); !ok {
		t.Fatalf("acquire a should succeed")
	}
	if ok, _ := manager.Acquire(ctx, "jobs:b", time.Minute); !ok {
		t.Fatalf("acquire b should succeed independently")
	}
}

func TestMemoryManagerRejectsEmptyKey(t *testing.T) {
	manager := NewMemoryManager()
	if _, errAcquire := manager.Acquire(context.Background(), "  ", time.Minute); errAcquire == nil {
		t.Fatalf("empty key should error")
	}
}
