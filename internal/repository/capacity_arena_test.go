package repository

import (
    "context"
    "errors"
    "sync"
    "testing"
)

func TestArenaReserveRespectsCapacityUnderContention(t *testing.T) {
    arena := NewCapacityArena()
    arena.Register(1, 2, 0)

    const attempts = 5
    var wg sync.WaitGroup
    results := make(chan error, attempts)
    for i := 0; i < attempts; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            results <- arena.Reserve(context.Background(), 1)
        }()
    }
    wg.Wait()
    close(results)

    var ok, full int
    for err := range results {
        switch {
        case err == nil:
            ok++
        case errors.Is(err, ErrCapacityExceeded):
            full++
        default:
            t.Fatalf("unexpected error: %v", err)
        }
    }
    if ok != 2 || full != 3 {
        t.Fatalf("got %d successes and %d rejections, want 2 and 3", ok, full)
    }

    snap, err := arena.Snapshot(context.Background(), 1)
    if err != nil {
        t.Fatalf("snapshot: %v", err)
    }
    if snap.Enrolled != 2 || snap.Capacity != 2 {
        t.Fatalf("snapshot = %+v, want enrolled=2 capacity=2", snap)
    }
}

func TestArenaReleaseFloorsAtZero(t *testing.T) {
    arena := NewCapacityArena()
    arena.Register(7, 3, 0)

    // Release on an empty counter is a silent no-op.
    if err := arena.Release(context.Background(), 7); err != nil {
        t.Fatalf("release at zero: %v", err)
    }
    snap, _ := arena.Snapshot(context.Background(), 7)
    if snap.Enrolled != 0 {
        t.Fatalf("enrolled = %d after floored release, want 0", snap.Enrolled)
    }
}

func TestArenaDecrementAtZeroReportsInvalidState(t *testing.T) {
    arena := NewCapacityArena()
    arena.Register(7, 3, 0)

    if err := arena.Decrement(context.Background(), 7); !errors.Is(err, ErrInvalidState) {
        t.Fatalf("decrement at zero = %v, want ErrInvalidState", err)
    }
    snap, _ := arena.Snapshot(context.Background(), 7)
    if snap.Enrolled != 0 {
        t.Fatalf("enrolled = %d, want 0 (value untouched)", snap.Enrolled)
    }
}

func TestArenaUnknownCourse(t *testing.T) {
    arena := NewCapacityArena()
    if err := arena.Reserve(context.Background(), 99); !errors.Is(err, ErrCourseNotFound) {
        t.Fatalf("reserve unknown course = %v, want ErrCourseNotFound", err)
    }
    if _, err := arena.Snapshot(context.Background(), 99); !errors.Is(err, ErrCourseNotFound) {
        t.Fatalf("snapshot unknown course = %v, want ErrCourseNotFound", err)
    }
}

func TestArenaCoursesAreIndependent(t *testing.T) {
    arena := NewCapacityArena()
    arena.Register(1, 1, 0)
    arena.Register(2, 1, 0)

    if err := arena.Reserve(context.Background(), 1); err != nil {
        t.Fatalf("reserve course 1: %v", err)
    }
    // Course 1 is now full; course 2 must be unaffected.
    if err := arena.Reserve(context.Background(), 1); !errors.Is(err, ErrCapacityExceeded) {
        t.Fatalf("second reserve course 1 = %v, want ErrCapacityExceeded", err)
    }
    if err := arena.Reserve(context.Background(), 2); err != nil {
        t.Fatalf("reserve course 2: %v", err)
    }
}

func TestArenaCompareAndSetEnrolled(t *testing.T) {
    arena := NewCapacityArena()
    arena.Register(3, 10, 4)

    ok, err := arena.CompareAndSetEnrolled(context.Background(), 3, 4, 2)
    if err != nil || !ok {
        t.Fatalf("CAS with matching old = (%v, %v), want (true, nil)", ok, err)
    }
    snap, _ := arena.Snapshot(context.Background(), 3)
    if snap.Enrolled != 2 {
        t.Fatalf("enrolled = %d after CAS, want 2", snap.Enrolled)
    }

    // Stale expectation loses.
    ok, err = arena.CompareAndSetEnrolled(context.Background(), 3, 4, 9)
    if err != nil {
        t.Fatalf("CAS error: %v", err)
    }
    if ok {
        t.Fatal("CAS with stale old value succeeded, want failure")
    }
}

func TestArenaShrinkCapacityBelowEnrolled(t *testing.T) {
    arena := NewCapacityArena()
    arena.Register(5, 3, 3)
    arena.SetCapacity(5, 1)

    // Over the new bound: no admissions until drops catch up.
    if err := arena.Reserve(context.Background(), 5); !errors.Is(err, ErrCapacityExceeded) {
        t.Fatalf("reserve over shrunk capacity = %v, want ErrCapacityExceeded", err)
    }
    if err := arena.Decrement(context.Background(), 5); err != nil {
        t.Fatalf("decrement: %v", err)
    }
    if err := arena.Decrement(context.Background(), 5); err != nil {
        t.Fatalf("decrement: %v", err)
    }
    if err := arena.Decrement(context.Background(), 5); err != nil {
        t.Fatalf("decrement: %v", err)
    }
    if err := arena.Reserve(context.Background(), 5); err != nil {
        t.Fatalf("reserve under shrunk capacity: %v", err)
    }
}
