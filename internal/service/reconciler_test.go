package service

import (
    "context"
    "testing"
    "time"

    "github.com/iliyamo/course-enrollment/internal/repository"
)

type staticCounter struct {
    counts map[uint64]int64
}

func (s *staticCounter) CountByCourse(ctx context.Context, courseID uint64) (int64, error) {
    return s.counts[courseID], nil
}

type staticLister struct {
    ids []uint64
}

func (s *staticLister) ListIDs(ctx context.Context) ([]uint64, error) {
    return s.ids, nil
}

func TestReconcilerCorrectsDrift(t *testing.T) {
    arena := repository.NewCapacityArena()
    arena.Register(1, 10, 7) // ledger says 7
    arena.Register(2, 10, 3) // in line with the roster

    roster := &staticCounter{counts: map[uint64]int64{1: 5, 2: 3}}
    lister := &staticLister{ids: []uint64{1, 2}}
    rec := NewReconciler(arena, roster, lister, time.Minute)

    corrected, err := rec.ReconcileAll(context.Background())
    if err != nil {
        t.Fatalf("reconcile: %v", err)
    }
    if corrected != 1 {
        t.Fatalf("corrected = %d, want 1", corrected)
    }
    snap, _ := arena.Snapshot(context.Background(), 1)
    if snap.Enrolled != 5 {
        t.Fatalf("course 1 enrolled = %d after reconcile, want 5", snap.Enrolled)
    }
    snap, _ = arena.Snapshot(context.Background(), 2)
    if snap.Enrolled != 3 {
        t.Fatalf("course 2 enrolled = %d, want 3 (untouched)", snap.Enrolled)
    }
}

func TestReconcilerSecondPassIsNoop(t *testing.T) {
    arena := repository.NewCapacityArena()
    arena.Register(1, 10, 9)
    roster := &staticCounter{counts: map[uint64]int64{1: 4}}
    lister := &staticLister{ids: []uint64{1}}
    rec := NewReconciler(arena, roster, lister, time.Minute)

    if n, err := rec.ReconcileAll(context.Background()); err != nil || n != 1 {
        t.Fatalf("first pass = (%d, %v), want (1, nil)", n, err)
    }
    if n, err := rec.ReconcileAll(context.Background()); err != nil || n != 0 {
        t.Fatalf("second pass = (%d, %v), want (0, nil)", n, err)
    }
}

// casMovingLedger simulates live traffic moving the counter between the
// reconciler's snapshot and its CAS: every snapshot returns a value that
// no longer matches by the time the CAS runs.
type casMovingLedger struct {
    enrolled uint32
    casCalls int
}

func (l *casMovingLedger) Snapshot(ctx context.Context, courseID uint64) (repository.CourseCount, error) {
    snap := repository.CourseCount{Capacity: 10, Enrolled: l.enrolled}
    l.enrolled++ // counter moves right after the snapshot
    return snap, nil
}

func (l *casMovingLedger) CompareAndSetEnrolled(ctx context.Context, courseID uint64, old, corrected uint32) (bool, error) {
    l.casCalls++
    if l.enrolled != old {
        return false, nil
    }
    l.enrolled = corrected
    return true, nil
}

func TestReconcilerLostCASIsNotAnError(t *testing.T) {
    led := &casMovingLedger{enrolled: 2}
    roster := &staticCounter{counts: map[uint64]int64{1: 7}}
    lister := &staticLister{ids: []uint64{1}}
    rec := NewReconciler(led, roster, lister, time.Minute)

    fixed, err := rec.ReconcileCourse(context.Background(), 1)
    if err != nil {
        t.Fatalf("reconcile course: %v", err)
    }
    if fixed {
        t.Fatal("lost CAS reported as a correction")
    }
    if led.casCalls != 1 {
        t.Fatalf("cas calls = %d, want 1", led.casCalls)
    }
}

func TestReconcilerSkipsDeletedCourse(t *testing.T) {
    arena := repository.NewCapacityArena() // no counters registered
    roster := &staticCounter{counts: map[uint64]int64{}}
    lister := &staticLister{ids: []uint64{9}}
    rec := NewReconciler(arena, roster, lister, time.Minute)

    fixed, err := rec.ReconcileCourse(context.Background(), 9)
    if err != nil {
        t.Fatalf("reconcile deleted course: %v", err)
    }
    if fixed {
        t.Fatal("deleted course reported as corrected")
    }
}
