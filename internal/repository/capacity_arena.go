package repository

import (
    "context"
    "sync"
)

// courseCounter is one slot in the arena. Each counter carries its own
// mutex so that admission traffic for one course never contends with
// traffic for another.
type courseCounter struct {
    mu       sync.Mutex
    capacity uint32
    enrolled uint32
}

// CapacityArena is the in-memory capacity ledger: an arena of per-course
// counters indexed by course ID. It satisfies the same contract as
// CapacityLedgerRepo and is selected with LEDGER_BACKEND=memory for
// single-node deployments where the counter does not need to survive a
// restart (the reconciler rebuilds it from the roster either way).
//
// The outer map is guarded by a RWMutex taken only to look up or register
// a counter; all count mutations happen under the counter's own lock, so
// reserve/release/decrement for a fixed course observe a total order.
type CapacityArena struct {
    mu       sync.RWMutex
    counters map[uint64]*courseCounter
}

// NewCapacityArena returns an empty arena. Counters are added with
// Register, typically seeded from the courses table at startup.
func NewCapacityArena() *CapacityArena {
    return &CapacityArena{counters: make(map[uint64]*courseCounter)}
}

// Register adds or resets the counter for a course. Called at startup for
// every course row and by the course handlers when a course is created or
// its capacity changes.
func (a *CapacityArena) Register(courseID uint64, capacity, enrolled uint32) {
    a.mu.Lock()
    defer a.mu.Unlock()
    if c, ok := a.counters[courseID]; ok {
        c.mu.Lock()
        c.capacity = capacity
        c.enrolled = enrolled
        c.mu.Unlock()
        return
    }
    a.counters[courseID] = &courseCounter{capacity: capacity, enrolled: enrolled}
}

// SetCapacity updates only the capacity bound of an existing counter.
// Shrinking below the current enrolled count is allowed; the counter then
// rejects new reservations until drops bring it back under the bound.
func (a *CapacityArena) SetCapacity(courseID uint64, capacity uint32) {
    a.mu.RLock()
    c, ok := a.counters[courseID]
    a.mu.RUnlock()
    if !ok {
        return
    }
    c.mu.Lock()
    c.capacity = capacity
    c.mu.Unlock()
}

// Deregister removes a course's counter, used when the course is deleted.
func (a *CapacityArena) Deregister(courseID uint64) {
    a.mu.Lock()
    delete(a.counters, courseID)
    a.mu.Unlock()
}

// lookup returns the counter for a course or ErrCourseNotFound.
func (a *CapacityArena) lookup(courseID uint64) (*courseCounter, error) {
    a.mu.RLock()
    c, ok := a.counters[courseID]
    a.mu.RUnlock()
    if !ok {
        return nil, ErrCourseNotFound
    }
    return c, nil
}

// Reserve increments the enrolled count when room remains, holding the
// per-course lock across the compare and the increment so the pair is one
// atomic step. The context parameter keeps the signature aligned with the
// MySQL ledger; the operation itself never blocks on I/O.
func (a *CapacityArena) Reserve(ctx context.Context, courseID uint64) error {
    c, err := a.lookup(courseID)
    if err != nil {
        return err
    }
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.enrolled >= c.capacity {
        return ErrCapacityExceeded
    }
    c.enrolled++
    return nil
}

// Release undoes one reservation, floored at 0 (see CapacityLedgerRepo).
func (a *CapacityArena) Release(ctx context.Context, courseID uint64) error {
    c, err := a.lookup(courseID)
    if err != nil {
        return err
    }
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.enrolled > 0 {
        c.enrolled--
    }
    return nil
}

// Decrement lowers the count on a drop and reports ErrInvalidState when
// the counter is already 0, leaving the value untouched.
func (a *CapacityArena) Decrement(ctx context.Context, courseID uint64) error {
    c, err := a.lookup(courseID)
    if err != nil {
        return err
    }
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.enrolled == 0 {
        return ErrInvalidState
    }
    c.enrolled--
    return nil
}

// Snapshot returns the current capacity pair.
func (a *CapacityArena) Snapshot(ctx context.Context, courseID uint64) (CourseCount, error) {
    c, err := a.lookup(courseID)
    if err != nil {
        return CourseCount{}, err
    }
    c.mu.Lock()
    defer c.mu.Unlock()
    return CourseCount{Capacity: c.capacity, Enrolled: c.enrolled}, nil
}

// CompareAndSetEnrolled writes a corrected count only when the current
// value still equals old, mirroring the MySQL ledger's reconciliation
// primitive.
func (a *CapacityArena) CompareAndSetEnrolled(ctx context.Context, courseID uint64, old, corrected uint32) (bool, error) {
    c, err := a.lookup(courseID)
    if err != nil {
        return false, err
    }
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.enrolled != old {
        return false, nil
    }
    c.enrolled = corrected
    return true, nil
}
