package service

import (
    "context"
    "errors"
    "sync"
    "testing"
    "time"

    "github.com/iliyamo/course-enrollment/internal/model"
    "github.com/iliyamo/course-enrollment/internal/queue"
    "github.com/iliyamo/course-enrollment/internal/repository"
)

// fakeLedger is a single-course capacity counter with injectable failures.
type fakeLedger struct {
    mu       sync.Mutex
    capacity uint32
    enrolled uint32

    reserveErr   error
    releaseErr   error
    decrementErr error

    releaseCalls   int
    decrementCalls int
}

func (l *fakeLedger) Reserve(ctx context.Context, courseID uint64) error {
    l.mu.Lock()
    defer l.mu.Unlock()
    if l.reserveErr != nil {
        return l.reserveErr
    }
    if l.enrolled >= l.capacity {
        return repository.ErrCapacityExceeded
    }
    l.enrolled++
    return nil
}

func (l *fakeLedger) Release(ctx context.Context, courseID uint64) error {
    l.mu.Lock()
    defer l.mu.Unlock()
    l.releaseCalls++
    if l.releaseErr != nil {
        return l.releaseErr
    }
    if l.enrolled > 0 {
        l.enrolled--
    }
    return nil
}

func (l *fakeLedger) Decrement(ctx context.Context, courseID uint64) error {
    l.mu.Lock()
    defer l.mu.Unlock()
    l.decrementCalls++
    if l.decrementErr != nil {
        return l.decrementErr
    }
    if l.enrolled == 0 {
        return repository.ErrInvalidState
    }
    l.enrolled--
    return nil
}

func (l *fakeLedger) Snapshot(ctx context.Context, courseID uint64) (repository.CourseCount, error) {
    l.mu.Lock()
    defer l.mu.Unlock()
    return repository.CourseCount{Capacity: l.capacity, Enrolled: l.enrolled}, nil
}

func (l *fakeLedger) count() uint32 {
    l.mu.Lock()
    defer l.mu.Unlock()
    return l.enrolled
}

// fakeRoster keeps enrollment records in memory with injectable failures.
type fakeRoster struct {
    mu     sync.Mutex
    nextID uint64
    recs   map[uint64]*model.Enrollment

    existsErr error
    createErr error
    getErr    error
    deleteErr error
}

func newFakeRoster() *fakeRoster {
    return &fakeRoster{nextID: 1, recs: make(map[uint64]*model.Enrollment)}
}

func (r *fakeRoster) Exists(ctx context.Context, courseID, studentID uint64) (bool, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    if r.existsErr != nil {
        return false, r.existsErr
    }
    for _, e := range r.recs {
        if e.CourseID == courseID && e.StudentID == studentID {
            return true, nil
        }
    }
    return false, nil
}

func (r *fakeRoster) Create(ctx context.Context, courseID, studentID uint64) (*model.Enrollment, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    if r.createErr != nil {
        return nil, r.createErr
    }
    for _, e := range r.recs {
        if e.CourseID == courseID && e.StudentID == studentID {
            return nil, repository.ErrDuplicateEnrollment
        }
    }
    e := &model.Enrollment{ID: r.nextID, CourseID: courseID, StudentID: studentID, EnrolledAt: time.Now().UTC()}
    r.recs[e.ID] = e
    r.nextID++
    return e, nil
}

func (r *fakeRoster) GetByID(ctx context.Context, id uint64) (*model.Enrollment, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    if r.getErr != nil {
        return nil, r.getErr
    }
    e, ok := r.recs[id]
    if !ok {
        return nil, repository.ErrEnrollmentNotFound
    }
    cp := *e
    return &cp, nil
}

func (r *fakeRoster) Delete(ctx context.Context, id uint64) error {
    r.mu.Lock()
    defer r.mu.Unlock()
    if r.deleteErr != nil {
        return r.deleteErr
    }
    if _, ok := r.recs[id]; !ok {
        return repository.ErrEnrollmentNotFound
    }
    delete(r.recs, id)
    return nil
}

func (r *fakeRoster) FindByCourse(ctx context.Context, courseID uint64) ([]model.Enrollment, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    var out []model.Enrollment
    for _, e := range r.recs {
        if e.CourseID == courseID {
            out = append(out, *e)
        }
    }
    return out, nil
}

func (r *fakeRoster) FindByStudent(ctx context.Context, studentID uint64) ([]model.Enrollment, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    var out []model.Enrollment
    for _, e := range r.recs {
        if e.StudentID == studentID {
            out = append(out, *e)
        }
    }
    return out, nil
}

// compensationRecorder records enqueued compensation events.
type compensationRecorder struct {
    mu     sync.Mutex
    events []queue.LedgerCompensationEvent
    err    error
}

func (c *compensationRecorder) fn(ctx context.Context, ev queue.LedgerCompensationEvent) error {
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.err != nil {
        return c.err
    }
    c.events = append(c.events, ev)
    return nil
}

func (c *compensationRecorder) all() []queue.LedgerCompensationEvent {
    c.mu.Lock()
    defer c.mu.Unlock()
    return append([]queue.LedgerCompensationEvent(nil), c.events...)
}

func TestEnrollCommits(t *testing.T) {
    led := &fakeLedger{capacity: 10}
    ros := newFakeRoster()
    coord := NewAdmissionCoordinator(led, ros, nil, time.Second)

    rec, err := coord.Enroll(context.Background(), 1, 100)
    if err != nil {
        t.Fatalf("enroll: %v", err)
    }
    if rec == nil || rec.CourseID != 1 || rec.StudentID != 100 {
        t.Fatalf("unexpected record: %+v", rec)
    }
    if led.count() != 1 {
        t.Fatalf("enrolled = %d, want 1", led.count())
    }
}

func TestEnrollDuplicateIsTerminal(t *testing.T) {
    led := &fakeLedger{capacity: 10}
    ros := newFakeRoster()
    coord := NewAdmissionCoordinator(led, ros, nil, time.Second)

    if _, err := coord.Enroll(context.Background(), 1, 100); err != nil {
        t.Fatalf("first enroll: %v", err)
    }
    _, err := coord.Enroll(context.Background(), 1, 100)
    if !errors.Is(err, repository.ErrDuplicateEnrollment) {
        t.Fatalf("second enroll = %v, want ErrDuplicateEnrollment", err)
    }
    // The duplicate was caught by the pre-check; no extra seat was taken.
    if led.count() != 1 {
        t.Fatalf("enrolled = %d, want 1", led.count())
    }
}

func TestEnrollDuplicateRaceReleasesReservation(t *testing.T) {
    // The pre-check misses, the roster's unique key catches the race.
    led := &fakeLedger{capacity: 10}
    ros := newFakeRoster()
    ros.createErr = repository.ErrDuplicateEnrollment
    coord := NewAdmissionCoordinator(led, ros, nil, time.Second)

    _, err := coord.Enroll(context.Background(), 1, 100)
    if !errors.Is(err, repository.ErrDuplicateEnrollment) {
        t.Fatalf("enroll = %v, want ErrDuplicateEnrollment", err)
    }
    if led.releaseCalls != 1 {
        t.Fatalf("release calls = %d, want 1", led.releaseCalls)
    }
    if led.count() != 0 {
        t.Fatalf("enrolled = %d after rollback, want 0", led.count())
    }
}

func TestEnrollCapacityExceeded(t *testing.T) {
    led := &fakeLedger{capacity: 1, enrolled: 1}
    ros := newFakeRoster()
    coord := NewAdmissionCoordinator(led, ros, nil, time.Second)

    _, err := coord.Enroll(context.Background(), 1, 100)
    if !errors.Is(err, repository.ErrCapacityExceeded) {
        t.Fatalf("enroll = %v, want ErrCapacityExceeded", err)
    }
    if led.releaseCalls != 0 {
        t.Fatal("release called after a failed reserve")
    }
}

func TestEnrollCourseNotFound(t *testing.T) {
    led := &fakeLedger{capacity: 1}
    led.reserveErr = repository.ErrCourseNotFound
    ros := newFakeRoster()
    coord := NewAdmissionCoordinator(led, ros, nil, time.Second)

    _, err := coord.Enroll(context.Background(), 42, 100)
    if !errors.Is(err, repository.ErrCourseNotFound) {
        t.Fatalf("enroll = %v, want ErrCourseNotFound", err)
    }
}

func TestEnrollRosterFailureRollsBack(t *testing.T) {
    led := &fakeLedger{capacity: 10}
    ros := newFakeRoster()
    ros.createErr = errors.New("connection reset")
    coord := NewAdmissionCoordinator(led, ros, nil, time.Second)

    _, err := coord.Enroll(context.Background(), 1, 100)
    if !errors.Is(err, ErrUpstreamUnavailable) {
        t.Fatalf("enroll = %v, want ErrUpstreamUnavailable", err)
    }
    if led.count() != 0 {
        t.Fatalf("enrolled = %d after rollback, want 0", led.count())
    }
}

func TestEnrollReleaseFailureEnqueuesCompensation(t *testing.T) {
    led := &fakeLedger{capacity: 10}
    led.releaseErr = errors.New("ledger down")
    ros := newFakeRoster()
    ros.createErr = errors.New("roster down")
    comp := &compensationRecorder{}
    coord := NewAdmissionCoordinator(led, ros, comp.fn, time.Second)

    _, err := coord.Enroll(context.Background(), 1, 100)
    if !errors.Is(err, ErrUpstreamUnavailable) {
        t.Fatalf("enroll = %v, want ErrUpstreamUnavailable", err)
    }
    evs := comp.all()
    if len(evs) != 1 {
        t.Fatalf("compensation events = %d, want 1", len(evs))
    }
    if evs[0].Action != queue.CompensationRelease || evs[0].CourseID != 1 {
        t.Fatalf("unexpected compensation event: %+v", evs[0])
    }
}

func TestDropCommitsAndDecrements(t *testing.T) {
    led := &fakeLedger{capacity: 10}
    ros := newFakeRoster()
    coord := NewAdmissionCoordinator(led, ros, nil, time.Second)

    rec, err := coord.Enroll(context.Background(), 1, 100)
    if err != nil {
        t.Fatalf("enroll: %v", err)
    }
    dropped, err := coord.Drop(context.Background(), rec.ID)
    if err != nil {
        t.Fatalf("drop: %v", err)
    }
    if dropped.ID != rec.ID || dropped.StudentID != 100 {
        t.Fatalf("unexpected dropped record: %+v", dropped)
    }
    if led.count() != 0 {
        t.Fatalf("enrolled = %d after drop, want 0", led.count())
    }
    if ok, _ := ros.Exists(context.Background(), 1, 100); ok {
        t.Fatal("roster record survived the drop")
    }
}

func TestDropUnknownEnrollment(t *testing.T) {
    coord := NewAdmissionCoordinator(&fakeLedger{capacity: 1}, newFakeRoster(), nil, time.Second)
    _, err := coord.Drop(context.Background(), 999)
    if !errors.Is(err, repository.ErrEnrollmentNotFound) {
        t.Fatalf("drop = %v, want ErrEnrollmentNotFound", err)
    }
}

func TestDropDecrementFailureStillSucceeds(t *testing.T) {
    led := &fakeLedger{capacity: 10}
    ros := newFakeRoster()
    comp := &compensationRecorder{}
    coord := NewAdmissionCoordinator(led, ros, comp.fn, time.Second)

    rec, err := coord.Enroll(context.Background(), 1, 100)
    if err != nil {
        t.Fatalf("enroll: %v", err)
    }
    led.decrementErr = errors.New("ledger down")

    if _, err := coord.Drop(context.Background(), rec.ID); err != nil {
        t.Fatalf("drop = %v, want success despite decrement failure", err)
    }
    evs := comp.all()
    if len(evs) != 1 || evs[0].Action != queue.CompensationDecrement {
        t.Fatalf("compensation events = %+v, want one decrement", evs)
    }
}

func TestDropDecrementAtZeroIsSettled(t *testing.T) {
    // Ledger already drifted below the roster; no compensation needed,
    // reconciliation recomputes from the roster.
    led := &fakeLedger{capacity: 10}
    ros := newFakeRoster()
    rec, _ := ros.Create(context.Background(), 1, 100)
    comp := &compensationRecorder{}
    coord := NewAdmissionCoordinator(led, ros, comp.fn, time.Second)

    if _, err := coord.Drop(context.Background(), rec.ID); err != nil {
        t.Fatalf("drop: %v", err)
    }
    if len(comp.all()) != 0 {
        t.Fatalf("compensation events = %+v, want none", comp.all())
    }
}

func TestEnrollDropEnrollRoundTrip(t *testing.T) {
    led := &fakeLedger{capacity: 1}
    ros := newFakeRoster()
    coord := NewAdmissionCoordinator(led, ros, nil, time.Second)

    rec, err := coord.Enroll(context.Background(), 1, 100)
    if err != nil {
        t.Fatalf("first enroll: %v", err)
    }
    if _, err := coord.Drop(context.Background(), rec.ID); err != nil {
        t.Fatalf("drop: %v", err)
    }
    if _, err := coord.Enroll(context.Background(), 1, 100); err != nil {
        t.Fatalf("re-enroll after drop: %v", err)
    }
}

func TestConcurrentEnrollLastSeat(t *testing.T) {
    led := &fakeLedger{capacity: 1}
    ros := newFakeRoster()
    coord := NewAdmissionCoordinator(led, ros, nil, time.Second)

    var wg sync.WaitGroup
    errs := make(chan error, 2)
    for _, sid := range []uint64{100, 101} {
        wg.Add(1)
        go func(student uint64) {
            defer wg.Done()
            _, err := coord.Enroll(context.Background(), 1, student)
            errs <- err
        }(sid)
    }
    wg.Wait()
    close(errs)

    var ok, full int
    for err := range errs {
        switch {
        case err == nil:
            ok++
        case errors.Is(err, repository.ErrCapacityExceeded):
            full++
        default:
            t.Fatalf("unexpected error: %v", err)
        }
    }
    if ok != 1 || full != 1 {
        t.Fatalf("got %d commits and %d rejections, want 1 and 1", ok, full)
    }
    if led.count() != 1 {
        t.Fatalf("enrolled = %d, want 1", led.count())
    }
}
