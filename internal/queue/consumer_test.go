package queue

import (
    "context"
    "encoding/json"
    "errors"
    "testing"

    "github.com/iliyamo/course-enrollment/internal/repository"
)

type recordingLedger struct {
    released    []uint64
    decremented []uint64
    releaseErr  error
    decErr      error
}

func (l *recordingLedger) Release(ctx context.Context, courseID uint64) error {
    if l.releaseErr != nil {
        return l.releaseErr
    }
    l.released = append(l.released, courseID)
    return nil
}

func (l *recordingLedger) Decrement(ctx context.Context, courseID uint64) error {
    if l.decErr != nil {
        return l.decErr
    }
    l.decremented = append(l.decremented, courseID)
    return nil
}

func body(t *testing.T, ev LedgerCompensationEvent) []byte {
    t.Helper()
    b, err := json.Marshal(ev)
    if err != nil {
        t.Fatalf("marshal: %v", err)
    }
    return b
}

func TestHandleCompensationRelease(t *testing.T) {
    led := &recordingLedger{}
    msg := body(t, LedgerCompensationEvent{CourseID: 3, Action: CompensationRelease, Reason: "test"})
    if err := handleCompensation(led, msg); err != nil {
        t.Fatalf("handle: %v", err)
    }
    if len(led.released) != 1 || led.released[0] != 3 {
        t.Fatalf("released = %v, want [3]", led.released)
    }
}

func TestHandleCompensationDecrement(t *testing.T) {
    led := &recordingLedger{}
    msg := body(t, LedgerCompensationEvent{CourseID: 5, Action: CompensationDecrement, Reason: "test"})
    if err := handleCompensation(led, msg); err != nil {
        t.Fatalf("handle: %v", err)
    }
    if len(led.decremented) != 1 || led.decremented[0] != 5 {
        t.Fatalf("decremented = %v, want [5]", led.decremented)
    }
}

func TestHandleCompensationSettledOutcomes(t *testing.T) {
    // A deleted course or a counter already at its floor means the
    // correction is moot; the message must be acked, not retried.
    for _, settled := range []error{repository.ErrCourseNotFound, repository.ErrInvalidState} {
        led := &recordingLedger{decErr: settled}
        msg := body(t, LedgerCompensationEvent{CourseID: 1, Action: CompensationDecrement})
        if err := handleCompensation(led, msg); err != nil {
            t.Fatalf("settled outcome %v surfaced as error: %v", settled, err)
        }
    }
}

func TestHandleCompensationTransientFailure(t *testing.T) {
    led := &recordingLedger{releaseErr: errors.New("connection refused")}
    msg := body(t, LedgerCompensationEvent{CourseID: 1, Action: CompensationRelease})
    if err := handleCompensation(led, msg); err == nil {
        t.Fatal("transient ledger failure swallowed, want error")
    }
}

func TestHandleCompensationUnknownAction(t *testing.T) {
    led := &recordingLedger{}
    msg := body(t, LedgerCompensationEvent{CourseID: 1, Action: "explode"})
    if err := handleCompensation(led, msg); err == nil {
        t.Fatal("unknown action accepted, want error")
    }
    if len(led.released) != 0 || len(led.decremented) != 0 {
        t.Fatal("unknown action mutated the ledger")
    }
}

func TestHandleCompensationBadPayload(t *testing.T) {
    if err := handleCompensation(&recordingLedger{}, []byte("{not json")); err == nil {
        t.Fatal("malformed payload accepted, want error")
    }
}
