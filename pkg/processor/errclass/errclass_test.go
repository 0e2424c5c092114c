package errclass

import (
	"errors"
	"testing"

	shrderrors "github.com/baggageops/core/pkg/shared/errors"
)

func TestDecide_Transient_RedeliversUnderMaxAttempts(t *testing.T) {
	err := shrderrors.Transient(errors.New("graph store unavailable"))
	if got := Decide(err, 1); got != OutcomeRedeliver {
		t.Fatalf("attempt 1: got %v, want OutcomeRedeliver", got)
	}
	if got := Decide(err, 2); got != OutcomeRedeliver {
		t.Fatalf("attempt 2: got %v, want OutcomeRedeliver", got)
	}
}

func TestDecide_Transient_DLQsAtMaxAttempts(t *testing.T) {
	err := shrderrors.Transient(errors.New("graph store unavailable"))
	if got := Decide(err, MaxAttempts); got != OutcomeDLQ {
		t.Fatalf("got %v, want OutcomeDLQ at max attempts", got)
	}
}

func TestDecide_Permanent_AlwaysDLQs(t *testing.T) {
	err := shrderrors.Permanent(errors.New("invalid_transition"))
	if got := Decide(err, 1); got != OutcomeDLQ {
		t.Fatalf("got %v, want OutcomeDLQ", got)
	}
}

func TestDecide_Partial_Acks(t *testing.T) {
	err := shrderrors.Partial(errors.New("graph projection degraded, debt recorded"))
	if got := Decide(err, 1); got != OutcomeAck {
		t.Fatalf("got %v, want OutcomeAck", got)
	}
}

func TestDecide_Fatal_DLQs(t *testing.T) {
	err := shrderrors.Fatal(errors.New("authoritative store unreachable"))
	if got := Decide(err, 1); got != OutcomeDLQ {
		t.Fatalf("got %v, want OutcomeDLQ", got)
	}
}

func TestDecide_Nil_Acks(t *testing.T) {
	if got := Decide(nil, 1); got != OutcomeAck {
		t.Fatalf("got %v, want OutcomeAck", got)
	}
}

func TestDecide_UnclassifiedError_DefaultsToDLQ(t *testing.T) {
	err := errors.New("some third-party error with no Kind attached")
	if got := Decide(err, 1); got != OutcomeDLQ {
		t.Fatalf("got %v, want OutcomeDLQ (fail closed)", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 200},
		{"permanent", shrderrors.Permanent(errors.New("bad bag_tag")), 422},
		{"transient", shrderrors.Transient(errors.New("db down")), 503},
		{"fatal", shrderrors.Fatal(errors.New("no config")), 503},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HTTPStatus(tc.err); got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}
