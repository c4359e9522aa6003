package errors_test

import (
	stderr "errors"
	"testing"

	liberr "github.com/CollaboraOnline/online-sub004/errors"
)

func TestClassificationRoundTrip(t *testing.T) {
	cause := stderr.New("connection reset")
	e := liberr.New(liberr.CodeStorageTransient, "uploading contents", cause)

	if e.Code() != liberr.CodeStorageTransient {
		t.Fatalf("unexpected code: %v", e.Code())
	}
	if !e.Code().Retryable() {
		t.Fatalf("storage transient must be retryable")
	}
	if stderr.Unwrap(e) != cause {
		t.Fatalf("Unwrap did not return the original cause")
	}
}

func TestOfExtractsCodeThroughWrap(t *testing.T) {
	inner := liberr.New(liberr.CodeStorageConflict, "conflict", nil)
	wrapped := fWrap(inner)

	if got := liberr.Of(wrapped); got != liberr.CodeStorageConflict {
		t.Fatalf("Of() = %v, want CodeStorageConflict", got)
	}
}

type wrapper struct{ err error }

func (w *wrapper) Error() string { return w.err.Error() }
func (w *wrapper) Unwrap() error { return w.err }

func fWrap(err error) error { return &wrapper{err: err} }

func TestErrorKindMapping(t *testing.T) {
	cases := map[liberr.Code]string{
		liberr.CodeStorageConflict: "documentconflict",
		liberr.CodeStorageAuth:     "unauthorized",
		liberr.CodeProtocol:        "syntax",
	}
	for code, want := range cases {
		if got := code.ErrorKind(); got != want {
			t.Errorf("%v.ErrorKind() = %q, want %q", code, got, want)
		}
	}
}
