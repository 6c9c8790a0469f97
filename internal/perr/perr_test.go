package perr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	e := New(InvalidArgument, "canvas.add_element", "bad bounds")
	if got, want := e.Error(), "canvas.add_element: bad bounds"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}

	wrapped := Wrap(StorageFail, "kv.set_blob", "write failed", errors.New("disk full"))
	if got, want := wrapped.Error(), "kv.set_blob: write failed: disk full"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("boom")
	e := Wrap(HardwareFail, "panel.refresh", "spi timeout", cause)
	if !errors.Is(e, cause) {
		t.Fatalf("errors.Is did not see through Unwrap")
	}
}

func TestIs(t *testing.T) {
	e := New(NotFound, "canvas.get", "missing")
	if !Is(e, NotFound) {
		t.Fatalf("Is(e, NotFound) = false, want true")
	}
	if Is(e, TooLarge) {
		t.Fatalf("Is(e, TooLarge) = true, want false")
	}

	plain := fmt.Errorf("not a perr.Error")
	if Is(plain, NotFound) {
		t.Fatalf("Is on a non-perr error = true, want false")
	}

	nested := fmt.Errorf("wrapped: %w", e)
	if !Is(nested, NotFound) {
		t.Fatalf("Is through fmt.Errorf wrapping = false, want true")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{InvalidArgument, 400},
		{NotFound, 404},
		{AlreadyExists, 409},
		{TooLarge, 413},
		{Full, 413},
		{OutOfMemory, 507},
		{RateLimited, 429},
		{NotAllowed, 403},
		{Timeout, 504},
		{Busy, 503},
		{InvalidState, 503},
		{StorageFail, 500},
		{IntegrityFail, 500},
		{HardwareFail, 500},
		{Kind("made_up"), 500},
	}
	for _, c := range cases {
		if got := HTTPStatus(c.kind); got != c.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", c.kind, got, c.want)
		}
	}
}
