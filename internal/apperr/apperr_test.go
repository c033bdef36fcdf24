package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", NotFound("commit", "commit %s not found", "abc"), KindNotFound},
		{"invalid", Invalid("file", "path is required"), KindInvalidInput},
		{"unavailable", Unavailable("prs", base, "gh is not installed"), KindUnavailable},
		{"wrapped twice", fmt.Errorf("outer: %w", NotFound("x", "y")), KindNotFound},
		{"plain", base, KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NotFound("op", "missing"), http.StatusNotFound},
		{Invalid("op", "bad"), http.StatusBadRequest},
		{Unavailable("op", nil, "down"), http.StatusServiceUnavailable},
		{Wrap(KindTransient, "op", errors.New("x"), "flaky"), http.StatusBadGateway},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(KindInternal, "op", nil, "msg"); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
}

func TestUnwrapAndMessage(t *testing.T) {
	base := errors.New("exit status 128")
	err := Wrap(KindNotFound, "compare", base, "unknown revision %q", "nope")
	if !errors.Is(err, base) {
		t.Error("errors.Is should see the wrapped error")
	}
	if got := Message(err); got != `unknown revision "nope"` {
		t.Errorf("Message() = %q", got)
	}
	if got := Message(base); got != "exit status 128" {
		t.Errorf("Message(plain) = %q", got)
	}
	if KindNotFound.String() != "not_found" {
		t.Errorf("String() = %q", KindNotFound.String())
	}
}
