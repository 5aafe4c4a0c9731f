package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{E(Validation, "bad input"), http.StatusBadRequest},
		{E(Auth, "no token"), http.StatusUnauthorized},
		{E(Forbidden, "not yours"), http.StatusForbidden},
		{E(NotFound, "missing"), http.StatusNotFound},
		{E(Unavailable, "llm down"), http.StatusServiceUnavailable},
		{errors.New("plain"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", E(NotFound, "missing")), http.StatusNotFound},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestMessageMasksUnclassified(t *testing.T) {
	if got := Message(errors.New("sql: secret detail")); got != "internal error" {
		t.Errorf("Message(plain) = %q, want masked", got)
	}
	if got := Message(E(NotFound, "task not found")); got != "task not found" {
		t.Errorf("Message(classified) = %q", got)
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", Wrap(Forbidden, "collection belongs to another user", errors.New("inner")))
	if !Is(err, Forbidden) {
		t.Errorf("Is(%v, Forbidden) = false", err)
	}
	if KindOf(err) != Forbidden {
		t.Errorf("KindOf(%v) = %v, want Forbidden", err, KindOf(err))
	}
}
