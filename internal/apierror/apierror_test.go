package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFromStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   Kind
		out    int
	}{
		{http.StatusBadRequest, KindBadRequest, http.StatusBadRequest},
		{http.StatusUnauthorized, KindAuth, http.StatusUnauthorized},
		{http.StatusForbidden, KindForbidden, http.StatusForbidden},
		{http.StatusInternalServerError, KindServerError, http.StatusInternalServerError},
		{http.StatusTeapot, KindUpstreamStatus, http.StatusBadGateway},
	}
	for _, c := range cases {
		e := FromStatus("bhashini", c.status, "body")
		if e.Kind != c.kind {
			t.Errorf("status %d: expected kind %s, got %s", c.status, c.kind, e.Kind)
		}
		if e.Status() != c.out {
			t.Errorf("status %d: expected caller status %d, got %d", c.status, c.out, e.Status())
		}
	}
}

func TestStatusOfWrapped(t *testing.T) {
	inner := New(KindTimeout, "bhashini", "deadline")
	err := fmt.Errorf("transcription: %w", inner)
	if got := StatusOf(err); got != http.StatusRequestTimeout {
		t.Fatalf("expected 408, got %d", got)
	}
	if KindOf(err) != KindTimeout {
		t.Fatalf("expected timeout kind, got %s", KindOf(err))
	}
	if StatusOf(errors.New("plain")) != http.StatusInternalServerError {
		t.Fatal("plain errors should map to 500")
	}
}

func TestUnreachableMapsTo503(t *testing.T) {
	e := Wrap(KindUnreachable, "bhashini", errors.New("connection refused"))
	if e.Status() != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", e.Status())
	}
	if e.Error() == "" {
		t.Fatal("expected message")
	}
}
