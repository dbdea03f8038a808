package apierr

import (
	"fmt"
	"net/http"
	"testing"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"explicit", New(http.StatusConflict, "conflict", nil), http.StatusConflict, "conflict"},
		{"wrapped not found", fmt.Errorf("get comment: %w", ErrNotFound), http.StatusNotFound, "not_found"},
		{"invalid", ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "fallback"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, code := StatusOf(tc.err, "fallback")
			if status != tc.wantStatus || code != tc.wantCode {
				t.Fatalf("got (%d, %q), want (%d, %q)", status, code, tc.wantStatus, tc.wantCode)
			}
		})
	}
}
