package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{WrapError(ErrDocumentNotFound, "get state", errors.New("no rows")), CodeNotFound},
		{WrapError(ErrInvalidInput, "submit review", ErrStaleReview), CodeStaleReview},
		{fmt.Errorf("save: %w", ErrVersionConflict), CodeVersionConflict},
		{WrapError(ErrTemporary, "enqueue document", errors.New("no servers")), CodeTemporary},
		{errors.New("boom"), CodeInternal},
	}
	for _, tc := range cases {
		if got := ErrorCode(tc.err); got != tc.want {
			t.Fatalf("ErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
